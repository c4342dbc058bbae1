package pricing

import (
	"regexp"
	"strings"

	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

var creditTypeRegex = regexp.MustCompile(`credit|\bcc\b`)

// MatchesPayment reports whether an offer accepts any of the payment
// instruments the user selected. An empty selection matches every offer.
//
// Matching is containment in either direction between a selection token and
// a candidate label, so "hdfc" matches "hdfc bank credit card" and
// "hdfc bank debit card" matches "hdfc bank". Short tokens can therefore
// match unrelated labels; callers rely on this leniency.
func MatchesPayment(offer models.Offer, selection []string) bool {
	tokens := selectionTokens(selection)
	if len(tokens) == 0 {
		return true
	}

	labels := candidateLabels(offer.PaymentMethods)
	for _, token := range tokens {
		for _, label := range labels {
			if strings.Contains(label, token) || strings.Contains(token, label) {
				return true
			}
		}
	}
	return false
}

func selectionTokens(selection []string) []string {
	tokens := make([]string, 0, len(selection))
	for _, s := range selection {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func candidateLabels(methods models.PaymentMethods) []string {
	var labels []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			labels = append(labels, s)
		}
	}

	for _, pm := range methods {
		switch m := pm.(type) {
		case models.RawLabel:
			add(strings.ToLower(string(m)))
		case models.StructuredMethod:
			typ := strings.ToLower(strings.TrimSpace(m.Type))
			if strings.TrimSpace(m.Bank) == "" {
				add(typ)
				continue
			}

			bank := strings.ToLower(normalize.CanonicalBank(m.Bank))
			add(bank)
			switch {
			case strings.Contains(typ, "emi"):
				if strings.Contains(typ, "debit") {
					add(bank + " debit card emi")
				} else {
					add(bank + " credit card emi")
				}
			case creditTypeRegex.MatchString(typ):
				add(bank + " credit card")
			case strings.Contains(typ, "debit"):
				add(bank + " debit card")
			}
		}
	}
	return labels
}
