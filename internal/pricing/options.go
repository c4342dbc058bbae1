package pricing

import (
	"regexp"
	"sort"
	"strings"

	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

var (
	typeWordsRegex  = regexp.MustCompile(`(?i)\b(credit|debit|emi|net\s*-?\s*banking|internet\s+banking|wallet|upi|cc|dc|no\s+cost)\b`)
	fillerOnlyRegex = regexp.MustCompile(`(?i)\b(bank|cards?)\b`)
)

// AggregatePaymentOptions lists, per payment bucket, the institutions that
// offers active on today accept. EMI institutions are listed under Credit
// Card as well. Every bucket is present; labels are sorted and unique.
func AggregatePaymentOptions(offers []models.Offer, today string) models.PaymentOptions {
	sets := make(map[string]map[string]struct{}, len(models.PaymentBuckets))
	for _, bucket := range models.PaymentBuckets {
		sets[bucket] = make(map[string]struct{})
	}

	for _, offer := range offers {
		if !IsActive(offer, today) {
			continue
		}
		for _, pm := range offer.PaymentMethods {
			bucket, label, ok := classifyMethod(pm)
			if !ok {
				continue
			}
			sets[bucket][label] = struct{}{}
			if bucket == models.BucketEMI {
				sets[models.BucketCreditCard][label] = struct{}{}
			}
		}
	}

	options := make(models.PaymentOptions, len(sets))
	for bucket, set := range sets {
		labels := make([]string, 0, len(set))
		for label := range set {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		options[bucket] = labels
	}
	return options
}

func classifyMethod(pm models.PaymentMethod) (string, string, bool) {
	var bucket, text string
	var ok bool

	switch m := pm.(type) {
	case models.StructuredMethod:
		bucket, ok = normalize.PaymentBucket(m.Type)
		if !ok {
			bucket, ok = normalize.PaymentBucket(m.Bank)
		}
		text = m.Bank
	case models.RawLabel:
		bucket, ok = normalize.PaymentBucket(string(m))
		text = string(m)
	}

	if !ok || normalize.IsAllBanks(text) {
		return "", "", false
	}

	label := institutionLabel(text)
	if label == "" {
		return "", "", false
	}
	return bucket, label, true
}

// institutionLabel strips payment-type words and canonicalizes what is left.
func institutionLabel(text string) string {
	rest := strings.Join(strings.Fields(typeWordsRegex.ReplaceAllString(text, " ")), " ")
	if strings.TrimSpace(fillerOnlyRegex.ReplaceAllString(rest, " ")) == "" {
		return ""
	}
	return normalize.CanonicalBank(rest)
}
