package normalize

import (
	"regexp"
	"strings"

	"fare-offers-api/internal/models"
)

// UnknownLabel is shown when an offer carries no payment hint at all.
const UnknownLabel = "Unknown"

var (
	allBanksRegex  = regexp.MustCompile(`(?i)^\s*(all|any)\b`)
	completeRegex  = regexp.MustCompile(`(?i)card|\bemi\b|net\s*bank|wallet|\bupi\b`)
	netBankingText = regexp.MustCompile(`net\s*-?\s*banking|netbank|internet\s+banking`)
	ccTokenRegex   = regexp.MustCompile(`\bcc\b`)
	emiTokenRegex  = regexp.MustCompile(`\bemi\b`)
)

// TypeDisplay returns the display name for a payment type such as "credit",
// "debit card emi" or "nb". Unknown types return "".
func TypeDisplay(typ string) string {
	t := collapse(strings.ToLower(typ))
	switch {
	case t == "":
		return ""
	case emiTokenRegex.MatchString(t):
		if strings.Contains(t, "debit") {
			return "Debit Card EMI"
		}
		return "Credit Card EMI"
	case strings.Contains(t, "credit") || ccTokenRegex.MatchString(t):
		return "Credit Card"
	case strings.Contains(t, "debit") || t == "dc":
		return "Debit Card"
	case netBankingText.MatchString(t) || t == "nb":
		return "NetBanking"
	case strings.Contains(t, "wallet"):
		return "Wallet"
	case strings.Contains(t, "upi"):
		return "UPI"
	}
	return ""
}

// SynthesizeLabel builds a display label from a bank and payment type.
func SynthesizeLabel(bank, typ string) string {
	display := TypeDisplay(typ)

	if allBanksRegex.MatchString(bank) {
		if display != "" {
			return display
		}
		return Title(bank)
	}

	if strings.TrimSpace(bank) == "" {
		return display
	}

	if completeRegex.MatchString(bank) {
		return Title(bank)
	}

	if display == "" {
		return Title(bank)
	}
	return Title(bank) + " (" + display + ")"
}

// DisplayLabel picks the label shown next to an offer, in order of
// preference: precomputed label, first structured method, first raw method,
// keywords in the offer text, UnknownLabel. Only the first structured method
// is consulted; when it yields nothing the raw methods are next.
func DisplayLabel(offer models.Offer) string {
	if label := strings.TrimSpace(offer.PaymentLabel); label != "" {
		return label
	}

	for _, pm := range offer.PaymentMethods {
		m, ok := pm.(models.StructuredMethod)
		if !ok {
			continue
		}
		bank := m.Bank
		if bank != "" && !allBanksRegex.MatchString(bank) {
			bank = CanonicalBank(bank)
		}
		if label := SynthesizeLabel(bank, m.Type); label != "" {
			return label
		}
		break
	}

	for _, pm := range offer.PaymentMethods {
		if raw, ok := pm.(models.RawLabel); ok {
			return string(raw)
		}
	}

	if label, ok := sniffLabel(offer.Title + " " + offer.RawDiscount); ok {
		return label
	}
	return UnknownLabel
}

func sniffLabel(text string) (string, bool) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "wallet"):
		return "Wallet", true
	case strings.Contains(t, "upi"):
		return "UPI", true
	case netBankingText.MatchString(t):
		return "NetBanking", true
	case strings.Contains(t, "debit"):
		return "Debit Card", true
	case strings.Contains(t, "credit") || emiTokenRegex.MatchString(t):
		return "Credit Card", true
	}
	return "", false
}

// PaymentBucket classifies payment text into one of the six payment option
// buckets. EMI wins over the card type it is offered on.
func PaymentBucket(text string) (string, bool) {
	t := collapse(strings.ToLower(text))
	switch {
	case t == "":
		return "", false
	case emiTokenRegex.MatchString(t):
		return models.BucketEMI, true
	case strings.Contains(t, "wallet"):
		return models.BucketWallet, true
	case strings.Contains(t, "upi"):
		return models.BucketUPI, true
	case netBankingText.MatchString(t) || t == "nb":
		return models.BucketNetBanking, true
	case strings.Contains(t, "debit") || t == "dc":
		return models.BucketDebitCard, true
	case strings.Contains(t, "credit") || ccTokenRegex.MatchString(t):
		return models.BucketCreditCard, true
	}
	return "", false
}

// IsAllBanks reports whether a bank field means "any issuer".
func IsAllBanks(bank string) bool {
	return allBanksRegex.MatchString(bank)
}
