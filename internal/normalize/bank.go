package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

type bankRule struct {
	pattern *regexp.Regexp
	name    string
}

// bankRules is evaluated top to bottom and the first match wins. Co-branded
// issuers must stay above the bank they are co-branded with.
var bankRules = []bankRule{
	{regexp.MustCompile(`amazon\s*pay\s*icici`), "Amazon Pay ICICI"},
	{regexp.MustCompile(`flipkart\s*axis`), "Flipkart Axis Bank"},
	{regexp.MustCompile(`hdfc`), "HDFC Bank"},
	{regexp.MustCompile(`icici`), "ICICI Bank"},
	{regexp.MustCompile(`\bsbi\b|state\s+bank\s+of\s+india`), "SBI"},
	{regexp.MustCompile(`\baxis\b`), "Axis Bank"},
	{regexp.MustCompile(`kotak`), "Kotak Mahindra Bank"},
	{regexp.MustCompile(`\byes\s*bank\b`), "Yes Bank"},
	{regexp.MustCompile(`indusind`), "IndusInd Bank"},
	{regexp.MustCompile(`idfc`), "IDFC First Bank"},
	{regexp.MustCompile(`\bau\s+(small\s+finance\s+)?bank\b`), "AU Small Finance Bank"},
	{regexp.MustCompile(`\brbl\b`), "RBL Bank"},
	{regexp.MustCompile(`\bbob\b|bank\s+of\s+baroda|\bbobcard\b`), "Bank of Baroda"},
	{regexp.MustCompile(`\bfederal\b`), "Federal Bank"},
	{regexp.MustCompile(`\bhsbc\b`), "HSBC"},
	{regexp.MustCompile(`standard\s+chartered|\bscb\b`), "Standard Chartered"},
	{regexp.MustCompile(`\bciti`), "Citibank"},
	{regexp.MustCompile(`american\s+express|\bamex\b`), "American Express"},
	{regexp.MustCompile(`\bone\s*card`), "OneCard"},
	{regexp.MustCompile(`\bdbs\b`), "DBS Bank"},
	{regexp.MustCompile(`\bcanara\b`), "Canara Bank"},
	{regexp.MustCompile(`\bpnb\b|punjab\s+national`), "Punjab National Bank"},
	{regexp.MustCompile(`bajaj`), "Bajaj Finserv"},
	{regexp.MustCompile(`paytm`), "Paytm"},
	{regexp.MustCompile(`mobikwik`), "MobiKwik"},
	{regexp.MustCompile(`phone\s*pe`), "PhonePe"},
	{regexp.MustCompile(`google\s*pay|\bgpay\b`), "Google Pay"},
	{regexp.MustCompile(`amazon\s*pay`), "Amazon Pay"},
}

var (
	corporateSuffixRegex = regexp.MustCompile(`\b(ltd\.?|limited|plc)(\s|$)`)
	bankWordsRegex       = regexp.MustCompile(`\b(bank|cards?)\b`)
)

// CanonicalBank maps a free-form issuer name to its canonical display name.
// Applying it to its own output returns the same value.
func CanonicalBank(raw string) string {
	s := stripSuffixes(collapse(strings.ToLower(raw)))

	if name, ok := matchBank(s); ok {
		return name
	}

	// Dropping filler words can expose a suffix glued to them ("ltd.cards")
	// or bring two halves of an issuer name together, so repeat until stable.
	rest := s
	for {
		next := stripSuffixes(collapse(bankWordsRegex.ReplaceAllString(rest, " ")))
		if next == rest {
			break
		}
		rest = next
		if name, ok := matchBank(rest); ok {
			return name
		}
	}

	if rest == "" {
		return Title(raw)
	}
	return Title(rest)
}

func stripSuffixes(s string) string {
	for {
		next := collapse(corporateSuffixRegex.ReplaceAllString(s, " "))
		if next == s {
			return s
		}
		s = next
	}
}

func matchBank(s string) (string, bool) {
	for _, rule := range bankRules {
		if rule.pattern.MatchString(s) {
			return rule.name, true
		}
	}
	return "", false
}

// Title upper-cases the first letter of every word and lower-cases the rest.
// Words that already carry capitals past their first letter (HDFC, IndusInd,
// PhonePe) are left alone.
func Title(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if keepsCase(word) {
			continue
		}
		runes := []rune(strings.ToLower(word))
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func keepsCase(word string) bool {
	seen := false
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		if seen && unicode.IsUpper(r) {
			return true
		}
		seen = true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
