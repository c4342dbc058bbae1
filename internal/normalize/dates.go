// Package normalize turns the inconsistently shaped strings found in offer
// feeds (dates, issuer names, payment labels) into canonical values.
package normalize

import (
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

var (
	dayFirstRegex = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	isoDateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Date converts a date-like string to YYYY-MM-DD. The second result is
// false when the value cannot be read as a calendar date; callers treat that
// as "no constraint".
func Date(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if m := dayFirstRegex.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3] + "-" + m[2] + "-" + m[1])
	}

	if isoDateRegex.MatchString(s) {
		return calendarDate(s)
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return civil.DateOf(t).String(), true
}

func calendarDate(iso string) (string, bool) {
	d, err := civil.ParseDate(iso)
	if err != nil || !d.IsValid() {
		return "", false
	}
	return d.String(), true
}
