package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

var (
	iataRegex = regexp.MustCompile(`^[A-Z]{3}$`)

	travelClasses = map[string]bool{
		"ECONOMY":         true,
		"PREMIUM_ECONOMY": true,
		"BUSINESS":        true,
		"FIRST":           true,
	}
)

const (
	maxPassengers        = 9
	maxPaymentSelections = 20
	maxSelectionLength   = 100
	maxCouponCodeLength  = 64
	maxOfferTextLength   = 1000
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// FieldErrors collects every problem found in one request.
type FieldErrors []*ValidationError

func (e FieldErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// Fields returns the offending field names in the order they were found.
func (e FieldErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, fe := range e {
		fields = append(fields, fe.Field)
	}
	return fields
}

func (e *FieldErrors) add(field, message string) {
	*e = append(*e, &ValidationError{Field: field, Message: message})
}

// ValidateSearchRequest checks a search request and returns it normalized:
// airport codes upper-cased, dates as YYYY-MM-DD, defaults filled in.
func ValidateSearchRequest(req models.SearchRequest) (models.SearchRequest, error) {
	var errs FieldErrors
	out := req

	out.From = strings.ToUpper(SanitizeString(req.From))
	out.To = strings.ToUpper(SanitizeString(req.To))

	switch {
	case out.From == "":
		errs.add("from", "is required")
	case !iataRegex.MatchString(out.From):
		errs.add("from", "must be a 3-letter IATA airport code")
	}

	switch {
	case out.To == "":
		errs.add("to", "is required")
	case !iataRegex.MatchString(out.To):
		errs.add("to", "must be a 3-letter IATA airport code")
	case out.To == out.From:
		errs.add("to", "must differ from 'from'")
	}

	departure := SanitizeString(req.DepartureDate)
	if departure == "" {
		errs.add("departureDate", "is required")
	} else if iso, ok := normalize.Date(departure); ok {
		out.DepartureDate = iso
	} else {
		errs.add("departureDate", "must be a valid date")
	}

	out.TripType = strings.ToLower(SanitizeString(req.TripType))
	returnDate := SanitizeString(req.ReturnDate)
	if out.TripType == "" {
		out.TripType = models.TripOneWay
		if returnDate != "" {
			out.TripType = models.TripRoundTrip
		}
	}

	switch out.TripType {
	case models.TripOneWay:
		out.ReturnDate = ""
	case models.TripRoundTrip:
		if returnDate == "" {
			errs.add("returnDate", "is required for round trips")
		} else if iso, ok := normalize.Date(returnDate); !ok {
			errs.add("returnDate", "must be a valid date")
		} else if out.DepartureDate != "" && iso < out.DepartureDate {
			errs.add("returnDate", "must not be before departureDate")
		} else {
			out.ReturnDate = iso
		}
	default:
		errs.add("tripType", "must be 'oneway' or 'roundtrip'")
	}

	switch {
	case req.Passengers == 0:
		out.Passengers = 1
	case req.Passengers < 0 || req.Passengers > maxPassengers:
		errs.add("passengers", fmt.Sprintf("must be between 1 and %d", maxPassengers))
	}

	out.TravelClass = strings.ToUpper(strings.ReplaceAll(SanitizeString(req.TravelClass), " ", "_"))
	if out.TravelClass == "" {
		out.TravelClass = "ECONOMY"
	} else if !travelClasses[out.TravelClass] {
		errs.add("travelClass", "must be one of ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST")
	}

	if len(req.PaymentMethods) > maxPaymentSelections {
		errs.add("paymentMethods", fmt.Sprintf("cannot contain more than %d entries", maxPaymentSelections))
	} else {
		out.PaymentMethods = make([]string, 0, len(req.PaymentMethods))
		for _, pm := range req.PaymentMethods {
			pm = SanitizeString(pm)
			if len(pm) > maxSelectionLength {
				errs.add("paymentMethods", fmt.Sprintf("entries cannot exceed %d characters", maxSelectionLength))
				break
			}
			if pm != "" {
				out.PaymentMethods = append(out.PaymentMethods, pm)
			}
		}
	}

	if len(errs) > 0 {
		return req, errs
	}
	return out, nil
}

// ValidateOffer checks the fields an offer needs to be stored. Commercial
// fields (percent, cap, minimum) are not checked here: unusable values only
// disqualify the offer at pricing time.
func ValidateOffer(offer models.Offer) error {
	if offer.SourcePortal == "" {
		return &ValidationError{
			Field:   "sourcePortal",
			Message: "is required",
		}
	}

	if _, ok := models.ParsePortal(string(offer.SourcePortal)); !ok {
		return &ValidationError{
			Field:   "sourcePortal",
			Message: fmt.Sprintf("unknown portal %q", offer.SourcePortal),
		}
	}

	if len(offer.CouponCode) > maxCouponCodeLength {
		return &ValidationError{
			Field:   "couponCode",
			Message: fmt.Sprintf("cannot exceed %d characters", maxCouponCodeLength),
		}
	}

	if len(offer.Title) > maxOfferTextLength {
		return &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("cannot exceed %d characters", maxOfferTextLength),
		}
	}

	if len(offer.RawDiscount) > maxOfferTextLength {
		return &ValidationError{
			Field:   "rawDiscount",
			Message: fmt.Sprintf("cannot exceed %d characters", maxOfferTextLength),
		}
	}

	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}
