package validation

import (
	"errors"
	"strings"
	"testing"

	"fare-offers-api/internal/models"
)

func TestValidateSearchRequest_Normalizes(t *testing.T) {
	req := models.SearchRequest{
		From:           " del ",
		To:             "bom",
		DepartureDate:  "10/01/2025",
		ReturnDate:     "2025-01-15",
		PaymentMethods: []string{" HDFC Credit Card ", "", "UPI"},
	}

	got, err := ValidateSearchRequest(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got.From != "DEL" || got.To != "BOM" {
		t.Errorf("Expected DEL-BOM, got %s-%s", got.From, got.To)
	}
	if got.DepartureDate != "2025-01-10" {
		t.Errorf("Expected ISO departure date, got %s", got.DepartureDate)
	}
	if got.TripType != models.TripRoundTrip {
		t.Errorf("Expected trip type inferred as roundtrip, got %s", got.TripType)
	}
	if got.Passengers != 1 {
		t.Errorf("Expected default of 1 passenger, got %d", got.Passengers)
	}
	if got.TravelClass != "ECONOMY" {
		t.Errorf("Expected default travel class ECONOMY, got %s", got.TravelClass)
	}
	if len(got.PaymentMethods) != 2 || got.PaymentMethods[0] != "HDFC Credit Card" {
		t.Errorf("Unexpected payment methods: %#v", got.PaymentMethods)
	}
}

func TestValidateSearchRequest_OneWayDropsReturnDate(t *testing.T) {
	got, err := ValidateSearchRequest(models.SearchRequest{
		From:          "DEL",
		To:            "BLR",
		DepartureDate: "2025-02-01",
		ReturnDate:    "2025-02-05",
		TripType:      "ONEWAY",
		TravelClass:   "premium economy",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.ReturnDate != "" {
		t.Errorf("Expected return date cleared, got %q", got.ReturnDate)
	}
	if got.TravelClass != "PREMIUM_ECONOMY" {
		t.Errorf("Expected PREMIUM_ECONOMY, got %s", got.TravelClass)
	}
}

func TestValidateSearchRequest_CollectsFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    models.SearchRequest
		fields []string
	}{
		{
			name:   "missing everything",
			req:    models.SearchRequest{},
			fields: []string{"from", "to", "departureDate"},
		},
		{
			name:   "bad airport codes",
			req:    models.SearchRequest{From: "DELHI", To: "B1M", DepartureDate: "2025-01-10"},
			fields: []string{"from", "to"},
		},
		{
			name:   "same origin and destination",
			req:    models.SearchRequest{From: "DEL", To: "del", DepartureDate: "2025-01-10"},
			fields: []string{"to"},
		},
		{
			name:   "impossible date",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "31/02/2025"},
			fields: []string{"departureDate"},
		},
		{
			name:   "round trip without return",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10", TripType: "roundtrip"},
			fields: []string{"returnDate"},
		},
		{
			name:   "return before departure",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10", ReturnDate: "2025-01-09"},
			fields: []string{"returnDate"},
		},
		{
			name:   "unknown trip type",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10", TripType: "multicity"},
			fields: []string{"tripType"},
		},
		{
			name:   "too many passengers",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10", Passengers: 12},
			fields: []string{"passengers"},
		},
		{
			name:   "unknown cabin",
			req:    models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10", TravelClass: "steerage"},
			fields: []string{"travelClass"},
		},
		{
			name: "oversized selection",
			req: models.SearchRequest{
				From: "DEL", To: "BOM", DepartureDate: "2025-01-10",
				PaymentMethods: []string{strings.Repeat("x", 101)},
			},
			fields: []string{"paymentMethods"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSearchRequest(tt.req)
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var fieldErrs FieldErrors
			if !errors.As(err, &fieldErrs) {
				t.Fatalf("Expected FieldErrors, got %T", err)
			}

			got := fieldErrs.Fields()
			if strings.Join(got, ",") != strings.Join(tt.fields, ",") {
				t.Errorf("Expected fields %v, got %v", tt.fields, got)
			}
		})
	}
}

func TestValidateOffer(t *testing.T) {
	valid := models.Offer{CouponCode: "FLY10", SourcePortal: models.PortalGoibibo}
	if err := ValidateOffer(valid); err != nil {
		t.Errorf("Expected valid offer, got %v", err)
	}

	noCoupon := models.Offer{SourcePortal: models.PortalYatra}
	if err := ValidateOffer(noCoupon); err != nil {
		t.Errorf("Expected offer without coupon to be storable, got %v", err)
	}

	tests := map[string]models.Offer{
		"sourcePortal": {CouponCode: "X"},
		"couponCode":   {CouponCode: strings.Repeat("C", 65), SourcePortal: models.PortalYatra},
		"title":        {Title: strings.Repeat("t", 1001), SourcePortal: models.PortalYatra},
	}
	for field, offer := range tests {
		err := ValidateOffer(offer)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Expected ValidationError for %s, got %v", field, err)
		}
		if vErr.Field != field {
			t.Errorf("Expected field %s, got %s", field, vErr.Field)
		}
	}

	unknown := models.Offer{CouponCode: "X", SourcePortal: models.Portal("Expedia")}
	if err := ValidateOffer(unknown); err == nil {
		t.Error("Expected unknown portal to be rejected")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  HDFC\x00 Bank\x07 "); got != "HDFC Bank" {
		t.Errorf("Expected control characters stripped, got %q", got)
	}
}
