package service

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"fare-offers-api/internal/cache"
	"fare-offers-api/internal/database"
	"fare-offers-api/internal/events"
	"fare-offers-api/internal/features"
	"fare-offers-api/internal/metrics"
	"fare-offers-api/internal/models"
	"fare-offers-api/internal/provider"
	"fare-offers-api/internal/validation"
)

type stubProvider struct {
	mu      sync.Mutex
	flights map[string][]models.Flight // keyed by origin
	err     error
	queries []provider.Query
}

func (p *stubProvider) Search(ctx context.Context, q provider.Query) ([]models.Flight, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	return p.flights[q.Origin], nil
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func fixedClock() time.Time {
	return time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
}

func TestSearch_OneWayAppliesBestOffer(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	quotes := &stubProvider{flights: map[string][]models.Flight{
		"DEL": {{FlightNumber: "6E201", AirlineName: "IndiGo", Price: 4500}},
	}}
	reg := metrics.NewRegistry()
	svc := NewService(db, quotes, WithMetrics(reg), WithClock(fixedClock), WithMaxResults(7))

	_, err := svc.CreateOffer(ctx, models.Offer{
		CouponCode:      "X10",
		DiscountPercent: models.NewNumber(10),
		ValidityPeriod:  &models.ValidityPeriod{End: "2025-12-31"},
		PaymentMethods:  models.PaymentMethods{models.StructuredMethod{Bank: "HDFC Bank Ltd", Type: "credit"}},
		SourcePortal:    models.PortalMakeMyTrip,
	})
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	resp, err := svc.Search(ctx, models.SearchRequest{
		From:           "del",
		To:             "BOM",
		DepartureDate:  "10/01/2025",
		PaymentMethods: []string{"hdfc"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.OutboundFlights) != 1 {
		t.Fatalf("Expected 1 outbound flight, got %d", len(resp.OutboundFlights))
	}
	if resp.ReturnFlights == nil || len(resp.ReturnFlights) != 0 {
		t.Errorf("Expected empty, non-nil return flights, got %#v", resp.ReturnFlights)
	}

	prices := resp.OutboundFlights[0].PortalPrices
	if len(prices) != len(models.Portals) {
		t.Fatalf("Expected a quote per portal, got %d", len(prices))
	}

	mmt := prices[0]
	if mmt.Portal != models.PortalMakeMyTrip || mmt.FinalPrice != 4050 || mmt.DiscountApplied != 450 {
		t.Errorf("Expected MakeMyTrip 4050/450, got %+v", mmt)
	}
	if mmt.AppliedOffer == nil || mmt.AppliedOffer.CouponCode != "X10" {
		t.Errorf("Expected X10 applied, got %+v", mmt.AppliedOffer)
	}
	for _, q := range prices[1:] {
		if q.AppliedOffer != nil || q.FinalPrice != 4500 {
			t.Errorf("Expected undiscounted quote on %s, got %+v", q.Portal, q)
		}
	}

	q := quotes.queries[0]
	if q.Origin != "DEL" || q.Date != "2025-01-10" || q.Adults != 1 || q.Max != 7 {
		t.Errorf("Unexpected provider query: %+v", q)
	}
}

func TestSearch_RoundTripUsesReturnDate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	quotes := &stubProvider{flights: map[string][]models.Flight{
		"DEL": {{FlightNumber: "AI101", Price: 5000}},
		"BOM": {{FlightNumber: "AI102", Price: 5000}},
	}}
	svc := NewService(db, quotes)

	// valid for the outbound leg only
	_, err := svc.CreateOffer(ctx, models.Offer{
		CouponCode:      "SHORT",
		DiscountPercent: models.NewNumber(20),
		ValidityPeriod:  &models.ValidityPeriod{End: "2025-01-12"},
		SourcePortal:    models.PortalCleartrip,
	})
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	resp, err := svc.Search(ctx, models.SearchRequest{
		From: "DEL", To: "BOM", DepartureDate: "2025-01-10", ReturnDate: "2025-01-15",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.OutboundFlights) != 1 || len(resp.ReturnFlights) != 1 {
		t.Fatalf("Expected one flight per leg, got %d/%d", len(resp.OutboundFlights), len(resp.ReturnFlights))
	}

	out := resp.OutboundFlights[0].PortalPrices[4]
	if out.Portal != models.PortalCleartrip || out.FinalPrice != 4000 {
		t.Errorf("Expected outbound Cleartrip discount, got %+v", out)
	}
	back := resp.ReturnFlights[0].PortalPrices[4]
	if back.AppliedOffer != nil || back.FinalPrice != 5000 {
		t.Errorf("Expected no discount on return date, got %+v", back)
	}

	if len(quotes.queries) != 2 || quotes.queries[1].Origin != "BOM" || quotes.queries[1].Date != "2025-01-15" {
		t.Errorf("Unexpected provider queries: %+v", quotes.queries)
	}
}

func TestSearch_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	svc := NewService(db, &stubProvider{})
	_, err := svc.Search(ctx, models.SearchRequest{From: "DEL"})
	var fieldErrs validation.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Errorf("Expected FieldErrors, got %v", err)
	}

	failing := NewService(db, &stubProvider{err: errors.New("upstream timeout")})
	_, err = failing.Search(ctx, models.SearchRequest{From: "DEL", To: "BOM", DepartureDate: "2025-01-10"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSearch_InvalidTripTypeMetricLabel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	reg := metrics.NewRegistry()
	svc := NewService(db, &stubProvider{}, WithMetrics(reg))

	for i := 0; i < 25; i++ {
		_, err := svc.Search(ctx, models.SearchRequest{
			From:          "DEL",
			To:            "BOM",
			DepartureDate: "2025-01-10",
			TripType:      fmt.Sprintf("junk-%d", i),
		})
		if err == nil {
			t.Fatalf("Expected validation error for trip type junk-%d", i)
		}
	}

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	series := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "fare_searches_total{") {
			series++
		}
	}
	if series != 1 {
		t.Errorf("Expected a single fare_searches_total series, got %d:\n%s", series, body)
	}
	if !strings.Contains(body, `fare_searches_total{outcome="invalid",trip_type="unknown"} 25`) {
		t.Errorf("Expected invalid searches under trip_type=unknown, got:\n%s", body)
	}
}

func TestSearch_PublishesEvent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mgr := events.NewManager(nil)
	var mu sync.Mutex
	var got []events.SearchCompletedData
	mgr.Subscribe(events.EventSearchCompleted, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Data.(events.SearchCompletedData))
		return nil
	})

	quotes := &stubProvider{flights: map[string][]models.Flight{"DEL": {{FlightNumber: "SG8", Price: 3000}}}}
	svc := NewService(db, quotes, WithEvents(mgr))

	if _, err := svc.Search(ctx, models.SearchRequest{From: "DEL", To: "GOI", DepartureDate: "2025-01-10"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	mgr.Shutdown(ctx)

	if len(got) != 1 || got[0].Flights != 1 || got[0].TripType != models.TripOneWay {
		t.Errorf("Unexpected events: %+v", got)
	}
}

func TestPaymentOptions_CachedUntilOffersChange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	flags, _ := features.NewManager(features.FeatureResponseCache)
	svc := NewService(db, &stubProvider{},
		WithFeatures(flags),
		WithPaymentOptionsCache(cache.NewInMemoryCache(), time.Hour),
		WithClock(fixedClock),
	)

	if _, err := svc.CreateOffer(ctx, models.Offer{
		CouponCode:     "UPI50",
		PaymentMethods: models.PaymentMethods{models.RawLabel("Paytm UPI")},
		SourcePortal:   models.PortalYatra,
	}); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	options, err := svc.PaymentOptions(ctx)
	if err != nil {
		t.Fatalf("PaymentOptions failed: %v", err)
	}
	if len(options[models.BucketUPI]) != 1 || options[models.BucketUPI][0] != "Paytm" {
		t.Errorf("Unexpected UPI bucket: %v", options[models.BucketUPI])
	}
	for _, bucket := range models.PaymentBuckets {
		if _, ok := options[bucket]; !ok {
			t.Errorf("Expected bucket %q present", bucket)
		}
	}

	if _, err := svc.ImportOffers(ctx, []models.Offer{{
		CouponCode:     "HDFCEMI",
		PaymentMethods: models.PaymentMethods{models.StructuredMethod{Bank: "HDFC", Type: "emi"}},
		SourcePortal:   models.PortalGoibibo,
	}}); err != nil {
		t.Fatalf("ImportOffers failed: %v", err)
	}

	options, err = svc.PaymentOptions(ctx)
	if err != nil {
		t.Fatalf("PaymentOptions failed: %v", err)
	}
	if len(options[models.BucketEMI]) != 1 || len(options[models.BucketCreditCard]) != 1 {
		t.Errorf("Expected import to invalidate the cached report, got %v", options)
	}
}

func TestCreateOffer_AssignsIDAndCanonicalPortal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, &stubProvider{})

	stored, err := svc.CreateOffer(context.Background(), models.Offer{
		CouponCode:   " FLY10 ",
		SourcePortal: models.Portal("easemytrip"),
	})
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	if _, err := uuid.Parse(stored.ID); err != nil {
		t.Errorf("Expected generated uuid, got %q", stored.ID)
	}
	if stored.SourcePortal != models.PortalEaseMyTrip {
		t.Errorf("Expected canonical portal, got %q", stored.SourcePortal)
	}
	if stored.CouponCode != "FLY10" {
		t.Errorf("Expected trimmed coupon code, got %q", stored.CouponCode)
	}

	_, err = svc.CreateOffer(context.Background(), models.Offer{CouponCode: "X", SourcePortal: "Expedia"})
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "sourcePortal" {
		t.Errorf("Expected sourcePortal validation error, got %v", err)
	}
}

func TestImportOffers_Limits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db, &stubProvider{})

	if _, err := svc.ImportOffers(ctx, nil); !errors.Is(err, ErrNoOffers) {
		t.Errorf("Expected ErrNoOffers, got %v", err)
	}

	tooMany := make([]models.Offer, MaxImportOffers+1)
	if _, err := svc.ImportOffers(ctx, tooMany); !errors.Is(err, ErrTooManyOffers) {
		t.Errorf("Expected ErrTooManyOffers, got %v", err)
	}

	batch := []models.Offer{
		{CouponCode: "OK", SourcePortal: models.PortalYatra},
		{CouponCode: "BAD"},
	}
	_, err := svc.ImportOffers(ctx, batch)
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	sample, err := db.SampleActiveOffers(ctx, 10)
	if err != nil {
		t.Fatalf("SampleActiveOffers failed: %v", err)
	}
	if len(sample) != 0 {
		t.Errorf("Expected nothing stored from an invalid batch, got %d", len(sample))
	}

	n, err := svc.ImportOffers(ctx, batch[:1])
	if err != nil || n != 1 {
		t.Errorf("Expected 1 imported, got %d, %v", n, err)
	}
}
