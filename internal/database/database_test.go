package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"fare-offers-api/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "offers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func offer(portal models.Portal, coupon, end string) models.Offer {
	o := models.Offer{
		ID:              uuid.New().String(),
		CouponCode:      coupon,
		DiscountPercent: models.NewNumber(10),
		SourcePortal:    portal,
	}
	if end != "" {
		o.ValidityPeriod = &models.ValidityPeriod{End: end}
	}
	return o
}

func TestLoadActiveOffers_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	keep := offer(models.PortalMakeMyTrip, "KEEP", "2025-01-10")
	openEnded := offer(models.PortalMakeMyTrip, "OPEN", "")
	ddmm := offer(models.PortalYatra, "DDMM", "15/01/2025")
	expired := offer(models.PortalMakeMyTrip, "EXPIRED", "")
	expired.IsExpired = true
	noCoupon := offer(models.PortalGoibibo, "", "")
	lapsed := offer(models.PortalCleartrip, "LAPSED", "2025-01-09")

	for _, o := range []models.Offer{keep, openEnded, ddmm, expired, noCoupon, lapsed} {
		if err := db.UpsertOffer(ctx, o); err != nil {
			t.Fatalf("UpsertOffer failed: %v", err)
		}
	}

	set, err := db.LoadActiveOffers(ctx, "2025-01-10")
	if err != nil {
		t.Fatalf("LoadActiveOffers failed: %v", err)
	}

	mmt := set[models.PortalMakeMyTrip]
	if len(mmt) != 2 || mmt[0].CouponCode != "KEEP" || mmt[1].CouponCode != "OPEN" {
		t.Errorf("Expected KEEP then OPEN for MakeMyTrip, got %+v", mmt)
	}
	if len(set[models.PortalYatra]) != 1 {
		t.Errorf("Expected DD/MM/YYYY end date to be understood, got %+v", set[models.PortalYatra])
	}
	if len(set[models.PortalGoibibo]) != 0 {
		t.Errorf("Expected coupon-less offer to be filtered, got %+v", set[models.PortalGoibibo])
	}
	if len(set[models.PortalCleartrip]) != 0 {
		t.Errorf("Expected lapsed offer to be filtered, got %+v", set[models.PortalCleartrip])
	}
}

func TestUpsertOffer_UpdateKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := offer(models.PortalEaseMyTrip, "FIRST", "")
	second := offer(models.PortalEaseMyTrip, "SECOND", "")
	if _, err := db.UpsertOffers(ctx, []models.Offer{first, second}); err != nil {
		t.Fatalf("UpsertOffers failed: %v", err)
	}

	first.CouponCode = "FIRST-V2"
	if err := db.UpsertOffer(ctx, first); err != nil {
		t.Fatalf("UpsertOffer failed: %v", err)
	}

	set, err := db.LoadActiveOffers(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("LoadActiveOffers failed: %v", err)
	}

	got := set[models.PortalEaseMyTrip]
	if len(got) != 2 || got[0].CouponCode != "FIRST-V2" || got[1].CouponCode != "SECOND" {
		t.Errorf("Expected updated offer to keep its position, got %+v", got)
	}
}

func TestUpsertOffer_RoundTripsFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	in := models.Offer{
		ID:                  "mmt-1",
		CouponCode:          "HDFC12",
		Title:               "12% off with HDFC",
		RawDiscount:         "12% up to 1200",
		DiscountPercent:     models.NewNumber(12),
		MaxDiscountAmount:   models.NewNumber(1200),
		ValidityPeriod:      &models.ValidityPeriod{Start: "2025-01-01", End: "2025-03-31"},
		PaymentMethods:      models.PaymentMethods{models.RawLabel("HDFC Bank Credit Card"), models.StructuredMethod{Bank: "HDFC", Type: "emi"}},
		PaymentLabel:        "HDFC Bank (Credit Card)",
		SourcePortal:        models.Portal("make my trip"),
	}
	if err := db.UpsertOffer(ctx, in); err != nil {
		t.Fatalf("UpsertOffer failed: %v", err)
	}

	got, err := db.GetOffer(ctx, "mmt-1")
	if err != nil {
		t.Fatalf("GetOffer failed: %v", err)
	}

	if got.SourcePortal != models.PortalMakeMyTrip {
		t.Errorf("Expected canonical portal, got %q", got.SourcePortal)
	}
	if got.MaxDiscountAmount != models.NewNumber(1200) {
		t.Errorf("Expected cap 1200, got %+v", got.MaxDiscountAmount)
	}
	if got.MinTransactionValue.Valid {
		t.Errorf("Expected missing minimum to stay missing, got %+v", got.MinTransactionValue)
	}
	if got.ValidityPeriod == nil || got.ValidityPeriod.End != "2025-03-31" {
		t.Errorf("Unexpected validity period: %+v", got.ValidityPeriod)
	}
	if len(got.PaymentMethods) != 2 {
		t.Fatalf("Expected 2 payment methods, got %#v", got.PaymentMethods)
	}
	if m, ok := got.PaymentMethods[1].(models.StructuredMethod); !ok || m.Type != "emi" {
		t.Errorf("Expected structured emi method, got %#v", got.PaymentMethods[1])
	}

	if _, err := db.GetOffer(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertOffers_RejectsWholeBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	good := offer(models.PortalYatra, "GOOD", "")
	bad := offer(models.Portal("Expedia"), "BAD", "")

	if _, err := db.UpsertOffers(ctx, []models.Offer{good, bad}); err == nil {
		t.Fatal("Expected batch with unknown portal to fail")
	}

	sample, err := db.SampleActiveOffers(ctx, 10)
	if err != nil {
		t.Fatalf("SampleActiveOffers failed: %v", err)
	}
	if len(sample) != 0 {
		t.Errorf("Expected rollback to leave no offers, got %d", len(sample))
	}
}

func TestSampleActiveOffers_Limit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var batch []models.Offer
	for i := 0; i < 5; i++ {
		batch = append(batch, offer(models.PortalGoibibo, "C", ""))
	}
	expired := offer(models.PortalGoibibo, "OLD", "")
	expired.IsExpired = true
	batch = append([]models.Offer{expired}, batch...)

	n, err := db.UpsertOffers(ctx, batch)
	if err != nil {
		t.Fatalf("UpsertOffers failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 upserted, got %d", n)
	}

	sample, err := db.SampleActiveOffers(ctx, 3)
	if err != nil {
		t.Fatalf("SampleActiveOffers failed: %v", err)
	}
	if len(sample) != 3 {
		t.Fatalf("Expected 3 offers, got %d", len(sample))
	}
	if sample[0].ID != batch[1].ID {
		t.Errorf("Expected insertion order with expired offer skipped")
	}
}
