package pricing

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"fare-offers-api/internal/models"
)

// ErrInvalidBasePrice is returned for negative or non-finite base prices.
var ErrInvalidBasePrice = errors.New("pricing: base price must be a finite, non-negative number")

var hundred = decimal.NewFromInt(100)

// Discount is what an offer is worth against one base price.
type Discount struct {
	Amount     float64
	FinalPrice float64
	Eligible   bool
}

// ComputeDiscount applies an offer's percentage, cap and minimum transaction
// value to basePrice. Business-rule misses return an ineligible Discount; an
// error is returned only for an invalid base price.
func ComputeDiscount(offer models.Offer, basePrice float64) (Discount, error) {
	if err := checkBasePrice(basePrice); err != nil {
		return Discount{}, err
	}
	none := Discount{FinalPrice: basePrice}

	if strings.TrimSpace(offer.CouponCode) == "" {
		return none, nil
	}

	percent := offer.DiscountPercent
	if !percent.Valid || percent.Value <= 0 {
		return none, nil
	}

	minTxn := 0.0
	if offer.MinTransactionValue.Valid {
		minTxn = offer.MinTransactionValue.Value
	}
	if basePrice < minTxn {
		return none, nil
	}

	base := decimal.NewFromFloat(basePrice)
	amount := base.Mul(decimal.NewFromFloat(percent.Value)).Div(hundred).Floor()

	if limit := offer.MaxDiscountAmount; limit.Valid && limit.Value > 0 {
		amount = decimal.Min(amount, decimal.NewFromFloat(limit.Value))
	}
	if amount.GreaterThan(base) {
		amount = base
	}
	if !amount.IsPositive() {
		return none, nil
	}

	discount, _ := amount.Float64()
	final, _ := base.Sub(amount).Float64()
	return Discount{Amount: discount, FinalPrice: final, Eligible: true}, nil
}

func checkBasePrice(basePrice float64) error {
	if math.IsNaN(basePrice) || math.IsInf(basePrice, 0) || basePrice < 0 {
		return ErrInvalidBasePrice
	}
	return nil
}
