package pricing

import (
	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

// SelectBest returns the lowest price reachable on portal by applying one of
// offers to basePrice. Offers are tried in the order given and a later offer
// only wins with a strictly lower final price, so the first of several equal
// offers is kept. With no usable offer the quote carries the base price and a
// nil AppliedOffer.
func SelectBest(basePrice float64, portal models.Portal, offers []models.Offer, travelDate string, selection []string) (models.PriceQuote, error) {
	if err := checkBasePrice(basePrice); err != nil {
		return models.PriceQuote{}, err
	}

	best := models.PriceQuote{
		Portal:     portal,
		BasePrice:  basePrice,
		FinalPrice: basePrice,
	}

	for _, offer := range offers {
		if !IsActive(offer, travelDate) || !MatchesPayment(offer, selection) {
			continue
		}

		d, err := ComputeDiscount(offer, basePrice)
		if err != nil {
			return models.PriceQuote{}, err
		}
		if !d.Eligible {
			continue
		}

		if d.FinalPrice < best.FinalPrice {
			best.FinalPrice = d.FinalPrice
			best.DiscountApplied = d.Amount
			best.AppliedOffer = snapshot(portal, offer)
		}
	}

	return best, nil
}

func snapshot(portal models.Portal, offer models.Offer) *models.AppliedOffer {
	applied := &models.AppliedOffer{
		Portal:            portal,
		CouponCode:        offer.CouponCode,
		DiscountPercent:   offer.DiscountPercent.Value,
		MaxDiscountAmount: offer.MaxDiscountAmount.Ptr(),
		RawDiscount:       offer.RawDiscount,
		Title:             offer.Title,
		OfferID:           offer.ID,
		PaymentLabel:      normalize.DisplayLabel(offer),
	}
	if offer.MinTransactionValue.Valid {
		applied.MinTransactionValue = offer.MinTransactionValue.Value
	}
	if offer.ValidityPeriod != nil {
		vp := *offer.ValidityPeriod
		applied.ValidityPeriod = &vp
	}
	return applied
}
