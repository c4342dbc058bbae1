// Package pricing selects, per flight and portal, the coupon that gives the
// lowest final price. It works on already-loaded values only and keeps no
// state between calls.
package pricing

import (
	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

// IsActive reports whether an offer can be used for travel on travelDate
// (YYYY-MM-DD). Offers without a readable end date never lapse on their own.
func IsActive(offer models.Offer, travelDate string) bool {
	if offer.IsExpired {
		return false
	}

	end, ok := EndDate(offer)
	if !ok {
		return true
	}
	return travelDate <= end
}

// EndDate returns the offer's normalized end date, if it has one.
func EndDate(offer models.Offer) (string, bool) {
	if offer.ValidityPeriod == nil {
		return "", false
	}
	return normalize.Date(offer.ValidityPeriod.End)
}
