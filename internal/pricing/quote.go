package pricing

import (
	"fmt"

	"fare-offers-api/internal/models"
)

// PriceFlights quotes every flight on every portal. Each flight's price is
// the base price; portal quotes follow models.Portals order.
func PriceFlights(flights []models.Flight, offers models.PortalOfferSet, travelDate string, selection []string) ([]models.FlightPricing, error) {
	result := make([]models.FlightPricing, 0, len(flights))

	for _, flight := range flights {
		prices := make([]models.PriceQuote, 0, len(models.Portals))
		for _, portal := range models.Portals {
			quote, err := SelectBest(flight.Price, portal, offers[portal], travelDate, selection)
			if err != nil {
				return nil, fmt.Errorf("failed to price flight %s on %s: %w", flight.FlightNumber, portal, err)
			}
			prices = append(prices, quote)
		}

		result = append(result, models.FlightPricing{
			Flight:       flight,
			PortalPrices: prices,
		})
	}

	return result, nil
}
