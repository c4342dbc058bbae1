package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"fare-offers-api/internal/models"
)

var syntheticCarriers = []struct {
	code string
	name string
}{
	{"6E", "IndiGo"},
	{"AI", "Air India"},
	{"UK", "Vistara"},
	{"SG", "SpiceJet"},
	{"QP", "Akasa Air"},
}

const defaultSyntheticCount = 6

// SyntheticProvider makes up plausible quotes. The same query always
// produces the same flights.
type SyntheticProvider struct{}

func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{}
}

func (p *SyntheticProvider) Search(ctx context.Context, q Query) ([]models.Flight, error) {
	day, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid travel date %q: %w", q.Date, err)
	}

	h := fnv.New64a()
	h.Write([]byte(q.Origin + "|" + q.Destination + "|" + q.Date + "|" + q.TravelClass))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	count := defaultSyntheticCount
	if q.Max > 0 && q.Max < count {
		count = q.Max
	}

	adults := max(q.Adults, 1)
	flights := make([]models.Flight, 0, count)
	for i := 0; i < count; i++ {
		carrier := syntheticCarriers[rng.Intn(len(syntheticCarriers))]
		stops := 0
		if rng.Intn(4) == 0 {
			stops = 1
		}

		departure := day.Add(time.Duration(5*60+rng.Intn(17*60)) * time.Minute).Truncate(5 * time.Minute)
		duration := time.Duration(90+rng.Intn(120)+stops*95) * time.Minute

		fare := 2500 + rng.Intn(9500)
		fare -= fare % 10

		flights = append(flights, models.Flight{
			FlightNumber: fmt.Sprintf("%s%d", carrier.code, 100+rng.Intn(900)),
			AirlineName:  carrier.name,
			Departure:    departure.Format("2006-01-02T15:04:05"),
			Arrival:      departure.Add(duration).Format("2006-01-02T15:04:05"),
			Price:        float64(fare * adults),
			Stops:        stops,
		})
	}
	return flights, nil
}
