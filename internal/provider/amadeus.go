package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fare-offers-api/internal/models"
)

const flightOffersPath = "/v2/shopping/flight-offers"

// AmadeusClient queries the Amadeus flight-offers search API.
type AmadeusClient struct {
	baseURL    string
	tokens     *TokenCache
	httpClient *http.Client
	currency   string
}

func NewAmadeusClient(baseURL string, tokens *TokenCache, timeout time.Duration) *AmadeusClient {
	return &AmadeusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		currency:   "INR",
	}
}

type flightOffersResponse struct {
	Data []struct {
		Itineraries []struct {
			Segments []struct {
				Departure struct {
					IataCode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IataCode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Currency   string `json:"currency"`
			GrandTotal string `json:"grandTotal"`
		} `json:"price"`
	} `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

// Search returns the live quotes for q. A rejected token is refreshed once.
func (c *AmadeusClient) Search(ctx context.Context, q Query) ([]models.Flight, error) {
	resp, err := c.do(ctx, q)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.tokens.Invalidate()
		resp, err = c.do(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flight offers request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload flightOffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode flight offers: %w", err)
	}

	return mapFlightOffers(payload), nil
}

func (c *AmadeusClient) do(ctx context.Context, q Query) (*http.Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.Date)
	params.Set("adults", strconv.Itoa(max(q.Adults, 1)))
	params.Set("currencyCode", c.currency)
	if q.TravelClass != "" {
		params.Set("travelClass", q.TravelClass)
	}
	if q.Max > 0 {
		params.Set("max", strconv.Itoa(q.Max))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+flightOffersPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build flight offers request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flight offers request failed: %w", err)
	}
	return resp, nil
}

// mapFlightOffers keeps the first itinerary of each offer. Offers without
// segments or with an unreadable price are dropped.
func mapFlightOffers(payload flightOffersResponse) []models.Flight {
	flights := make([]models.Flight, 0, len(payload.Data))
	for _, offer := range payload.Data {
		if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
			continue
		}
		segments := offer.Itineraries[0].Segments
		first, last := segments[0], segments[len(segments)-1]

		price, err := decimal.NewFromString(offer.Price.GrandTotal)
		if err != nil || price.IsNegative() {
			continue
		}

		airline := payload.Dictionaries.Carriers[first.CarrierCode]
		if airline == "" {
			airline = first.CarrierCode
		}

		flights = append(flights, models.Flight{
			FlightNumber: first.CarrierCode + first.Number,
			AirlineName:  airline,
			Departure:    first.Departure.At,
			Arrival:      last.Arrival.At,
			Price:        price.InexactFloat64(),
			Stops:        len(segments) - 1,
		})
	}
	return flights
}
