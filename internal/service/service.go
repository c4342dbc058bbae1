package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"fare-offers-api/internal/cache"
	"fare-offers-api/internal/events"
	"fare-offers-api/internal/features"
	"fare-offers-api/internal/logger"
	"fare-offers-api/internal/metrics"
	"fare-offers-api/internal/models"
	"fare-offers-api/internal/pricing"
	"fare-offers-api/internal/provider"
	"fare-offers-api/internal/tracing"
	"fare-offers-api/internal/validation"
)

var (
	// ErrProviderUnavailable wraps failures of the flight quote provider.
	ErrProviderUnavailable = errors.New("flight quote provider unavailable")
	// ErrNoOffers is returned for an empty import.
	ErrNoOffers = errors.New("no offers provided")
	// ErrTooManyOffers is returned when an import exceeds MaxImportOffers.
	ErrTooManyOffers = fmt.Errorf("cannot import more than %d offers per request", MaxImportOffers)
)

const (
	// MaxImportOffers bounds a single bulk import.
	MaxImportOffers = 1000

	paymentOptionsKey = "payment-options"
	isoDate           = "2006-01-02"
)

// OfferRepository is the offer store the service reads and writes.
type OfferRepository interface {
	UpsertOffer(ctx context.Context, offer models.Offer) error
	UpsertOffers(ctx context.Context, offers []models.Offer) (int, error)
	LoadActiveOffers(ctx context.Context, travelDate string) (models.PortalOfferSet, error)
	SampleActiveOffers(ctx context.Context, limit int) ([]models.Offer, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Service provides business logic for the fare offers API.
type Service struct {
	repo       OfferRepository
	quotes     provider.Provider
	events     *events.Manager
	metrics    *metrics.Registry
	cache      cache.Cache
	features   *features.Manager
	sampleSize int
	optionsTTL time.Duration
	maxResults int
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithEvents(m *events.Manager) Option { return func(s *Service) { s.events = m } }

func WithMetrics(r *metrics.Registry) Option { return func(s *Service) { s.metrics = r } }

func WithFeatures(f *features.Manager) Option { return func(s *Service) { s.features = f } }

// WithPaymentOptionsCache caches the payment options report for ttl while
// the response_cache feature is on.
func WithPaymentOptionsCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.optionsTTL = ttl
	}
}

// WithSampleSize bounds the offers scanned for the payment options report.
func WithSampleSize(n int) Option { return func(s *Service) { s.sampleSize = n } }

// WithMaxResults bounds the flights requested per leg.
func WithMaxResults(n int) Option { return func(s *Service) { s.maxResults = n } }

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a new service instance.
func NewService(repo OfferRepository, quotes provider.Provider, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		quotes:     quotes,
		sampleSize: 500,
		maxResults: 20,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search prices every flight of the requested legs on every portal.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (resp models.SearchResponse, err error) {
	started := s.now()
	ctx, span := tracing.StartSpan(ctx, "service.Search")
	defer func() { tracing.EndSpan(span, err) }()

	req, err = validation.ValidateSearchRequest(req)
	if err != nil {
		s.observeSearch(req.TripType, "invalid", started)
		return models.SearchResponse{}, err
	}
	span.SetAttributes(
		attribute.String("search.route", req.From+"-"+req.To),
		attribute.String("search.trip_type", req.TripType),
		attribute.Int("search.payment_methods", len(req.PaymentMethods)),
	)

	resp.OutboundFlights, err = s.priceLeg(ctx, req, req.From, req.To, req.DepartureDate)
	if err != nil {
		s.observeSearch(req.TripType, "error", started)
		return models.SearchResponse{}, err
	}

	resp.ReturnFlights = []models.FlightPricing{}
	if req.TripType == models.TripRoundTrip {
		resp.ReturnFlights, err = s.priceLeg(ctx, req, req.To, req.From, req.ReturnDate)
		if err != nil {
			s.observeSearch(req.TripType, "error", started)
			return models.SearchResponse{}, err
		}
	}

	discounted := s.observeQuotes(resp.OutboundFlights) + s.observeQuotes(resp.ReturnFlights)
	s.observeSearch(req.TripType, "ok", started)

	if s.events != nil {
		s.events.PublishSearchCompleted(ctx, events.SearchCompletedData{
			From:             req.From,
			To:               req.To,
			DepartureDate:    req.DepartureDate,
			ReturnDate:       req.ReturnDate,
			TripType:         req.TripType,
			Flights:          len(resp.OutboundFlights) + len(resp.ReturnFlights),
			DiscountedQuotes: discounted,
			PaymentMethods:   len(req.PaymentMethods),
		})
	}

	return resp, nil
}

// priceLeg fetches quotes for one direction and prices them against the
// offers valid on that leg's travel date.
func (s *Service) priceLeg(ctx context.Context, req models.SearchRequest, from, to, date string) (_ []models.FlightPricing, err error) {
	ctx, span := tracing.StartSpan(ctx, "service.priceLeg",
		attribute.String("leg.route", from+"-"+to),
		attribute.String("leg.date", date),
	)
	defer func() { tracing.EndSpan(span, err) }()

	flights, err := s.quotes.Search(ctx, provider.Query{
		Origin:      from,
		Destination: to,
		Date:        date,
		Adults:      req.Passengers,
		TravelClass: req.TravelClass,
		Max:         s.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	offers, err := s.repo.LoadActiveOffers(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers for %s: %w", date, err)
	}

	priced, err := pricing.PriceFlights(flights, offers, date, req.PaymentMethods)
	if err != nil {
		return nil, err
	}

	logger.Debugf("priced %d flights %s-%s on %s", len(priced), from, to, date)
	return priced, nil
}

// PaymentOptions reports the payment instruments the current offers accept,
// bucketed by type.
func (s *Service) PaymentOptions(ctx context.Context) (_ models.PaymentOptions, err error) {
	ctx, span := tracing.StartSpan(ctx, "service.PaymentOptions")
	defer func() { tracing.EndSpan(span, err) }()

	useCache := s.cache != nil && s.optionsTTL > 0 && s.featureEnabled(features.FeatureResponseCache)
	if useCache {
		var cached models.PaymentOptions
		err := cache.GetJSON(ctx, s.cache, paymentOptionsKey, &cached)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Errorf("payment options cache read failed: %v", err)
		}
	}

	sample, err := s.repo.SampleActiveOffers(ctx, s.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample offers: %w", err)
	}

	options := pricing.AggregatePaymentOptions(sample, s.now().UTC().Format(isoDate))

	if useCache {
		if err := cache.SetJSON(ctx, s.cache, paymentOptionsKey, options, s.optionsTTL); err != nil {
			logger.Errorf("payment options cache write failed: %v", err)
		}
	}
	return options, nil
}

// CreateOffer validates and stores one offer, assigning an id when it has
// none. It returns the offer as stored.
func (s *Service) CreateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	offer, err := prepareOffer(offer)
	if err != nil {
		return models.Offer{}, err
	}

	if err := s.repo.UpsertOffer(ctx, offer); err != nil {
		return models.Offer{}, err
	}

	s.offersChanged(ctx, 1)
	if s.events != nil {
		s.events.PublishOfferUpserted(ctx, events.OfferUpsertedData{
			OfferID:    offer.ID,
			CouponCode: offer.CouponCode,
			Portal:     string(offer.SourcePortal),
		})
	}
	return offer, nil
}

// ImportOffers stores a batch of offers atomically. Nothing is stored if any
// offer is invalid.
func (s *Service) ImportOffers(ctx context.Context, offers []models.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, ErrNoOffers
	}
	if len(offers) > MaxImportOffers {
		return 0, ErrTooManyOffers
	}

	prepared := make([]models.Offer, 0, len(offers))
	for i, offer := range offers {
		p, err := prepareOffer(offer)
		if err != nil {
			return 0, fmt.Errorf("invalid offer at index %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}

	n, err := s.repo.UpsertOffers(ctx, prepared)
	if err != nil {
		return 0, err
	}

	s.offersChanged(ctx, n)
	if s.events != nil {
		s.events.PublishOffersImported(ctx, n)
	}
	return n, nil
}

// Ready reports whether the offer store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if p, ok := s.repo.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func prepareOffer(offer models.Offer) (models.Offer, error) {
	offer.ID = validation.SanitizeString(offer.ID)
	offer.CouponCode = validation.SanitizeString(offer.CouponCode)
	offer.Title = validation.SanitizeString(offer.Title)
	offer.RawDiscount = validation.SanitizeString(offer.RawDiscount)
	offer.PaymentLabel = validation.SanitizeString(offer.PaymentLabel)

	if err := validation.ValidateOffer(offer); err != nil {
		return models.Offer{}, err
	}

	offer.SourcePortal, _ = models.ParsePortal(string(offer.SourcePortal))
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	return offer, nil
}

// offersChanged drops the cached payment options report so the next
// request sees the new offers.
func (s *Service) offersChanged(ctx context.Context, n int) {
	if s.metrics != nil {
		s.metrics.OffersUpserted.Add(float64(n))
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, paymentOptionsKey); err != nil {
			logger.Errorf("failed to invalidate payment options cache: %v", err)
		}
	}
}

func (s *Service) featureEnabled(name string) bool {
	return s.features != nil && s.features.IsEnabled(name)
}

func (s *Service) observeQuotes(flights []models.FlightPricing) int {
	discounted := 0
	for _, fp := range flights {
		for _, q := range fp.PortalPrices {
			if q.AppliedOffer != nil {
				discounted++
			}
			if s.metrics != nil {
				s.metrics.ObserveQuote(string(q.Portal), q.AppliedOffer != nil)
			}
		}
	}
	return discounted
}

func (s *Service) observeSearch(tripType, outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	// rejected requests still carry the client's raw trip type
	if tripType != models.TripOneWay && tripType != models.TripRoundTrip {
		tripType = "unknown"
	}
	s.metrics.ObserveSearch(tripType, outcome, s.now().Sub(started))
}
