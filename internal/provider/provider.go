// Package provider fetches flight quotes from the live fare API, with a
// deterministic synthetic source to fall back on and an optional cache in
// front.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fare-offers-api/internal/cache"
	"fare-offers-api/internal/logger"
	"fare-offers-api/internal/models"
)

// Query describes one leg to quote.
type Query struct {
	Origin      string
	Destination string
	Date        string // YYYY-MM-DD
	Adults      int
	TravelClass string
	Max         int
}

// Key identifies the query for caching.
func (q Query) Key() string {
	return strings.Join([]string{
		q.Origin, q.Destination, q.Date,
		fmt.Sprint(q.Adults), q.TravelClass, fmt.Sprint(q.Max),
	}, ":")
}

// Provider returns flight quotes for a query.
type Provider interface {
	Search(ctx context.Context, q Query) ([]models.Flight, error)
}

// FallbackRecorder is told each time synthetic quotes stand in for live ones.
type FallbackRecorder interface {
	ProviderFallback(reason string)
}

const (
	FallbackNotConfigured = "not_configured"
	FallbackLiveError     = "live_error"
	FallbackNoResults     = "no_results"
)

// FallbackProvider asks the live provider first and answers with synthetic
// quotes when it is missing, fails or returns nothing. Callers cannot tell
// which source answered.
type FallbackProvider struct {
	live      Provider
	synthetic Provider
	recorder  FallbackRecorder
	enabled   func() bool
}

type FallbackOption func(*FallbackProvider)

// WithFallbackRecorder reports every fallback to r.
func WithFallbackRecorder(r FallbackRecorder) FallbackOption {
	return func(p *FallbackProvider) { p.recorder = r }
}

// WithFallbackGate lets enabled switch falling back on live errors off at
// runtime. A missing live provider always falls back.
func WithFallbackGate(enabled func() bool) FallbackOption {
	return func(p *FallbackProvider) { p.enabled = enabled }
}

// NewFallbackProvider builds a FallbackProvider; live may be nil.
func NewFallbackProvider(live, synthetic Provider, opts ...FallbackOption) *FallbackProvider {
	p := &FallbackProvider{
		live:      live,
		synthetic: synthetic,
		enabled:   func() bool { return true },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *FallbackProvider) Search(ctx context.Context, q Query) ([]models.Flight, error) {
	if p.live == nil {
		return p.fallback(ctx, q, FallbackNotConfigured)
	}

	flights, err := p.live.Search(ctx, q)
	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		return nil, err
	case err != nil:
		if !p.enabled() {
			return nil, err
		}
		logger.Errorf("live provider failed for %s, using synthetic quotes: %v", q.Key(), err)
		return p.fallback(ctx, q, FallbackLiveError)
	case len(flights) == 0 && p.enabled():
		return p.fallback(ctx, q, FallbackNoResults)
	}
	return flights, nil
}

func (p *FallbackProvider) fallback(ctx context.Context, q Query, reason string) ([]models.Flight, error) {
	if p.recorder != nil {
		p.recorder.ProviderFallback(reason)
	}
	return p.synthetic.Search(ctx, q)
}

// CachedProvider serves repeated queries from a cache. Cache failures are
// logged and bypassed.
type CachedProvider struct {
	next    Provider
	cache   cache.Cache
	ttl     time.Duration
	enabled func() bool
}

// QuoteKeyPrefix prefixes every cached quote list.
const QuoteKeyPrefix = "quotes:"

func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration, enabled func() bool) *CachedProvider {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, enabled: enabled}
}

func (p *CachedProvider) Search(ctx context.Context, q Query) ([]models.Flight, error) {
	if p.cache == nil || p.ttl <= 0 || !p.enabled() {
		return p.next.Search(ctx, q)
	}

	key := QuoteKeyPrefix + q.Key()

	var flights []models.Flight
	err := cache.GetJSON(ctx, p.cache, key, &flights)
	if err == nil {
		logger.Debugf("quote cache hit for %s", key)
		return flights, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		logger.Errorf("quote cache read failed for %s: %v", key, err)
	}

	flights, err = p.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, p.cache, key, flights, p.ttl); err != nil {
		logger.Errorf("quote cache write failed for %s: %v", key, err)
	}
	return flights, nil
}

// Purge drops every cached quote list.
func (p *CachedProvider) Purge(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.DeletePrefix(ctx, QuoteKeyPrefix)
}
