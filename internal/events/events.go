package events

import (
	"context"
	"sync"
	"time"

	"fare-offers-api/internal/logger"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOfferUpserted is emitted when a single offer is created or updated
	EventOfferUpserted EventType = "offer.upserted"
	// EventOffersImported is emitted after a bulk import commits
	EventOffersImported EventType = "offers.imported"
	// EventSearchCompleted is emitted when a fare search has been priced
	EventSearchCompleted EventType = "search.completed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// OfferUpsertedData contains data for offer upserted events.
type OfferUpsertedData struct {
	OfferID    string `json:"offerId"`
	CouponCode string `json:"couponCode"`
	Portal     string `json:"portal"`
}

// OffersImportedData contains data for offers imported events.
type OffersImportedData struct {
	Count int `json:"count"`
}

// SearchCompletedData summarizes a priced search.
type SearchCompletedData struct {
	From             string `json:"from"`
	To               string `json:"to"`
	DepartureDate    string `json:"departureDate"`
	ReturnDate       string `json:"returnDate,omitempty"`
	TripType         string `json:"tripType"`
	Flights          int    `json:"flights"`
	DiscountedQuotes int    `json:"discountedQuotes"`
	PaymentMethods   int    `json:"paymentMethods"`
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing. Publishing is a
// no-op while the manager is disabled.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  func() bool
	now      func() time.Time
	wg       sync.WaitGroup
	closed   bool
}

// NewManager creates a new event manager. enabled is consulted on every
// publish; nil means always on.
func NewManager(enabled func() bool) *Manager {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		now:      time.Now,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// SubscribeAll subscribes a handler to every event type.
func (m *Manager) SubscribeAll(handler Handler) {
	for _, t := range []EventType{EventOfferUpserted, EventOffersImported, EventSearchCompleted} {
		m.Subscribe(t, handler)
	}
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously and outlive the caller's request context.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled() {
		return
	}

	// wg.Add must not run concurrently with Shutdown's Wait.
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	m.wg.Add(len(handlers))
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: m.now().UTC(),
		Data:      data,
	}

	detached := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(detached, event); err != nil {
				logger.Errorf("event handler for %s failed: %v", event.Type, err)
			}
		}(handler)
	}
}

// PublishOfferUpserted publishes an offer upserted event.
func (m *Manager) PublishOfferUpserted(ctx context.Context, data OfferUpsertedData) {
	m.Publish(ctx, EventOfferUpserted, data)
}

// PublishOffersImported publishes an offers imported event.
func (m *Manager) PublishOffersImported(ctx context.Context, count int) {
	m.Publish(ctx, EventOffersImported, OffersImportedData{Count: count})
}

// PublishSearchCompleted publishes a search completed event.
func (m *Manager) PublishSearchCompleted(ctx context.Context, data SearchCompletedData) {
	m.Publish(ctx, EventSearchCompleted, data)
}

// Shutdown stops accepting events and waits for in-flight handlers, up to
// ctx's deadline. Events published afterwards are dropped.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogHandler logs every event at debug level.
func LogHandler(ctx context.Context, event Event) error {
	logger.Debugf("event %s: %+v", event.Type, event.Data)
	return nil
}
