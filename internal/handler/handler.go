package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fare-offers-api/internal/features"
	"fare-offers-api/internal/logger"
	"fare-offers-api/internal/models"
	"fare-offers-api/internal/service"
	"fare-offers-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	features    *features.Manager
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Features    *features.Manager
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		features:    opts.Features,
		maxBodySize: opts.MaxBodySize,
	}
}

// Search handles POST /search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Search(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// PaymentOptions handles GET /payment-options
func (h *Handler) PaymentOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.PaymentOptions(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, options)
}

// CreateOffer handles POST /offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req models.Offer
	if !h.decode(w, r, &req) {
		return
	}

	stored, err := h.service.CreateOffer(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, stored)
}

// ImportOffers handles POST /offers/import
func (h *Handler) ImportOffers(w http.ResponseWriter, r *http.Request) {
	var req models.ImportOffersRequest
	if !h.decode(w, r, &req) {
		return
	}

	imported, err := h.service.ImportOffers(r.Context(), req.Offers)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.ImportOffersResponse{
		Imported: imported,
	})
}

type healthResponse struct {
	Status   string                 `json:"status"`
	Features []features.FeatureFlag `json:"features,omitempty"`
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.features != nil {
		resp.Features = h.features.All()
	}

	if err := h.service.Ready(r.Context()); err != nil {
		logger.Errorf("health check failed: %v", err)
		resp.Status = "unavailable"
		h.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// decode reads a size-limited JSON body into dst, answering 400 itself when
// the body is missing or malformed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// respondServiceError maps service errors to HTTP statuses. Unexpected
// errors are logged and hidden from the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validation.FieldErrors
	var vErr *validation.ValidationError

	switch {
	case errors.As(err, &fieldErrs):
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  fieldErrs.Error(),
			Fields: fieldErrs.Fields(),
		})
	case errors.As(err, &vErr):
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  err.Error(),
			Fields: []string{vErr.Field},
		})
	case errors.Is(err, service.ErrNoOffers), errors.Is(err, service.ErrTooManyOffers):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProviderUnavailable):
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		h.respondError(w, http.StatusBadGateway, service.ErrProviderUnavailable.Error())
	default:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("failed to encode response: %v", err)
	}
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
