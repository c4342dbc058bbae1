package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Portal is one of the travel booking sites priced independently.
type Portal string

const (
	PortalMakeMyTrip Portal = "MakeMyTrip"
	PortalGoibibo    Portal = "Goibibo"
	PortalEaseMyTrip Portal = "EaseMyTrip"
	PortalYatra      Portal = "Yatra"
	PortalCleartrip  Portal = "Cleartrip"
)

// Portals lists every known portal in response order.
var Portals = []Portal{
	PortalMakeMyTrip,
	PortalGoibibo,
	PortalEaseMyTrip,
	PortalYatra,
	PortalCleartrip,
}

// ParsePortal resolves a portal name ignoring case and spacing.
func ParsePortal(s string) (Portal, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	for _, p := range Portals {
		if strings.ToLower(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

// Number is a numeric offer field. Upstream feeds send numbers, numeric
// strings, nulls and occasionally garbage; anything unusable decodes to an
// invalid Number instead of failing the whole record.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number unless v is NaN or infinite.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// Ptr returns nil for an invalid Number.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}

	switch x := v.(type) {
	case float64:
		*n = NewNumber(x)
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = NewNumber(f)
		}
	}
	return nil
}

// Synonymous keys upstream sources use for the validity window, highest
// priority first.
var (
	validityEndKeys   = []string{"end", "to", "endDate", "till", "until"}
	validityStartKeys = []string{"start", "from", "startDate"}
)

// ValidityPeriod is an offer's validity window with the key synonyms
// already resolved.
type ValidityPeriod struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func (v *ValidityPeriod) UnmarshalJSON(data []byte) error {
	*v = ValidityPeriod{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// free-text windows carry no usable bound
		return nil
	}

	v.Start = firstString(raw, validityStartKeys)
	v.End = firstString(raw, validityEndKeys)
	return nil
}

func firstString(raw map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// PaymentMethod is either a RawLabel or a StructuredMethod.
type PaymentMethod interface {
	isPaymentMethod()
}

// RawLabel is a free-text payment requirement such as "HDFC Bank Credit Card".
type RawLabel string

// StructuredMethod is a payment requirement given as separate fields.
type StructuredMethod struct {
	Bank        string `json:"bank,omitempty"`
	Type        string `json:"type,omitempty"`
	CardNetwork string `json:"cardNetwork,omitempty"`
}

func (RawLabel) isPaymentMethod()         {}
func (StructuredMethod) isPaymentMethod() {}

// PaymentMethods decodes the heterogeneous paymentMethods array.
type PaymentMethods []PaymentMethod

func (p *PaymentMethods) UnmarshalJSON(data []byte) error {
	*p = nil

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// a lone string or object is a one-element list
		items = []json.RawMessage{data}
	}

	for _, item := range items {
		if m, ok := decodePaymentMethod(item); ok {
			*p = append(*p, m)
		}
	}
	return nil
}

func decodePaymentMethod(item json.RawMessage) (PaymentMethod, bool) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		return RawLabel(s), true
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
		return nil, false
	}

	m := StructuredMethod{
		Bank:        stringField(obj, "bank", "bankName", "issuer"),
		Type:        stringField(obj, "type", "methodType", "cardType"),
		CardNetwork: stringField(obj, "cardNetwork", "network"),
	}
	if m == (StructuredMethod{}) {
		return nil, false
	}
	return m, true
}

func stringField(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Offer is a coupon record sourced for one portal. It is read-only to the
// pricing engine.
type Offer struct {
	ID                  string          `json:"id"`
	CouponCode          string          `json:"couponCode"`
	Title               string          `json:"title,omitempty"`
	RawDiscount         string          `json:"rawDiscount,omitempty"`
	DiscountPercent     Number          `json:"discountPercent"`
	MaxDiscountAmount   Number          `json:"maxDiscountAmount"`
	MinTransactionValue Number          `json:"minTransactionValue"`
	ValidityPeriod      *ValidityPeriod `json:"validityPeriod,omitempty"`
	IsExpired           bool            `json:"isExpired"`
	PaymentMethods      PaymentMethods  `json:"paymentMethods,omitempty"`
	PaymentLabel        string          `json:"paymentLabel,omitempty"`
	SourcePortal        Portal          `json:"sourcePortal"`
}

// PortalOfferSet holds each portal's candidate offers in repository order.
type PortalOfferSet map[Portal][]Offer

// Flight is a normalized quote from a flight provider.
type Flight struct {
	FlightNumber string  `json:"flightNumber"`
	AirlineName  string  `json:"airlineName"`
	Departure    string  `json:"departure"`
	Arrival      string  `json:"arrival"`
	Price        float64 `json:"price"`
	Stops        int     `json:"stops"`
}

// AppliedOffer is the snapshot of the offer that won a portal.
type AppliedOffer struct {
	Portal              Portal          `json:"portal"`
	CouponCode          string          `json:"couponCode"`
	DiscountPercent     float64         `json:"discountPercent"`
	MaxDiscountAmount   *float64        `json:"maxDiscountAmount,omitempty"`
	MinTransactionValue float64         `json:"minTransactionValue"`
	ValidityPeriod      *ValidityPeriod `json:"validityPeriod,omitempty"`
	RawDiscount         string          `json:"rawDiscount,omitempty"`
	Title               string          `json:"title,omitempty"`
	OfferID             string          `json:"offerId,omitempty"`
	PaymentLabel        string          `json:"paymentLabel"`
}

// PriceQuote is the best price for one flight on one portal.
type PriceQuote struct {
	Portal          Portal        `json:"portal"`
	BasePrice       float64       `json:"basePrice"`
	FinalPrice      float64       `json:"finalPrice"`
	DiscountApplied float64       `json:"discountApplied"`
	AppliedOffer    *AppliedOffer `json:"appliedOffer"`
}

// FlightPricing pairs a flight with its per-portal quotes.
type FlightPricing struct {
	Flight       Flight       `json:"flight"`
	PortalPrices []PriceQuote `json:"portalPrices"`
}

// Trip types accepted by search.
const (
	TripOneWay    = "oneway"
	TripRoundTrip = "roundtrip"
)

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	DepartureDate  string   `json:"departureDate"`
	ReturnDate     string   `json:"returnDate,omitempty"`
	TripType       string   `json:"tripType,omitempty"`
	Passengers     int      `json:"passengers,omitempty"`
	TravelClass    string   `json:"travelClass,omitempty"`
	PaymentMethods []string `json:"paymentMethods,omitempty"`
}

// SearchResponse is the response payload for POST /search.
type SearchResponse struct {
	OutboundFlights []FlightPricing `json:"outboundFlights"`
	ReturnFlights   []FlightPricing `json:"returnFlights"`
}

// Payment option buckets, in display order.
const (
	BucketCreditCard = "Credit Card"
	BucketDebitCard  = "Debit Card"
	BucketEMI        = "EMI"
	BucketNetBanking = "NetBanking"
	BucketWallet     = "Wallet"
	BucketUPI        = "UPI"
)

// PaymentBuckets lists the six payment option buckets.
var PaymentBuckets = []string{
	BucketCreditCard,
	BucketDebitCard,
	BucketEMI,
	BucketNetBanking,
	BucketWallet,
	BucketUPI,
}

// PaymentOptions maps each bucket to its sorted, deduplicated labels.
type PaymentOptions map[string][]string

// ImportOffersRequest represents the request body for bulk offer ingestion.
type ImportOffersRequest struct {
	Offers []Offer `json:"offers"`
}

// ImportOffersResponse represents the response for bulk offer ingestion.
type ImportOffersResponse struct {
	Imported int `json:"imported"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}
