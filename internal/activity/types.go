// Package activity reads the visitor Activity Ledger: an append-only log of
// behavioral events owned by the storefront. This engine never writes to it.
package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the known ledger event kinds.
type EventType string

const (
	EventPageView      EventType = "page_view"
	EventProductView   EventType = "product_view"
	EventCartAdd       EventType = "cart_add"
	EventCartRemove    EventType = "cart_remove"
	EventSearch        EventType = "search"
	EventTestCompleted EventType = "test_completed"
	EventConversion    EventType = "conversion"
)

// Payload is the tagged-union interface over per-event-type data. Each event
// type carries its own known schema instead of a free-form blob.
type Payload interface {
	payloadType() EventType
}

// PageViewData is the payload for page_view events.
type PageViewData struct {
	Path     string `json:"path"`
	Referrer string `json:"referrer,omitempty"`
}

func (PageViewData) payloadType() EventType { return EventPageView }

// ProductViewData is the payload for product_view events.
type ProductViewData struct {
	ProductID uuid.UUID `json:"productId"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
}

func (ProductViewData) payloadType() EventType { return EventProductView }

// CartData is the payload for cart_add and cart_remove events.
type CartData struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (CartData) payloadType() EventType { return EventCartAdd }

// SearchData is the payload for search events.
type SearchData struct {
	Query       string `json:"query"`
	ResultCount int    `json:"resultCount"`
}

func (SearchData) payloadType() EventType { return EventSearch }

// TestCompletedData is the payload for test_completed events.
type TestCompletedData struct {
	TestID uuid.UUID `json:"testId"`
	Score  int       `json:"score"`
}

func (TestCompletedData) payloadType() EventType { return EventTestCompleted }

// ConversionData is the payload for conversion events.
type ConversionData struct {
	OrderID     uuid.UUID `json:"orderId"`
	AmountCents int64     `json:"amountCents"`
}

func (ConversionData) payloadType() EventType { return EventConversion }

// Event is one Activity Ledger entry with its decoded payload.
type Event struct {
	ID         uuid.UUID
	VisitorID  uuid.UUID
	Type       EventType
	Payload    Payload
	RawPayload json.RawMessage
	OccurredAt time.Time
}

// DecodePayload decodes the raw JSON payload into the variant matching the
// event type. Unknown event types are rejected rather than silently carried.
func DecodePayload(eventType EventType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch eventType {
	case EventPageView:
		var data PageViewData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode page_view payload: %w", err)
		}
		return data, nil
	case EventProductView:
		var data ProductViewData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode product_view payload: %w", err)
		}
		return data, nil
	case EventCartAdd, EventCartRemove:
		var data CartData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode cart payload: %w", err)
		}
		return data, nil
	case EventSearch:
		var data SearchData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode search payload: %w", err)
		}
		return data, nil
	case EventTestCompleted:
		var data TestCompletedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode test_completed payload: %w", err)
		}
		return data, nil
	case EventConversion:
		var data ConversionData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode conversion payload: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown activity event type %q", eventType)
	}
}
