package amqp

import (
	"encoding/json"
	"time"

	"visitmap/internal/ledger"
)

// LedgerChangeMessage tells the worker that the visit ledger or the category
// registry changed. The worker reloads the ledger itself; the fields only
// describe what happened.
type LedgerChangeMessage struct {
	Kind      string    `json:"kind"`
	City      string    `json:"city,omitempty"`
	Date      string    `json:"date,omitempty"`
	Purpose   string    `json:"purpose,omitempty"`
	Category  string    `json:"category,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage builds the message for a committed ledger event
func NewLedgerChangeMessage(e ledger.Event) *LedgerChangeMessage {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangeMessage{
		Kind:      string(e.Kind),
		City:      e.City,
		Date:      e.Date.String(),
		Purpose:   e.Purpose,
		Category:  e.Category,
		Count:     e.Count,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
