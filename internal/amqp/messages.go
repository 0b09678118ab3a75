package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// LedgerChangedMessage announces a committed ledger mutation. It carries the
// touched period keys only; consumers read the aggregates themselves.
type LedgerChangedMessage struct {
	Tenant    string    `json:"tenant"`
	Operation string    `json:"operation"`
	EntryID   string    `json:"entry_id,omitempty"`
	Periods   []string  `json:"periods"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage builds the message for a change notification.
func NewLedgerChangedMessage(c ledger.Change) *LedgerChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangedMessage{
		Tenant:    c.Tenant,
		Operation: c.Operation,
		EntryID:   c.EntryID,
		Periods:   c.PeriodKeys(),
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and validates a message.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Tenant) == "" {
		return nil, fmt.Errorf("message without tenant")
	}
	return &msg, nil
}

// ParsedPeriods returns the periods named by the message.
func (m *LedgerChangedMessage) ParsedPeriods() ([]core.Period, error) {
	out := make([]core.Period, 0, len(m.Periods))
	for _, k := range m.Periods {
		p, err := core.ParsePeriod(k)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", k, err)
		}
		out = append(out, p)
	}
	return out, nil
}
