package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
)

// TransactionUpserted carries the full record, so consumers need no access
// to the primary store.
type TransactionUpserted struct {
	Date      core.Date       `json:"date"`
	Budget    decimal.Decimal `json:"budget"`
	Expense   decimal.Decimal `json:"expense"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransactionUpserted creates an event for r stamped with the current time
func NewTransactionUpserted(r core.TransactionRecord) *TransactionUpserted {
	return &TransactionUpserted{
		Date:      r.Date,
		Budget:    r.Budget,
		Expense:   r.Expense,
		Timestamp: time.Now(),
	}
}

// Record returns the transaction carried by the event
func (m *TransactionUpserted) Record() core.TransactionRecord {
	return core.TransactionRecord{Date: m.Date, Budget: m.Budget, Expense: m.Expense}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionUpserted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionUpsertedFromJSON decodes a message and rejects one without a date
func TransactionUpsertedFromJSON(data []byte) (*TransactionUpserted, error) {
	var msg TransactionUpserted
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Date.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}
