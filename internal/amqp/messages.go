package amqp

import (
	"encoding/json"
	"time"
)

// TransactionsChangedMessage signals that the transaction history changed and
// derived results (subscriptions, exports) should be refreshed. It carries
// only the batch size; the worker reloads the full history from the database.
type TransactionsChangedMessage struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionsChangedMessage creates a change notification for one batch.
func NewTransactionsChangedMessage(count int) *TransactionsChangedMessage {
	return &TransactionsChangedMessage{
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func TransactionsChangedMessageFromJSON(data []byte) (*TransactionsChangedMessage, error) {
	var msg TransactionsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
