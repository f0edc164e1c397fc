package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finapi/internal/core"
)

// TransactionRecordedMessage announces a newly stored record. It carries the
// full record so consumers never read back from the table.
type TransactionRecordedMessage struct {
	ID        string          `json:"id"`
	PK        string          `json:"pk"`
	SK        string          `json:"sk"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Note      string          `json:"note"`
	IsoDate   string          `json:"isoDate"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransactionRecordedMessage builds a message with a fresh id.
func NewTransactionRecordedMessage(r core.TransactionRecord) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:        uuid.NewString(),
		PK:        r.PartitionKey,
		SK:        r.SortKey,
		Amount:    r.Amount,
		Category:  r.Category,
		Note:      r.Note,
		IsoDate:   r.IsoTimestamp,
		Timestamp: time.Now().UTC(),
	}
}

// Record rebuilds the domain record carried by the message.
func (m *TransactionRecordedMessage) Record() (core.TransactionRecord, error) {
	owner, period, ok := core.SplitPartitionKey(m.PK)
	if !ok {
		return core.TransactionRecord{}, fmt.Errorf("malformed partition key %q", m.PK)
	}
	r := core.TransactionRecord{
		Owner:        owner,
		Period:       period,
		PartitionKey: m.PK,
		SortKey:      m.SK,
		Amount:       m.Amount,
		Category:     m.Category,
		Note:         m.Note,
		IsoTimestamp: m.IsoDate,
	}
	if err := r.Validate(); err != nil {
		return core.TransactionRecord{}, err
	}
	return r, nil
}

// ToJSON converts the message to JSON bytes. Amount is encoded as a string.
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON decodes a message body.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message without id")
	}
	return &msg, nil
}
