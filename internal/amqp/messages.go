package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// ExpensesChangedMessage announces that stored expenses were written, so
// cached reports are stale. It carries no expense data.
type ExpensesChangedMessage struct {
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectionSummaryMessage is the outcome of one scheduled projection run.
type ProjectionSummaryMessage struct {
	ID             string          `json:"id"`
	Desde          core.Date       `json:"desde"`
	Hasta          core.Date       `json:"hasta"`
	TotalReal      decimal.Decimal `json:"totalReal"`
	TotalProjected decimal.Decimal `json:"totalProjected"`
	Total          decimal.Decimal `json:"total"`
	Entries        int             `json:"entries"`
	Projected      int             `json:"projected"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewExpensesChangedMessage(count int, source string) *ExpensesChangedMessage {
	return &ExpensesChangedMessage{
		ID:        uuid.NewString(),
		Count:     count,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

func NewProjectionSummaryMessage(r core.Report) *ProjectionSummaryMessage {
	return &ProjectionSummaryMessage{
		ID:             uuid.NewString(),
		Desde:          r.From,
		Hasta:          r.To,
		TotalReal:      r.Summary.TotalReal,
		TotalProjected: r.Summary.TotalProjected,
		Total:          r.Summary.Total,
		Entries:        len(r.Entries),
		Projected:      len(r.Projections()),
		Timestamp:      time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpensesChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *ProjectionSummaryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpensesChangedMessageFromJSON(data []byte) (*ExpensesChangedMessage, error) {
	var msg ExpensesChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func ProjectionSummaryMessageFromJSON(data []byte) (*ProjectionSummaryMessage, error) {
	var msg ProjectionSummaryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
