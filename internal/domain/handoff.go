package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handoff records a checkout that was passed on to the messaging service
type Handoff struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  string          `json:"session_id"`
	Message    string          `json:"message"`
	Link       string          `json:"link"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	TotalItems int             `json:"total_items"`
	CreatedAt  time.Time       `json:"created_at"`
}
