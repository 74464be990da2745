package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRefused  PaymentStatus = "refused"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentRefused, PaymentRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether a stored payment may move from s to next.
// Refused and refunded are terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentApproved || next == PaymentRefused
	case PaymentApproved:
		return next == PaymentRefunded || next == PaymentRefused
	}
	return false
}

type Payment struct {
	ID                uuid.UUID       `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PaymentStatus   `json:"status"`
	IdempotencyKey    string          `json:"idempotency_key"`
	GatewayResponse   json.RawMessage `json:"gateway_response,omitempty"`
	GatewayStatusCode int             `json:"gateway_status_code"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewPayment carries the fields a caller supplies when creating a record.
// ID and timestamps are assigned by the store.
type NewPayment struct {
	Amount            decimal.Decimal
	Status            PaymentStatus
	IdempotencyKey    string
	GatewayResponse   json.RawMessage
	GatewayStatusCode int
}

// PaymentChanges is a partial update; nil fields are left untouched.
type PaymentChanges struct {
	Status            *PaymentStatus
	GatewayResponse   json.RawMessage
	GatewayStatusCode *int
}

// Apply copies the non-nil changes onto p and refreshes UpdatedAt.
func (c PaymentChanges) Apply(p *Payment, now time.Time) {
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.GatewayResponse != nil {
		p.GatewayResponse = c.GatewayResponse
	}
	if c.GatewayStatusCode != nil {
		p.GatewayStatusCode = *c.GatewayStatusCode
	}
	p.UpdatedAt = now
}
