package payment

import (
	"context"
	"encoding/json"
	"errors"
	"idempotent-payments/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrUnknownTransaction = errors.New("unknown gateway transaction")

// Gateway performs the actual charge. Implementations forward idempotencyKey
// to the provider so a repeated charge under the same key is collapsed into
// the original transaction.
//
// A refused charge is a normal Outcome, not an error. Charge returns an error
// only when the attempt itself failed (network, timeout, cancellation).
type Gateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (Outcome, error)
	Status(ctx context.Context, transactionID string) (domain.PaymentStatus, error)
}

type Outcome struct {
	Status        domain.PaymentStatus `json:"status"`
	TransactionID string               `json:"gateway_transaction_id"`
	StatusCode    int                  `json:"-"`
}

// Payload is the JSON form persisted as the record's gateway response.
func (o Outcome) Payload() (json.RawMessage, error) {
	return json.Marshal(o)
}

// TransactionIDFrom extracts the provider transaction id from a stored
// gateway response.
func TransactionIDFrom(raw json.RawMessage) (string, error) {
	var o Outcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return "", err
	}
	if o.TransactionID == "" {
		return "", ErrUnknownTransaction
	}
	return o.TransactionID, nil
}
