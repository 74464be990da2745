package payment

import (
	"context"
	"idempotent-payments/internal/domain"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimulatedGateway approves every charge without doing any I/O.
type SimulatedGateway struct {
	mu           sync.RWMutex
	byKey        map[string]Outcome
	transactions map[string]domain.PaymentStatus
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		byKey:        make(map[string]Outcome),
		transactions: make(map[string]domain.PaymentStatus),
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if outcome, ok := g.byKey[idempotencyKey]; ok {
		return outcome, nil
	}

	outcome := Outcome{
		Status:        domain.PaymentApproved,
		TransactionID: "txn_" + uuid.NewString(),
		StatusCode:    http.StatusOK,
	}
	g.byKey[idempotencyKey] = outcome
	g.transactions[outcome.TransactionID] = outcome.Status
	return outcome, nil
}

func (g *SimulatedGateway) Status(ctx context.Context, transactionID string) (domain.PaymentStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status, ok := g.transactions[transactionID]
	if !ok {
		return "", ErrUnknownTransaction
	}
	return status, nil
}

// Refund marks a transaction as refunded on the provider side, the way a
// merchant dashboard or chargeback would.
func (g *SimulatedGateway) Refund(transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.transactions[transactionID]; !ok {
		return ErrUnknownTransaction
	}
	g.transactions[transactionID] = domain.PaymentRefunded
	return nil
}

// Charges returns how many distinct charges the provider has executed.
func (g *SimulatedGateway) Charges() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.transactions)
}
