package payment

import (
	"context"
	"errors"
	"idempotent-payments/internal/domain"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrTimeout = errors.New("connection timeout")

// ChaosGateway behaves like an unreliable provider: most charges succeed, some
// are refused and some hang long enough for the caller to give up. A hung
// charge still lands on the provider side, so a retry under the same key picks
// up the original transaction.
type ChaosGateway struct {
	ApproveRate float64
	RefuseRate  float64
	Latency     time.Duration
	HangLatency time.Duration

	mu           sync.RWMutex
	byKey        map[string]Outcome
	transactions map[string]domain.PaymentStatus
}

func NewChaosGateway() *ChaosGateway {
	return &ChaosGateway{
		ApproveRate:  0.7,
		RefuseRate:   0.2,
		Latency:      100 * time.Millisecond,
		HangLatency:  2 * time.Second,
		byKey:        make(map[string]Outcome),
		transactions: make(map[string]domain.PaymentStatus),
	}
}

func (g *ChaosGateway) Charge(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (Outcome, error) {
	g.mu.RLock()
	if outcome, ok := g.byKey[idempotencyKey]; ok {
		g.mu.RUnlock()
		return outcome, nil
	}
	g.mu.RUnlock()

	chance := rand.Float64()
	switch {
	case chance < g.ApproveRate:
		if err := sleep(ctx, g.Latency); err != nil {
			return Outcome{}, err
		}
		return g.record(idempotencyKey, domain.PaymentApproved), nil

	case chance < g.ApproveRate+g.RefuseRate:
		if err := sleep(ctx, g.Latency); err != nil {
			return Outcome{}, err
		}
		return g.record(idempotencyKey, domain.PaymentRefused), nil

	default:
		// the provider charges, but the answer never makes it back in time
		g.record(idempotencyKey, domain.PaymentApproved)
		if err := sleep(ctx, g.HangLatency); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, ErrTimeout
	}
}

func (g *ChaosGateway) record(key string, status domain.PaymentStatus) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if outcome, ok := g.byKey[key]; ok {
		return outcome
	}
	outcome := Outcome{
		Status:        status,
		TransactionID: "txn_" + uuid.NewString(),
		StatusCode:    http.StatusOK,
	}
	if status == domain.PaymentRefused {
		outcome.StatusCode = http.StatusPaymentRequired
	}
	g.byKey[key] = outcome
	g.transactions[outcome.TransactionID] = status
	return outcome
}

func (g *ChaosGateway) Status(ctx context.Context, transactionID string) (domain.PaymentStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status, ok := g.transactions[transactionID]
	if !ok {
		return "", ErrUnknownTransaction
	}
	return status, nil
}

// Refund flips an existing transaction to refunded on the provider side.
func (g *ChaosGateway) Refund(transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.transactions[transactionID]; !ok {
		return ErrUnknownTransaction
	}
	g.transactions[transactionID] = domain.PaymentRefunded
	return nil
}

func (g *ChaosGateway) Transactions() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.transactions))
	for id := range g.transactions {
		ids = append(ids, id)
	}
	return ids
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
