package repo

import (
	"context"
	"fmt"
	"idempotent-payments/internal/domain"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryPaymentRepo keeps payments in process memory. The idempotency key
// index is checked and written under the same lock, which gives Create the
// same first-committer-wins behaviour as the UNIQUE constraint in Postgres.
type memoryPaymentRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.Payment
	byKey map[string]uuid.UUID
}

func NewMemoryPaymentRepo() PaymentRepo {
	return &memoryPaymentRepo{
		byID:  make(map[uuid.UUID]*domain.Payment),
		byKey: make(map[string]uuid.UUID),
	}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.GatewayResponse != nil {
		c.GatewayResponse = append([]byte(nil), p.GatewayResponse...)
	}
	return &c
}

func (r *memoryPaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	return clonePayment(r.byID[id]), nil
}

func (r *memoryPaymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (r *memoryPaymentRepo) Create(ctx context.Context, np domain.NewPayment) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[np.IdempotencyKey]; exists {
		return nil, fmt.Errorf("create payment %q: %w", np.IdempotencyKey, domain.ErrConflict)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:                uuid.New(),
		Amount:            np.Amount,
		Status:            np.Status,
		IdempotencyKey:    np.IdempotencyKey,
		GatewayResponse:   np.GatewayResponse,
		GatewayStatusCode: np.GatewayStatusCode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.byID[p.ID] = p
	r.byKey[p.IdempotencyKey] = p.ID
	return clonePayment(p), nil
}

func (r *memoryPaymentRepo) Update(ctx context.Context, p *domain.Payment, changes domain.PaymentChanges) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[p.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	changes.Apply(stored, time.Now().UTC())
	return clonePayment(stored), nil
}

func (r *memoryPaymentRepo) FindByStatusSince(ctx context.Context, status domain.PaymentStatus, since time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var payments []domain.Payment
	for _, p := range r.byID {
		if p.Status == status && !p.CreatedAt.Before(since) {
			payments = append(payments, *clonePayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}
