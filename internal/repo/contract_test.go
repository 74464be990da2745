package repo_test

import (
	"context"
	"encoding/json"
	"fmt"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/repo"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayment(key string) domain.NewPayment {
	return domain.NewPayment{
		Amount:            decimal.RequireFromString("100.00"),
		Status:            domain.PaymentApproved,
		IdempotencyKey:    key,
		GatewayResponse:   json.RawMessage(`{"status":"approved","gateway_transaction_id":"txn_1"}`),
		GatewayStatusCode: 200,
	}
}

// testPaymentRepo runs the behaviour every PaymentRepo implementation must share.
func testPaymentRepo(t *testing.T, newRepo func(t *testing.T) repo.PaymentRepo) {
	t.Run("create and find", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		created, err := r.Create(ctx, newPayment("key-create"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		byKey, err := r.FindByIdempotencyKey(ctx, "key-create")
		require.NoError(t, err)
		require.NotNil(t, byKey)
		assert.Equal(t, created.ID, byKey.ID)
		assert.True(t, byKey.Amount.Equal(decimal.RequireFromString("100.00")))
		assert.Equal(t, domain.PaymentApproved, byKey.Status)
		assert.Equal(t, 200, byKey.GatewayStatusCode)
		assert.JSONEq(t, `{"status":"approved","gateway_transaction_id":"txn_1"}`, string(byKey.GatewayResponse))

		byID, err := r.FindById(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "key-create", byID.IdempotencyKey)
	})

	t.Run("missing records are absent", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		p, err := r.FindByIdempotencyKey(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, p)

		p, err = r.FindById(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("duplicate key conflicts", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		_, err := r.Create(ctx, newPayment("key-dup"))
		require.NoError(t, err)

		_, err = r.Create(ctx, newPayment("key-dup"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("concurrent creates with one key keep one record", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		const n = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			created   int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Create(ctx, newPayment("key-race"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case assert.ErrorIs(t, err, domain.ErrConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, n-1, conflicts)
	})

	t.Run("update applies partial changes", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		created, err := r.Create(ctx, newPayment("key-update"))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)

		refunded := domain.PaymentRefunded
		updated, err := r.Update(ctx, created, domain.PaymentChanges{Status: &refunded})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentRefunded, updated.Status)
		assert.Equal(t, 200, updated.GatewayStatusCode)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

		reread, err := r.FindById(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentRefunded, reread.Status)
	})

	t.Run("update of unknown payment", func(t *testing.T) {
		r := newRepo(t)
		refunded := domain.PaymentRefunded
		_, err := r.Update(context.Background(), &domain.Payment{ID: uuid.New()}, domain.PaymentChanges{Status: &refunded})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find by status since", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		since := time.Now().Add(-time.Minute)

		for i := 0; i < 3; i++ {
			_, err := r.Create(ctx, newPayment(fmt.Sprintf("key-status-%d", i)))
			require.NoError(t, err)
		}
		refused := newPayment("key-status-refused")
		refused.Status = domain.PaymentRefused
		_, err := r.Create(ctx, refused)
		require.NoError(t, err)

		approved, err := r.FindByStatusSince(ctx, domain.PaymentApproved, since, 2)
		require.NoError(t, err)
		require.Len(t, approved, 2)
		assert.False(t, approved[1].CreatedAt.Before(approved[0].CreatedAt))

		for _, limit := range []int{0, -1} {
			all, err := r.FindByStatusSince(ctx, domain.PaymentApproved, since, limit)
			require.NoError(t, err)
			assert.Len(t, all, 3, "limit %d", limit)
		}

		none, err := r.FindByStatusSince(ctx, domain.PaymentApproved, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
