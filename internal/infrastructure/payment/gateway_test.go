package payment

import (
	"context"
	"idempotent-payments/internal/domain"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hundred = decimal.RequireFromString("100.00")

func TestSimulatedGateway_AlwaysApproves(t *testing.T) {
	g := NewSimulatedGateway()

	outcome, err := g.Charge(context.Background(), hundred, "key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentApproved, outcome.Status)
	assert.True(t, strings.HasPrefix(outcome.TransactionID, "txn_"))
	assert.Equal(t, 200, outcome.StatusCode)

	status, err := g.Status(context.Background(), outcome.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentApproved, status)
}

func TestSimulatedGateway_CollapsesChargesPerKey(t *testing.T) {
	g := NewSimulatedGateway()

	first, err := g.Charge(context.Background(), hundred, "key-1")
	require.NoError(t, err)
	second, err := g.Charge(context.Background(), decimal.NewFromInt(5), "key-1")
	require.NoError(t, err)
	_, err = g.Charge(context.Background(), hundred, "key-2")
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, 2, g.Charges())
}

func TestSimulatedGateway_CancelledContext(t *testing.T) {
	g := NewSimulatedGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, hundred, "key-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, g.Charges())
}

func TestSimulatedGateway_Refund(t *testing.T) {
	g := NewSimulatedGateway()
	outcome, err := g.Charge(context.Background(), hundred, "key-1")
	require.NoError(t, err)

	require.NoError(t, g.Refund(outcome.TransactionID))
	status, err := g.Status(context.Background(), outcome.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, status)

	assert.ErrorIs(t, g.Refund("txn_missing"), ErrUnknownTransaction)
	_, err = g.Status(context.Background(), "txn_missing")
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestOutcomePayloadRoundTrip(t *testing.T) {
	outcome := Outcome{Status: domain.PaymentApproved, TransactionID: "txn_abc", StatusCode: 200}
	raw, err := outcome.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"approved","gateway_transaction_id":"txn_abc"}`, string(raw))

	id, err := TransactionIDFrom(raw)
	require.NoError(t, err)
	assert.Equal(t, "txn_abc", id)

	_, err = TransactionIDFrom([]byte(`{"status":"approved"}`))
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestChaosGateway_Outcomes(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		g := NewChaosGateway()
		g.ApproveRate, g.RefuseRate, g.Latency = 1, 0, 0

		outcome, err := g.Charge(context.Background(), hundred, "key")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, outcome.Status)
	})

	t.Run("refuse is an outcome, not an error", func(t *testing.T) {
		g := NewChaosGateway()
		g.ApproveRate, g.RefuseRate, g.Latency = 0, 1, 0

		outcome, err := g.Charge(context.Background(), hundred, "key")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentRefused, outcome.Status)
		assert.Equal(t, 402, outcome.StatusCode)
	})

	t.Run("hang charges the provider but fails the caller", func(t *testing.T) {
		g := NewChaosGateway()
		g.ApproveRate, g.RefuseRate, g.HangLatency = 0, 0, time.Second

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := g.Charge(ctx, hundred, "key")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Len(t, g.Transactions(), 1)

		// the retry sees the charge that already happened
		retry, err := g.Charge(context.Background(), hundred, "key")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, retry.Status)
		assert.Len(t, g.Transactions(), 1)
	})

	t.Run("hang without deadline times out", func(t *testing.T) {
		g := NewChaosGateway()
		g.ApproveRate, g.RefuseRate, g.HangLatency = 0, 0, time.Millisecond

		_, err := g.Charge(context.Background(), hundred, "key")
		assert.ErrorIs(t, err, ErrTimeout)
	})
}
