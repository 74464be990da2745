package service

import (
	"context"
	"errors"
	"fmt"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/infrastructure/payment"
	"idempotent-payments/internal/repo"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PaymentService interface {
	// ProcessPayment charges amount once per idempotency key. The bool reports
	// whether this call created the record; replays return the stored record
	// untouched, whatever amount they carry.
	ProcessPayment(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, bool, error)
	// GetPayment returns (nil, nil) when no payment has the id.
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

type paymentService struct {
	paymentRepo   repo.PaymentRepo
	paymentGtw    payment.Gateway
	log           logrus.FieldLogger
	chargeTimeout time.Duration
}

// NewPaymentService wires the processor. A zero chargeTimeout leaves the
// gateway call bounded only by the caller's context.
func NewPaymentService(
	paymentRepo repo.PaymentRepo,
	paymentGtw payment.Gateway,
	log logrus.FieldLogger,
	chargeTimeout time.Duration,
) PaymentService {
	return &paymentService{
		paymentRepo:   paymentRepo,
		paymentGtw:    paymentGtw,
		log:           log,
		chargeTimeout: chargeTimeout,
	}
}

func (s *paymentService) ProcessPayment(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, bool, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, false, err
	}
	if err := domain.ValidateIdempotencyKey(idempotencyKey); err != nil {
		return nil, false, err
	}
	log := s.log.WithField("idempotency_key", idempotencyKey)

	existing, err := s.paymentRepo.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		log.WithField("payment_id", existing.ID).Debug("idempotent replay")
		return existing, false, nil
	}

	outcome, err := s.charge(ctx, amount, idempotencyKey)
	if err != nil {
		log.WithError(err).Warn("gateway charge failed, no payment recorded")
		return nil, false, &domain.GatewayError{Err: err}
	}

	response, err := outcome.Payload()
	if err != nil {
		return nil, false, fmt.Errorf("encode gateway response: %w", err)
	}

	created, err := s.paymentRepo.Create(ctx, domain.NewPayment{
		Amount:            amount,
		Status:            outcome.Status,
		IdempotencyKey:    idempotencyKey,
		GatewayResponse:   response,
		GatewayStatusCode: outcome.StatusCode,
	})
	if errors.Is(err, domain.ErrConflict) {
		// another request with the same key committed between our lookup and create
		winner, findErr := s.paymentRepo.FindByIdempotencyKey(ctx, idempotencyKey)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("payment %q conflicted but cannot be read back", idempotencyKey)
		}
		log.WithField("payment_id", winner.ID).Info("concurrent duplicate resolved to existing payment")
		return winner, false, nil
	}
	if err != nil {
		log.WithError(err).WithField("gateway_transaction_id", outcome.TransactionID).
			Error("charged at gateway but failed to record payment")
		return nil, false, err
	}

	log.WithFields(logrus.Fields{
		"payment_id": created.ID,
		"status":     created.Status,
		"amount":     domain.FormatAmount(created.Amount),
	}).Info("payment processed")
	return created, true, nil
}

func (s *paymentService) charge(ctx context.Context, amount decimal.Decimal, idempotencyKey string) (payment.Outcome, error) {
	if s.chargeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.chargeTimeout)
		defer cancel()
	}

	outcome, err := s.paymentGtw.Charge(ctx, amount, idempotencyKey)
	if err != nil {
		return payment.Outcome{}, err
	}
	if !outcome.Status.Valid() {
		return payment.Outcome{}, fmt.Errorf("unexpected gateway status %q", outcome.Status)
	}
	return outcome, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.paymentRepo.FindById(ctx, id)
}
