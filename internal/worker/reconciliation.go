package worker

import (
	"context"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/infrastructure/payment"
	"idempotent-payments/internal/repo"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusSyncWorker follows up on approved payments: when the provider reports
// a later status (a refund or a reversal made outside this service), the
// record is moved there through the store's update path.
type StatusSyncWorker struct {
	paymentRepo repo.PaymentRepo
	gateway     payment.Gateway
	log         logrus.FieldLogger
	interval    time.Duration
	lookback    time.Duration
	batch       int
}

func NewStatusSyncWorker(
	paymentRepo repo.PaymentRepo,
	gateway payment.Gateway,
	log logrus.FieldLogger,
	interval time.Duration,
	lookback time.Duration,
	batch int,
) *StatusSyncWorker {
	return &StatusSyncWorker{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		log:         log.WithField("component", "status_sync"),
		interval:    interval,
		lookback:    lookback,
		batch:       batch,
	}
}

func (w *StatusSyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("status sync worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("status sync worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.WithError(err).Error("status sync failed")
			}
		}
	}
}

// SyncOnce checks one batch of recent approved payments and returns how many
// were updated. Per-payment gateway failures are logged and skipped so the
// next tick can retry them.
func (w *StatusSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := time.Now().Add(-w.lookback)
	payments, err := w.paymentRepo.FindByStatusSince(ctx, domain.PaymentApproved, since, w.batch)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range payments {
		p := &payments[i]
		log := w.log.WithField("payment_id", p.ID)

		txnID, err := payment.TransactionIDFrom(p.GatewayResponse)
		if err != nil {
			log.WithError(err).Warn("payment has no gateway transaction id")
			continue
		}

		status, err := w.gateway.Status(ctx, txnID)
		if err != nil {
			log.WithError(err).Warn("failed to fetch gateway status")
			continue
		}
		if status == p.Status {
			continue
		}
		if !p.Status.CanTransitionTo(status) {
			log.WithField("gateway_status", status).Warn("ignoring disallowed status transition")
			continue
		}

		if _, err := w.paymentRepo.Update(ctx, p, domain.PaymentChanges{Status: &status}); err != nil {
			return updated, err
		}
		log.WithFields(logrus.Fields{"from": p.Status, "to": status}).Info("payment status synced from gateway")
		updated++
	}
	return updated, nil
}
