package main

import (
	"context"
	"fmt"
	"idempotent-payments/internal/config"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/infrastructure/payment"
	"idempotent-payments/internal/logger"
	"idempotent-payments/internal/service"
	"idempotent-payments/internal/worker"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	payments   int
	duplicates int
	timeout    time.Duration
	refunds    int
}

func simulateCmd() *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fire concurrent duplicate payments at an unreliable gateway and report what was recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.payments, "payments", "n", 20, "number of logical payments")
	cmd.Flags().IntVarP(&opts.duplicates, "duplicates", "d", 5, "concurrent submissions per idempotency key")
	cmd.Flags().DurationVar(&opts.timeout, "gateway-timeout", 500*time.Millisecond, "per-charge gateway timeout")
	cmd.Flags().IntVar(&opts.refunds, "refunds", 3, "approved payments to refund at the provider before syncing")
	return cmd
}

type attempt struct {
	payment *domain.Payment
	created bool
	err     error
}

func runSimulate(ctx context.Context, opts simulateOptions) error {
	cfg := config.Load()
	log := logger.New("warn", false)

	s, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	gateway := payment.NewChaosGateway()
	paymentSvc := service.NewPaymentService(s.payments, gateway, log, opts.timeout)

	fmt.Printf("--- STARTING SIMULATION (%d PAYMENTS x %d SUBMISSIONS) ---\n", opts.payments, opts.duplicates)

	var pendingRetry []string
	amounts := make(map[string]decimal.Decimal)
	for i := 0; i < opts.payments; i++ {
		key := uuid.NewString()
		amounts[key] = decimal.New(int64(rand.Intn(1_000_000)+1), -2)

		attempts := submit(ctx, paymentSvc, amounts[key], key, opts.duplicates)
		created, replays, failures := tally(attempts)
		fmt.Printf("[%d] key %s: created=%d replays=%d gateway_failures=%d\n", i+1, key, created, replays, failures)
		if created == 0 && replays == 0 {
			pendingRetry = append(pendingRetry, key)
		}
	}

	if len(pendingRetry) > 0 {
		fmt.Printf("--- RETRYING %d KEYS THAT NEVER GOT AN ANSWER ---\n", len(pendingRetry))
		// the chaos gateway remembers charges it made before timing out,
		// so retries with the same key reuse them instead of charging again
		gateway.HangLatency = 0
		for _, key := range pendingRetry {
			p, created, err := paymentSvc.ProcessPayment(ctx, amounts[key], key)
			if err != nil {
				fmt.Printf("    %s: still failing: %v\n", key, err)
				continue
			}
			fmt.Printf("    %s: status=%s created=%t\n", key, p.Status, created)
		}
	}

	refunded := refundApproved(ctx, gateway, opts.refunds, log)

	syncer := worker.NewStatusSyncWorker(s.payments, gateway, log, time.Second, time.Hour, 1000)
	synced, err := syncer.SyncOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("provider transactions: %d (one per logical payment at most)\n", len(gateway.Transactions()))
	fmt.Printf("refunded at provider: %d, synced into store: %d\n", refunded, synced)
	return nil
}

type refundingGateway interface {
	Transactions() []string
	Status(ctx context.Context, transactionID string) (domain.PaymentStatus, error)
	Refund(transactionID string) error
}

// refundApproved refunds up to n approved transactions at the provider so the
// sync worker has something to pull back into the store.
func refundApproved(ctx context.Context, gateway refundingGateway, n int, log logrus.FieldLogger) int {
	refunded := 0
	for _, txn := range gateway.Transactions() {
		if refunded >= n {
			break
		}
		status, err := gateway.Status(ctx, txn)
		if err != nil {
			log.WithError(err).WithField("transaction_id", txn).Warn("could not read provider status")
			continue
		}
		if status != domain.PaymentApproved {
			continue
		}
		if err := gateway.Refund(txn); err != nil {
			log.WithError(err).WithField("transaction_id", txn).Warn("provider refund failed")
			continue
		}
		refunded++
	}
	return refunded
}

func submit(ctx context.Context, svc service.PaymentService, amount decimal.Decimal, key string, n int) []attempt {
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		attempts = make([]attempt, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			p, created, err := svc.ProcessPayment(ctx, amount, key)
			attempts[i] = attempt{payment: p, created: created, err: err}
		}(i)
	}
	close(start)
	wg.Wait()
	return attempts
}

func tally(attempts []attempt) (created, replays, failures int) {
	for _, a := range attempts {
		switch {
		case a.err != nil:
			failures++
		case a.created:
			created++
		default:
			replays++
		}
	}
	return created, replays, failures
}
