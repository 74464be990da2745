package main

import (
	"context"
	"database/sql"
	"fmt"
	"idempotent-payments/internal/cache"
	"idempotent-payments/internal/config"
	"idempotent-payments/internal/database"
	"idempotent-payments/internal/repo"

	"github.com/sirupsen/logrus"
)

type stores struct {
	payments repo.PaymentRepo
	db       *sql.DB
	closers  []func() error
	log      logrus.FieldLogger
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.WithError(err).Warn("failed to close resource")
		}
	}
}

// openStores builds the record store selected by cfg.Store, migrating the
// schema when it is Postgres, and puts the Redis replay cache in front when
// REDIS_ADDR is set.
func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, error) {
	s := &stores{log: log}

	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory payment store, records will not survive a restart")
		s.payments = repo.NewMemoryPaymentRepo()
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := database.Migrate(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
		s.db = db
		s.payments = repo.NewPaymentRepo(db)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		s.closers = append(s.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, replay cache will fall back to the store")
		}
		s.payments = cache.NewReplayCache(s.payments, client, cfg.Redis.TTL, log)
		log.WithField("addr", cfg.Redis.Addr).Info("replay cache enabled")
	}

	return s, nil
}
