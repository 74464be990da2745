// Package cache provides a Redis read-through layer for idempotency lookups,
// so replays can be answered without a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/repo"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "payments:idempotency:"

// ReplayCache wraps a PaymentRepo. The wrapped store stays the source of truth
// and the only place uniqueness is enforced; Redis failures degrade to a
// direct store read.
//
// Fills from reads and creates use SET NX and never replace an entry, while
// Update overwrites the entry with the row the store returned. A reader that
// fetched a row before an update therefore cannot write it back over the
// newer one. If the overwrite itself fails the entry is deleted instead.
type ReplayCache struct {
	repo.PaymentRepo
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewReplayCache(next repo.PaymentRepo, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *ReplayCache {
	return &ReplayCache{
		PaymentRepo: next,
		client:      client,
		ttl:         ttl,
		log:         log.WithField("component", "replay_cache"),
	}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func cacheKey(idempotencyKey string) string {
	return keyPrefix + idempotencyKey
}

func (c *ReplayCache) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	switch {
	case err == nil:
		var p domain.Payment
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		c.log.WithField("idempotency_key", key).Warn("dropping undecodable cache entry")
		c.client.Del(ctx, cacheKey(key))
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("replay cache read failed")
	}

	p, err := c.PaymentRepo.FindByIdempotencyKey(ctx, key)
	if err != nil || p == nil {
		return p, err
	}
	c.fill(ctx, p)
	return p, nil
}

func (c *ReplayCache) Create(ctx context.Context, np domain.NewPayment) (*domain.Payment, error) {
	p, err := c.PaymentRepo.Create(ctx, np)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, p)
	return p, nil
}

func (c *ReplayCache) Update(ctx context.Context, p *domain.Payment, changes domain.PaymentChanges) (*domain.Payment, error) {
	updated, err := c.PaymentRepo.Update(ctx, p, changes)
	if err != nil {
		return nil, err
	}
	if err := c.replace(ctx, updated); err != nil {
		c.log.WithError(err).Warn("replay cache refresh failed, invalidating")
		if err := c.client.Del(ctx, cacheKey(updated.IdempotencyKey)).Err(); err != nil {
			c.log.WithError(err).Warn("replay cache invalidation failed")
		}
	}
	return updated, nil
}

// fill caches p only when no entry exists yet.
func (c *ReplayCache) fill(ctx context.Context, p *domain.Payment) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.log.WithError(err).Warn("replay cache encode failed")
		return
	}
	if err := c.client.SetNX(ctx, cacheKey(p.IdempotencyKey), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("replay cache write failed")
	}
}

func (c *ReplayCache) replace(ctx context.Context, p *domain.Payment) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(p.IdempotencyKey), raw, c.ttl).Err()
}
