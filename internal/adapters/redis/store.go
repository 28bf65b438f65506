// Package redisstore backs the StateStore and AuditCache ports with Redis:
// session state under fixed keys, completed audit scores under a TTL so a
// repeat analysis reuses them instead of paying for a new job.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"prospector/internal/domain"
)

const (
	auditCachePrefix = "prospector:audit:"
	auditCacheTTL    = time.Hour
)

type Store struct {
	client *redis.Client
}

func Connect(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// StateStore

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// AuditCache is carved out as its own type so its Get/Put do not collide
// with the StateStore surface on Store.
type AuditCache struct {
	client *redis.Client
}

func (s *Store) AuditCache() *AuditCache { return &AuditCache{client: s.client} }

func (c *AuditCache) Get(ctx context.Context, pageURL string) (domain.AuditJob, bool, error) {
	var job domain.AuditJob
	raw, err := c.client.Get(ctx, auditCachePrefix+pageURL).Result()
	if errors.Is(err, redis.Nil) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (c *AuditCache) Put(ctx context.Context, pageURL string, job domain.AuditJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, auditCachePrefix+pageURL, raw, auditCacheTTL).Err()
}
