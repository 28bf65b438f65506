// Package memory provides in-process StateStore and AuditCache
// implementations for tests and redis-less local runs.
package memory

import (
	"context"
	"sync"

	"prospector/internal/domain"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewStore() *Store {
	return &Store{data: map[string]string{}}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type AuditCache struct {
	mu   sync.RWMutex
	jobs map[string]domain.AuditJob
}

func NewAuditCache() *AuditCache {
	return &AuditCache{jobs: map[string]domain.AuditJob{}}
}

func (c *AuditCache) Get(_ context.Context, pageURL string) (domain.AuditJob, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[pageURL]
	return job, ok, nil
}

func (c *AuditCache) Put(_ context.Context, pageURL string, job domain.AuditJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[pageURL] = job
	return nil
}
