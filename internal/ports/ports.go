package ports

import (
	"context"

	"prospector/internal/domain"
)

// StateStore is the persistent key/value surface for session state and user
// preferences, addressed by fixed string keys.
type StateStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// AuditCache keeps completed audit results keyed by page URL so a repeat
// analysis reuses scores instead of re-triggering a remote job.
type AuditCache interface {
	Get(ctx context.Context, pageURL string) (job domain.AuditJob, found bool, err error)
	Put(ctx context.Context, pageURL string, job domain.AuditJob) error
}
