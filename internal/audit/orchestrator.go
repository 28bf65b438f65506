// Package audit drives remote audit jobs: trigger once, poll under a bounded
// budget, extract sub-scores or yield a null result. Audit failure is never
// fatal to the caller; analysis proceeds with whatever data is available.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"prospector/internal/domain"
	"prospector/internal/metrics"
	"prospector/internal/ports"
)

const defaultDeviceType = "mobile"

// API is the slice of the audit service the orchestrator needs.
type API interface {
	Create(ctx context.Context, pageURL, deviceType string) (string, error)
	Status(ctx context.Context, auditID string) (statusResponse, error)
}

type flight struct {
	done chan struct{}
	job  domain.AuditJob
}

// Orchestrator is the audit state machine:
//
//	idle -> requested -> polling -> completed | failed | timedOut
//
// One polling loop per page is active at a time; a second Run for the same
// page joins the in-flight job instead of triggering a duplicate, and
// completed scores are cached and reused.
type Orchestrator struct {
	api         API
	cache       ports.AuditCache
	clock       clockwork.Clock
	interval    time.Duration
	maxAttempts int

	mu       sync.Mutex
	inflight map[string]*flight
}

func New(api API, cache ports.AuditCache, clock clockwork.Clock, interval time.Duration, maxAttempts int) *Orchestrator {
	return &Orchestrator{
		api:         api,
		cache:       cache,
		clock:       clock,
		interval:    interval,
		maxAttempts: maxAttempts,
		inflight:    map[string]*flight{},
	}
}

// Run triggers and polls an audit for pageURL to a terminal state. It never
// returns an error: a failed or exhausted job comes back with nil scores and
// downstream treats it as "no scores available".
func (o *Orchestrator) Run(ctx context.Context, pageURL string) domain.AuditJob {
	if job, ok := o.cached(ctx, pageURL); ok {
		metrics.AuditOutcomes.WithLabelValues("cache_hit").Inc()
		return job
	}

	o.mu.Lock()
	if f, ok := o.inflight[pageURL]; ok {
		o.mu.Unlock()
		select {
		case <-f.done:
			return f.job
		case <-ctx.Done():
			return domain.AuditJob{Status: domain.AuditTimedOut}
		}
	}
	f := &flight{done: make(chan struct{})}
	o.inflight[pageURL] = f
	o.mu.Unlock()

	job := o.run(ctx, pageURL)
	f.job = job

	// Cache before retiring the flight entry, so a run that arrives between
	// the two finds the scores one way or the other.
	if job.Status == domain.AuditCompleted && o.cache != nil {
		if err := o.cache.Put(ctx, pageURL, job); err != nil {
			slog.Warn("audit cache write failed", "url", pageURL, "error", err)
		}
	}
	close(f.done)
	o.mu.Lock()
	delete(o.inflight, pageURL)
	o.mu.Unlock()
	metrics.AuditOutcomes.WithLabelValues(string(job.Status)).Inc()
	return job
}

func (o *Orchestrator) cached(ctx context.Context, pageURL string) (domain.AuditJob, bool) {
	if o.cache == nil {
		return domain.AuditJob{}, false
	}
	job, found, err := o.cache.Get(ctx, pageURL)
	if err != nil {
		slog.Warn("audit cache read failed", "url", pageURL, "error", err)
		return domain.AuditJob{}, false
	}
	return job, found && job.Status == domain.AuditCompleted
}

func (o *Orchestrator) run(ctx context.Context, pageURL string) domain.AuditJob {
	id, err := o.api.Create(ctx, pageURL, defaultDeviceType)
	if err != nil {
		slog.Warn("audit trigger failed", "url", pageURL, "error", err)
		return domain.AuditJob{Status: domain.AuditFailed}
	}
	job := domain.AuditJob{ID: id, Status: domain.AuditRequested}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			job.Status = domain.AuditTimedOut
			return job
		case <-o.clock.After(o.interval):
		}
		metrics.AuditPolls.Inc()

		st, err := o.api.Status(ctx, id)
		if err != nil {
			// Transient; the attempt budget still bounds the loop.
			slog.Debug("audit poll failed", "audit_id", id, "attempt", attempt, "error", err)
			continue
		}
		switch st.Status {
		case "completed":
			job.Status = domain.AuditCompleted
			job.Scores = extractScores(st, defaultDeviceType)
			return job
		case "failed":
			job.Status = domain.AuditFailed
			return job
		default:
			job.Status = domain.AuditProcessing
		}
	}
	job.Status = domain.AuditTimedOut
	return job
}

// extractScores maps the wire response onto sub-scores. performanceScore
// belongs to the device type the job was created with; each field may be
// individually absent.
func extractScores(st statusResponse, deviceType string) *domain.AuditScores {
	scores := &domain.AuditScores{
		SEO:           st.SEOScore,
		Accessibility: st.AccessibilityScore,
		BestPractices: st.BestPracticesScore,
	}
	if deviceType == "desktop" {
		scores.Desktop = st.PerformanceScore
	} else {
		scores.Mobile = st.PerformanceScore
	}
	return scores
}
