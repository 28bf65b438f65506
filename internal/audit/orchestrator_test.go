package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospector/internal/adapters/memory"
	"prospector/internal/domain"
)

const testInterval = 2 * time.Second

// fakeAPI scripts the remote audit service.
type fakeAPI struct {
	creates   atomic.Int32
	createErr error
	statuses  []statusResponse
	statusIdx atomic.Int32
}

func (f *fakeAPI) Create(context.Context, string, string) (string, error) {
	f.creates.Add(1)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "audit-1", nil
}

func (f *fakeAPI) Status(context.Context, string) (statusResponse, error) {
	idx := int(f.statusIdx.Add(1)) - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func intPtr(v int) *int { return &v }

// runAsync starts Run on its own goroutine and feeds the fake clock one
// interval per poll until the job lands in a terminal state.
func runAsync(t *testing.T, o *Orchestrator, clock *clockwork.FakeClock, pageURL string, polls int) domain.AuditJob {
	t.Helper()
	done := make(chan domain.AuditJob, 1)
	go func() { done <- o.Run(context.Background(), pageURL) }()

	for i := 0; i < polls; i++ {
		clock.BlockUntil(1)
		clock.Advance(testInterval)
	}
	select {
	case job := <-done:
		return job
	case <-time.After(5 * time.Second):
		t.Fatal("audit run did not finish")
		return domain.AuditJob{}
	}
}

func TestOrchestrator_CompletedExtractsScores(t *testing.T) {
	api := &fakeAPI{statuses: []statusResponse{
		{Status: "processing"},
		{Status: "completed", PerformanceScore: intPtr(42), SEOScore: intPtr(90), AccessibilityScore: intPtr(77)},
	}}
	clock := clockwork.NewFakeClock()
	o := New(api, nil, clock, testInterval, 30)

	job := runAsync(t, o, clock, "https://acme.com/", 2)

	assert.Equal(t, domain.AuditCompleted, job.Status)
	assert.Equal(t, "audit-1", job.ID)
	require.NotNil(t, job.Scores)
	require.NotNil(t, job.Scores.Mobile)
	assert.Equal(t, 42, *job.Scores.Mobile)
	assert.Equal(t, 90, *job.Scores.SEO)
	assert.Nil(t, job.Scores.Desktop)
}

func TestOrchestrator_ExhaustsBudgetToTimedOut(t *testing.T) {
	api := &fakeAPI{statuses: []statusResponse{{Status: "processing"}}}
	clock := clockwork.NewFakeClock()
	maxAttempts := 3
	o := New(api, nil, clock, testInterval, maxAttempts)

	job := runAsync(t, o, clock, "https://slow.com/", maxAttempts)

	assert.Equal(t, domain.AuditTimedOut, job.Status)
	assert.Nil(t, job.Scores)
	assert.Equal(t, int32(maxAttempts), api.statusIdx.Load())
}

func TestOrchestrator_RemoteFailureIsTerminal(t *testing.T) {
	api := &fakeAPI{statuses: []statusResponse{{Status: "failed"}}}
	clock := clockwork.NewFakeClock()
	o := New(api, nil, clock, testInterval, 30)

	job := runAsync(t, o, clock, "https://acme.com/", 1)
	assert.Equal(t, domain.AuditFailed, job.Status)
	assert.Nil(t, job.Scores)
}

func TestOrchestrator_CreateFailureNeverPanics(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("upstream down")}
	clock := clockwork.NewFakeClock()
	o := New(api, nil, clock, testInterval, 30)

	job := o.Run(context.Background(), "https://acme.com/")
	assert.Equal(t, domain.AuditFailed, job.Status)
}

func TestOrchestrator_SingleFlightPerPage(t *testing.T) {
	api := &fakeAPI{statuses: []statusResponse{
		{Status: "completed", PerformanceScore: intPtr(55)},
	}}
	clock := clockwork.NewFakeClock()
	o := New(api, memory.NewAuditCache(), clock, testInterval, 30)

	first := make(chan domain.AuditJob, 1)
	go func() { first <- o.Run(context.Background(), "https://acme.com/") }()
	clock.BlockUntil(1)

	// A second run for the same page while the first is polling must join
	// the in-flight job or reuse its cached result, never trigger a
	// duplicate remote audit.
	second := make(chan domain.AuditJob, 1)
	go func() { second <- o.Run(context.Background(), "https://acme.com/") }()

	clock.Advance(testInterval)
	a := <-first
	b := <-second

	assert.Equal(t, domain.AuditCompleted, a.Status)
	assert.Equal(t, domain.AuditCompleted, b.Status)
	assert.Equal(t, int32(1), api.creates.Load())
}

func TestOrchestrator_CachedScoresReused(t *testing.T) {
	cache := memory.NewAuditCache()
	cached := domain.AuditJob{
		ID:     "audit-9",
		Status: domain.AuditCompleted,
		Scores: &domain.AuditScores{Mobile: intPtr(61)},
	}
	require.NoError(t, cache.Put(context.Background(), "https://acme.com/", cached))

	api := &fakeAPI{}
	o := New(api, cache, clockwork.NewFakeClock(), testInterval, 30)

	job := o.Run(context.Background(), "https://acme.com/")
	assert.Equal(t, cached, job)
	assert.Equal(t, int32(0), api.creates.Load())
}

func TestOrchestrator_IncompleteCacheEntryIgnored(t *testing.T) {
	cache := memory.NewAuditCache()
	require.NoError(t, cache.Put(context.Background(), "https://acme.com/",
		domain.AuditJob{ID: "audit-2", Status: domain.AuditTimedOut}))

	api := &fakeAPI{statuses: []statusResponse{{Status: "failed"}}}
	clock := clockwork.NewFakeClock()
	o := New(api, cache, clock, testInterval, 30)

	job := runAsync(t, o, clock, "https://acme.com/", 1)
	assert.Equal(t, domain.AuditFailed, job.Status)
	assert.Equal(t, int32(1), api.creates.Load())
}
