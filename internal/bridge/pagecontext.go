package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"prospector/internal/detect"
	"prospector/internal/domain"
	"prospector/internal/metrics"
)

// settleDelay is the readiness guard before the first detection in the page
// context: the page structure gets a moment to stabilize before we read it.
const settleDelay = 50 * time.Millisecond

// PageRequest addresses one page for any of the detection actions.
type PageRequest struct {
	URL string `json:"url"`
}

// ContentSource supplies the raw material the page context detects against.
type ContentSource interface {
	Fetch(ctx context.Context, url string) (detect.PageContent, error)
}

// AttachPageContext binds the detection action set to an endpoint. Each
// action resolves to exactly one engine entry point over a fresh snapshot;
// retries are safe because detection is pure.
func AttachPageContext(ep *Endpoint, source ContentSource, engine *detect.Engine, clock clockwork.Clock) {
	var settleOnce sync.Once

	snapshot := func(ctx context.Context, payload json.RawMessage) (domain.PageSnapshot, error) {
		var req PageRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return domain.PageSnapshot{}, err
		}
		settleOnce.Do(func() { clock.Sleep(settleDelay) })
		content, err := source.Fetch(ctx, req.URL)
		if err != nil {
			return domain.PageSnapshot{}, err
		}
		start := clock.Now()
		snap := engine.Detect(content)
		metrics.DetectionDuration.Observe(clock.Since(start).Seconds())
		return snap, nil
	}

	ep.Handle(ActionGetPageData, func(ctx context.Context, payload json.RawMessage) (any, error) {
		return snapshot(ctx, payload)
	})
	ep.Handle(ActionGetTechStack, func(ctx context.Context, payload json.RawMessage) (any, error) {
		snap, err := snapshot(ctx, payload)
		if err != nil {
			return nil, err
		}
		return snap.TechStack, nil
	})
	ep.Handle(ActionGetSignals, func(ctx context.Context, payload json.RawMessage) (any, error) {
		snap, err := snapshot(ctx, payload)
		if err != nil {
			return nil, err
		}
		return snap.Signals, nil
	})
	ep.Handle(ActionGetContacts, func(ctx context.Context, payload json.RawMessage) (any, error) {
		snap, err := snapshot(ctx, payload)
		if err != nil {
			return nil, err
		}
		return snap.Contacts, nil
	})
}
