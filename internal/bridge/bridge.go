// Package bridge implements the typed request/response protocol between the
// isolated execution contexts of the pipeline. Contexts share no memory; each
// endpoint runs a single goroutine draining an inbox, and all interaction is
// asynchronous message passing correlated by envelope id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

type Action string

// The closed action set. Every request names exactly one of these.
const (
	ActionGetPageData  Action = "getPageData"
	ActionGetTechStack Action = "getTechStack"
	ActionGetSignals   Action = "getSignals"
	ActionGetContacts  Action = "getContacts"
	ActionSessionSync  Action = "sessionSync"
	ActionRelay        Action = "relay"
)

// Well-known context names. The page context hosts detection, the
// background context relays, the companion surface answers session syncs,
// and the panel is the requesting surface.
const (
	PageContext       = "page"
	BackgroundContext = "background"
	CompanionContext  = "companion"
	PanelContext      = "panel"
)

// Delivery retry policy, shared by every call site.
const (
	maxDeliveryAttempts = 3
	deliveryRetryDelay  = 200 * time.Millisecond
)

var (
	// ErrPageUnanalyzable is the graceful terminal state after retries are
	// exhausted; callers surface it instead of a stuck loading state.
	ErrPageUnanalyzable = errors.New("unable to analyze this page")

	ErrUnknownTarget = errors.New("unknown target context")
	ErrUnknownAction = errors.New("unknown action")
)

// Envelope is one request crossing a context boundary.
type Envelope struct {
	ID      string          `json:"id"`
	Action  Action          `json:"action"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply carries the response for the envelope with the matching ID.
type Reply struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// Handler processes one action inside an endpoint's context.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

type request struct {
	ctx   context.Context
	env   Envelope
	reply chan Reply
}

// Endpoint is one isolated context attached to the hub. Handlers run on the
// endpoint's own goroutine, one message at a time.
type Endpoint struct {
	name     string
	inbox    chan request
	mu       sync.RWMutex
	handlers map[Action]Handler
}

func (e *Endpoint) Name() string { return e.name }

// Handle registers the handler for an action. Registration must happen
// before traffic is sent at the endpoint; handlers are looked up per message.
func (e *Endpoint) Handle(action Action, fn Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = fn
}

func (e *Endpoint) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.inbox:
			req.reply <- e.dispatch(req.ctx, req.env)
		}
	}
}

func (e *Endpoint) dispatch(ctx context.Context, env Envelope) Reply {
	e.mu.RLock()
	fn, ok := e.handlers[env.Action]
	e.mu.RUnlock()
	if !ok {
		return Reply{ID: env.ID, Err: fmt.Sprintf("%v: %s", ErrUnknownAction, env.Action)}
	}
	out, err := fn(ctx, env.Payload)
	if err != nil {
		return Reply{ID: env.ID, Err: err.Error()}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return Reply{ID: env.ID, Err: err.Error()}
	}
	return Reply{ID: env.ID, Payload: payload}
}

// Hub connects endpoints and owns delivery.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

func NewHub() *Hub {
	return &Hub{endpoints: map[string]*Endpoint{}}
}

// Register creates an endpoint and starts its context loop. The loop stops
// when ctx is cancelled.
func (h *Hub) Register(ctx context.Context, name string) *Endpoint {
	ep := &Endpoint{
		name:     name,
		inbox:    make(chan request),
		handlers: map[Action]Handler{},
	}
	h.mu.Lock()
	h.endpoints[name] = ep
	h.mu.Unlock()
	go ep.run(ctx)
	return ep
}

func (h *Hub) deliver(ctx context.Context, env Envelope) (Reply, error) {
	h.mu.RLock()
	ep, ok := h.endpoints[env.Target]
	h.mu.RUnlock()
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownTarget, env.Target)
	}

	replyCh := make(chan Reply, 1)
	select {
	case ep.inbox <- request{ctx: ctx, env: env, reply: replyCh}:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Request sends one action to a target context and decodes the reply,
// retrying delivery failures and explicit error payloads under the fixed
// backoff policy. Retried actions must be idempotent; the detection actions
// are pure so this holds. After the attempt budget is spent the error wraps
// ErrPageUnanalyzable.
func (h *Hub) Request(ctx context.Context, target string, action Action, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{ID: uuid.NewString(), Action: action, Target: target, Payload: raw}

	backoff := retry.WithMaxRetries(maxDeliveryAttempts-1, retry.NewConstant(deliveryRetryDelay))
	var reply Reply
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := h.deliver(ctx, env)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		if r.Err != "" {
			return retry.RetryableError(errors.New(r.Err))
		}
		reply = r
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPageUnanalyzable, err)
	}

	if out != nil && len(reply.Payload) > 0 {
		if err := json.Unmarshal(reply.Payload, out); err != nil {
			return err
		}
	}
	return nil
}
