package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// RelayEnvelope is the payload of an ActionRelay request: forward Message to
// Target and hand the reply back verbatim.
type RelayEnvelope struct {
	Target  string   `json:"targetContextId"`
	Message Envelope `json:"message"`
}

// AttachRelay makes an endpoint forward messages between contexts that
// cannot address each other directly. The relayed reply is returned as-is,
// error payload included, so the relay never reinterprets failures.
func AttachRelay(ep *Endpoint, hub *Hub) {
	ep.Handle(ActionRelay, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var relay RelayEnvelope
		if err := json.Unmarshal(payload, &relay); err != nil {
			return nil, err
		}
		relay.Message.Target = relay.Target
		reply, err := hub.deliver(ctx, relay.Message)
		if err != nil {
			return nil, err
		}
		return reply, nil
	})
}

// RequestViaRelay routes one request through a relay context to a target the
// caller cannot reach directly. The same delivery retry policy applies to
// the whole relayed round-trip, error payloads included.
func (h *Hub) RequestViaRelay(ctx context.Context, relayTarget, finalTarget string, action Action, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	inner := Envelope{ID: uuid.NewString(), Action: action, Payload: raw}
	relayPayload, err := json.Marshal(RelayEnvelope{Target: finalTarget, Message: inner})
	if err != nil {
		return err
	}
	env := Envelope{ID: uuid.NewString(), Action: ActionRelay, Target: relayTarget, Payload: relayPayload}

	backoff := retry.WithMaxRetries(maxDeliveryAttempts-1, retry.NewConstant(deliveryRetryDelay))
	var relayed Reply
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
		var inner Reply
		if err := json.Unmarshal(r.Payload, &inner); err != nil {
			return err
		}
		if inner.Err != "" {
			return retry.RetryableError(errors.New(inner.Err))
		}
		relayed = inner
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPageUnanalyzable, err)
	}

	if out != nil && len(relayed.Payload) > 0 {
		return json.Unmarshal(relayed.Payload, out)
	}
	return nil
}
