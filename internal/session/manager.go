// Package session owns the bearer token and user identity for every
// authenticated call the pipeline makes. The token is loaded from persistent
// storage at startup, replaced wholesale by a resync from the companion
// surface, and cleared on sign-out. It is never refreshed proactively, only
// reactively on a 401.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"prospector/internal/bridge"
	"prospector/internal/domain"
	"prospector/internal/ports"
)

// Fixed storage keys for persisted local state.
const (
	KeyToken       = "prospector:session:token"
	KeyUser        = "prospector:session:user"
	KeyPreferences = "prospector:session:preferences"
)

// VerifyPath is the session-verification endpoint. A 401 here means the
// session itself is dead; a 401 anywhere else may not.
const VerifyPath = "/auth/session"

// ErrSignedOut reports that no valid session could be established and the
// user must sign in again.
var ErrSignedOut = errors.New("session expired, sign in required")

// syncReply is the companion surface's answer to a sessionSync request.
type syncReply struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Manager holds the current AuthSession and mediates authenticated HTTP.
type Manager struct {
	store ports.StateStore
	hub   *bridge.Hub
	http  *http.Client

	mu      sync.RWMutex
	current domain.AuthSession

	subMu sync.Mutex
	subs  []chan domain.AuthSession
}

func New(store ports.StateStore, hub *bridge.Hub, client *http.Client) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{store: store, hub: hub, http: client}
}

// Load restores the persisted session. When no token is held it attempts
// exactly one resync from the companion surface; failure there is not fatal,
// the pipeline just runs signed out until a later resync succeeds.
func (m *Manager) Load(ctx context.Context) {
	token, found, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		slog.Warn("session load failed", "error", err)
	}
	if found && token != "" {
		sess := domain.AuthSession{Token: token}
		if raw, ok, _ := m.store.Get(ctx, KeyUser); ok {
			_ = json.Unmarshal([]byte(raw), &sess.User)
		}
		m.replace(sess)
		return
	}
	if err := m.Resync(ctx); err != nil {
		slog.Info("no session at startup", "error", err)
	}
}

// Token returns a snapshot of the current bearer token, empty when signed
// out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() domain.AuthSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Resync pulls a fresh session wholesale from the companion surface via the
// relay and persists it. The previous session is never partially mutated.
func (m *Manager) Resync(ctx context.Context) error {
	// The requesting surface cannot address the companion surface directly,
	// so the sync goes through the background relay.
	var reply syncReply
	err := m.hub.RequestViaRelay(ctx, bridge.BackgroundContext, bridge.CompanionContext, bridge.ActionSessionSync, struct{}{}, &reply)
	if err != nil {
		return err
	}
	if reply.Token == "" {
		return ErrSignedOut
	}

	sess := domain.AuthSession{Token: reply.Token, User: reply.User}
	m.replace(sess)

	if err := m.store.Set(ctx, KeyToken, sess.Token); err != nil {
		slog.Warn("persisting token failed", "error", err)
	}
	if raw, err := json.Marshal(sess.User); err == nil {
		_ = m.store.Set(ctx, KeyUser, string(raw))
	}
	return nil
}

// SignOut clears the session and its persisted state.
func (m *Manager) SignOut(ctx context.Context) {
	m.replace(domain.AuthSession{})
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		slog.Warn("clearing session failed", "error", err)
	}
}

// Subscribe returns a channel observing session replacements, so a sign-in
// happening elsewhere is reflected without reopening anything. Sends never
// block; a slow subscriber misses intermediate states, not the latest.
func (m *Manager) Subscribe() <-chan domain.AuthSession {
	ch := make(chan domain.AuthSession, 4)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) replace(sess domain.AuthSession) {
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- sess:
		default:
		}
	}
}

// Do performs an authenticated round-trip. 401 handling is endpoint-scoped:
// a 401 from the session-verification endpoint means the session is dead
// (resync, and sign out when that fails); a 401 from any other endpoint gets
// exactly one resync plus one retry of the original call, then the response
// is surfaced to the caller, because some endpoints return 401 for reasons
// unrelated to session expiry.
func (m *Manager) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := m.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if req.URL.Path == VerifyPath {
		if err := m.Resync(ctx); err != nil {
			m.SignOut(ctx)
			return nil, ErrSignedOut
		}
		return m.send(ctx, req)
	}

	if err := m.Resync(ctx); err != nil {
		return nil, err
	}
	return m.send(ctx, req)
}

// Verify calls the session-verification endpoint, refreshing the cached user
// identity on success.
func (m *Manager) Verify(ctx context.Context, baseURL string) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+VerifyPath, nil)
	if err != nil {
		return domain.User{}, err
	}
	resp, err := m.Do(ctx, req)
	if err != nil {
		return domain.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.User{}, ErrSignedOut
	}
	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.User{}, err
	}

	m.mu.Lock()
	sess := domain.AuthSession{Token: m.current.Token, User: user}
	m.current = sess
	m.mu.Unlock()
	return user, nil
}

// send clones the request so a retried call replays its body.
func (m *Manager) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if token := m.Token(); token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return m.http.Do(clone)
}

// Preferences reads the persisted user preferences.
func (m *Manager) Preferences(ctx context.Context) domain.Preferences {
	var prefs domain.Preferences
	if raw, ok, _ := m.store.Get(ctx, KeyPreferences); ok {
		_ = json.Unmarshal([]byte(raw), &prefs)
	}
	return prefs
}

// SetPreferences persists the user preferences wholesale.
func (m *Manager) SetPreferences(ctx context.Context, prefs domain.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, KeyPreferences, string(raw))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// NewJSONRequest builds a replayable JSON request for use with Do.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var buf []byte
	if body != nil {
		var err error
		if buf, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
