package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospector/internal/adapters/memory"
	"prospector/internal/bridge"
	"prospector/internal/domain"
	"prospector/internal/pipeline"
	"prospector/internal/session"
)

// leadStore is an in-memory ports.LeadRepository.
type leadStore struct {
	leads map[string]domain.LeadRecord
}

func (s *leadStore) Upsert(_ context.Context, lead domain.LeadRecord) error {
	s.leads[lead.Domain] = lead
	return nil
}

func (s *leadStore) GetByDomain(_ context.Context, registrable string) (domain.LeadRecord, bool, error) {
	lead, ok := s.leads[registrable]
	return lead, ok, nil
}

func (s *leadStore) LinkAudit(context.Context, string, string) error { return nil }

func testServer(t *testing.T, snapErr error) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := bridge.NewHub()
	ep := hub.Register(ctx, bridge.PageContext)
	ep.Handle(bridge.ActionGetTechStack, func(context.Context, json.RawMessage) (any, error) {
		if snapErr != nil {
			return nil, snapErr
		}
		return []domain.TechStackEntry{{Name: "WordPress", Category: domain.CategoryCMS, Icon: "wordpress"}}, nil
	})

	crmBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(crmBackend.Close)

	sess := session.New(memory.NewStore(), hub, nil)
	crm := pipeline.NewCRMClient(crmBackend.URL, sess)
	leads := &leadStore{leads: map[string]domain.LeadRecord{
		"acme.com": {ID: "lead-1", Domain: "acme.com", Score: 72, Tier: domain.TierHot},
	}}
	svc := pipeline.NewService(crm, leads, nil)

	srv := New(svc, crm, nil, sess, hub, nil, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := testServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDetectionRoute(t *testing.T) {
	t.Run("proxies the page context", func(t *testing.T) {
		ts := testServer(t, nil)
		resp, err := http.Get(ts.URL + "/tech-stack?url=https://acme.com/")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stack []domain.TechStackEntry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&stack))
		require.Len(t, stack, 1)
		assert.Equal(t, "WordPress", stack[0].Name)
	})

	t.Run("unanalyzable page maps to 502", func(t *testing.T) {
		ts := testServer(t, errors.New("page keeps failing"))
		resp, err := http.Get(ts.URL + "/tech-stack?url=https://acme.com/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "unable to analyze this page", body["error"])
	})

	t.Run("missing url is a 400", func(t *testing.T) {
		ts := testServer(t, nil)
		resp, err := http.Get(ts.URL + "/tech-stack")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLeadLookupRoute(t *testing.T) {
	ts := testServer(t, nil)

	t.Run("known domain", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/leads?domain=https://www.acme.com/about")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var lead domain.LeadRecord
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&lead))
		assert.Equal(t, "lead-1", lead.ID)
	})

	t.Run("unknown domain", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/leads?domain=nobody.com")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestPreferencesRoundTrip(t *testing.T) {
	ts := testServer(t, nil)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/preferences",
		strings.NewReader(`{"tone":"direct","schedulingLink":"https://cal.acme.com/jane"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(ts.URL + "/preferences")
	require.NoError(t, err)
	defer getResp.Body.Close()

	var prefs domain.Preferences
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&prefs))
	assert.Equal(t, "direct", prefs.Tone)
	assert.Equal(t, "https://cal.acme.com/jane", prefs.SchedulingLink)
}
