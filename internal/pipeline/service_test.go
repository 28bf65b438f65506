package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospector/internal/adapters/memory"
	"prospector/internal/detect"
	"prospector/internal/domain"
	"prospector/internal/session"
)

func TestTierFor(t *testing.T) {
	assert.Equal(t, domain.TierHot, TierFor(100))
	assert.Equal(t, domain.TierHot, TierFor(70))
	assert.Equal(t, domain.TierWarm, TierFor(69))
	assert.Equal(t, domain.TierWarm, TierFor(40))
	assert.Equal(t, domain.TierPotential, TierFor(39))
	assert.Equal(t, domain.TierPotential, TierFor(0))
}

func TestComposeRequest_CategoryMapping(t *testing.T) {
	snap := domain.PageSnapshot{
		URL:    "https://acme.com/",
		Domain: "acme.com",
		TechStack: []domain.TechStackEntry{
			{Name: "WordPress", Category: domain.CategoryCMS},
			{Name: "WooCommerce", Category: domain.CategoryEcommerce},
			{Name: "Divi", Category: domain.CategoryTheme},
			{Name: "React", Category: domain.CategoryFramework},
			{Name: "jQuery", Category: domain.CategoryFramework},
			{Name: "Google Analytics", Category: domain.CategoryAnalytics},
			{Name: "Hotjar", Category: domain.CategoryAnalytics},
			{Name: "Elementor", Category: domain.CategoryPlugin},
		},
		Signals: domain.SignalSet{
			CompanyName:    "Acme Co",
			Emails:         []string{"info@acme.com"},
			HasContactForm: true,
		},
	}

	req := ComposeRequest(snap, "audit-7")

	assert.Equal(t, "WordPress", req.TechStack.Platform)
	assert.Equal(t, "Divi", req.TechStack.Theme)
	// First framework wins the single slot.
	assert.Equal(t, "React", req.TechStack.Framework)
	assert.Equal(t, []string{"Google Analytics", "Hotjar"}, req.TechStack.Analytics)
	assert.Equal(t, []string{"Elementor"}, req.TechStack.Plugins)
	assert.True(t, req.TechStack.HasEcommerce)
	assert.Equal(t, "high", req.TechStack.Confidence)
	assert.Equal(t, "audit-7", req.AuditID)
	assert.Equal(t, "Acme Co", req.BusinessInfo.CompanyName)
	assert.True(t, req.BusinessInfo.HasContactForm)
}

func TestComposeRequest_EmptyStackIsLowConfidence(t *testing.T) {
	req := ComposeRequest(domain.PageSnapshot{URL: "https://bare.com/", Domain: "bare.com"}, "")
	assert.Equal(t, "low", req.TechStack.Confidence)
	assert.False(t, req.TechStack.HasEcommerce)
	assert.Empty(t, req.TechStack.Platform)
	assert.NotNil(t, req.TechStack.Analytics)
	assert.NotNil(t, req.TechStack.Plugins)
}

func TestHasEcommerce_NameMatch(t *testing.T) {
	assert.True(t, hasEcommerce([]domain.TechStackEntry{{Name: "Shopify"}}))
	assert.True(t, hasEcommerce([]domain.TechStackEntry{{Name: "wix stores"}}))
	assert.False(t, hasEcommerce([]domain.TechStackEntry{{Name: "WordPress"}}))
	assert.False(t, hasEcommerce(nil))
}

func TestNormalizeDomain(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"https://shop.acme.co.uk/products?x=1", "acme.co.uk"},
		{"http://www.acme.com/", "acme.com"},
		{"acme.com", "acme.com"},
		{"Sub.Acme.COM", "acme.com"},
	} {
		got, err := normalizeDomain(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := normalizeDomain("")
	assert.Error(t, err)
}

// fakeLeadRepo records ledger writes.
type fakeLeadRepo struct {
	upserts []domain.LeadRecord
	linked  map[string]string
	stored  map[string]domain.LeadRecord
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{linked: map[string]string{}, stored: map[string]domain.LeadRecord{}}
}

func (f *fakeLeadRepo) Upsert(_ context.Context, lead domain.LeadRecord) error {
	f.upserts = append(f.upserts, lead)
	f.stored[lead.Domain] = lead
	return nil
}

func (f *fakeLeadRepo) GetByDomain(_ context.Context, registrable string) (domain.LeadRecord, bool, error) {
	lead, ok := f.stored[registrable]
	return lead, ok, nil
}

func (f *fakeLeadRepo) LinkAudit(_ context.Context, leadID, auditID string) error {
	f.linked[leadID] = auditID
	return nil
}

func testSession(t *testing.T) *session.Manager {
	t.Helper()
	m := session.New(memory.NewStore(), nil, nil)
	return m
}

func TestSubmit_FillsDefaultsAndMirrorsLead(t *testing.T) {
	var got AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/target-companies/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(domain.LeadRecord{
			ID:          "lead-1",
			Score:       85,
			Factors:     []string{"outdated stack"},
			PitchAngles: []string{"performance rebuild"},
		})
	}))
	defer srv.Close()

	leads := newFakeLeadRepo()
	svc := NewService(NewCRMClient(srv.URL, testSession(t)), leads, nil)

	snap := domain.PageSnapshot{
		URL:       "https://acme.com/",
		Domain:    "acme.com",
		TechStack: []domain.TechStackEntry{{Name: "WordPress", Category: domain.CategoryCMS}},
	}
	auditJob := domain.AuditJob{ID: "audit-3", Status: domain.AuditCompleted}

	lead, err := svc.Submit(context.Background(), snap, auditJob)
	require.NoError(t, err)

	// The CRM omitted tier, domain and audit linkage; Submit fills them.
	assert.Equal(t, domain.TierHot, lead.Tier)
	assert.Equal(t, "acme.com", lead.Domain)
	assert.Equal(t, "audit-3", lead.LinkedAuditID)

	assert.Equal(t, "WordPress", got.TechStack.Platform)
	assert.Equal(t, "audit-3", got.AuditID)

	require.Len(t, leads.upserts, 1)
	assert.Equal(t, "lead-1", leads.upserts[0].ID)
}

func TestSubmit_DetectedStorefrontFlagsEcommerce(t *testing.T) {
	// End to end from markup: a storefront CDN marker must come out of the
	// engine as a Shopify entry and reach the CRM as hasEcommerce.
	var got AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(domain.LeadRecord{ID: "lead-5", Score: 62})
	}))
	defer srv.Close()

	snap := detect.New().Detect(detect.PageContent{
		URL: "https://gifts.acmestore.com/",
		HTML: `<html><head><title>Gift Shop</title></head><body>
            <script src="https://cdn.shopify.com/s/files/1/0001/theme.js"></script>
            </body></html>`,
	})
	require.NotEmpty(t, snap.TechStack)
	assert.Equal(t, "Shopify", snap.TechStack[0].Name)
	assert.Equal(t, domain.CategoryCMS, snap.TechStack[0].Category)

	svc := NewService(NewCRMClient(srv.URL, testSession(t)), newFakeLeadRepo(), nil)
	lead, err := svc.Submit(context.Background(), snap, domain.AuditJob{})
	require.NoError(t, err)

	assert.Equal(t, "Shopify", got.TechStack.Platform)
	assert.True(t, got.TechStack.HasEcommerce)
	assert.Equal(t, "high", got.TechStack.Confidence)
	assert.Equal(t, "acmestore.com", got.Domain)
	assert.Equal(t, domain.TierWarm, lead.Tier)
}

func TestSubmit_CRMErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "domain is blocked"})
	}))
	defer srv.Close()

	leads := newFakeLeadRepo()
	svc := NewService(NewCRMClient(srv.URL, testSession(t)), leads, nil)

	_, err := svc.Submit(context.Background(), domain.PageSnapshot{Domain: "acme.com"}, domain.AuditJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain is blocked")
	assert.Empty(t, leads.upserts)
}

func TestLookup_LocalLedgerFirst(t *testing.T) {
	var remoteCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		remoteCalls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	leads := newFakeLeadRepo()
	leads.stored["acme.com"] = domain.LeadRecord{ID: "lead-1", Domain: "acme.com", Score: 50}
	svc := NewService(NewCRMClient(srv.URL, testSession(t)), leads, nil)

	lead, found, err := svc.Lookup(context.Background(), "https://www.acme.com/about")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "lead-1", lead.ID)
	assert.Zero(t, remoteCalls)
}

func TestLookup_RemoteHitMirroredLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "acme.com", r.URL.Query().Get("domain"))
		_ = json.NewEncoder(w).Encode(domain.LeadRecord{ID: "lead-2", Domain: "acme.com", Score: 45, Tier: domain.TierWarm})
	}))
	defer srv.Close()

	leads := newFakeLeadRepo()
	svc := NewService(NewCRMClient(srv.URL, testSession(t)), leads, nil)

	lead, found, err := svc.Lookup(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "lead-2", lead.ID)
	require.Len(t, leads.upserts, 1)
}

func TestLookup_NotFoundAnywhere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewService(NewCRMClient(srv.URL, testSession(t)), newFakeLeadRepo(), nil)
	_, found, err := svc.Lookup(context.Background(), "unknown.com")
	require.NoError(t, err)
	assert.False(t, found)
}
