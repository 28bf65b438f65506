// Package pipeline composes a detection snapshot with audit output into a
// scoring request and turns the response into a persisted lead record.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"prospector/internal/domain"
	"prospector/internal/metrics"
	"prospector/internal/ports"
)

// Tier thresholds. Policy constants: change them here or nowhere.
const (
	hotScoreThreshold  = 70
	warmScoreThreshold = 40
)

// TierFor buckets a numeric score into a lead tier.
func TierFor(score int) domain.LeadTier {
	switch {
	case score >= hotScoreThreshold:
		return domain.TierHot
	case score >= warmScoreThreshold:
		return domain.TierWarm
	default:
		return domain.TierPotential
	}
}

// storefrontPlatforms drive the coarse commerce flag by name match within
// the detected stack.
var storefrontPlatforms = []string{
	"shopify", "woocommerce", "bigcommerce", "magento", "prestashop",
	"ecwid", "wix stores", "squarespace commerce",
}

type Service struct {
	crm      *CRMClient
	leads    ports.LeadRepository
	analyses ports.AnalysisRepository
}

func NewService(crm *CRMClient, leads ports.LeadRepository, analyses ports.AnalysisRepository) *Service {
	return &Service{crm: crm, leads: leads, analyses: analyses}
}

// Enqueue records an analysis for a URL and queues its job.
func (s *Service) Enqueue(ctx context.Context, rawurl string) (string, error) {
	registrable, err := normalizeDomain(rawurl)
	if err != nil {
		return "", err
	}
	return s.analyses.Create(ctx, rawurl, registrable)
}

// Status reports a queued or finished analysis.
func (s *Service) Status(ctx context.Context, analysisID string) (domain.Analysis, error) {
	return s.analyses.Get(ctx, analysisID)
}

// Submit composes the scoring request and submits it. On success the lead is
// mirrored into the local ledger with the audit id linked when one exists,
// even if that audit had not finished when analysis started.
func (s *Service) Submit(ctx context.Context, snap domain.PageSnapshot, auditJob domain.AuditJob) (domain.LeadRecord, error) {
	req := ComposeRequest(snap, auditJob.ID)
	lead, err := s.crm.Analyze(ctx, req)
	if err != nil {
		return domain.LeadRecord{}, err
	}

	if lead.Tier == "" {
		lead.Tier = TierFor(lead.Score)
	}
	if lead.Domain == "" {
		lead.Domain = snap.Domain
	}
	if lead.LinkedAuditID == "" && auditJob.ID != "" {
		lead.LinkedAuditID = auditJob.ID
	}

	if s.leads != nil {
		if err := s.leads.Upsert(ctx, lead); err != nil {
			slog.Warn("lead ledger write failed", "lead_id", lead.ID, "error", err)
		}
	}
	metrics.LeadsSubmitted.WithLabelValues(string(lead.Tier)).Inc()
	return lead, nil
}

// LinkAudit attaches an audit id to an already-submitted lead after the
// fact, when the audit completes later than the submission.
func (s *Service) LinkAudit(ctx context.Context, leadID, auditID string) error {
	if s.leads == nil || leadID == "" || auditID == "" {
		return nil
	}
	return s.leads.LinkAudit(ctx, leadID, auditID)
}

// Lookup finds an existing lead for a domain or URL, local ledger first,
// then the CRM; remote hits are mirrored locally.
func (s *Service) Lookup(ctx context.Context, rawDomain string) (domain.LeadRecord, bool, error) {
	registrable, err := normalizeDomain(rawDomain)
	if err != nil {
		return domain.LeadRecord{}, false, err
	}
	if s.leads != nil {
		if lead, found, err := s.leads.GetByDomain(ctx, registrable); err == nil && found {
			return lead, true, nil
		}
	}
	lead, found, err := s.crm.LookupByDomain(ctx, registrable)
	if err != nil || !found {
		return lead, found, err
	}
	if s.leads != nil {
		if err := s.leads.Upsert(ctx, lead); err != nil {
			slog.Warn("lead ledger write failed", "lead_id", lead.ID, "error", err)
		}
	}
	return lead, true, nil
}

// ComposeRequest maps a snapshot (plus optional audit id) onto the analyze
// request. Confidence is coarse: any detected tech at all means the engine
// had something to work with.
func ComposeRequest(snap domain.PageSnapshot, auditID string) AnalyzeRequest {
	payload := TechStackPayload{
		Analytics:    []string{},
		Plugins:      []string{},
		HasEcommerce: hasEcommerce(snap.TechStack),
		Confidence:   "low",
	}
	if len(snap.TechStack) > 0 {
		payload.Confidence = "high"
	}
	for _, entry := range snap.TechStack {
		switch entry.Category {
		case domain.CategoryCMS:
			if payload.Platform == "" {
				payload.Platform = entry.Name
			}
		case domain.CategoryTheme:
			if payload.Theme == "" {
				payload.Theme = entry.Name
			}
		case domain.CategoryFramework:
			if payload.Framework == "" {
				payload.Framework = entry.Name
			}
		case domain.CategoryAnalytics:
			payload.Analytics = append(payload.Analytics, entry.Name)
		case domain.CategoryPlugin:
			payload.Plugins = append(payload.Plugins, entry.Name)
		}
	}

	return AnalyzeRequest{
		URL:       snap.URL,
		Domain:    snap.Domain,
		TechStack: payload,
		Signals:   snap.Signals,
		BusinessInfo: BusinessInfo{
			CompanyName:    snap.Signals.CompanyName,
			Emails:         snap.Signals.Emails,
			Phones:         snap.Signals.PhoneNumbers,
			SocialLinks:    snap.Signals.SocialLinks,
			HasContactForm: snap.Signals.HasContactForm,
		},
		AuditID: auditID,
	}
}

func hasEcommerce(stack []domain.TechStackEntry) bool {
	for _, entry := range stack {
		name := strings.ToLower(entry.Name)
		for _, platform := range storefrontPlatforms {
			if name == platform {
				return true
			}
		}
	}
	return false
}

// normalizeDomain accepts a URL or bare hostname and reduces it to the
// registrable domain (eTLD+1), falling back to the host when the public
// suffix list has no answer.
func normalizeDomain(raw string) (string, error) {
	host := raw
	if strings.Contains(raw, "/") || strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", err
		}
		host = u.Hostname()
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return registrable, nil
}
