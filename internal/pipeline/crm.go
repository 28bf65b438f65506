package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"prospector/internal/domain"
	"prospector/internal/session"
)

// TechStackPayload is the tech-stack slice of an analyze request, mapped
// from snapshot categories.
type TechStackPayload struct {
	Platform     string   `json:"platform,omitempty"`
	Theme        string   `json:"theme,omitempty"`
	Framework    string   `json:"framework,omitempty"`
	Analytics    []string `json:"analytics"`
	Plugins      []string `json:"plugins"`
	HasEcommerce bool     `json:"hasEcommerce"`
	Confidence   string   `json:"confidence"`
}

// BusinessInfo carries the harvested business signals.
type BusinessInfo struct {
	CompanyName    string   `json:"companyName,omitempty"`
	Emails         []string `json:"emails"`
	Phones         []string `json:"phones"`
	SocialLinks    []string `json:"socialLinks"`
	HasContactForm bool     `json:"hasContactForm"`
}

// AnalyzeRequest is the scoring submission body.
type AnalyzeRequest struct {
	URL          string           `json:"url"`
	Domain       string           `json:"domain"`
	TechStack    TechStackPayload `json:"techStack"`
	Signals      domain.SignalSet `json:"signals"`
	BusinessInfo BusinessInfo     `json:"businessInfo"`
	AuditID      string           `json:"auditId,omitempty"`
}

// CRMClient speaks the target-companies endpoints through the session
// manager.
type CRMClient struct {
	base    string
	session *session.Manager
}

func NewCRMClient(baseURL string, sess *session.Manager) *CRMClient {
	return &CRMClient{base: baseURL, session: sess}
}

// Analyze submits a composed scoring request. Never retried automatically:
// the submission is side-effecting and a duplicate would create a duplicate
// lead.
func (c *CRMClient) Analyze(ctx context.Context, req AnalyzeRequest) (domain.LeadRecord, error) {
	var lead domain.LeadRecord
	httpReq, err := session.NewJSONRequest(ctx, http.MethodPost, c.base+"/crm/target-companies/analyze", req)
	if err != nil {
		return lead, err
	}
	resp, err := c.session.Do(ctx, httpReq)
	if err != nil {
		return lead, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return lead, apiError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&lead)
	return lead, err
}

// LookupByDomain fetches an existing lead record, if any.
func (c *CRMClient) LookupByDomain(ctx context.Context, registrable string) (domain.LeadRecord, bool, error) {
	var lead domain.LeadRecord
	u := c.base + "/crm/target-companies?domain=" + url.QueryEscape(registrable)
	req, err := session.NewJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return lead, false, err
	}
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return lead, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return lead, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return lead, false, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&lead); err != nil {
		return lead, false, err
	}
	return lead, lead.ID != "", nil
}

// Claim marks a lead as owned by the current user.
func (c *CRMClient) Claim(ctx context.Context, leadID string) error {
	return c.post(ctx, "/crm/target-companies/"+leadID+"/claim", struct{}{}, nil)
}

// SaveContacts attaches harvested contacts to a lead.
func (c *CRMClient) SaveContacts(ctx context.Context, leadID string, contacts []domain.Contact) error {
	body := map[string]any{"contacts": contacts}
	return c.post(ctx, "/crm/target-companies/"+leadID+"/save-contacts", body, nil)
}

// GenerateOutreach asks the CRM for outreach copy tuned by the user's
// preferences.
func (c *CRMClient) GenerateOutreach(ctx context.Context, leadID string, prefs domain.Preferences) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"tone": prefs.Tone, "schedulingLink": prefs.SchedulingLink}
	if err := c.post(ctx, "/crm/target-companies/"+leadID+"/generate-outreach", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *CRMClient) post(ctx context.Context, path string, body, out any) error {
	req, err := session.NewJSONRequest(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// apiError extracts a server-provided message from the response body where
// possible, otherwise falls back to a generic one.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return fmt.Errorf("remote error (%d): %s", resp.StatusCode, body.Error)
		}
		if body.Message != "" {
			return fmt.Errorf("remote error (%d): %s", resp.StatusCode, body.Message)
		}
	}
	return fmt.Errorf("remote error (%d)", resp.StatusCode)
}
