package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"prospector/internal/session"
)

// Client speaks the remote audit API through the session manager so token
// handling stays in one place.
type Client struct {
	base    string
	session *session.Manager
}

func NewClient(baseURL string, sess *session.Manager) *Client {
	return &Client{base: baseURL, session: sess}
}

type createResponse struct {
	AuditID string `json:"auditId"`
}

// statusResponse is the raw polling shape. performanceScore maps to the
// device type the job was created with.
type statusResponse struct {
	Status             string `json:"status"`
	PerformanceScore   *int   `json:"performanceScore"`
	SEOScore           *int   `json:"seoScore"`
	AccessibilityScore *int   `json:"accessibilityScore"`
	BestPracticesScore *int   `json:"bestPracticesScore"`
}

// Create triggers a remote audit job and returns its id.
func (c *Client) Create(ctx context.Context, pageURL, deviceType string) (string, error) {
	body := map[string]string{"url": pageURL, "deviceType": deviceType, "source": "prospector"}
	req, err := session.NewJSONRequest(ctx, http.MethodPost, c.base+"/audits", body)
	if err != nil {
		return "", err
	}
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("audit create returned %d", resp.StatusCode)
	}
	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AuditID == "" {
		return "", fmt.Errorf("audit create returned no id")
	}
	return out.AuditID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, auditID string) (statusResponse, error) {
	var out statusResponse
	req, err := session.NewJSONRequest(ctx, http.MethodGet, c.base+"/audits/"+auditID, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("audit status returned %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

type magicLinkResponse struct {
	MagicLink string `json:"magicLink"`
	URL       string `json:"url"`
}

// MagicLink requests a shareable report link for a completed audit.
func (c *Client) MagicLink(ctx context.Context, auditID, recipientEmail string) (string, error) {
	body := map[string]string{}
	if recipientEmail != "" {
		body["recipientEmail"] = recipientEmail
	}
	req, err := session.NewJSONRequest(ctx, http.MethodPost, c.base+"/audits/"+auditID+"/magic-link", body)
	if err != nil {
		return "", err
	}
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("magic link returned %d", resp.StatusCode)
	}
	var out magicLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.MagicLink != "" {
		return out.MagicLink, nil
	}
	return out.URL, nil
}
