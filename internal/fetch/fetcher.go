package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prospector/internal/detect"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetcher retrieves page markup for the detection context. The engine itself
// stays pure; all I/O lives here.
type Fetcher struct {
	client *http.Client
}

func New(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (detect.PageContent, error) {
	var content detect.PageContent

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return content, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return content, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("fetch returned bad status", "url", rawURL, "status_code", resp.StatusCode)
		return content, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "html") {
		return content, fmt.Errorf("content type %q is not HTML", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return content, err
	}

	content.URL = resp.Request.URL.String()
	content.HTML = string(body)
	content.Headers = resp.Header
	return content, nil
}
