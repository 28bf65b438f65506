package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"prospector/internal/domain"
)

func hintCodes(hints []domain.Hint) []string {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		out = append(out, h.Code)
	}
	return out
}

func TestPerformanceHints_ImageFindings(t *testing.T) {
	// Four legacy images with no srcset and no alt trip three thresholds.
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, `<img src="/photos/img%d.jpg">`, i)
	}
	b.WriteString("</body></html>")

	snap := detectHTML(t, "https://acme.com/", b.String())
	codes := hintCodes(snap.PerformanceHints)
	assert.Contains(t, codes, "unoptimized-images")
	assert.Contains(t, codes, "missing-responsive-images")
	assert.Contains(t, codes, "missing-alt-text")
}

func TestPerformanceHints_ThresholdsNotTripped(t *testing.T) {
	// Three well-formed modern images stay under every threshold.
	snap := detectHTML(t, "https://acme.com/",
		`<html><body>
        <img src="/a.webp" srcset="/a.webp 1x" alt="a" loading="lazy">
        <img src="/b.webp" srcset="/b.webp 1x" alt="b" loading="lazy">
        <img src="/c.webp" srcset="/c.webp 1x" alt="c" loading="lazy">
        </body></html>`)
	assert.Empty(t, snap.PerformanceHints)
}

func TestPerformanceHints_NoLazyLoading(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, `<img src="/img%d.webp" srcset="/img%d.webp 1x" alt="x">`, i, i)
	}
	b.WriteString("</body></html>")

	snap := detectHTML(t, "https://acme.com/", b.String())
	codes := hintCodes(snap.PerformanceHints)
	assert.Contains(t, codes, "no-lazy-loading")

	// One lazy image anywhere clears the finding.
	lazy := strings.Replace(b.String(), `alt="x">`, `alt="x" loading="lazy">`, 1)
	snap = detectHTML(t, "https://acme.com/", lazy)
	assert.NotContains(t, hintCodes(snap.PerformanceHints), "no-lazy-loading")
}

func TestPerformanceHints_RenderBlockingScripts(t *testing.T) {
	snap := detectHTML(t, "https://acme.com/",
		`<html><head>
        <script src="/a.js"></script>
        <script src="/b.js"></script>
        <script src="/c.js"></script>
        <script src="/d.js"></script>
        <script src="/e.js" defer></script>
        <script src="/f.js" async></script>
        <script src="/g.js" type="module"></script>
        </head><body></body></html>`)

	var found *domain.Hint
	for i, h := range snap.PerformanceHints {
		if h.Code == "render-blocking-scripts" {
			found = &snap.PerformanceHints[i]
		}
	}
	assert.NotNil(t, found)
	assert.Equal(t, 4, found.Count)
}

func TestPerformanceHints_ClientSideShell(t *testing.T) {
	snap := detectHTML(t, "https://app.acme.com/",
		`<html><body><div id="root"></div><script src="/bundle.js" async></script></body></html>`)
	assert.Contains(t, hintCodes(snap.PerformanceHints), "client-side-rendered")

	// A mount point with real server-rendered content is not a shell.
	long := `<html><body><div id="root"><p>` + strings.Repeat("words and more content here ", 10) + `</p></div></body></html>`
	snap = detectHTML(t, "https://app.acme.com/", long)
	assert.NotContains(t, hintCodes(snap.PerformanceHints), "client-side-rendered")
}

func TestPerformanceHints_HeavyThirdParty(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 11; i++ {
		fmt.Fprintf(&b, `<script src="https://vendor%d.example.net/w.js" async></script>`, i)
	}
	b.WriteString(`<script src="/own.js"></script>`)
	b.WriteString("</body></html>")

	snap := detectHTML(t, "https://acme.com/", b.String())
	assert.Contains(t, hintCodes(snap.PerformanceHints), "heavy-third-party")
}
