package detect

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"prospector/internal/domain"
)

// PageContent is the raw material for one detection pass: the final URL, the
// page markup and (when available) the response headers.
type PageContent struct {
	URL     string
	HTML    string
	Headers http.Header
}

// page is the pre-computed view detectors match against.
type page struct {
	url        *url.URL
	lower      string // lowercased markup
	doc        *goquery.Document
	scriptSrcs []string // lowercased script src attributes
	generator  string   // lowercased meta generator content
}

func (p *page) contains(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(p.lower, s) {
			return true
		}
	}
	return false
}

func (p *page) scriptSrc(subs ...string) bool {
	for _, src := range p.scriptSrcs {
		for _, s := range subs {
			if strings.Contains(src, s) {
				return true
			}
		}
	}
	return false
}

func (p *page) generatorContains(s string) bool {
	return strings.Contains(p.generator, s)
}

// Fingerprinter is the optional enrichment pass appended after the rule
// engine (wappalyzergo in production). Rule-engine entries always win the
// name dedupe.
type Fingerprinter interface {
	Fingerprint(headers map[string][]string, body []byte) map[string]struct{}
}

// Engine classifies a page's technology stack and business signals. Detect is
// pure: no I/O, no persistence, same content yields the same snapshot.
type Engine struct {
	detectors   []detector
	emailPolicy emailPolicy
	fingerprint Fingerprinter
}

func New() *Engine {
	return &Engine{detectors: defaultDetectors, emailPolicy: defaultEmailPolicy}
}

// NewWithFingerprint enables the supplementary fingerprint pass.
func NewWithFingerprint(fp Fingerprinter) *Engine {
	e := New()
	e.fingerprint = fp
	return e
}

// Detect never fails: malformed markup degrades to an emptier snapshot, a bad
// sub-step is skipped, the pass always completes.
func (e *Engine) Detect(content PageContent) domain.PageSnapshot {
	p := newPage(content)

	snap := domain.PageSnapshot{
		URL:       content.URL,
		Domain:    registrableDomain(p.url),
		Title:     strings.TrimSpace(p.doc.Find("title").First().Text()),
		TechStack: e.classify(p, content),
	}
	snap.Signals = e.extractSignals(p, snap.Title)
	snap.Contacts = extractContacts(p, snap.Signals)
	snap.PerformanceHints = performanceHints(p)
	return snap
}

// classify runs the ordered detector table. Platform detectors run first and
// may suppress framework detectors used internally by the matched platform,
// so an implementation detail of a page builder is not reported as the site
// owner's technology choice. Output is deduplicated by name, first seen wins.
func (e *Engine) classify(p *page, content PageContent) []domain.TechStackEntry {
	suppressed := map[string]bool{}
	seen := map[string]bool{}
	var out []domain.TechStackEntry

	for _, d := range e.detectors {
		if suppressed[d.Name] || seen[d.Name] {
			continue
		}
		if !matchSafely(d, p) {
			continue
		}
		seen[d.Name] = true
		out = append(out, domain.TechStackEntry{Name: d.Name, Category: d.Category, Icon: d.Icon})
		for _, s := range d.Suppresses {
			suppressed[s] = true
		}
	}

	if e.fingerprint != nil {
		for name := range e.fingerprint.Fingerprint(content.Headers, []byte(content.HTML)) {
			name = strings.SplitN(name, ":", 2)[0]
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, domain.TechStackEntry{Name: name, Category: domain.CategoryPlugin, Icon: "fingerprint"})
		}
	}
	return out
}

// matchSafely keeps a panicking detector from aborting the whole pass.
func matchSafely(d detector, p *page) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return d.Match(p)
}

func newPage(content PageContent) *page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	u, err := url.Parse(content.URL)
	if err != nil {
		u = &url.URL{}
	}
	p := &page{
		url:   u,
		lower: strings.ToLower(content.HTML),
		doc:   doc,
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			p.scriptSrcs = append(p.scriptSrcs, strings.ToLower(src))
		}
	})
	if gen, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok {
		p.generator = strings.ToLower(gen)
	}
	return p
}

func registrableDomain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
