package detect

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"

	"prospector/internal/domain"
)

// Output caps keep snapshots bounded no matter how noisy the page is.
const (
	maxPhones      = 5
	maxEmails      = 10
	maxSocialLinks = 6
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\(?\d{1,4}\)?[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{2,4}[\s.\-]?\d{2,4}`)
)

// emailPolicy is the false-positive exclusion table. The domains were
// observed empirically in harvested pages (placeholder content, error
// trackers, platform-internal addresses); kept as data so it stays tunable.
type emailPolicy struct {
	blockedDomains  []string
	blockedSuffixes []string
}

var defaultEmailPolicy = emailPolicy{
	blockedDomains: []string{
		"example.com", "example.org", "email.com", "domain.com", "yourdomain.com",
		"yoursite.com", "mysite.com", "sentry.io", "sentry-next.wixpress.com",
		"wixpress.com", "placeholder.com",
	},
	// Retina-image artifacts like pic@2x.png match the email regex; their
	// "domain" ends in an image extension.
	blockedSuffixes: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"},
}

// trimDigitPrefix recovers addresses the text regex over-matched: a digit
// run absorbed into the local part ("Suite 200info@acme.com") is a street
// number or price, not a mailbox name. An all-digit local part is bogus
// outright and yields an empty string.
func (pol emailPolicy) trimDigitPrefix(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := strings.TrimLeft(email[:at], "0123456789")
	if local == "" {
		return ""
	}
	return local + email[at:]
}

func (pol emailPolicy) allow(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	dom := strings.ToLower(email[at+1:])
	for _, suffix := range pol.blockedSuffixes {
		if strings.HasSuffix(dom, suffix) {
			return false
		}
	}
	for _, blocked := range pol.blockedDomains {
		if dom == blocked || strings.HasSuffix(dom, "."+blocked) {
			return false
		}
	}
	return true
}

func (e *Engine) extractSignals(p *page, title string) domain.SignalSet {
	s := domain.SignalSet{
		HasSSL:       p.url.Scheme == "https",
		Emails:       e.extractEmails(p),
		PhoneNumbers: extractPhones(p),
		SocialLinks:  extractSocialLinks(p),
		CompanyName:  companyName(p, title),
		Language:     detectLanguage(p, title),
	}
	s.HasContactForm = hasContactForm(p)
	return s
}

func (e *Engine) extractEmails(p *page) []string {
	seen := map[string]bool{}
	var out []string
	add := func(raw string) {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || seen[email] || !e.emailPolicy.allow(email) {
			return
		}
		seen[email] = true
		if len(out) < maxEmails {
			out = append(out, email)
		}
	}

	p.doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexAny(addr, "?&"); i >= 0 {
			addr = addr[:i]
		}
		add(addr)
	})
	// mailto addresses are explicit and taken as written; only text-regex
	// matches get the digit-prefix repair.
	for _, m := range emailRe.FindAllString(p.doc.Text(), -1) {
		add(e.emailPolicy.trimDigitPrefix(m))
	}
	return out
}

func extractPhones(p *page) []string {
	seen := map[string]bool{}
	var out []string
	add := func(raw string) {
		phone := strings.TrimSpace(raw)
		if !plausiblePhone(phone) {
			return
		}
		key := digitsOnly(phone)
		if seen[key] {
			return
		}
		seen[key] = true
		if len(out) < maxPhones {
			out = append(out, phone)
		}
	}

	p.doc.Find(`a[href^="tel:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		add(strings.TrimPrefix(href, "tel:"))
	})
	for _, m := range phoneRe.FindAllString(p.doc.Text(), -1) {
		add(m)
	}
	return out
}

// plausiblePhone rejects the numeric noise the regex also matches: dates,
// prices, ids with too few or too many digits.
func plausiblePhone(s string) bool {
	d := digitsOnly(s)
	if len(d) < 8 || len(d) > 15 {
		return false
	}
	// All-same-digit runs are never real numbers.
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// socialDomains is the fixed allow-list; anything else is never reported as
// a social link.
var socialDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"linkedin.com", "youtube.com", "tiktok.com", "pinterest.com",
}

func extractSocialLinks(p *page) []string {
	seen := map[string]bool{}
	var out []string
	p.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if len(out) >= maxSocialLinks {
			return
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		for _, dom := range socialDomains {
			if strings.Contains(lower, dom+"/") || strings.HasSuffix(lower, dom) {
				if !seen[href] {
					seen[href] = true
					out = append(out, href)
				}
				return
			}
		}
	})
	return out
}

func hasContactForm(p *page) bool {
	found := false
	p.doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if form.Find(`input[type="email"], textarea`).Length() > 0 {
			found = true
			return false
		}
		if action, ok := form.Attr("action"); ok && strings.Contains(strings.ToLower(action), "contact") {
			found = true
			return false
		}
		return true
	})
	return found
}

// companyName prefers the explicit site-name metadata and falls back to the
// trailing segment of the title ("Plumbing Repairs | Acme Co" -> "Acme Co").
func companyName(p *page, title string) string {
	if name, ok := p.doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	// The hyphen separator is matched space-padded on purpose: a bare "-"
	// would split hyphenated business names ("Smith-Jones Plumbing").
	for _, sep := range []string{"|", "–", "—", " - "} {
		if strings.Contains(title, sep) {
			parts := strings.Split(title, sep)
			if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
				return last
			}
		}
	}
	return strings.TrimSpace(title)
}

func detectLanguage(p *page, title string) string {
	desc, _ := p.doc.Find(`meta[name="description"]`).Attr("content")
	words := strings.Fields(p.doc.Find("body").Text())
	if len(words) > 100 {
		words = words[:100]
	}
	sample := strings.TrimSpace(title + " " + desc + " " + strings.Join(words, " "))
	if sample == "" {
		return ""
	}
	info := whatlanggo.Detect(sample)
	return info.Lang.Iso6393()
}

// genericMailboxes classify an address as a shared inbox rather than a
// person.
var genericMailboxes = []string{"info", "contact", "hello", "support", "sales", "office", "admin", "team", "mail"}

func extractContacts(p *page, signals domain.SignalSet) []domain.Contact {
	var out []domain.Contact
	seen := map[string]bool{}
	add := func(c domain.Contact) {
		key := c.Email
		if key == "" {
			key = c.Phone
		}
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	// Structured data first: it carries names and typed contact points.
	for _, c := range structuredDataContacts(p) {
		add(c)
	}
	for _, email := range signals.Emails {
		add(domain.Contact{Email: email, Type: mailboxType(email), Source: domain.SourcePage})
	}
	for _, phone := range signals.PhoneNumbers {
		add(domain.Contact{Phone: phone, Type: domain.ContactPhone, Source: domain.SourcePage})
	}
	return out
}

func mailboxType(email string) domain.ContactType {
	local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	for _, g := range genericMailboxes {
		if local == g {
			return domain.ContactGeneric
		}
	}
	return domain.ContactPersonal
}
