package detect

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prospector/internal/domain"
)

// Performance hint thresholds. Policy constants, tuned over real lead pages;
// adjust here, not at the call sites.
const (
	unoptimizedImageThreshold   = 3
	missingSrcsetThreshold      = 3
	missingAltThreshold         = 2
	blockingScriptThreshold     = 3
	thirdPartyScriptThreshold   = 10
	lazyLoadCandidateImageCount = 5
	csrTextWordThreshold        = 20
)

var legacyImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

// performanceHints derives threshold-based heuristics from the parsed page.
func performanceHints(p *page) []domain.Hint {
	var hints []domain.Hint

	var totalImages, unoptimized, missingSrcset, missingAlt, lazy int
	p.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		totalImages++
		src, _ := img.Attr("src")
		src = strings.ToLower(src)
		for _, ext := range legacyImageExtensions {
			if strings.Contains(src, ext) {
				unoptimized++
				break
			}
		}
		if _, ok := img.Attr("srcset"); !ok {
			missingSrcset++
		}
		if alt, ok := img.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			missingAlt++
		}
		if loading, _ := img.Attr("loading"); loading == "lazy" {
			lazy++
		}
	})

	if unoptimized > unoptimizedImageThreshold {
		hints = append(hints, hint("unoptimized-images", unoptimized, "%d images use legacy formats without modern alternatives"))
	}
	if missingSrcset > missingSrcsetThreshold {
		hints = append(hints, hint("missing-responsive-images", missingSrcset, "%d images have no responsive srcset"))
	}
	if missingAlt > missingAltThreshold {
		hints = append(hints, hint("missing-alt-text", missingAlt, "%d images are missing alt text"))
	}
	if lazy == 0 && totalImages > lazyLoadCandidateImageCount {
		hints = append(hints, hint("no-lazy-loading", totalImages, "%d images and none are lazy-loaded"))
	}

	var blocking, thirdParty int
	pageHost := strings.ToLower(p.url.Hostname())
	p.doc.Find("script[src]").Each(func(_ int, script *goquery.Selection) {
		if scriptHost := hostOf(script); scriptHost != "" && scriptHost != pageHost {
			thirdParty++
		}
	})
	p.doc.Find("head script[src]").Each(func(_ int, script *goquery.Selection) {
		_, async := script.Attr("async")
		_, deferred := script.Attr("defer")
		typ, _ := script.Attr("type")
		if !async && !deferred && typ != "module" {
			blocking++
		}
	})

	if blocking > blockingScriptThreshold {
		hints = append(hints, hint("render-blocking-scripts", blocking, "%d scripts block rendering in <head>"))
	}
	if thirdParty > thirdPartyScriptThreshold {
		hints = append(hints, hint("heavy-third-party", thirdParty, "%d third-party scripts loaded"))
	}
	if clientSideRendered(p) {
		hints = append(hints, domain.Hint{
			Code:    "client-side-rendered",
			Count:   1,
			Message: "markup is a client-side shell with little server-rendered content",
		})
	}
	return hints
}

// clientSideRendered flags the empty-shell pattern: a framework mount point
// and almost no server-rendered text.
func clientSideRendered(p *page) bool {
	if p.doc.Find("#root, #app, #__next, #___gatsby").Length() == 0 {
		return false
	}
	return len(strings.Fields(p.doc.Find("body").Text())) < csrTextWordThreshold
}

func hint(code string, count int, format string) domain.Hint {
	return domain.Hint{Code: code, Count: count, Message: fmt.Sprintf(format, count)}
}

func hostOf(script *goquery.Selection) string {
	src, _ := script.Attr("src")
	src = strings.TrimSpace(src)
	if !strings.Contains(src, "//") {
		return "" // relative, same host
	}
	src = strings.TrimPrefix(src, "https://")
	src = strings.TrimPrefix(src, "http://")
	src = strings.TrimPrefix(src, "//")
	if i := strings.IndexAny(src, "/?#"); i >= 0 {
		src = src[:i]
	}
	return strings.ToLower(src)
}
