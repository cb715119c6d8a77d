// Package fallback implements the multi-tier Facebook extraction chain.
//
// Facebook's markup and internal API surface change without notice, so no
// single scraping method stays reliable. The chain runs a fixed priority
// order of independent strategies; each tier swallows its own failure and
// the next one gets a shot. New tiers can be appended without touching
// existing ones.
package fallback

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"grabbit/internal/httputil"
)

// ErrExhausted is returned when every tier failed to produce a URL.
var ErrExhausted = errors.New("could not extract video using any method")

// defaultResolverAPI is the third-party resolver endpoint used by tier 1.
const defaultResolverAPI = "https://fdown.net/download.php"

// maxHTMLBytes caps how much of a page is read when scanning for media URLs.
const maxHTMLBytes = 8 * 1024 * 1024

// Chain resolves a Facebook page URL into a direct media URL.
type Chain struct {
	client      *http.Client
	resolverAPI string
	log         logrus.FieldLogger
}

// New builds a chain with the default resolver endpoint. A nil client gets
// a hardened default.
func New(client *http.Client, log logrus.FieldLogger) *Chain {
	if client == nil {
		client = httputil.NewClient(20 * time.Second)
	}
	return &Chain{
		client:      client,
		resolverAPI: defaultResolverAPI,
		log:         log,
	}
}

// tier is one extraction strategy. A tier returns ("", nil) when it simply
// found nothing; errors are logged and treated the same way.
type tier struct {
	name string
	run  func(pageURL string) (string, error)
}

// Resolve tries each tier in order and returns the first direct media URL
// that passes its tier's validity check. Short-link URLs are normalized to
// their canonical form before any tier runs.
func (c *Chain) Resolve(rawURL string) (string, error) {
	if strings.Contains(rawURL, "fb.watch") {
		resolved, err := httputil.ResolveRedirect(c.client, rawURL)
		if err != nil {
			c.log.WithError(err).Warn("expanding fb.watch short link failed")
		} else {
			rawURL = resolved
		}
	}

	// Tiers 3 and 4 scan the same desktop page; the fetch is shared.
	var desktopHTML string
	fetchDesktop := func() (string, error) {
		if desktopHTML != "" {
			return desktopHTML, nil
		}
		html, err := c.fetchHTML(toDesktopURL(rawURL), httputil.DesktopUserAgent)
		if err != nil {
			return "", err
		}
		desktopHTML = html
		return html, nil
	}

	tiers := []tier{
		{"resolver-api", c.tierResolverAPI},
		{"mbasic", c.tierMbasic},
		{"regex", func(string) (string, error) {
			html, err := fetchDesktop()
			if err != nil {
				return "", err
			}
			return extractByPatterns(html), nil
		}},
		{"embedded-json", func(string) (string, error) {
			html, err := fetchDesktop()
			if err != nil {
				return "", err
			}
			return extractFromLegacyFields(html), nil
		}},
	}

	for _, t := range tiers {
		mediaURL, err := t.run(rawURL)
		if err != nil {
			c.log.WithError(err).WithField("tier", t.name).Warn("extraction tier failed")
			continue
		}
		if mediaURL != "" {
			c.log.WithField("tier", t.name).Info("fallback extraction succeeded")
			return mediaURL, nil
		}
	}

	return "", ErrExhausted
}

// tierResolverAPI asks a third-party resolver for structured HD/SD links.
// The HD link wins when both are present.
func (c *Chain) tierResolverAPI(pageURL string) (string, error) {
	form := url.Values{"URLz": {pageURL}}
	req, err := http.NewRequest(http.MethodPost, c.resolverAPI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating resolver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", httputil.DesktopUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling resolver API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolver API returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxHTMLBytes))
	if err != nil {
		return "", fmt.Errorf("parsing resolver response: %w", err)
	}

	for _, sel := range []string{"#hdlink", "#sdlink"} {
		if href, ok := doc.Find(sel).Attr("href"); ok && strings.Contains(href, "http") {
			return href, nil
		}
	}
	return "", nil
}

// tierMbasic rewrites the URL to the minimal legacy rendering host, whose
// markup still carries plain <video> tags and .mp4 anchors.
func (c *Chain) tierMbasic(pageURL string) (string, error) {
	mbasicURL := strings.ReplaceAll(pageURL, "www.facebook.com", "mbasic.facebook.com")
	mbasicURL = strings.ReplaceAll(mbasicURL, "m.facebook.com", "mbasic.facebook.com")

	html, err := c.fetchHTML(mbasicURL, httputil.MobileUserAgent)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing mbasic page: %w", err)
	}

	var found string
	doc.Find("video[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if validMediaURL(src) {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return found, nil
	}

	doc.Find(`a[href*=".mp4"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if validMediaURL(href) {
			found = href
			return false
		}
		return true
	})
	return found, nil
}

// videoPatterns capture the embedded video URL fields Facebook's desktop
// pages exposed as of the 2024 page structure, highest quality first.
var videoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"browser_native_hd_url":"([^"]+)"`),
	regexp.MustCompile(`"playable_url_quality_hd":"([^"]+)"`),
	regexp.MustCompile(`hd_src_no_ratelimit:"([^"]+)"`),
	regexp.MustCompile(`hd_src:"([^"]+)"`),
	regexp.MustCompile(`"browser_native_sd_url":"([^"]+)"`),
	regexp.MustCompile(`"playable_url":"([^"]+)"`),
	regexp.MustCompile(`sd_src:"([^"]+)"`),
}

// extractByPatterns tries the pattern set in priority order and returns the
// first decoded match that passes the validity check.
func extractByPatterns(html string) string {
	for _, pat := range videoPatterns {
		m := pat.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		candidate := decodeEscapes(m[1])
		if validMediaURL(candidate) {
			return candidate
		}
	}
	return ""
}

// legacyFieldsPattern locates the videoDeliveryLegacyFields JSON object
// Facebook embeds since October 2024.
var legacyFieldsPattern = regexp.MustCompile(`"videoDeliveryLegacyFields":\s*({[^}]+})`)

// legacyFieldPriority is the order in which fields of that object are
// consulted for a playable URL.
var legacyFieldPriority = []string{
	"browser_native_hd_url",
	"browser_native_sd_url",
	"playable_url_quality_hd",
	"playable_url",
}

// extractFromLegacyFields parses the embedded JSON object and returns the
// first plausible media URL it holds.
func extractFromLegacyFields(html string) string {
	m := legacyFieldsPattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(m[1]), &fields); err != nil {
		return ""
	}

	for _, key := range legacyFieldPriority {
		if v, ok := fields[key].(string); ok && strings.Contains(v, "http") {
			return v
		}
	}
	return ""
}

func (c *Chain) fetchHTML(pageURL, userAgent string) (string, error) {
	resp, err := httputil.Get(c.client, pageURL, userAgent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBytes))
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return string(body), nil
}

// toDesktopURL normalizes mobile and legacy hosts back to the canonical
// desktop host.
func toDesktopURL(pageURL string) string {
	pageURL = strings.ReplaceAll(pageURL, "m.facebook.com", "www.facebook.com")
	return strings.ReplaceAll(pageURL, "mbasic.facebook.com", "www.facebook.com")
}

// validMediaURL accepts a candidate only when it carries a scheme and
// references Facebook's CDN or domain.
func validMediaURL(candidate string) bool {
	if !strings.Contains(candidate, "http") {
		return false
	}
	return strings.Contains(candidate, "fbcdn.net") ||
		strings.Contains(candidate, "facebook.com") ||
		strings.Contains(candidate, ".mp4")
}

// decodeEscapes reverses the JSON-style escaping found in matched URL
// fields: forward-slash escapes and \uXXXX unicode escapes.
func decodeEscapes(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, "&amp;", "&")

	return unicodeEscape.ReplaceAllStringFunc(s, func(esc string) string {
		code, err := strconv.ParseInt(esc[2:], 16, 32)
		if err != nil {
			return esc
		}
		return string(rune(code))
	})
}

var unicodeEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)
