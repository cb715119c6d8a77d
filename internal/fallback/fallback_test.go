package fallback

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// routeFunc lets each test dispatch canned responses per request.
type routeFunc func(req *http.Request) (*http.Response, error)

func (f routeFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func htmlResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func newTestChain(rt routeFunc) *Chain {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Chain{
		client:      &http.Client{Transport: rt},
		resolverAPI: defaultResolverAPI,
		log:         log,
	}
}

func TestResolveResolverAPIPrefersHD(t *testing.T) {
	var calls int
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		calls++
		if req.Method != http.MethodPost || !strings.Contains(req.URL.String(), "fdown.net") {
			t.Errorf("unexpected request %s %s", req.Method, req.URL)
		}
		body := `<html><body>
			<a id="sdlink" href="https://video.fbcdn.net/v/sd.mp4">SD</a>
			<a id="hdlink" href="https://video.fbcdn.net/v/hd.mp4">HD</a>
		</body></html>`
		return htmlResponse(req, http.StatusOK, body), nil
	})

	got, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://video.fbcdn.net/v/hd.mp4" {
		t.Errorf("Resolve() = %q, want the HD link", got)
	}
	if calls != 1 {
		t.Errorf("later tiers ran after a tier-1 hit (%d requests)", calls)
	}
}

func TestResolveMbasicVideoTag(t *testing.T) {
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(req.URL.String(), "fdown.net"):
			return htmlResponse(req, http.StatusInternalServerError, ""), nil
		case req.URL.Host == "mbasic.facebook.com":
			if ua := req.Header.Get("User-Agent"); !strings.Contains(ua, "Android") {
				t.Errorf("mbasic fetch must use the mobile user agent, got %q", ua)
			}
			body := `<html><body><video src="https://video.fbcdn.net/v/clip.mp4?x=1"></video></body></html>`
			return htmlResponse(req, http.StatusOK, body), nil
		default:
			t.Errorf("unexpected request to %s", req.URL)
			return htmlResponse(req, http.StatusNotFound, ""), nil
		}
	})

	got, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://video.fbcdn.net/v/clip.mp4?x=1" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveRegexTierDecodesEscapes(t *testing.T) {
	desktop := `<script>
		{"playable_url_quality_hd":"https:\/\/video.fbcdn.net\/v\/hd.mp4?a=1&2=b"}
	</script>`
	var desktopFetches int
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Host {
		case "fdown.net":
			return htmlResponse(req, http.StatusOK, "<html></html>"), nil
		case "mbasic.facebook.com":
			return htmlResponse(req, http.StatusOK, "<html></html>"), nil
		case "www.facebook.com":
			desktopFetches++
			return htmlResponse(req, http.StatusOK, desktop), nil
		default:
			t.Errorf("unexpected request to %s", req.URL)
			return htmlResponse(req, http.StatusNotFound, ""), nil
		}
	})

	got, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://video.fbcdn.net/v/hd.mp4?a=1&2=b" {
		t.Errorf("Resolve() = %q, want decoded fbcdn URL", got)
	}
	if desktopFetches != 1 {
		t.Errorf("desktop page fetched %d times, want 1", desktopFetches)
	}
}

func TestResolveEmbeddedJSONTier(t *testing.T) {
	desktop := `<script>
		{"videoDeliveryLegacyFields": {"browser_native_sd_url":"https://video.fbcdn.net/v/sd.mp4","other":1}}
	</script>`
	var desktopFetches int
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Host {
		case "fdown.net", "mbasic.facebook.com":
			return htmlResponse(req, http.StatusOK, "<html></html>"), nil
		case "www.facebook.com":
			desktopFetches++
			return htmlResponse(req, http.StatusOK, desktop), nil
		default:
			t.Errorf("unexpected request to %s", req.URL)
			return htmlResponse(req, http.StatusNotFound, ""), nil
		}
	})

	got, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://video.fbcdn.net/v/sd.mp4" {
		t.Errorf("Resolve() = %q", got)
	}
	if desktopFetches != 1 {
		t.Errorf("desktop page fetched %d times, want a single shared fetch", desktopFetches)
	}
}

func TestResolveExhausted(t *testing.T) {
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		return htmlResponse(req, http.StatusOK, "<html><body>nothing here</body></html>"), nil
	})

	_, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
}

func TestResolveTierErrorFallsThrough(t *testing.T) {
	chain := newTestChain(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "fdown.net" {
			return nil, errors.New("connection refused")
		}
		if req.URL.Host == "mbasic.facebook.com" {
			body := `<html><body><a href="https://video.fbcdn.net/v/clip.mp4">download</a></body></html>`
			return htmlResponse(req, http.StatusOK, body), nil
		}
		return htmlResponse(req, http.StatusOK, "<html></html>"), nil
	})

	got, err := chain.Resolve("https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://video.fbcdn.net/v/clip.mp4" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestExtractByPatternsPriority(t *testing.T) {
	html := `sd_src:"https://video.fbcdn.net/v/sd.mp4" "browser_native_hd_url":"https:\/\/video.fbcdn.net\/v\/hd.mp4"`
	if got := extractByPatterns(html); got != "https://video.fbcdn.net/v/hd.mp4" {
		t.Errorf("extractByPatterns() = %q, want the HD field", got)
	}
}

func TestExtractByPatternsRejectsInvalid(t *testing.T) {
	html := `"playable_url":"not-a-url"`
	if got := extractByPatterns(html); got != "" {
		t.Errorf("extractByPatterns() = %q, want empty", got)
	}
}

func TestDecodeEscapes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`https:\/\/a.com\/b`, "https://a.com/b"},
		{`a&b=1`, "a&b=1"},
		{"x&amp;y", "x&y"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := decodeEscapes(tt.in); got != tt.want {
			t.Errorf("decodeEscapes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToDesktopURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://m.facebook.com/watch/?v=1", "https://www.facebook.com/watch/?v=1"},
		{"https://mbasic.facebook.com/watch/?v=1", "https://www.facebook.com/watch/?v=1"},
		{"https://www.facebook.com/watch/?v=1", "https://www.facebook.com/watch/?v=1"},
	}
	for _, tt := range tests {
		if got := toDesktopURL(tt.in); got != tt.want {
			t.Errorf("toDesktopURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
