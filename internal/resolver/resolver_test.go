package resolver

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"grabbit/internal/profile"
	"grabbit/internal/ytdlp"
)

type stubExtractor struct {
	meta  *ytdlp.Metadata
	err   error
	calls int
	opts  *profile.Options
}

func (s *stubExtractor) ExtractInfo(_ context.Context, _ string, opts *profile.Options) (*ytdlp.Metadata, error) {
	s.calls++
	s.opts = opts
	return s.meta, s.err
}

type stubChain struct {
	url   string
	err   error
	calls int
}

func (s *stubChain) Resolve(string) (string, error) {
	s.calls++
	return s.url, s.err
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestResolveSuccess(t *testing.T) {
	ext := &stubExtractor{meta: &ytdlp.Metadata{
		Title:    "A Video",
		Uploader: "someone",
		Duration: 93.4,
		Thumbs:   []ytdlp.Thumbnail{{URL: "https://cdn/low.jpg"}, {URL: "https://cdn/high.jpg"}},
	}}
	chain := &stubChain{}
	r := New(ext, chain, testLogger())

	info, err := r.Resolve(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if info.Title != "A Video" || info.Uploader != "someone" {
		t.Errorf("info = %+v", info)
	}
	if info.Duration != 93 {
		t.Errorf("duration = %d, want 93", info.Duration)
	}
	if info.Thumbnail != "https://cdn/high.jpg" {
		t.Errorf("thumbnail = %q, want the last (highest resolution) entry", info.Thumbnail)
	}
	if info.Fallback || info.DirectURL != "" {
		t.Error("direct URL must be unset on normal extraction")
	}
	if chain.calls != 0 {
		t.Error("fallback chain must not run on success")
	}
}

func TestResolveNonFacebookFailureSkipsFallback(t *testing.T) {
	ext := &stubExtractor{err: errors.New("request timed out")}
	chain := &stubChain{url: "https://cdn/video.mp4"}
	r := New(ext, chain, testLogger())

	_, err := r.Resolve(context.Background(), "https://youtu.be/abc")
	if err == nil {
		t.Fatal("expected an error")
	}
	if chain.calls != 0 {
		t.Error("fallback chain must only run for Facebook URLs")
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Kind != KindTimeout {
		t.Errorf("kind = %v, want timeout", rerr.Kind)
	}
}

func TestResolveFacebookFallbackSuccess(t *testing.T) {
	ext := &stubExtractor{err: errors.New("Cannot parse data")}
	chain := &stubChain{url: "https://video.fbcdn.net/v/clip.mp4"}
	r := New(ext, chain, testLogger())

	info, err := r.Resolve(context.Background(), "https://www.facebook.com/watch/?v=1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if chain.calls != 1 {
		t.Fatalf("fallback chain calls = %d, want 1", chain.calls)
	}
	if !info.Fallback {
		t.Error("fallback flag must be set")
	}
	if info.DirectURL != "https://video.fbcdn.net/v/clip.mp4" {
		t.Errorf("direct URL = %q", info.DirectURL)
	}
	if info.Title != "Facebook Video" {
		t.Errorf("placeholder title = %q", info.Title)
	}
}

func TestResolveFacebookFallbackExhausted(t *testing.T) {
	ext := &stubExtractor{err: errors.New("Cannot parse data")}
	chain := &stubChain{err: errors.New("could not extract video using any method")}
	r := New(ext, chain, testLogger())

	_, err := r.Resolve(context.Background(), "https://www.facebook.com/watch/?v=1")
	if err == nil {
		t.Fatal("expected an error")
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !strings.Contains(rerr.UserMessage, "Alternative download links") {
		t.Error("exhausted fallback must list alternative downloaders")
	}
	if !strings.Contains(rerr.UserMessage, "fdown.net") {
		t.Error("alternatives must include FDown")
	}
	if !strings.Contains(rerr.UserMessage, "cannot parse video data") {
		t.Errorf("parse failures need the parse-specific message, got %q", rerr.UserMessage)
	}
}

func TestResolveTikTokConnectionReset(t *testing.T) {
	ext := &stubExtractor{err: errors.New("connection reset by peer (10054)")}
	r := New(ext, &stubChain{}, testLogger())

	_, err := r.Resolve(context.Background(), "https://vt.tiktok.com/abc123")
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !strings.Contains(rerr.UserMessage, "Error 10054") {
		t.Errorf("connection-reset message must name the blocking error, got %q", rerr.UserMessage)
	}

	// A timeout must read differently from a block.
	ext.err = errors.New("request timed out")
	_, err = r.Resolve(context.Background(), "https://vt.tiktok.com/abc123")
	errors.As(err, &rerr)
	if strings.Contains(rerr.UserMessage, "Error 10054") {
		t.Error("timeout message must be distinct from the connection-reset message")
	}
	if !strings.Contains(rerr.UserMessage, "timeout") {
		t.Errorf("timeout message = %q", rerr.UserMessage)
	}
}

func TestResolveUsesTikTokProfile(t *testing.T) {
	ext := &stubExtractor{meta: &ytdlp.Metadata{Title: "t"}}
	r := New(ext, nil, testLogger())

	if _, err := r.Resolve(context.Background(), "https://vt.tiktok.com/abc123"); err != nil {
		t.Fatal(err)
	}
	if ext.opts == nil || ext.opts.Retries != 10 || !ext.opts.ExponentialBackoff {
		t.Errorf("resolver must pass the TikTok retry profile, got %+v", ext.opts)
	}
}
