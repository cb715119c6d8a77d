package retriever

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"grabbit/internal/media"
	"grabbit/internal/platform"
	"grabbit/internal/profile"
)

type stubDownloader struct {
	calls int
	opts  *profile.Options
	err   error

	// written, when set, is created on disk to simulate extractor output.
	written string
}

func (s *stubDownloader) Download(_ context.Context, _ string, opts *profile.Options) error {
	s.calls++
	s.opts = opts
	if s.err == nil && s.written != "" {
		if err := os.WriteFile(s.written, []byte("media"), 0o644); err != nil {
			return err
		}
	}
	return s.err
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		tag     platform.Tag
		quality media.Quality
		want    string
	}{
		{platform.TikTok, media.Q720, "best[height<=720]/best"},
		{platform.Facebook, media.Q1080, "best[height<=1080]/best"},
		{platform.YouTube, media.Q720,
			"bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best"},
		{platform.Instagram, media.Q480,
			"bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best"},
	}

	for _, tt := range tests {
		if got := FormatSelector(tt.tag, tt.quality); got != tt.want {
			t.Errorf("FormatSelector(%v, %v) = %q, want %q", tt.tag, tt.quality, got, tt.want)
		}
	}
}

func TestDownloadVideoViaExtractor(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip.mp4")
	dl := &stubDownloader{written: out}
	r := New(dl, nil, testLogger())

	got, err := r.DownloadVideo(context.Background(), "https://youtu.be/abc", media.Q720, out, "")
	if err != nil {
		t.Fatalf("DownloadVideo returned error: %v", err)
	}
	if got != out {
		t.Errorf("path = %q, want %q", got, out)
	}
	if dl.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", dl.calls)
	}
	if dl.opts.Format != FormatSelector(platform.YouTube, media.Q720) {
		t.Errorf("format = %q", dl.opts.Format)
	}
	if dl.opts.OutputPath != out {
		t.Errorf("output path = %q", dl.opts.OutputPath)
	}
}

func TestDownloadVideoDirectBypassesExtractor(t *testing.T) {
	payload := []byte("fake video bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dl := &stubDownloader{}
	r := New(dl, srv.Client(), testLogger())

	dir := t.TempDir()
	out := filepath.Join(dir, "clip.webm")

	got, err := r.DownloadVideo(context.Background(), "https://www.facebook.com/watch/?v=1", media.Q720, out, srv.URL+"/v/clip.mp4")
	if err != nil {
		t.Fatalf("DownloadVideo returned error: %v", err)
	}
	if dl.calls != 0 {
		t.Error("direct download must not touch the extractor")
	}
	if filepath.Ext(got) != ".mp4" {
		t.Errorf("direct download path = %q, want .mp4 extension", got)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("file contents = %q", data)
	}
}

func TestDownloadVideoDirectNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	r := New(&stubDownloader{}, srv.Client(), testLogger())
	out := filepath.Join(t.TempDir(), "clip.mp4")

	if _, err := r.DownloadVideo(context.Background(), "https://www.facebook.com/x", media.Q720, out, srv.URL); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no file may be left behind on a failed direct download")
	}
}

func TestDownloadAudioRewritesExtension(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "track.mp4")
	dl := &stubDownloader{written: filepath.Join(dir, "track.mp3")}
	r := New(dl, nil, testLogger())

	got, err := r.DownloadAudio(context.Background(), "https://youtu.be/abc", media.MP3, out)
	if err != nil {
		t.Fatalf("DownloadAudio returned error: %v", err)
	}
	if got != filepath.Join(dir, "track.mp3") {
		t.Errorf("path = %q", got)
	}
	if !dl.opts.ExtractAudio || dl.opts.AudioFormat != "mp3" || dl.opts.AudioQuality != "192" {
		t.Errorf("audio options = %+v", dl.opts)
	}
}

func TestDownloadAudioKeepsOriginalWhenNoTranscode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "track.mp4")
	dl := &stubDownloader{written: out}
	r := New(dl, nil, testLogger())

	got, err := r.DownloadAudio(context.Background(), "https://youtu.be/abc", media.M4A, out)
	if err != nil {
		t.Fatalf("DownloadAudio returned error: %v", err)
	}
	if got != out {
		t.Errorf("path = %q, want %q", got, out)
	}
}

func TestDownloadVideoCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl := &stubDownloader{err: io.ErrUnexpectedEOF}
	r := New(dl, nil, testLogger())

	if _, err := r.DownloadVideo(context.Background(), "https://youtu.be/abc", media.Q720, out, ""); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("partial file must be removed on failure")
	}
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"/tmp/a.webm", ".mp4", "/tmp/a.mp4"},
		{"/tmp/a", ".mp4", "/tmp/a.mp4"},
		{"/tmp/a.b.c", ".mp3", "/tmp/a.b.mp3"},
	}
	for _, tt := range tests {
		if got := replaceExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("replaceExt(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}
