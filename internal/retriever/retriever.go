// Package retriever downloads resolved media, either through the
// extraction library or, when the fallback chain already produced a direct
// URL, via a plain streamed HTTP fetch.
package retriever

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"grabbit/internal/httputil"
	"grabbit/internal/media"
	"grabbit/internal/platform"
	"grabbit/internal/profile"
)

// copyBufSize is the chunk size for direct streamed downloads.
const copyBufSize = 8192

// Downloader is the download surface of the extraction library.
type Downloader interface {
	Download(ctx context.Context, url string, opts *profile.Options) error
}

// Retriever fetches media files to the local disk.
type Retriever struct {
	extractor Downloader
	client    *http.Client
	log       logrus.FieldLogger
}

// New constructs a retriever. A nil client gets a hardened default with a
// generous timeout, since direct downloads can be large.
func New(extractor Downloader, client *http.Client, log logrus.FieldLogger) *Retriever {
	if client == nil {
		client = httputil.NewClient(30 * time.Minute)
	}
	return &Retriever{extractor: extractor, client: client, log: log}
}

// FormatSelector builds the extractor's format filter expression for a
// quality ceiling. Problematic platforms get a permissive expression; the
// rest get the strict mp4+m4a ladder ending in "best".
func FormatSelector(tag platform.Tag, quality media.Quality) string {
	h := quality.Height()
	if tag.Problematic() {
		return fmt.Sprintf("best[height<=%s]/best", h)
	}
	return fmt.Sprintf(
		"bestvideo[height<=%s][ext=mp4]+bestaudio[ext=m4a]/best[height<=%s][ext=mp4]/best",
		h, h)
}

// DownloadVideo fetches a video at or below the requested quality. When
// directURL is non-empty the extraction library is bypassed entirely and
// the returned path always ends in .mp4; no quality negotiation is
// possible on that path since the fallback already committed to one
// rendition.
func (r *Retriever) DownloadVideo(ctx context.Context, url string, quality media.Quality, outputPath, directURL string) (string, error) {
	if directURL != "" {
		return r.downloadDirect(ctx, directURL, outputPath)
	}

	tag := platform.Classify(url)
	opts := profile.Build(url).ForVideoDownload(FormatSelector(tag, quality), outputPath)

	if err := r.extractor.Download(ctx, url, opts); err != nil {
		r.log.WithError(err).WithField("url", url).Error("video download failed")
		removePartial(outputPath)
		return "", fmt.Errorf("downloading video: %w", err)
	}
	return outputPath, nil
}

// DownloadAudio fetches the best audio-only stream and transcodes it to the
// requested format. The extractor rewrites the extension, so the returned
// path differs from outputPath.
func (r *Retriever) DownloadAudio(ctx context.Context, url string, format media.AudioFormat, outputPath string) (string, error) {
	opts := profile.Build(url).ForAudioDownload(string(format), outputPath)

	if err := r.extractor.Download(ctx, url, opts); err != nil {
		r.log.WithError(err).WithField("url", url).Error("audio download failed")
		removePartial(outputPath)
		return "", fmt.Errorf("downloading audio: %w", err)
	}

	audioPath := replaceExt(outputPath, "."+string(format))
	if _, err := os.Stat(audioPath); err != nil {
		// Some extractors keep the original extension when no transcode
		// was needed.
		if _, statErr := os.Stat(outputPath); statErr == nil {
			return outputPath, nil
		}
		return "", fmt.Errorf("audio file not found after download: %w", err)
	}
	return audioPath, nil
}

// downloadDirect streams a resolved media URL straight to disk in fixed
// size chunks with generic browser headers.
func (r *Retriever) downloadDirect(ctx context.Context, directURL, outputPath string) (string, error) {
	outputPath = replaceExt(outputPath, ".mp4")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httputil.DesktopUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("direct download: unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		f.Close()
		removePartial(outputPath)
		return "", fmt.Errorf("writing output file: %w", err)
	}
	if err := f.Close(); err != nil {
		removePartial(outputPath)
		return "", fmt.Errorf("closing output file: %w", err)
	}

	r.log.WithField("path", outputPath).Info("direct download complete")
	return outputPath, nil
}

// replaceExt swaps the extension of path for ext (which includes the dot).
func replaceExt(path, ext string) string {
	if old := filepath.Ext(path); old != "" {
		path = strings.TrimSuffix(path, old)
	}
	return path + ext
}

// removePartial deletes a partially written download, best effort.
func removePartial(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
