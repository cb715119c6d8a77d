// Package ytdlp shells out to the yt-dlp binary for metadata extraction
// and media downloads. Commands are built with explicit argument slices;
// nothing user-supplied is shell-interpreted.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"grabbit/internal/profile"
)

// versionTimeout bounds the version-check subprocess; a hung binary must
// not stall startup.
const versionTimeout = 15 * time.Second

// updateTimeout bounds the self-update subprocess, which may download a
// new release.
const updateTimeout = 2 * time.Minute

// Client invokes a yt-dlp binary.
type Client struct {
	bin string
}

// New locates yt-dlp in PATH. An explicit path overrides the lookup.
func New(binPath string) (*Client, error) {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	resolved, err := exec.LookPath(binPath)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found in PATH: %w", err)
	}
	return &Client{bin: resolved}, nil
}

// Metadata is the subset of yt-dlp's JSON output the resolver consumes.
type Metadata struct {
	Title     string      `json:"title"`
	Uploader  string      `json:"uploader"`
	Duration  float64     `json:"duration"`
	Thumbnail string      `json:"thumbnail"`
	Thumbs    []Thumbnail `json:"thumbnails"`
}

// Thumbnail is one entry of the thumbnails list; the last entry is the
// highest-resolution one.
type Thumbnail struct {
	URL string `json:"url"`
}

// BestThumbnail returns the preferred thumbnail URL, or "" when none exists.
func (m *Metadata) BestThumbnail() string {
	if m.Thumbnail != "" {
		return m.Thumbnail
	}
	if n := len(m.Thumbs); n > 0 {
		return m.Thumbs[n-1].URL
	}
	return ""
}

// ExtractInfo runs yt-dlp in info-only mode and parses the resulting JSON.
// The raw yt-dlp error text is preserved in the returned error so callers
// can classify it.
func (c *Client) ExtractInfo(ctx context.Context, url string, opts *profile.Options) (*Metadata, error) {
	args := append([]string{"-J", "--no-playlist", "--no-warnings", "--no-color"}, optionArgs(opts)...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extracting info: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp output: %w", err)
	}
	return &meta, nil
}

// Download runs yt-dlp with download-phase options merged in. The output
// path, format selector, and container come from opts.
func (c *Client) Download(ctx context.Context, url string, opts *profile.Options) error {
	args := append([]string{"--no-playlist", "--no-warnings", "--no-color"}, optionArgs(opts)...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("downloading: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Version reports the yt-dlp binary version, bounded by a hard timeout.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("checking yt-dlp version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Update runs the binary's self-updater and returns its output. Already
// up to date is not an error; yt-dlp reports it on stdout and exits zero.
func (c *Client) Update(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.bin, "-U").CombinedOutput()
	msg := strings.TrimSpace(string(out))
	if err != nil {
		return "", fmt.Errorf("updating yt-dlp: %s: %w", msg, err)
	}
	return msg, nil
}

// optionArgs translates a profile.Options bundle into yt-dlp CLI flags.
func optionArgs(o *profile.Options) []string {
	var args []string

	if ua, ok := o.Headers["User-Agent"]; ok {
		args = append(args, "--user-agent", ua)
	}
	for _, name := range sortedKeys(o.Headers) {
		if name == "User-Agent" {
			continue
		}
		args = append(args, "--add-header", name+":"+o.Headers[name])
	}

	if o.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(o.SocketTimeout.Seconds())))
	}
	if o.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(o.Retries))
	}
	if o.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(o.FragmentRetries))
	}
	if o.ExponentialBackoff {
		args = append(args, "--retry-sleep", "http:exp")
	}
	if !o.CheckCertificate {
		args = append(args, "--no-check-certificates")
	}
	if o.GeoBypass {
		args = append(args, "--geo-bypass")
	}

	for _, extractor := range sortedKeys(o.ExtractorArgs) {
		extArgs := o.ExtractorArgs[extractor]
		var parts []string
		for _, key := range sortedKeys(extArgs) {
			parts = append(parts, key+"="+strings.Join(extArgs[key], ","))
		}
		args = append(args, "--extractor-args", extractor+":"+strings.Join(parts, ";"))
	}

	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}
	if o.OutputPath != "" {
		args = append(args, "-o", o.OutputPath)
	}
	if o.MergeFormat != "" {
		args = append(args, "--merge-output-format", o.MergeFormat)
	}
	if o.ExtractAudio {
		args = append(args, "-x", "--audio-format", o.AudioFormat, "--audio-quality", o.AudioQuality)
	}

	return args
}

// sortedKeys keeps flag order deterministic for logging and tests.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
