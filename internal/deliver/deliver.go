// Package deliver routes completed downloads to the right upload transport
// by file size and guarantees local cleanup.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"grabbit/internal/media"
)

// Default size policy. The standard Bot API transport rejects uploads at
// 50 MiB; the absolute ceiling matches the high-capacity transport's limit.
const (
	DefaultThreshold = 50 * 1024 * 1024
	DefaultHardCap   = 2 * 1024 * 1024 * 1024
)

// ErrLargeUnavailable is returned when a file needs the high-capacity
// transport but none was configured. This is a hard failure; the standard
// transport cannot carry files this large.
var ErrLargeUnavailable = errors.New("file exceeds the standard upload limit and no high-capacity uploader is configured")

// TooLargeError reports a file over the absolute hard cap.
type TooLargeError struct {
	Size    int64
	HardCap int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file is too large (%s), maximum size is %s",
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.HardCap)))
}

// Transport uploads a local file to a chat.
type Transport interface {
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
	SendAudio(ctx context.Context, chatID int64, path, title, caption string) error
}

// Recorder persists a completed-download event.
type Recorder interface {
	RecordDownload(rec media.Record) error
}

// Request describes one delivery.
type Request struct {
	ChatID  int64
	Path    string
	Size    int64
	Type    media.DownloadType
	Title   string
	Caption string
	Record  media.Record
}

// Router selects an upload transport by file size.
type Router struct {
	standard  Transport
	large     Transport // nil when the high-capacity uploader is absent
	recorder  Recorder
	threshold int64
	hardCap   int64
	log       logrus.FieldLogger
}

// New builds a router. large may be nil. Zero threshold/hardCap select the
// defaults.
func New(standard, large Transport, recorder Recorder, threshold, hardCap int64, log logrus.FieldLogger) *Router {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	return &Router{
		standard:  standard,
		large:     large,
		recorder:  recorder,
		threshold: threshold,
		hardCap:   hardCap,
		log:       log,
	}
}

// LargeAvailable reports whether the high-capacity transport is configured.
func (r *Router) LargeAvailable() bool { return r.large != nil }

// Deliver uploads the file and always removes it afterwards, whether the
// upload succeeded or not. Files over the hard cap are deleted without
// touching either transport. The download record is written on success
// only.
func (r *Router) Deliver(ctx context.Context, req Request) error {
	if req.Size > r.hardCap {
		r.cleanup(req.Path)
		return &TooLargeError{Size: req.Size, HardCap: r.hardCap}
	}

	defer r.cleanup(req.Path)

	transport := r.standard
	if req.Size >= r.threshold {
		if r.large == nil {
			return ErrLargeUnavailable
		}
		transport = r.large
		r.log.WithField("size", humanize.IBytes(uint64(req.Size))).
			Info("routing through high-capacity uploader")
	}

	var err error
	switch req.Type {
	case media.TypeAudio:
		err = transport.SendAudio(ctx, req.ChatID, req.Path, req.Title, req.Caption)
	default:
		err = transport.SendVideo(ctx, req.ChatID, req.Path, req.Caption)
	}
	if err != nil {
		return fmt.Errorf("uploading %s: %w", req.Type, err)
	}

	if r.recorder != nil {
		if recErr := r.recorder.RecordDownload(req.Record); recErr != nil {
			// Statistics are fire-and-forget; a failed write never fails
			// the delivery.
			r.log.WithError(recErr).Warn("recording download failed")
		}
	}
	return nil
}

func (r *Router) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.WithError(err).WithField("path", path).Warn("removing local file failed")
	}
}
