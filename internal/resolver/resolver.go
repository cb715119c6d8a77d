// Package resolver turns a media URL into metadata, classifying failures
// into actionable user-facing messages and falling back to the extraction
// chain for Facebook.
package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"grabbit/internal/media"
	"grabbit/internal/platform"
	"grabbit/internal/profile"
	"grabbit/internal/ytdlp"
)

// Extractor is the info-only surface of the extraction library.
type Extractor interface {
	ExtractInfo(ctx context.Context, url string, opts *profile.Options) (*ytdlp.Metadata, error)
}

// FallbackChain resolves a page URL into a direct media URL when the
// extractor fails.
type FallbackChain interface {
	Resolve(url string) (string, error)
}

// Error carries both the classified failure and the message shown to the
// user. It is never fatal to the process.
type Error struct {
	Kind        ErrorKind
	Platform    platform.Tag
	UserMessage string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMessage
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver performs a single metadata-resolution attempt plus one
// conditional fallback chain invocation.
type Resolver struct {
	extractor Extractor
	fallback  FallbackChain
	log       logrus.FieldLogger
}

// New constructs a resolver. The fallback chain may be nil, in which case
// Facebook failures surface directly.
func New(extractor Extractor, fb FallbackChain, log logrus.FieldLogger) *Resolver {
	return &Resolver{extractor: extractor, fallback: fb, log: log}
}

// Resolve fetches metadata for a URL without downloading. On failure the
// returned error is always a *Error with a user-facing message.
func (r *Resolver) Resolve(ctx context.Context, url string) (*media.Info, error) {
	tag := platform.Classify(url)
	opts := profile.Build(url)

	meta, err := r.extractor.ExtractInfo(ctx, url, opts)
	if err == nil {
		return &media.Info{
			Title:     meta.Title,
			Uploader:  meta.Uploader,
			Duration:  int(meta.Duration),
			Thumbnail: meta.BestThumbnail(),
		}, nil
	}

	kind := ClassifyError(err.Error())
	r.log.WithError(err).WithFields(logrus.Fields{
		"platform": tag.String(),
		"kind":     kind.String(),
	}).Error("metadata extraction failed")

	if tag == platform.Facebook && r.fallback != nil {
		if directURL, fbErr := r.fallback.Resolve(url); fbErr == nil {
			r.log.Info("facebook fallback chain succeeded")
			return &media.Info{
				Title:     "Facebook Video",
				DirectURL: directURL,
				Fallback:  true,
			}, nil
		} else {
			r.log.WithError(fbErr).Warn("facebook fallback chain exhausted")
		}
		return nil, &Error{
			Kind:        kind,
			Platform:    tag,
			UserMessage: facebookFailureMessage(kind, url),
			Err:         err,
		}
	}

	return nil, &Error{
		Kind:        kind,
		Platform:    tag,
		UserMessage: userMessage(kind, tag, err.Error()),
		Err:         err,
	}
}
