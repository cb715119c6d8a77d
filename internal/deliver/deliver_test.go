package deliver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"grabbit/internal/media"
)

type stubTransport struct {
	videos int
	audios int
	err    error
}

func (s *stubTransport) SendVideo(context.Context, int64, string, string) error {
	s.videos++
	return s.err
}

func (s *stubTransport) SendAudio(context.Context, int64, string, string, string) error {
	s.audios++
	return s.err
}

type stubRecorder struct {
	records []media.Record
	err     error
}

func (s *stubRecorder) RecordDownload(rec media.Record) error {
	s.records = append(s.records, rec)
	return s.err
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeliverSmallFileUsesStandard(t *testing.T) {
	std, large := &stubTransport{}, &stubTransport{}
	rec := &stubRecorder{}
	router := New(std, large, rec, 0, 0, testLogger())
	path := tempFile(t)

	req := Request{
		ChatID: 7,
		Path:   path,
		Size:   1024,
		Type:   media.TypeVideo,
		Record: media.Record{UserID: 7, Platform: "YouTube"},
	}
	if err := router.Deliver(context.Background(), req); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if std.videos != 1 || large.videos != 0 {
		t.Errorf("videos: standard=%d large=%d", std.videos, large.videos)
	}
	if len(rec.records) != 1 {
		t.Errorf("records = %d, want 1", len(rec.records))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file must be removed after delivery")
	}
}

func TestDeliverAtThresholdUsesLarge(t *testing.T) {
	std, large := &stubTransport{}, &stubTransport{}
	router := New(std, large, nil, 0, 0, testLogger())

	req := Request{Path: tempFile(t), Size: DefaultThreshold, Type: media.TypeVideo}
	if err := router.Deliver(context.Background(), req); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if large.videos != 1 || std.videos != 0 {
		t.Errorf("a file at exactly the threshold must route large: standard=%d large=%d",
			std.videos, large.videos)
	}
}

func TestDeliverLargeUnavailable(t *testing.T) {
	std := &stubTransport{}
	router := New(std, nil, nil, 0, 0, testLogger())
	path := tempFile(t)

	req := Request{Path: path, Size: DefaultThreshold + 1, Type: media.TypeVideo}
	err := router.Deliver(context.Background(), req)
	if !errors.Is(err, ErrLargeUnavailable) {
		t.Errorf("error = %v, want ErrLargeUnavailable", err)
	}
	if std.videos != 0 {
		t.Error("standard transport must not be asked to carry an oversized file")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file must be removed even when no transport can carry it")
	}
}

func TestDeliverOverHardCap(t *testing.T) {
	std, large := &stubTransport{}, &stubTransport{}
	rec := &stubRecorder{}
	router := New(std, large, rec, 0, 0, testLogger())
	path := tempFile(t)

	req := Request{Path: path, Size: DefaultHardCap + 1, Type: media.TypeVideo}
	err := router.Deliver(context.Background(), req)

	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("error = %v, want *TooLargeError", err)
	}
	if tooLarge.Size != DefaultHardCap+1 {
		t.Errorf("reported size = %d", tooLarge.Size)
	}
	if std.videos != 0 || large.videos != 0 {
		t.Error("neither transport may be touched above the hard cap")
	}
	if len(rec.records) != 0 {
		t.Error("no record may be written above the hard cap")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file must be deleted above the hard cap")
	}
}

func TestDeliverAudioRoute(t *testing.T) {
	std := &stubTransport{}
	router := New(std, nil, nil, 0, 0, testLogger())

	req := Request{Path: tempFile(t), Size: 100, Type: media.TypeAudio, Title: "Song"}
	if err := router.Deliver(context.Background(), req); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if std.audios != 1 || std.videos != 0 {
		t.Errorf("audio route: audios=%d videos=%d", std.audios, std.videos)
	}
}

func TestDeliverUploadFailureStillCleansUp(t *testing.T) {
	std := &stubTransport{err: errors.New("network down")}
	rec := &stubRecorder{}
	router := New(std, nil, rec, 0, 0, testLogger())
	path := tempFile(t)

	req := Request{Path: path, Size: 100, Type: media.TypeVideo}
	if err := router.Deliver(context.Background(), req); err == nil {
		t.Fatal("expected an error")
	}
	if len(rec.records) != 0 {
		t.Error("no record may be written on a failed upload")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file must be removed after a failed upload")
	}
}

func TestDeliverRecorderFailureIsNotFatal(t *testing.T) {
	std := &stubTransport{}
	rec := &stubRecorder{err: errors.New("disk full")}
	router := New(std, nil, rec, 0, 0, testLogger())

	req := Request{Path: tempFile(t), Size: 100, Type: media.TypeVideo}
	if err := router.Deliver(context.Background(), req); err != nil {
		t.Errorf("a failed record write must not fail the delivery: %v", err)
	}
}

func TestLargeAvailable(t *testing.T) {
	if New(&stubTransport{}, nil, nil, 0, 0, testLogger()).LargeAvailable() {
		t.Error("LargeAvailable() = true without a high-capacity transport")
	}
	if !New(&stubTransport{}, &stubTransport{}, nil, 0, 0, testLogger()).LargeAvailable() {
		t.Error("LargeAvailable() = false with a high-capacity transport")
	}
}
