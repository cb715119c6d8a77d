package media

import "testing"

func TestQualityHeight(t *testing.T) {
	tests := []struct {
		q    Quality
		want string
	}{
		{Q1080, "1080"},
		{Q720, "720"},
		{Q480, "480"},
		{Q360, "360"},
	}
	for _, tt := range tests {
		if got := tt.q.Height(); got != tt.want {
			t.Errorf("%v.Height() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestQualityValid(t *testing.T) {
	if !Q720.Valid() {
		t.Error("720p must be valid")
	}
	if Quality("4k").Valid() {
		t.Error("4k must be invalid")
	}
}

func TestAudioFormatValid(t *testing.T) {
	for _, f := range []AudioFormat{MP3, M4A, Opus} {
		if !f.Valid() {
			t.Errorf("%v must be valid", f)
		}
	}
	if AudioFormat("flac").Valid() {
		t.Error("flac must be invalid")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.VideoQuality != Q1080 || s.AudioFormat != MP3 || s.AutoThumbnail {
		t.Errorf("defaults = %+v", s)
	}
}
