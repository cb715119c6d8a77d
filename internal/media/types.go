// Package media defines shared types for the grabbit application.
package media

// Quality is a requested video rendition ceiling.
type Quality string

const (
	Q1080 Quality = "1080p"
	Q720  Quality = "720p"
	Q480  Quality = "480p"
	Q360  Quality = "360p"
)

// Height returns the vertical resolution digits for the quality, e.g. "1080".
func (q Quality) Height() string {
	s := string(q)
	if len(s) > 0 && s[len(s)-1] == 'p' {
		return s[:len(s)-1]
	}
	return s
}

// Valid reports whether q is one of the supported qualities.
func (q Quality) Valid() bool {
	switch q {
	case Q1080, Q720, Q480, Q360:
		return true
	}
	return false
}

// AudioFormat is a requested audio container/codec.
type AudioFormat string

const (
	MP3  AudioFormat = "mp3"
	M4A  AudioFormat = "m4a"
	Opus AudioFormat = "opus"
)

// Valid reports whether f is one of the supported audio formats.
func (f AudioFormat) Valid() bool {
	switch f {
	case MP3, M4A, Opus:
		return true
	}
	return false
}

// Info is the result of metadata resolution.
type Info struct {
	Title     string
	Uploader  string
	Duration  int    // seconds, 0 if unknown
	Thumbnail string // optional

	// DirectURL is set only when extraction went through the fallback
	// chain; it points at the media resource itself, not the host page.
	DirectURL string
	Fallback  bool
}

// DownloadType distinguishes video from audio downloads in records.
type DownloadType string

const (
	TypeVideo DownloadType = "video"
	TypeAudio DownloadType = "audio"
)

// Record is a completed-download event persisted after delivery.
type Record struct {
	UserID   int64
	Type     DownloadType
	Platform string
	URL      string
	Title    string
}

// Settings are the per-user preferences consulted by the bot.
type Settings struct {
	VideoQuality  Quality
	AudioFormat   AudioFormat
	AutoThumbnail bool
}

// DefaultSettings returns the settings used for users with no saved row.
func DefaultSettings() Settings {
	return Settings{
		VideoQuality:  Q1080,
		AudioFormat:   MP3,
		AutoThumbnail: false,
	}
}
