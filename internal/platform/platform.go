// Package platform classifies media URLs into logical platform tags.
package platform

import "strings"

// Tag identifies the platform a URL belongs to.
type Tag int

const (
	YouTube Tag = iota
	Instagram
	TikTok
	Facebook
	Twitter
	Reddit
	Vimeo
	Other
)

func (t Tag) String() string {
	switch t {
	case YouTube:
		return "YouTube"
	case Instagram:
		return "Instagram"
	case TikTok:
		return "TikTok"
	case Facebook:
		return "Facebook"
	case Twitter:
		return "Twitter/X"
	case Reddit:
		return "Reddit"
	case Vimeo:
		return "Vimeo"
	default:
		return "Other"
	}
}

// patterns is checked in order; the first substring match wins.
var patterns = []struct {
	substr string
	tag    Tag
}{
	{"youtube.com", YouTube},
	{"youtu.be", YouTube},
	{"instagram.com", Instagram},
	{"tiktok.com", TikTok},
	{"facebook.com", Facebook},
	{"fb.watch", Facebook},
	{"twitter.com", Twitter},
	{"x.com", Twitter},
	{"reddit.com", Reddit},
	{"vimeo.com", Vimeo},
}

// Classify maps a URL to its platform tag by case-insensitive substring
// matching. URLs that match no known platform return Other.
func Classify(url string) Tag {
	lower := strings.ToLower(url)
	for _, p := range patterns {
		if strings.Contains(lower, p.substr) {
			return p.tag
		}
	}
	return Other
}

// Problematic reports whether the platform needs the relaxed download
// format selection used for sources that resist automated access.
func (t Tag) Problematic() bool {
	return t == TikTok || t == Facebook
}

// AutoDownload reports whether the platform skips the full quality menu
// and goes straight to a single download confirmation.
func (t Tag) AutoDownload() bool {
	switch t {
	case Facebook, Instagram, TikTok, Twitter, Reddit:
		return true
	}
	return false
}
