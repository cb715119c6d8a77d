package resolver

import (
	"fmt"
	"strings"

	"grabbit/internal/platform"
)

// Alternative is an external downloader a user can fall back to manually.
type Alternative struct {
	Name string
	URL  string
}

// facebookAlternatives are suggested when every extraction tier failed.
func facebookAlternatives(pageURL string) []Alternative {
	return []Alternative{
		{"FDown", "https://fdown.net/download.php?url=" + pageURL},
		{"GetFBStuff", "https://getfbstuff.com/download?url=" + pageURL},
		{"SaveFrom", "https://en.savefrom.net/1-facebook-video-downloader-3/"},
	}
}

func formatAlternatives(alts []Alternative) string {
	var b strings.Builder
	b.WriteString("\n\nAlternative download links:\n")
	for _, a := range alts {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.URL)
	}
	return b.String()
}

// maxRawError bounds how much raw extractor text makes it into a generic
// user-facing message.
const maxRawError = 150

// userMessage renders a user-facing explanation for a classified failure.
// TikTok and Facebook get platform-specific wording because their failure
// modes confuse users the most.
func userMessage(kind ErrorKind, tag platform.Tag, rawErr string) string {
	if tag == platform.TikTok {
		switch kind {
		case KindTimeout:
			return "TikTok connection timeout (server too slow).\n\n" +
				"Try again in a few seconds - the bot retries automatically " +
				"(10 attempts with backoff). Make sure the video is public " +
				"and not age-restricted.\n\n" +
				"Technical: TikTok's CDN is experiencing delays. This is a " +
				"TikTok server issue, not a bot issue."
		case KindConnectionReset:
			return "TikTok blocked the connection (Error 10054).\n\n" +
				"TikTok is actively blocking automated downloads. Wait 2-5 " +
				"minutes and try again, make sure the video is PUBLIC, and " +
				"copy the link from the TikTok app rather than a browser.\n\n" +
				"Technical: TikTok detected automated access and forcibly " +
				"closed the connection. This is anti-bot protection, not a bug."
		case KindGeneric:
			if strings.Contains(strings.ToLower(rawErr), "redirect") ||
				strings.Contains(strings.ToLower(rawErr), "extract") {
				return "TikTok download failed.\n\n" +
					"Make sure the video is public, copy the link directly " +
					"from the TikTok app via the share button, and avoid " +
					"shortened links."
			}
		}
	}

	switch kind {
	case KindParse:
		return "Cannot parse this video. The platform may have updated " +
			"their system.\n\nTry a different video from the same platform " +
			"and report to the admin if the issue persists."
	case KindAgeRestricted:
		return "This content is age-restricted or private. Only public, " +
			"non-age-restricted posts can be downloaded."
	case KindPrivate:
		return "This content is private and cannot be downloaded."
	case KindLoginRequired:
		return "This content requires login. Use a public post that is " +
			"available to everyone."
	case KindNotFound:
		return "Content not found. The video may have been deleted or the " +
			"link is incorrect."
	case KindGeoRestricted:
		return "This video is geo-restricted (not available in your region)."
	case KindTimeout:
		return "The request timed out. Please try again in a moment."
	}

	if len(rawErr) > maxRawError {
		rawErr = rawErr[:maxRawError]
	}
	return fmt.Sprintf("Could not retrieve video from %s.\n\nError: %s\n\n"+
		"Make sure the video is public and the URL is correct.", tag, rawErr)
}

// facebookFailureMessage builds the last-resort Facebook message shown when
// both the extractor and the fallback chain came up empty.
func facebookFailureMessage(kind ErrorKind, pageURL string) string {
	alts := formatAlternatives(facebookAlternatives(pageURL))

	if kind == KindParse {
		return "Facebook download failed - cannot parse video data.\n\n" +
			"Facebook frequently changes their system, making downloads " +
			"difficult. Make sure the video is PUBLIC (not friends-only) " +
			"and use a desktop facebook.com link." + alts +
			"\nNote: Facebook intentionally blocks automated downloads."
	}
	return "Facebook download failed.\n\n" +
		"Ensure the video is PUBLIC (not friends-only), use a full " +
		"facebook.com URL, and check that it is not age-restricted." + alts +
		"\nTry the alternative links above or download manually from a browser."
}
