package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grabbit/internal/httputil"
	"grabbit/internal/platform"
	"grabbit/internal/resolver"
)

// handleURL runs one URL-handling transaction up to the point where the
// user picks a quality: track, gate, classify, resolve, offer choices.
func (b *Bot) handleURL(ctx context.Context, msg *tgbotapi.Message) {
	if b.trackUser(msg) {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	// Admins bypass rate limits.
	if !b.isAdmin(userID) {
		if allowed, wait := b.limiter.Allow(userID); !allowed {
			b.reply(chatID, fmt.Sprintf(
				"Please wait %d seconds before downloading again.",
				int(wait.Seconds())+1))
			return
		}
	}

	url := strings.TrimSpace(urlPattern.FindString(msg.Text))
	if err := httputil.ValidateURL(url); err != nil {
		b.reply(chatID, "Invalid or unsafe URL. Make sure the link is from "+
			"a supported platform and publicly accessible.")
		b.log.WithError(err).WithField("user", userID).Warn("blocked unsafe URL")
		return
	}

	tag := platform.Classify(url)
	status, err := b.api.Send(tgbotapi.NewMessage(chatID,
		fmt.Sprintf("Analyzing the link from %s...", tag)))
	if err != nil {
		b.log.WithError(err).Warn("sending status message failed")
		return
	}

	info, err := b.resolver.Resolve(ctx, url)
	if err != nil {
		text := "Could not retrieve video information. Please check the URL and try again."
		var rerr *resolver.Error
		if errors.As(err, &rerr) {
			text = rerr.UserMessage
		}
		b.editText(chatID, status.MessageID, text)
		return
	}

	b.setSession(chatID, &session{
		URL:       url,
		Platform:  tag,
		Title:     info.Title,
		Uploader:  info.Uploader,
		Duration:  info.Duration,
		Thumbnail: info.Thumbnail,
		DirectURL: info.DirectURL,
	})

	caption := foundCaption(info.Title, info.Uploader, info.Duration)
	keyboard := b.keyboardFor(tag)

	// Prefer a thumbnail preview; fall back to plain text when the photo
	// send fails or no thumbnail was resolved.
	if info.Thumbnail != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(info.Thumbnail))
		photo.Caption = caption
		photo.ReplyMarkup = &keyboard
		if _, err := b.api.Send(photo); err == nil {
			b.deleteMessage(chatID, status.MessageID)
			return
		}
		b.log.Warn("sending thumbnail failed, falling back to text")
	}

	edit := tgbotapi.NewEditMessageText(chatID, status.MessageID, caption)
	edit.ReplyMarkup = &keyboard
	if _, err := b.api.Send(edit); err != nil {
		b.log.WithError(err).Warn("editing status message failed")
	}
}

// keyboardFor builds the quality menu: social platforms auto-download at
// 1080p with a single confirmation, YouTube/Vimeo get the full menu.
func (b *Bot) keyboardFor(tag platform.Tag) tgbotapi.InlineKeyboardMarkup {
	if tag.AutoDownload() {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Download Video", "video_1080p"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Download Audio (MP3)", "audio_mp3"),
			),
		)
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1080p", "video_1080p"),
			tgbotapi.NewInlineKeyboardButtonData("720p", "video_720p"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("480p", "video_480p"),
			tgbotapi.NewInlineKeyboardButtonData("360p", "video_360p"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Audio (MP3)", "audio_mp3"),
			tgbotapi.NewInlineKeyboardButtonData("Audio (M4A)", "audio_m4a"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Thumbnail", "get_thumbnail"),
		),
	)
}

func foundCaption(title, uploader string, duration int) string {
	if title == "" {
		title = "Unknown"
	}
	if uploader == "" {
		uploader = "Unknown"
	}
	title = truncate(title, 100)

	durationStr := "Unknown"
	if duration > 0 {
		durationStr = fmt.Sprintf("%d:%02d", duration/60, duration%60)
	}

	return fmt.Sprintf("Video found!\n\nTitle: %s\nUploader: %s\nDuration: %s\n\nSelect download option:",
		title, uploader, durationStr)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.log.WithError(err).Warn("editing message failed")
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.WithError(err).Warn("deleting message failed")
	}
}
