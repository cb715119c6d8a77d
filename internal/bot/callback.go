package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"grabbit/internal/deliver"
	"grabbit/internal/httputil"
	"grabbit/internal/media"
)

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Callback queries arrive without a message when the originating
	// message is too old or inaccessible; nothing can be edited then.
	if query.Message == nil {
		return
	}

	// Ack immediately so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.WithError(err).Warn("acking callback failed")
	}

	switch {
	case strings.HasPrefix(query.Data, "settings_"):
		b.handleSettingsCallback(query)
		return
	case query.Data == "get_thumbnail":
		b.handleThumbnail(query)
		return
	case query.Data == "history_clear":
		b.handleClearHistory(query)
		return
	}

	action, option, ok := strings.Cut(query.Data, "_")
	if !ok {
		return
	}

	chatID := query.Message.Chat.ID
	sess := b.getSession(chatID)
	if sess == nil {
		b.safeEdit(query, "Session expired. Please send the link again.")
		return
	}

	b.safeEdit(query, "Downloading... Please wait.")

	// The pool bounds simultaneous downloads process-wide.
	b.pool.Add()
	defer b.pool.Done()

	switch action {
	case "video":
		b.downloadVideo(ctx, query, sess, media.Quality(option))
	case "audio":
		b.downloadAudio(ctx, query, sess, media.AudioFormat(option))
	}
}

// outputPath builds a collision-free download path: a per-request UUID
// prefix plus a sanitized, truncated title kept for readability only.
func (b *Bot) outputPath(title, suffix string) (string, error) {
	safeTitle := httputil.SanitizeFilename(title, 50)
	name := fmt.Sprintf("%s_%s%s", uuid.NewString()[:8], safeTitle, suffix)
	return httputil.SafeDownloadPath(b.downloadDir, name)
}

func (b *Bot) downloadVideo(ctx context.Context, query *tgbotapi.CallbackQuery, sess *session, quality media.Quality) {
	if !quality.Valid() {
		quality = b.settingsFor(query.From.ID).VideoQuality
	}

	outputPath, err := b.outputPath(sess.Title, fmt.Sprintf("_%s.mp4", quality))
	if err != nil {
		b.log.WithError(err).Error("building output path failed")
		b.safeEdit(query, "Download failed. Please try again.")
		return
	}

	path, err := b.retriever.DownloadVideo(ctx, sess.URL, quality, outputPath, sess.DirectURL)
	if err != nil {
		b.safeEdit(query, "Download failed. Please try again or use a different quality.")
		return
	}

	caption := fmt.Sprintf("%s\n\nQuality: %s", truncate(sess.Title, 100), quality)
	b.deliverFile(ctx, query, sess, path, media.TypeVideo, caption)
}

func (b *Bot) downloadAudio(ctx context.Context, query *tgbotapi.CallbackQuery, sess *session, format media.AudioFormat) {
	if !format.Valid() {
		format = b.settingsFor(query.From.ID).AudioFormat
	}

	outputPath, err := b.outputPath(sess.Title, "."+string(format))
	if err != nil {
		b.log.WithError(err).Error("building output path failed")
		b.safeEdit(query, "Download failed. Please try again.")
		return
	}

	path, err := b.retriever.DownloadAudio(ctx, sess.URL, format, outputPath)
	if err != nil {
		b.safeEdit(query, "Download failed. Please try again or use a different format.")
		return
	}

	caption := fmt.Sprintf("%s\n\nFormat: %s", truncate(sess.Title, 100),
		strings.ToUpper(string(format)))
	b.deliverFile(ctx, query, sess, path, media.TypeAudio, caption)
}

func (b *Bot) deliverFile(ctx context.Context, query *tgbotapi.CallbackQuery, sess *session, path string, dlType media.DownloadType, caption string) {
	chatID := query.Message.Chat.ID

	fi, err := os.Stat(path)
	if err != nil {
		b.log.WithError(err).Error("downloaded file missing")
		b.safeEdit(query, "Download failed. Please try again.")
		return
	}

	b.safeEdit(query, fmt.Sprintf("Uploading (%s)... This may take a few minutes.",
		humanize.IBytes(uint64(fi.Size()))))

	err = b.router.Deliver(ctx, deliver.Request{
		ChatID:  chatID,
		Path:    path,
		Size:    fi.Size(),
		Type:    dlType,
		Title:   sess.Title,
		Caption: caption,
		Record: media.Record{
			UserID:   query.From.ID,
			Type:     dlType,
			Platform: sess.Platform.String(),
			URL:      sess.URL,
			Title:    sess.Title,
		},
	})
	if err != nil {
		b.safeEdit(query, deliveryFailureMessage(err, fi.Size()))
		return
	}

	b.safeEdit(query, "Sent successfully!")
	b.clearSession(chatID)
}

// deliveryFailureMessage distinguishes the policy rejections and upload
// timeouts users can act on from generic failures.
func deliveryFailureMessage(err error, size int64) string {
	var tooLarge *deliver.TooLargeError
	if errors.As(err, &tooLarge) {
		return fmt.Sprintf("File is too large (%s). Maximum size: %s.",
			humanize.IBytes(uint64(tooLarge.Size)), humanize.IBytes(uint64(tooLarge.HardCap)))
	}
	if errors.Is(err, deliver.ErrLargeUnavailable) {
		return fmt.Sprintf("File is too large for the standard upload limit (%s) "+
			"and no large-file uploader is configured. Try a lower quality or "+
			"an audio format instead.", humanize.IBytes(uint64(size)))
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") {
		return fmt.Sprintf("Upload timed out (%s). The file is too large or the "+
			"connection is slow; try a lower quality or audio format.",
			humanize.IBytes(uint64(size)))
	}
	return "Upload failed. Please try again."
}

func (b *Bot) handleClearHistory(query *tgbotapi.CallbackQuery) {
	if err := b.store.ClearUserHistory(query.From.ID); err != nil {
		b.log.WithError(err).Error("clearing history failed")
		b.safeEdit(query, "Could not clear your history. Please try again.")
		return
	}
	b.safeEdit(query, "Your download history has been cleared.")
}

func (b *Bot) handleThumbnail(query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	sess := b.getSession(chatID)
	if sess == nil || sess.Thumbnail == "" {
		b.safeEdit(query, "No thumbnail available for this video.")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(sess.Thumbnail))
	photo.Caption = truncate(sess.Title, 100)
	if _, err := b.api.Send(photo); err != nil {
		b.log.WithError(err).Warn("sending thumbnail failed")
		b.safeEdit(query, "Could not send the thumbnail.")
	}
}

// safeEdit edits the status line in place, handling both plain text
// messages and photo captions, and removes any keyboard. Falls back to a
// fresh message when editing fails.
func (b *Bot) safeEdit(query *tgbotapi.CallbackQuery, text string) {
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	empty := tgbotapi.NewInlineKeyboardMarkup()
	empty.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}

	var err error
	if len(query.Message.Photo) > 0 {
		edit := tgbotapi.NewEditMessageCaption(chatID, messageID, text)
		edit.ReplyMarkup = &empty
		_, err = b.api.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, empty)
		_, err = b.api.Send(edit)
	}
	if err != nil {
		b.log.WithError(err).Warn("editing status failed")
		b.reply(chatID, text)
	}
}
