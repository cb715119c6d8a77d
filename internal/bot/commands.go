package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grabbit/internal/media"
	"grabbit/internal/store"
)

const helpText = `Send me a link from YouTube, Instagram, TikTok, Facebook,
Twitter/X, Reddit, or Vimeo and pick a quality or audio format.

Commands:
/start - welcome message
/help - this message
/settings - default quality and format
/mystats - your download counts
/history - your recent downloads`

// historyPageSize rows are shown per /history request.
const historyPageSize = 10

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if b.trackUser(msg) {
		return
	}

	switch msg.Command() {
	case "start":
		b.sendStart(msg)
	case "help":
		b.reply(msg.Chat.ID, helpText)
	case "settings":
		b.sendSettings(msg.Chat.ID, msg.From.ID)
	case "mystats":
		b.sendUserStats(msg.Chat.ID, msg.From.ID)
	case "history":
		b.sendHistory(msg.Chat.ID, msg.From.ID)
	case "stats":
		b.adminStats(msg)
	case "broadcast":
		b.adminBroadcast(msg)
	case "ban":
		b.adminBan(msg, true)
	case "unban":
		b.adminBan(msg, false)
	case "update":
		b.adminUpdate(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) sendStart(msg *tgbotapi.Message) {
	name := msg.From.FirstName
	if name == "" {
		name = "there"
	}

	var downloads int
	if u, err := b.store.GetUser(msg.From.ID); err == nil && u != nil {
		downloads = u.TotalDownloads
	}

	text := fmt.Sprintf(`Welcome, %s!

I download videos and audio from YouTube, Instagram, TikTok, Facebook,
Twitter/X, Reddit, Vimeo, and more.

1. Send me a link to any video
2. Choose video quality or audio format
3. Get your media

Quality options: 360p - 1080p. Audio: MP3, M4A, OPUS.

Your downloads so far: %d

Just send me a link to get started.`, name, downloads)

	b.reply(msg.Chat.ID, text)
}

func (b *Bot) sendUserStats(chatID, userID int64) {
	u, err := b.store.GetUser(userID)
	if err != nil || u == nil {
		b.reply(chatID, "No statistics yet. Send a link to get started.")
		return
	}
	b.reply(chatID, fmt.Sprintf(
		"Your stats:\n\nTotal downloads: %d\nVideos: %d\nAudio: %d",
		u.TotalDownloads, u.VideoDownloads, u.AudioDownloads))
}

func (b *Bot) sendHistory(chatID, userID int64) {
	rows, err := b.store.UserHistory(userID, historyPageSize)
	if err != nil {
		b.log.WithError(err).Error("loading user history failed")
		b.reply(chatID, "Could not load your history.")
		return
	}
	if len(rows) == 0 {
		b.reply(chatID, "No downloads yet. Send a link to get started.")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Clear history", "history_clear"),
		),
	)
	out := tgbotapi.NewMessage(chatID, historyText(rows))
	out.ReplyMarkup = keyboard
	if _, err := b.api.Send(out); err != nil {
		b.log.WithError(err).Warn("sending history failed")
	}
}

func historyText(rows []store.Download) string {
	var sb strings.Builder
	sb.WriteString("Your recent downloads:\n\n")
	for i, d := range rows {
		title := d.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s | %s | %s\n", i+1, truncate(title, 60),
			d.Platform, d.Type, d.Timestamp.Format("2006-01-02 15:04"))
	}
	return sb.String()
}

// Settings menu

func (b *Bot) sendSettings(chatID, userID int64) {
	st := b.settingsFor(userID)

	thumb := "off"
	if st.AutoThumbnail {
		thumb = "on"
	}
	text := fmt.Sprintf(
		"Settings\n\nDefault quality: %s\nDefault audio format: %s\nAuto thumbnail: %s",
		st.VideoQuality, st.AudioFormat, thumb)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1080p", "settings_q_1080p"),
			tgbotapi.NewInlineKeyboardButtonData("720p", "settings_q_720p"),
			tgbotapi.NewInlineKeyboardButtonData("480p", "settings_q_480p"),
			tgbotapi.NewInlineKeyboardButtonData("360p", "settings_q_360p"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("MP3", "settings_f_mp3"),
			tgbotapi.NewInlineKeyboardButtonData("M4A", "settings_f_m4a"),
			tgbotapi.NewInlineKeyboardButtonData("OPUS", "settings_f_opus"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Toggle auto thumbnail", "settings_thumb"),
		),
	)

	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = keyboard
	if _, err := b.api.Send(out); err != nil {
		b.log.WithError(err).Warn("sending settings failed")
	}
}

func (b *Bot) handleSettingsCallback(query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	st := b.settingsFor(userID)

	switch {
	case strings.HasPrefix(query.Data, "settings_q_"):
		q := media.Quality(strings.TrimPrefix(query.Data, "settings_q_"))
		if q.Valid() {
			st.VideoQuality = q
		}
	case strings.HasPrefix(query.Data, "settings_f_"):
		f := media.AudioFormat(strings.TrimPrefix(query.Data, "settings_f_"))
		if f.Valid() {
			st.AudioFormat = f
		}
	case query.Data == "settings_thumb":
		st.AutoThumbnail = !st.AutoThumbnail
	default:
		return
	}

	if err := b.store.SaveSettings(userID, st); err != nil {
		b.log.WithError(err).Warn("saving settings failed")
		b.safeEdit(query, "Could not save settings. Please try again.")
		return
	}

	thumb := "off"
	if st.AutoThumbnail {
		thumb = "on"
	}
	b.safeEdit(query, fmt.Sprintf(
		"Settings saved.\n\nDefault quality: %s\nDefault audio format: %s\nAuto thumbnail: %s",
		st.VideoQuality, st.AudioFormat, thumb))
}

// Admin commands. Authorization is checked explicitly at the top of each.

func (b *Bot) adminStats(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "This command is for admins only.")
		return
	}

	st, err := b.store.Statistics()
	if err != nil {
		b.log.WithError(err).Error("loading statistics failed")
		b.reply(msg.Chat.ID, "Could not load statistics.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bot statistics\n\nUsers: %d\nTotal downloads: %d\nVideos: %d\nAudio: %d\n",
		st.TotalUsers, st.TotalDownloads, st.VideoDownloads, st.AudioDownloads)

	if len(st.PerPlatform) > 0 {
		sb.WriteString("\nBy platform:\n")
		platforms := make([]string, 0, len(st.PerPlatform))
		for p := range st.PerPlatform {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		for _, p := range platforms {
			fmt.Fprintf(&sb, "  %s: %d\n", p, st.PerPlatform[p])
		}
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) adminBroadcast(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "This command is for admins only.")
		return
	}

	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.reply(msg.Chat.ID, "Usage: /broadcast <message>")
		return
	}

	ids, err := b.store.AllUserIDs()
	if err != nil {
		b.log.WithError(err).Error("listing users failed")
		b.reply(msg.Chat.ID, "Could not load the user list.")
		return
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			failed++
			continue
		}
		sent++
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed))
}

func (b *Bot) adminUpdate(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "This command is for admins only.")
		return
	}
	if b.updater == nil {
		b.reply(msg.Chat.ID, "No updater is configured.")
		return
	}

	b.reply(msg.Chat.ID, "Updating yt-dlp...")
	out, err := b.updater.Update(ctx)
	if err != nil {
		b.log.WithError(err).Error("yt-dlp update failed")
		b.reply(msg.Chat.ID, "Update failed. Check the logs for details.")
		return
	}
	b.reply(msg.Chat.ID, "Update finished:\n"+truncate(out, 500))
}

func (b *Bot) adminBan(msg *tgbotapi.Message, ban bool) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "This command is for admins only.")
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /ban <user_id> or /unban <user_id>")
		return
	}

	if ban {
		err = b.store.Ban(id)
	} else {
		err = b.store.Unban(id)
	}
	if err != nil {
		b.log.WithError(err).Error("updating ban failed")
		b.reply(msg.Chat.ID, "Could not update the ban list.")
		return
	}

	verb := "banned"
	if !ban {
		verb = "unbanned"
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("User %d %s.", id, verb))
}
