// Package bot wires the retrieval pipeline to the Telegram front end:
// incoming URLs, quality selection keyboards, download dispatch, and the
// admin surface.
package bot

import (
	"context"
	"regexp"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"

	"grabbit/internal/deliver"
	"grabbit/internal/media"
	"grabbit/internal/platform"
	"grabbit/internal/ratelimit"
	"grabbit/internal/resolver"
	"grabbit/internal/retriever"
	"grabbit/internal/store"
)

// session holds the request-scoped state between a URL message and the
// quality-selection callback that follows it.
type session struct {
	URL       string
	Platform  platform.Tag
	Title     string
	Uploader  string
	Duration  int
	Thumbnail string
	DirectURL string
}

// Updater is the self-update surface of the extraction library, behind the
// admin /update command.
type Updater interface {
	Update(ctx context.Context) (string, error)
}

// Deps are the collaborators injected into the bot at bootstrap. No
// package-level singletons; lifecycle is owned by the caller.
type Deps struct {
	API         *tgbotapi.BotAPI
	Store       *store.Store
	Limiter     *ratelimit.Limiter
	Resolver    *resolver.Resolver
	Retriever   *retriever.Retriever
	Router      *deliver.Router
	Updater     Updater
	DownloadDir string
	AdminID     int64
	// MaxConcurrent caps simultaneous in-flight downloads process-wide.
	MaxConcurrent int
	Log           logrus.FieldLogger
}

// Bot dispatches Telegram updates to the retrieval pipeline.
type Bot struct {
	api         *tgbotapi.BotAPI
	store       *store.Store
	limiter     *ratelimit.Limiter
	resolver    *resolver.Resolver
	retriever   *retriever.Retriever
	router      *deliver.Router
	updater     Updater
	downloadDir string
	adminID     int64
	pool        sizedwaitgroup.SizedWaitGroup
	log         logrus.FieldLogger

	mu       sync.Mutex
	sessions map[int64]*session // keyed by chat ID
}

// New constructs the bot from its dependencies.
func New(d Deps) *Bot {
	if d.MaxConcurrent < 1 {
		d.MaxConcurrent = 4
	}
	return &Bot{
		api:         d.API,
		store:       d.Store,
		limiter:     d.Limiter,
		resolver:    d.Resolver,
		retriever:   d.Retriever,
		router:      d.Router,
		updater:     d.Updater,
		downloadDir: d.DownloadDir,
		adminID:     d.AdminID,
		pool:        sizedwaitgroup.New(d.MaxConcurrent),
		log:         d.Log,
		sessions:    make(map[int64]*session),
	}
}

// Run polls for updates until the context is cancelled. Each update is
// handled on its own goroutine; the download pool bounds the expensive
// part.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.log.WithField("bot", b.api.Self.UserName).Info("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.pool.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(ctx, update.Message)
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	if urlPattern.MatchString(msg.Text) {
		b.handleURL(ctx, msg)
		return
	}
	b.reply(msg.Chat.ID, "Please send a valid URL.")
}

func (b *Bot) setSession(chatID int64, s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = s
}

func (b *Bot) getSession(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) clearSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Warn("sending message failed")
	}
}

// isAdmin is the explicit authorization check run at the top of every
// privileged handler.
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminID != 0 && userID == b.adminID
}

// trackUser records the user and reports whether they are banned.
func (b *Bot) trackUser(msg *tgbotapi.Message) bool {
	user := msg.From
	if user == nil {
		return false
	}
	if err := b.store.UpsertUser(user.ID, user.UserName, user.FirstName, user.LastName); err != nil {
		b.log.WithError(err).Warn("tracking user failed")
	}
	banned, err := b.store.IsBanned(user.ID)
	if err != nil {
		b.log.WithError(err).Warn("ban check failed")
		return false
	}
	if banned {
		b.reply(msg.Chat.ID, "You have been banned from using this bot. "+
			"If you believe this is a mistake, please contact the admin.")
	}
	return banned
}

// settingsFor loads the user's preferences, falling back to defaults.
func (b *Bot) settingsFor(userID int64) media.Settings {
	st, err := b.store.GetSettings(userID)
	if err != nil {
		b.log.WithError(err).Warn("loading settings failed")
		return media.DefaultSettings()
	}
	return st
}
