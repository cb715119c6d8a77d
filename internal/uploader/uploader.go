// Package uploader implements the upload transports behind the delivery
// router: the standard Bot API transport and an optional high-capacity one
// backed by a self-hosted Bot API server with a raised size ceiling.
package uploader

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Telegram uploads files through a Bot API client.
type Telegram struct {
	api *tgbotapi.BotAPI
	log logrus.FieldLogger
}

// NewTelegram wraps an existing Bot API client as an upload transport.
func NewTelegram(api *tgbotapi.BotAPI, log logrus.FieldLogger) *Telegram {
	return &Telegram{api: api, log: log}
}

// NewLarge connects a second Bot API client against a self-hosted endpoint
// (e.g. "http://localhost:8081/bot%s/%s"), which accepts uploads up to
// 2 GiB. Returns an error when the endpoint is unreachable; the caller
// treats that as "high-capacity uploader absent".
func NewLarge(token, endpoint string, log logrus.FieldLogger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to local Bot API server: %w", err)
	}
	log.WithField("endpoint", endpoint).Info("high-capacity uploader enabled")
	return &Telegram{api: api, log: log}, nil
}

// SendVideo uploads a video file with streaming support.
func (t *Telegram) SendVideo(_ context.Context, chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true

	if _, err := t.api.Send(video); err != nil {
		return fmt.Errorf("sending video: %w", err)
	}
	return nil
}

// SendAudio uploads an audio file with its title set.
func (t *Telegram) SendAudio(_ context.Context, chatID int64, path, title, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Caption = caption

	if _, err := t.api.Send(audio); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}
	return nil
}
