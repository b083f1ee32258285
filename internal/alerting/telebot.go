package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"
)

// TelebotNotifier delivers messages through a telebot client. The bot runs in
// offline mode: it only sends and never polls for updates.
type TelebotNotifier struct {
	bot    *tele.Bot
	chat   *tele.Chat
	logger zerolog.Logger
}

// NewTelebotNotifier builds a notifier for a numeric chat id.
func NewTelebotNotifier(botToken string, chatID int64, baseURL string, timeout time.Duration, logger zerolog.Logger) (*TelebotNotifier, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   botToken,
		URL:     strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telebot: %w", err)
	}

	return &TelebotNotifier{
		bot:    b,
		chat:   &tele.Chat{ID: chatID},
		logger: logger.With().Str("component", "alert_telebot").Logger(),
	}, nil
}

// Send posts text to the configured chat. telebot has no context support, so
// cancellation is only checked before the request starts.
func (n *TelebotNotifier) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.bot.Send(n.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("telebot send: %w", err)
	}

	if msg != nil {
		n.logger.Debug().Int64("chat_id", n.chat.ID).Int("message_id", msg.ID).Msg("message delivered")
	}
	return nil
}

var _ Notifier = (*TelebotNotifier)(nil)
