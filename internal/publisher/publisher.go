package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/filegate/filegate/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Error wraps broadcast failures. Callers surface it to the user but do not
// retry.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("publish: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Code returns a machine-readable error code for handler summaries.
func (e *Error) Code() string { return "PUBLISH_FAILED" }

// Sender is the outbound broadcast primitive, satisfied by *tele.Bot.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Publisher emits announcement messages to one preconfigured channel.
type Publisher struct {
	sender    Sender
	channelID int64
	openerBot string
}

// New builds a Publisher. openerBot, when non-empty, wraps the posted link
// into a t.me deep link so the file opens through that bot.
func New(sender Sender, channelID int64, openerBot string) *Publisher {
	return &Publisher{sender: sender, channelID: channelID, openerBot: openerBot}
}

// Publish formats the fixed two-line announcement and sends it to the
// channel. One attempt; failure is reported, not retried.
func (p *Publisher) Publish(ctx context.Context, displayName, target string) error {
	start := time.Now()
	link := p.link(target)
	text := fmt.Sprintf("Name: %s\nLink: %s", displayName, link)

	if _, err := p.sender.Send(tele.ChatID(p.channelID), text); err != nil {
		logger.Error(ctx, "publisher", "publish.failed",
			slog.Int64("channel_id", p.channelID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return &Error{Err: err}
	}

	logger.Info(ctx, "publisher", "publish.done",
		slog.Int64("channel_id", p.channelID),
		slog.String("name", displayName),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (p *Publisher) link(target string) string {
	if p.openerBot == "" {
		return target
	}
	encoded := base64.URLEncoding.EncodeToString([]byte(target))
	return fmt.Sprintf("https://t.me/%s?start=%s", p.openerBot, encoded)
}
