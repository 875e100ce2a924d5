package middleware

import (
	"sync"
	"time"

	"github.com/filegate/filegate/core/logger"
	"github.com/filegate/filegate/core/telegram/callbacks"
	tghelpers "github.com/filegate/filegate/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update IDs. The middleware can sit
// on several branches of the handler tree for one update.
var (
	seenMu      sync.Mutex
	seenUpdates = make(map[int]time.Time)
	seenKeepFor = 10 * time.Second
)

func markSeen(updateID int) bool {
	now := time.Now()
	seenMu.Lock()
	defer seenMu.Unlock()
	for id, ts := range seenUpdates {
		if now.Sub(ts) > seenKeepFor {
			delete(seenUpdates, id)
		}
	}
	if _, ok := seenUpdates[updateID]; ok {
		return false
	}
	seenUpdates[updateID] = now
	return true
}

// LoggerMiddleware assigns the rid for the update, bridges it into a
// context.Context for downstream code, and logs one sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		chatID, userID := int64(0), int64(0)
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && markSeen(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs,
					slog.Int64("chat_id", chatID),
					slog.String("chat_type", string(chat.Type)),
				)
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
			}
			attrs = append(attrs, receiptAttrs(c, upd)...)
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}

// receiptAttrs enriches the receipt line with the payload kind: callback
// key, attachment kind, or a truncated text sample.
func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	var attrs []slog.Attr
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		m := upd.Message
		switch {
		case m.Document != nil:
			attrs = append(attrs, slog.String("kind", "document"))
			if m.Document.FileName != "" {
				attrs = append(attrs, slog.String("file_name", logger.SanitizeLimit(m.Document.FileName, 128)))
			}
		case m.Photo != nil:
			attrs = append(attrs, slog.String("kind", "photo"))
		case m.Video != nil:
			attrs = append(attrs, slog.String("kind", "video"))
		case m.Audio != nil:
			attrs = append(attrs, slog.String("kind", "audio"))
		case m.Voice != nil:
			attrs = append(attrs, slog.String("kind", "voice"))
		default:
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		}
	}
	return attrs
}
