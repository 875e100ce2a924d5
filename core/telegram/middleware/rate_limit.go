package middleware

import (
	"sync"
	"time"

	"github.com/filegate/filegate/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user rate limit.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// updateKind buckets updates for exclusion matching. Every attachment type
// counts as a document so excluding uploads covers photos and voice notes.
func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message == nil:
		return "other"
	case upd.Message.Document != nil, upd.Message.Photo != nil,
		upd.Message.Video != nil, upd.Message.Audio != nil, upd.Message.Voice != nil:
		return "document"
	default:
		return "message"
	}
}

// RateLimitMiddleware drops updates arriving faster than Interval per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		lastSeen   = make(map[int64]time.Time)
		lastSeenMu sync.Mutex
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			now := time.Now()
			lastSeenMu.Lock()
			last, seen := lastSeen[user.ID]
			limited := seen && now.Sub(last) < opts.Interval
			if !limited {
				lastSeen[user.ID] = now
			}
			lastSeenMu.Unlock()

			if !limited {
				return next(c)
			}

			attrs := []slog.Attr{
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.LogAttrs(logger.Background(), slog.LevelWarn, "rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
