package helpers

import (
	"context"

	"github.com/filegate/filegate/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxSlot = "logger_ctx"

// StoreContext caches a context.Context on the tele.Context so later helpers
// reuse the same rid and metadata instead of rebuilding them.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxSlot, ctx)
}

// ContextFrom returns the cached context, if middleware stored one.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxSlot).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext derives a context.Context carrying rid, update, user and
// chat identifiers from the telebot context. The result is cached.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler stamps the handler name onto the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
