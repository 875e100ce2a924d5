package router

import (
	"time"

	tg "github.com/filegate/filegate/core/telegram"
	"github.com/filegate/filegate/core/telegram/callbacks"
	"github.com/filegate/filegate/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions supplies a fallback when the registry has none.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches tele.OnCallback through the registry by callback
// key. The callback is acknowledged up front so the client stops its spinner
// regardless of handler outcome.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		cbHandler, ok := reg.GetCallback(key)
		if ok && cbHandler != nil {
			return handleWithSummary(c, name, start, "", "", func() error {
				return cbHandler(c)
			}, extras...)
		}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		extras = append(extras, slog.String("reason", "not_found"))
		return handleWithSummary(c, name, start, "", "", func() error {
			if fallback != nil {
				return fallback(c)
			}
			return nil
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
