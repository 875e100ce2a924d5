package router

import (
	"time"

	tg "github.com/filegate/filegate/core/telegram"
	"github.com/filegate/filegate/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a conversation manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
	// UnknownFile handles media arriving outside an active conversation.
	UnknownFile tele.HandlerFunc
}

// TextRoutes builds handlers for text routing. Command lookup wins over an
// active conversation so that /cancel and /help keep working mid-dialog;
// everything else flows into the conversation manager.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if fsmMgr != nil && fsmMgr.InProgress(senderID(c)) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	routes := []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
	return append(routes, FileRoutes(fsmMgr, opts)...)
}

// FileRoutes binds every supported attachment endpoint to the conversation
// manager. Documents, photos, videos, audio and voice notes all flow through
// the same handler; discrimination happens downstream.
func FileRoutes(fsmMgr FSM, opts TextOptions) []tg.Route {
	fileHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.InProgress(senderID(c)) {
			return handleWithSummary(c, "fsm_file", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}
		if opts.UnknownFile != nil {
			return handleWithSummary(c, "unexpected_file", start, "", "", func() error {
				return opts.UnknownFile(c)
			})
		}
		logHandlerSummary(c, "unexpected_file", start, "skip", "ok", nil)
		return nil
	}

	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(fileHandler))
	endpoints := []any{
		tele.OnDocument,
		tele.OnPhoto,
		tele.OnVideo,
		tele.OnAudio,
		tele.OnVoice,
	}

	routes := make([]tg.Route, 0, len(endpoints))
	for _, ep := range endpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrapped})
	}
	return routes
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
