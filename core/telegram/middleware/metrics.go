package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	ctxKeyMessages = "messages"
	ctxKeyKeyboard = "kb"
)

// countingContext proxies outbound sends so the handler summary can report
// how many messages a handler produced and whether any carried a keyboard.
type countingContext struct{ tele.Context }

func (m countingContext) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	n := 0
	if v, ok := m.Get(ctxKeyMessages).(int); ok {
		n = v
	}
	m.Set(ctxKeyMessages, n+1)
	if optsHaveKeyboard(opts) {
		m.Set(ctxKeyKeyboard, true)
	}
	return nil
}

func optsHaveKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware swaps the context for a counting proxy.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(ctxKeyMessages, 0)
		c.Set(ctxKeyKeyboard, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters reads the message count and keyboard flag back out.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(ctxKeyMessages).(int)
	kb, _ := c.Get(ctxKeyKeyboard).(bool)
	return msgs, kb
}
