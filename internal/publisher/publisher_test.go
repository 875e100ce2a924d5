package publisher

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type stubSender struct {
	err  error
	to   tele.Recipient
	text string
}

func (s *stubSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.to = to
	s.text, _ = what.(string)
	return &tele.Message{}, nil
}

func TestPublishFormatsTwoLineMessage(t *testing.T) {
	sender := &stubSender{}
	p := New(sender, -1001234, "")

	require.NoError(t, p.Publish(context.Background(), "report.pdf", "https://s.ly/abc"))
	assert.Equal(t, tele.ChatID(-1001234), sender.to)
	assert.Equal(t, "Name: report.pdf\nLink: https://s.ly/abc", sender.text)
}

func TestPublishWrapsDeepLink(t *testing.T) {
	sender := &stubSender{}
	p := New(sender, -1001234, "openerbot")

	require.NoError(t, p.Publish(context.Background(), "a.bin", "https://cdn/x/a"))

	encoded := base64.URLEncoding.EncodeToString([]byte("https://cdn/x/a"))
	assert.Equal(t, "Name: a.bin\nLink: https://t.me/openerbot?start="+encoded, sender.text)
}

func TestPublishWrapsTransportFailure(t *testing.T) {
	p := New(&stubSender{err: errors.New("blocked")}, -1, "")

	err := p.Publish(context.Background(), "a", "b")
	var pubErr *Error
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "PUBLISH_FAILED", pubErr.Code())
}
