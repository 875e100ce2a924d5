package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	coretelegram "github.com/filegate/filegate/core/telegram"
	"github.com/filegate/filegate/core/telegram/callbacks"
	"github.com/filegate/filegate/core/telegram/commands"
	tghelpers "github.com/filegate/filegate/core/telegram/helpers"
	"github.com/filegate/filegate/core/telegram/keyboard"
	tgsender "github.com/filegate/filegate/core/telegram/sender"
	"github.com/filegate/filegate/internal/ingest"
	"github.com/filegate/filegate/internal/upload"

	tele "gopkg.in/telebot.v4"
)

const welcomeText = `Hi! Send me a file and I will walk you through sharing it:
shorten the link, pick a name, and post it to the channel.

Commands:
/help — how this works
/cancel — abandon the current upload`

const helpText = `Send any file (document, photo, video, audio or voice note).
I will ask whether to shorten its link and whether to post it to the channel,
then ask for a display name. Answer with the buttons or type yes/no.
Use /cancel at any point to abandon the upload.`

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "How to share a file",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Abandon the current upload",
		Aliases:     []string{"stop"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Posting statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, "Send me a file to share it, or /help for details.")
	})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	_ = reg.RegisterCallback(upload.ChoiceKey, func(c tele.Context) error {
		if a.engine == nil {
			return nil
		}
		payload := callbacks.CallbackPayload(c)
		return a.engine.HandleChoice(tghelpers.BuildContext(c), senderID(c), payload)
	})
}

// handleStart greets the user. When invoked through a deep link carrying a
// base64-encoded target, it resolves and returns the shared file link
// instead (the file-opener flow).
func (a *App) handleStart(c tele.Context) error {
	payload := ""
	if m := c.Message(); m != nil {
		payload = strings.TrimSpace(m.Payload)
	}
	if payload != "" {
		if link, ok := decodeDeepLink(payload); ok {
			return tghelpers.SendText(c, "Here is your file:\n"+link)
		}
		return tghelpers.SendText(c, "That link looks broken. Ask for a fresh one.")
	}
	return tghelpers.SendText(c, welcomeText)
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, helpText)
}

func (a *App) handleCancel(c tele.Context) error {
	if a.engine == nil {
		return c.Send(upload.MsgNoActive)
	}
	return a.engine.Cancel(tghelpers.BuildContext(c), senderID(c))
}

func (a *App) handleStats(c tele.Context) error {
	if a.recorder == nil {
		return tghelpers.SendText(c, "History is not configured.")
	}
	ctx := tghelpers.BuildContext(c)

	stats, err := a.recorder.Summary(ctx)
	if err != nil {
		return fmt.Errorf("stats query: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Posts:* %d\n*Users:* %d\n*Shortened links:* %d\n",
		stats.TotalPosts, stats.DistinctUsers, stats.ShortenedLinks)

	recent, err := a.recorder.Recent(ctx, 5)
	if err != nil {
		return fmt.Errorf("stats query: %w", err)
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent:\n")
		for _, p := range recent {
			fmt.Fprintf(&b, "• %s (%s)\n", p.DisplayName, p.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	return tghelpers.SendMD(c, b.String())
}

// handleFile starts the wizard for a file arriving outside any conversation.
func (a *App) handleFile(c tele.Context) error {
	if a.engine == nil {
		return tghelpers.SendText(c, "The bot is still starting, please try again.")
	}
	att, ok := extractAttachment(c.Message())
	if !ok {
		return tghelpers.SendText(c, upload.MsgIngestFailed)
	}
	return a.engine.HandleFile(tghelpers.BuildContext(c), senderID(c), att)
}

// InProgress satisfies router.FSM.
func (a *App) InProgress(userID int64) bool {
	return a.engine != nil && a.engine.InProgress(userID)
}

// ManagerHandler satisfies router.FSM: it feeds mid-conversation updates
// into the wizard engine.
func (a *App) ManagerHandler(c tele.Context) error {
	if a.engine == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if att, ok := extractAttachment(c.Message()); ok {
		return a.engine.HandleFile(ctx, senderID(c), att)
	}
	return a.engine.HandleText(ctx, senderID(c), c.Text())
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// extractAttachment maps every supported telebot media kind onto the
// transport-agnostic attachment shape.
func extractAttachment(m *tele.Message) (ingest.Attachment, bool) {
	if m == nil {
		return ingest.Attachment{}, false
	}
	switch {
	case m.Document != nil:
		return ingest.Attachment{
			Kind:     ingest.KindDocument,
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MIME:     m.Document.MIME,
			Size:     m.Document.FileSize,
		}, true
	case m.Photo != nil:
		return ingest.Attachment{
			Kind:   ingest.KindPhoto,
			FileID: m.Photo.FileID,
			Size:   m.Photo.FileSize,
		}, true
	case m.Video != nil:
		return ingest.Attachment{
			Kind:     ingest.KindVideo,
			FileID:   m.Video.FileID,
			FileName: m.Video.FileName,
			MIME:     m.Video.MIME,
			Size:     m.Video.FileSize,
		}, true
	case m.Audio != nil:
		return ingest.Attachment{
			Kind:     ingest.KindAudio,
			FileID:   m.Audio.FileID,
			FileName: m.Audio.FileName,
			MIME:     m.Audio.MIME,
			Size:     m.Audio.FileSize,
		}, true
	case m.Voice != nil:
		return ingest.Attachment{
			Kind:   ingest.KindVoice,
			FileID: m.Voice.FileID,
			MIME:   m.Voice.MIME,
			Size:   m.Voice.FileSize,
		}, true
	default:
		return ingest.Attachment{}, false
	}
}

// decodeDeepLink reverses the publisher's deep-link encoding. Both URL-safe
// and standard base64 alphabets are accepted.
func decodeDeepLink(payload string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(payload); err == nil {
			link := strings.TrimSpace(string(raw))
			if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
				return link, true
			}
		}
	}
	return "", false
}

// botFileSource resolves Telegram file locators through the Bot API.
type botFileSource struct {
	bot *tele.Bot
}

func (s *botFileSource) ResolveURL(_ context.Context, fileID string) (string, error) {
	f, err := s.bot.FileByID(fileID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/file/bot%s/%s", s.bot.URL, s.bot.Token, f.FilePath), nil
}

func (s *botFileSource) Download(_ context.Context, fileID string) (io.ReadCloser, error) {
	f, err := s.bot.FileByID(fileID)
	if err != nil {
		return nil, err
	}
	return s.bot.File(&f)
}

// botReplier sends wizard messages to a user by id. Private chat ids equal
// user ids, so the user doubles as the recipient. Replies go through the
// async dispatcher when one is available and fall back to a direct send.
type botReplier struct {
	bot  *tele.Bot
	disp *tgsender.Dispatcher
}

func (r *botReplier) Send(ctx context.Context, userID int64, text string) error {
	return r.deliver(ctx, func() error {
		_, err := r.bot.Send(&tele.User{ID: userID}, text)
		return err
	})
}

func (r *botReplier) AskChoice(ctx context.Context, userID int64, text string) error {
	return r.deliver(ctx, func() error {
		_, err := r.bot.Send(&tele.User{ID: userID}, text, keyboard.YesNo(upload.ChoiceKey))
		return err
	})
}

func (r *botReplier) deliver(ctx context.Context, run func() error) error {
	if r.disp != nil {
		if err := r.disp.Enqueue(ctx, "wizard.reply", "sendMessage", run); err == nil {
			return nil
		}
	}
	return run()
}
