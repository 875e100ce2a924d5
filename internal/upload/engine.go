package upload

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/filegate/filegate/core/logger"
	"github.com/filegate/filegate/internal/ingest"
	"github.com/filegate/filegate/internal/shortener"
	"log/slog"
)

// User-facing copy for every step of the wizard. Centralised so handlers and
// tests share one vocabulary.
const (
	MsgProcessing      = "Processing your file..."
	MsgAskShorten      = "Do you want to shorten the link?"
	MsgAskPost         = "Post the file to the channel?"
	MsgAskName         = "Send a name for the file."
	MsgRepromptChoice  = "Please answer yes or no."
	MsgRepromptName    = "The name cannot be empty. Send a name for the file."
	MsgShortenFallback = "Could not shorten the link, using the original one."
	MsgIngestFailed    = "Sorry, I could not process that file. Please try again."
	MsgPublishFailed   = "Posting to the channel failed. The file was not announced."
	MsgPosted          = "Done! The file was posted to the channel."
	MsgCancelled       = "Cancelled. Send me a file whenever you are ready."
	MsgNoActive        = "Nothing in progress. Send me a file to get started."
	MsgExpired         = "That conversation expired. Send the file again to restart."
)

// ChoiceKey is the callback key shared by the inline yes/no keyboards; the
// answer travels in the payload.
const ChoiceKey = "wizard_choice"

// Shortener produces short links with pass-through fallback.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) shortener.Result
}

// Ingestor resolves inbound attachments into canonical file references.
type Ingestor interface {
	Ingest(ctx context.Context, att ingest.Attachment) (ingest.FileReference, error)
}

// Publisher announces a finished upload to the broadcast channel.
type Publisher interface {
	Publish(ctx context.Context, displayName, target string) error
}

// Recorder persists an audit row per announcement. Implementations must be
// nil-safe; the audit log never blocks the flow.
type Recorder interface {
	RecordPost(ctx context.Context, userID int64, displayName, target string, shortened bool) error
}

// Replier sends messages back to the conversing user. AskChoice attaches a
// yes/no keyboard keyed by ChoiceKey.
type Replier interface {
	Send(ctx context.Context, userID int64, text string) error
	AskChoice(ctx context.Context, userID int64, text string) error
}

// Engine drives the upload wizard. One instance serves all users; per-user
// ordering is guaranteed upstream by the transport.
type Engine struct {
	store     Store
	ingestor  Ingestor
	shortener Shortener
	publisher Publisher
	recorder  Recorder
	replier   Replier
}

// Options wires the engine's collaborators. Shortener and Recorder are
// optional; a nil Shortener skips the shorten step entirely.
type Options struct {
	Store     Store
	Ingestor  Ingestor
	Shortener Shortener
	Publisher Publisher
	Recorder  Recorder
	Replier   Replier
}

// NewEngine builds an Engine.
func NewEngine(opts Options) *Engine {
	return &Engine{
		store:     opts.Store,
		ingestor:  opts.Ingestor,
		shortener: opts.Shortener,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		replier:   opts.Replier,
	}
}

// InProgress reports whether the user has a live, non-terminal session.
func (e *Engine) InProgress(userID int64) bool {
	s, err := e.store.Get(logger.Background(), userID)
	return err == nil && !s.State.Terminal()
}

// HandleFile starts (or restarts) the wizard for a user. A file arriving
// mid-conversation replaces the previous session; there is no queueing.
func (e *Engine) HandleFile(ctx context.Context, userID int64, att ingest.Attachment) error {
	if prev, err := e.store.Get(ctx, userID); err == nil {
		logger.Info(ctx, "upload", "session.replaced",
			slog.Int64("user_id", userID),
			slog.String("prev_state", string(prev.State)),
		)
	}

	_ = e.replier.Send(ctx, userID, MsgProcessing)

	ref, err := e.ingestor.Ingest(ctx, att)
	if err != nil {
		// Ingest failure aborts outright; no partial session survives.
		_ = e.store.Delete(ctx, userID)
		_ = e.replier.Send(ctx, userID, MsgIngestFailed)
		logger.Warn(ctx, "upload", "session.abort",
			slog.Int64("user_id", userID),
			slog.String("reason", "ingest_failed"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return err
	}

	s := NewSession(userID, ref.URL)
	if ref.DisplayName != "" {
		s.DisplayName = ref.DisplayName
	}

	if e.shortener == nil {
		// Shortening not configured: skip straight to the post question.
		s.State = StateAwaitingPostChoice
		s.PostTarget = s.FileReference
		if err := e.store.Put(ctx, s); err != nil {
			return err
		}
		logger.Info(ctx, "upload", "session.created",
			slog.Int64("user_id", userID),
			slog.String("state", string(s.State)),
		)
		return e.replier.AskChoice(ctx, userID, MsgAskPost)
	}

	if err := e.store.Put(ctx, s); err != nil {
		return err
	}
	logger.Info(ctx, "upload", "session.created",
		slog.Int64("user_id", userID),
		slog.String("state", string(s.State)),
	)
	return e.replier.AskChoice(ctx, userID, MsgAskShorten)
}

// HandleText advances the wizard with a plain text reply.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) error {
	s, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return e.replier.Send(ctx, userID, MsgNoActive)
	}
	if err != nil {
		return err
	}

	switch s.State {
	case StateAwaitingShortenChoice:
		return e.handleShortenChoice(ctx, s, text)
	case StateAwaitingPostChoice:
		return e.handlePostChoice(ctx, s, text)
	case StateAwaitingFileName:
		return e.handleFileName(ctx, s, text)
	default:
		// Terminal states never stay in the store; treat as no session.
		_ = e.store.Delete(ctx, userID)
		return e.replier.Send(ctx, userID, MsgNoActive)
	}
}

// HandleChoice feeds an inline keyboard answer ("yes"/"no" payload) into the
// same transition table as typed text.
func (e *Engine) HandleChoice(ctx context.Context, userID int64, payload string) error {
	return e.HandleText(ctx, userID, payload)
}

// Cancel destroys the user's session, if any.
func (e *Engine) Cancel(ctx context.Context, userID int64) error {
	_, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return e.replier.Send(ctx, userID, MsgNoActive)
	}
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Info(ctx, "upload", "session.cancelled", slog.Int64("user_id", userID))
	return e.replier.Send(ctx, userID, MsgCancelled)
}

// parseChoice matches yes/no case-insensitively, exact only. No fuzzy
// matching, no synonyms.
func parseChoice(text string) (yes bool, ok bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(text), "yes"):
		return true, true
	case strings.EqualFold(strings.TrimSpace(text), "no"):
		return false, true
	default:
		return false, false
	}
}

func (e *Engine) handleShortenChoice(ctx context.Context, s *Session, text string) error {
	yes, ok := parseChoice(text)
	if !ok {
		return e.reprompt(ctx, s, MsgRepromptChoice)
	}

	if yes {
		res := e.shortener.Shorten(ctx, s.FileReference)
		if res.Shortened {
			s.ShortReference = res.URL
			s.PostTarget = res.URL
		} else {
			// Fail-open: keep going with the original reference.
			s.PostTarget = s.FileReference
			_ = e.replier.Send(ctx, s.UserID, MsgShortenFallback)
		}
	} else {
		s.PostTarget = s.FileReference
	}

	s.State = StateAwaitingPostChoice
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return err
	}
	logger.Debug(ctx, "upload", "state.advance",
		slog.Int64("user_id", s.UserID),
		slog.String("state", string(s.State)),
		slog.Bool("shortened", s.ShortReference != ""),
	)
	return e.replier.AskChoice(ctx, s.UserID, MsgAskPost)
}

func (e *Engine) handlePostChoice(ctx context.Context, s *Session, text string) error {
	yes, ok := parseChoice(text)
	if !ok {
		return e.reprompt(ctx, s, MsgRepromptChoice)
	}

	if !yes {
		if err := e.store.Delete(ctx, s.UserID); err != nil {
			return err
		}
		logger.Info(ctx, "upload", "session.cancelled",
			slog.Int64("user_id", s.UserID),
			slog.String("reason", "declined_post"),
		)
		return e.replier.Send(ctx, s.UserID, MsgCancelled)
	}

	s.State = StateAwaitingFileName
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return err
	}
	return e.replier.Send(ctx, s.UserID, MsgAskName)
}

func (e *Engine) handleFileName(ctx context.Context, s *Session, text string) error {
	name := strings.TrimSpace(text)
	if name == "" {
		return e.reprompt(ctx, s, MsgRepromptName)
	}

	s.DisplayName = name
	s.State = StatePosted

	start := time.Now()
	pubErr := e.publisher.Publish(ctx, s.DisplayName, s.PostTarget)
	if pubErr != nil {
		// Best effort: the session still completes, matching the rest of
		// the flow's at-most-once posting behaviour.
		_ = e.replier.Send(ctx, s.UserID, MsgPublishFailed)
	} else {
		_ = e.replier.Send(ctx, s.UserID, MsgPosted)
		if e.recorder != nil {
			_ = e.recorder.RecordPost(ctx, s.UserID, s.DisplayName, s.PostTarget, s.ShortReference != "")
		}
	}

	if err := e.store.Delete(ctx, s.UserID); err != nil {
		return err
	}
	logger.Info(ctx, "upload", "session.posted",
		slog.Int64("user_id", s.UserID),
		slog.String("name", s.DisplayName),
		slog.String("outcome", logger.Status(pubErr)),
		slog.Duration("duration", logger.Took(start)),
	)
	return pubErr
}

// reprompt re-asks the current question without changing state. Unbounded;
// there is no maximum-attempts cutoff.
func (e *Engine) reprompt(ctx context.Context, s *Session, msg string) error {
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		return err
	}
	logger.Debug(ctx, "upload", "input.reprompt",
		slog.Int64("user_id", s.UserID),
		slog.String("state", string(s.State)),
	)
	if s.State == StateAwaitingFileName {
		return e.replier.Send(ctx, s.UserID, msg)
	}
	return e.replier.AskChoice(ctx, s.UserID, msg)
}
