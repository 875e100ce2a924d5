package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/internal/ingest"
	"github.com/filegate/filegate/internal/shortener"
)

type stubIngestor struct {
	ref   ingest.FileReference
	err   error
	calls int
}

func (s *stubIngestor) Ingest(_ context.Context, _ ingest.Attachment) (ingest.FileReference, error) {
	s.calls++
	return s.ref, s.err
}

type stubShortener struct {
	result shortener.Result
	calls  int
}

func (s *stubShortener) Shorten(_ context.Context, longURL string) shortener.Result {
	s.calls++
	if s.result.URL == "" {
		return shortener.Result{URL: longURL, Shortened: false, Err: s.result.Err}
	}
	return s.result
}

type publishCall struct {
	name   string
	target string
}

type stubPublisher struct {
	err   error
	calls []publishCall
}

func (s *stubPublisher) Publish(_ context.Context, displayName, target string) error {
	s.calls = append(s.calls, publishCall{name: displayName, target: target})
	return s.err
}

type recordCall struct {
	userID    int64
	name      string
	target    string
	shortened bool
}

type stubRecorder struct {
	calls []recordCall
}

func (s *stubRecorder) RecordPost(_ context.Context, userID int64, displayName, target string, shortened bool) error {
	s.calls = append(s.calls, recordCall{userID: userID, name: displayName, target: target, shortened: shortened})
	return nil
}

type stubReplier struct {
	sent  []string
	asked []string
}

func (s *stubReplier) Send(_ context.Context, _ int64, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubReplier) AskChoice(_ context.Context, _ int64, text string) error {
	s.asked = append(s.asked, text)
	return nil
}

func (s *stubReplier) last() string {
	if n := len(s.sent); n > 0 {
		return s.sent[n-1]
	}
	return ""
}

type fixture struct {
	engine    *Engine
	store     *MemoryStore
	ingestor  *stubIngestor
	shortener *stubShortener
	publisher *stubPublisher
	recorder  *stubRecorder
	replier   *stubReplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemoryStore(30*time.Minute, 0),
		ingestor: &stubIngestor{
			ref: ingest.FileReference{URL: "https://cdn/x/report.pdf", DisplayName: "report.pdf", Size: 1024},
		},
		shortener: &stubShortener{result: shortener.Result{URL: "https://s.ly/abc", Shortened: true}},
		publisher: &stubPublisher{},
		recorder:  &stubRecorder{},
		replier:   &stubReplier{},
	}
	t.Cleanup(func() { _ = f.store.Close() })
	f.engine = NewEngine(Options{
		Store:     f.store,
		Ingestor:  f.ingestor,
		Shortener: f.shortener,
		Publisher: f.publisher,
		Recorder:  f.recorder,
		Replier:   f.replier,
	})
	return f
}

func (f *fixture) sendFile(t *testing.T) {
	t.Helper()
	att := ingest.Attachment{Kind: ingest.KindDocument, FileID: "abc123", FileName: "report.pdf"}
	require.NoError(t, f.engine.HandleFile(context.Background(), 42, att))
}

func TestHappyPathWithShortening(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.Equal(t, []string{MsgAskShorten}, f.replier.asked)
	assert.True(t, f.engine.InProgress(42))

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.Equal(t, 1, f.shortener.calls)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "report.pdf"))

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, publishCall{name: "report.pdf", target: "https://s.ly/abc"}, f.publisher.calls[0])
	assert.Equal(t, MsgPosted, f.replier.last())
	assert.False(t, f.engine.InProgress(42), "session must be destroyed on posting")

	require.Len(t, f.recorder.calls, 1)
	assert.True(t, f.recorder.calls[0].shortened)
}

func TestShortenerFallback(t *testing.T) {
	f := newFixture(t)
	f.shortener.result = shortener.Result{Err: errors.New("timeout")}

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	assert.Contains(t, f.replier.sent, MsgShortenFallback)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "report.pdf"))

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, "https://cdn/x/report.pdf", f.publisher.calls[0].target,
		"publish target must fall back to the original reference")
	assert.False(t, f.engine.InProgress(42))

	require.Len(t, f.recorder.calls, 1)
	assert.False(t, f.recorder.calls[0].shortened)
}

func TestDeclineShortenKeepsOriginalTarget(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "no"))
	assert.Zero(t, f.shortener.calls)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "notes.txt"))

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, "https://cdn/x/report.pdf", f.publisher.calls[0].target)
}

func TestDeclinePostCancelsWithoutPublishing(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "no"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "no"))

	assert.Empty(t, f.publisher.calls)
	assert.Equal(t, MsgCancelled, f.replier.last())
	assert.False(t, f.engine.InProgress(42))
}

func TestInvalidChoiceReprompts(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	askedBefore := len(f.replier.asked)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "maybe"))

	assert.Zero(t, f.shortener.calls, "no external call on invalid input")
	assert.Empty(t, f.publisher.calls)
	assert.Equal(t, askedBefore+1, len(f.replier.asked), "exactly one re-prompt")
	assert.Equal(t, MsgRepromptChoice, f.replier.asked[len(f.replier.asked)-1])

	s, err := f.store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingShortenChoice, s.State, "state must not change")
}

func TestChoiceMatchingIsCaseInsensitiveExact(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "YeS"))
	require.Equal(t, 1, f.shortener.calls)

	// "yess" must not match.
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yess"))
	s, err := f.store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPostChoice, s.State)
}

func TestIngestFailureAbortsSession(t *testing.T) {
	f := newFixture(t)
	f.ingestor.err = &ingest.Error{Reason: "unsupported attachment"}

	att := ingest.Attachment{Kind: "sticker", FileID: "zzz"}
	err := f.engine.HandleFile(context.Background(), 42, att)
	require.Error(t, err)

	assert.Contains(t, f.replier.sent, MsgIngestFailed)
	assert.False(t, f.engine.InProgress(42), "no partial session may survive")
}

func TestPublishFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("channel unreachable")

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "no"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))

	err := f.engine.HandleText(context.Background(), 42, "report.pdf")
	require.Error(t, err)

	assert.Contains(t, f.replier.sent, MsgPublishFailed)
	assert.False(t, f.engine.InProgress(42), "session completes best-effort")
	assert.Empty(t, f.recorder.calls, "failed posts are not recorded")
}

func TestNewFileReplacesSession(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))

	// A second file restarts the wizard from the shorten question.
	f.sendFile(t)
	s, err := f.store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingShortenChoice, s.State)
	assert.Empty(t, s.ShortReference)
}

func TestEmptyNameReprompts(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "no"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "   "))

	assert.Empty(t, f.publisher.calls)
	assert.Equal(t, MsgRepromptName, f.replier.last())

	s, err := f.store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFileName, s.State)
}

func TestNoShortenerSkipsQuestion(t *testing.T) {
	f := newFixture(t)
	f.engine = NewEngine(Options{
		Store:     f.store,
		Ingestor:  f.ingestor,
		Publisher: f.publisher,
		Recorder:  f.recorder,
		Replier:   f.replier,
	})

	f.sendFile(t)
	require.Equal(t, []string{MsgAskPost}, f.replier.asked)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "yes"))
	require.NoError(t, f.engine.HandleText(context.Background(), 42, "report.pdf"))
	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, "https://cdn/x/report.pdf", f.publisher.calls[0].target)
}

func TestCancelDestroysSession(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.Cancel(context.Background(), 42))

	assert.Equal(t, MsgCancelled, f.replier.last())
	assert.False(t, f.engine.InProgress(42))
}

func TestTextWithoutSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.HandleText(context.Background(), 42, "hello"))
	assert.Equal(t, MsgNoActive, f.replier.last())
	assert.Empty(t, f.replier.asked)
}

func TestChoiceCallbackFeedsSameTable(t *testing.T) {
	f := newFixture(t)

	f.sendFile(t)
	require.NoError(t, f.engine.HandleChoice(context.Background(), 42, "yes"))
	require.Equal(t, 1, f.shortener.calls)
}
