package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filegate/filegate/core/logger"
	"github.com/filegate/filegate/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue once Close has been called.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the queue cannot accept another task.
	ErrQueueFull = errors.New("telegram sender: queue full")

	botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tunes the outbound dispatcher. Zero values fall back to defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the total time a single task may spend retrying.
	MaxDuration time.Duration
}

type task struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs outbound Telegram calls on a worker pool, retrying
// transient failures with linear backoff.
type Dispatcher struct {
	opts  Options
	queue chan task
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	fails atomic.Uint64
}

// NewDispatcher starts the worker pool immediately.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:  opts,
		queue: make(chan task, opts.QueueSize),
		stop:  make(chan struct{}),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.drain()
	}

	return d
}

// Enqueue hands a call to the worker pool without blocking. The run closure
// must be safe to invoke more than once when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	select {
	case d.queue <- task{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many tasks exhausted their attempts.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.fails.Load()
}

// Close rejects new tasks and waits until the queued ones are processed.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.queue)
		d.wg.Wait()
	})
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	for t := range d.queue {
		d.process(t)
	}
}

func (d *Dispatcher) process(t task) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", taskAttrs(ctx, t)...)

	attempts := d.opts.MaxRetries + 1
	var lastErr error
	reported := false

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}

		err := t.run()
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					append(taskAttrs(ctx, t),
						slog.Int("attempt", attempt),
						slog.Int("elapsed_ms", elapsedMS(start)),
					)...,
				)
			}
			reportOK(ctx, t, attempt, start)
			return
		}

		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			reportFail(ctx, t, err, attempts, start)
			reported = true
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if !sleepUnless(deadlineCtx, delay) {
			lastErr = deadlineCtx.Err()
			reportFail(ctx, t, lastErr, attempts, start)
			reported = true
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(taskAttrs(ctx, t),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)...,
		)
	}

	if lastErr != nil {
		d.fails.Add(1)
		if !reported {
			reportFail(ctx, t, lastErr, attempts, start)
		}
	}
}

// sleepUnless waits for the delay, returning false if ctx expires first.
func sleepUnless(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func taskAttrs(ctx context.Context, t task) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", t.action),
	}
	if t.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", t.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if updateID := logger.UpdateIDFrom(ctx); updateID != 0 {
		attrs = append(attrs, slog.Int("update_id", updateID))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

func reportOK(ctx context.Context, t task, attempt int, start time.Time) {
	attrs := taskAttrs(ctx, t)
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	attrs = append(attrs, slog.Int("elapsed_ms", elapsedMS(start)))
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
}

func reportFail(ctx context.Context, t task, err error, attempts int, start time.Time) {
	attrs := taskAttrs(ctx, t)
	attrs = append(attrs,
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("elapsed_ms", elapsedMS(start)),
	)
	if attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", attempts))
	}
	logger.Error(ctx, "tg.sender", "send.fail", attrs...)
}

func elapsedMS(start time.Time) int {
	d := time.Since(start)
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}

// classifyError buckets a failure into a coarse kind for log aggregation.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "timeout"
		}
		if opErr.Op == "dial" {
			return "dial"
		}
		if opErr.Op == "read" || opErr.Op == "write" {
			if kind := classifyError(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "timeout"
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			if kind := classifyError(urlErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}

	return "unknown"
}

// sanitizeErrorMessage strips bot tokens that Telegram client errors can
// echo back inside request URLs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return ""
	}
	return botTokenRe.ReplaceAllString(msg, "bot<redacted>")
}

func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	// telebot renders unknown API errors as "... (<code>)".
	msg := err.Error()
	open := strings.LastIndex(msg, "(")
	closing := strings.LastIndex(msg, ")")
	if open >= 0 && closing > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing])); convErr == nil {
			return code
		}
	}

	return 0
}
