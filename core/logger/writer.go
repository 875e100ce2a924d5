package logger

import (
	"bufio"
	"io"
	"sync"
)

// asyncWriter fans log lines out to buffered sinks from a single goroutine,
// keeping formatting off the hot path of handlers.
type asyncWriter struct {
	queue   chan []byte
	flushCh chan chan error
	drained chan struct{}
	once    sync.Once

	sinks  []*bufio.Writer
	sinkMu sync.Mutex

	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
		}
	}
	aw := &asyncWriter{
		queue:   make(chan []byte, 256),
		flushCh: make(chan chan error),
		drained: make(chan struct{}),
		sinks:   sinks,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				_ = w.flushSinks()
				close(w.drained)
				return
			}
			if len(data) == 0 {
				continue
			}
			if err := w.fanOut(data); err != nil {
				w.recordErr(err)
			}
		case ack := <-w.flushCh:
			ack <- w.flushSinks()
		}
	}
}

// Write copies the line and queues it. When the queue is saturated the call
// blocks instead of dropping; losing log lines is worse than backpressure.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case w.queue <- data:
	default:
		w.queue <- data
	}
	return nil
}

// Flush blocks until every sink has been flushed.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushCh <- ack
	return <-ack
}

// Close drains the queue and returns the first write error seen, if any.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.drained
	return w.firstErr()
}

func (w *asyncWriter) fanOut(p []byte) error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	for _, sink := range w.sinks {
		if sink == nil {
			continue
		}
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	for _, sink := range w.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) recordErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}
