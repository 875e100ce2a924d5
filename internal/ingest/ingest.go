package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/filegate/filegate/core/logger"
	"log/slog"
)

// Kind identifies the attachment flavour carried by an inbound message.
type Kind string

const (
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindVoice    Kind = "voice"
)

// Attachment is a transport-agnostic description of an inbound file.
type Attachment struct {
	Kind     Kind
	FileID   string
	FileName string
	MIME     string
	Size     int64
}

// FileReference is the canonical locator produced by a successful ingest.
type FileReference struct {
	URL         string
	DisplayName string
	Size        int64
}

// Error wraps ingest failures with a stable reason for logging and routing.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s: %v", e.Reason, e.Err)
	}
	return "ingest: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns a machine-readable error code for handler summaries.
func (e *Error) Code() string {
	return "INGEST_" + strings.ToUpper(strings.ReplaceAll(e.Reason, " ", "_"))
}

// Source resolves transport-native file locators and bytes.
type Source interface {
	ResolveURL(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// BlobStore is an optional secondary storage backend. When configured, the
// ingest result points at the stored copy instead of the transport locator.
type BlobStore interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64) (string, error)
}

// Adapter turns inbound attachments into canonical file references.
type Adapter struct {
	source Source
	store  BlobStore
}

// NewAdapter builds an Adapter. store may be nil when no secondary storage
// is configured.
func NewAdapter(source Source, store BlobStore) *Adapter {
	return &Adapter{source: source, store: store}
}

var supportedKinds = map[Kind]struct{}{
	KindDocument: {},
	KindPhoto:    {},
	KindVideo:    {},
	KindAudio:    {},
	KindVoice:    {},
}

// Ingest resolves a retrievable reference for the attachment. The storage
// decision is made once per call: secondary store when configured, transport
// locator otherwise. There is no fallback between the two.
func (a *Adapter) Ingest(ctx context.Context, att Attachment) (FileReference, error) {
	start := time.Now()

	if _, ok := supportedKinds[att.Kind]; !ok || att.Kind == "" {
		return FileReference{}, &Error{Reason: "unsupported attachment"}
	}
	if strings.TrimSpace(att.FileID) == "" {
		return FileReference{}, &Error{Reason: "missing file id"}
	}

	name := displayName(att)

	var (
		url string
		err error
	)
	if a.store != nil {
		url, err = a.uploadToStore(ctx, att, name)
		if err != nil {
			return FileReference{}, &Error{Reason: "store upload failed", Err: err}
		}
	} else {
		url, err = a.source.ResolveURL(ctx, att.FileID)
		if err != nil {
			return FileReference{}, &Error{Reason: "unretrievable attachment", Err: err}
		}
	}

	logger.Info(ctx, "ingest", "ingest.done",
		slog.String("kind", string(att.Kind)),
		slog.String("name", name),
		slog.Int64("size", att.Size),
		slog.Bool("stored", a.store != nil),
		slog.Duration("duration", logger.Took(start)),
	)

	return FileReference{URL: url, DisplayName: name, Size: att.Size}, nil
}

func (a *Adapter) uploadToStore(ctx context.Context, att Attachment, name string) (string, error) {
	body, err := a.source.Download(ctx, att.FileID)
	if err != nil {
		return "", err
	}
	defer body.Close()
	return a.store.Upload(ctx, name, body, att.Size)
}

// displayName derives a readable default name; users may override it later
// in the conversation.
func displayName(att Attachment) string {
	if n := strings.TrimSpace(att.FileName); n != "" {
		return path.Base(n)
	}
	return string(att.Kind)
}
