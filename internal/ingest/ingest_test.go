package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	url         string
	resolveErr  error
	payload     string
	downloadErr error
}

func (s *stubSource) ResolveURL(_ context.Context, _ string) (string, error) {
	return s.url, s.resolveErr
}

func (s *stubSource) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return io.NopCloser(strings.NewReader(s.payload)), nil
}

type stubBlobStore struct {
	link      string
	err       error
	uploaded  string
	uploadLen int64
}

func (s *stubBlobStore) Upload(_ context.Context, name string, r io.Reader, size int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploaded = name
	s.uploadLen = size
	_, _ = io.Copy(io.Discard, r)
	return s.link, nil
}

func TestIngestTransportLocator(t *testing.T) {
	a := NewAdapter(&stubSource{url: "https://cdn/x/report.pdf"}, nil)

	ref, err := a.Ingest(context.Background(), Attachment{
		Kind: KindDocument, FileID: "f1", FileName: "docs/report.pdf", Size: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x/report.pdf", ref.URL)
	assert.Equal(t, "report.pdf", ref.DisplayName, "base name only")
	assert.EqualValues(t, 9, ref.Size)
}

func TestIngestPrefersSecondaryStore(t *testing.T) {
	store := &stubBlobStore{link: "https://drive/abc"}
	a := NewAdapter(&stubSource{url: "https://cdn/x/a", payload: "bytes"}, store)

	ref, err := a.Ingest(context.Background(), Attachment{Kind: KindDocument, FileID: "f1", FileName: "a.bin"})
	require.NoError(t, err)
	assert.Equal(t, "https://drive/abc", ref.URL, "stored copy wins over transport locator")
	assert.Equal(t, "a.bin", store.uploaded)
}

func TestIngestUnsupportedKind(t *testing.T) {
	a := NewAdapter(&stubSource{url: "u"}, nil)

	_, err := a.Ingest(context.Background(), Attachment{Kind: "sticker", FileID: "f1"})
	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "INGEST_UNSUPPORTED_ATTACHMENT", ingErr.Code())
}

func TestIngestMissingFileID(t *testing.T) {
	a := NewAdapter(&stubSource{url: "u"}, nil)

	_, err := a.Ingest(context.Background(), Attachment{Kind: KindPhoto})
	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "INGEST_MISSING_FILE_ID", ingErr.Code())
}

func TestIngestResolveFailure(t *testing.T) {
	a := NewAdapter(&stubSource{resolveErr: errors.New("gone")}, nil)

	_, err := a.Ingest(context.Background(), Attachment{Kind: KindDocument, FileID: "f1"})
	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "INGEST_UNRETRIEVABLE_ATTACHMENT", ingErr.Code())
}

func TestIngestStoreUploadFailureNoFallback(t *testing.T) {
	src := &stubSource{url: "https://cdn/x/a", payload: "bytes"}
	a := NewAdapter(src, &stubBlobStore{err: errors.New("quota")})

	_, err := a.Ingest(context.Background(), Attachment{Kind: KindDocument, FileID: "f1"})
	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "INGEST_STORE_UPLOAD_FAILED", ingErr.Code(),
		"configured store must not fall back to the transport locator")
}

func TestIngestDownloadFailure(t *testing.T) {
	a := NewAdapter(&stubSource{downloadErr: errors.New("net down")}, &stubBlobStore{link: "x"})

	_, err := a.Ingest(context.Background(), Attachment{Kind: KindVideo, FileID: "f1"})
	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
}

func TestDisplayNameFallsBackToKind(t *testing.T) {
	a := NewAdapter(&stubSource{url: "u"}, nil)

	ref, err := a.Ingest(context.Background(), Attachment{Kind: KindVoice, FileID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "voice", ref.DisplayName)
}
