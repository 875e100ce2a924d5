package app

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/internal/ingest"

	tele "gopkg.in/telebot.v4"
)

func TestExtractAttachmentDocument(t *testing.T) {
	m := &tele.Message{
		Document: &tele.Document{
			File:     tele.File{FileID: "doc1", FileSize: 2048},
			FileName: "report.pdf",
			MIME:     "application/pdf",
		},
	}

	att, ok := extractAttachment(m)
	require.True(t, ok)
	assert.Equal(t, ingest.KindDocument, att.Kind)
	assert.Equal(t, "doc1", att.FileID)
	assert.Equal(t, "report.pdf", att.FileName)
	assert.EqualValues(t, 2048, att.Size)
}

func TestExtractAttachmentPhotoHasNoName(t *testing.T) {
	m := &tele.Message{
		Photo: &tele.Photo{File: tele.File{FileID: "ph1", FileSize: 512}},
	}

	att, ok := extractAttachment(m)
	require.True(t, ok)
	assert.Equal(t, ingest.KindPhoto, att.Kind)
	assert.Empty(t, att.FileName)
}

func TestExtractAttachmentVoice(t *testing.T) {
	m := &tele.Message{
		Voice: &tele.Voice{File: tele.File{FileID: "v1"}, MIME: "audio/ogg"},
	}

	att, ok := extractAttachment(m)
	require.True(t, ok)
	assert.Equal(t, ingest.KindVoice, att.Kind)
	assert.Equal(t, "audio/ogg", att.MIME)
}

func TestExtractAttachmentNone(t *testing.T) {
	_, ok := extractAttachment(&tele.Message{Text: "just text"})
	assert.False(t, ok)

	_, ok = extractAttachment(nil)
	assert.False(t, ok)
}

func TestDecodeDeepLinkRoundTrip(t *testing.T) {
	target := "https://cdn/x/report.pdf"

	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding} {
		link, ok := decodeDeepLink(enc.EncodeToString([]byte(target)))
		require.True(t, ok)
		assert.Equal(t, target, link)
	}
}

func TestDecodeDeepLinkRejectsGarbage(t *testing.T) {
	_, ok := decodeDeepLink("%%%not-base64%%%")
	assert.False(t, ok)

	// Valid base64 but not a link.
	_, ok = decodeDeepLink(base64.URLEncoding.EncodeToString([]byte("rm -rf /")))
	assert.False(t, ok)
}
