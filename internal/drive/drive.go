package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	coreconfig "github.com/filegate/filegate/core/config"
	"github.com/filegate/filegate/core/logger"
	"log/slog"
)

// Client uploads file bytes to a drive-like HTTP endpoint and returns a
// stable share link. It satisfies ingest.BlobStore.
type Client struct {
	uploadURL string
	apiKey    string
	folderID  string
	http      *http.Client
}

// New builds a Client from configuration. Returns nil when no secondary
// store is configured.
func New(cfg coreconfig.DriveConfig) *Client {
	if !cfg.Enabled() {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		uploadURL: cfg.UploadURL,
		apiKey:    cfg.APIKey,
		folderID:  cfg.FolderID,
		http:      &http.Client{Timeout: timeout},
	}
}

// Upload streams the file as multipart form data. The object key is
// generated per upload so repeated names never collide in the store.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	start := time.Now()
	key := objectKey(name)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, key, name, c.folderID, r)
		mw.Close()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("drive: unexpected status %s", resp.Status)
	}

	var payload struct {
		URL  string `json:"url"`
		Link string `json:"link"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("drive: malformed response: %w", err)
	}
	link := payload.URL
	if link == "" {
		link = payload.Link
	}
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("drive: response missing link")
	}

	logger.Info(ctx, "drive", "upload.done",
		slog.String("key", key),
		slog.Int64("size", size),
		slog.Duration("duration", logger.Took(start)),
	)
	return link, nil
}

func writeForm(mw *multipart.Writer, key, name, folderID string, r io.Reader) error {
	if err := mw.WriteField("key", key); err != nil {
		return err
	}
	if folderID != "" {
		if err := mw.WriteField("folder", folderID); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func objectKey(name string) string {
	ext := path.Ext(name)
	return uuid.NewString() + ext
}
