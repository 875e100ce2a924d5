package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/filegate/filegate/core/config"
	"github.com/filegate/filegate/core/logger"
	"log/slog"
)

// Result is the outcome of a shorten attempt. URL is always usable: on
// failure it carries the original input, so callers never branch on Err to
// obtain a link. Shortened tells whether the service actually produced one.
type Result struct {
	URL       string
	Shortened bool
	Err       error
}

// Client wraps a single external URL shortening endpoint. Failures degrade
// to pass-through of the input; no retries.
type Client struct {
	baseURL string
	apiKey  string
	mode    string
	http    *http.Client
}

// New builds a Client from configuration. Returns nil when shortening is not
// configured; callers treat a nil client as "feature off".
func New(cfg coreconfig.ShortenerConfig) *Client {
	if !cfg.Enabled() {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		mode:    cfg.Mode,
		http:    &http.Client{Timeout: timeout},
	}
}

// Shorten asks the external service for a short link. One outbound call per
// invocation.
func (c *Client) Shorten(ctx context.Context, longURL string) Result {
	start := time.Now()

	short, err := c.request(ctx, longURL)
	if err != nil {
		logger.Warn(ctx, "shortener", "shorten.fallback",
			slog.String("mode", c.mode),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return Result{URL: longURL, Shortened: false, Err: err}
	}

	logger.Debug(ctx, "shortener", "shorten.ok",
		slog.String("mode", c.mode),
		slog.Duration("duration", logger.Took(start)),
	)
	return Result{URL: short, Shortened: true}
}

func (c *Client) request(ctx context.Context, longURL string) (string, error) {
	switch c.mode {
	case coreconfig.ShortenerModeBearer:
		return c.requestBearer(ctx, longURL)
	default:
		return c.requestQuery(ctx, longURL)
	}
}

// requestQuery performs GET <base>?api=<key>&url=<encoded> and accepts either
// a JSON {status, shortenedUrl} payload or a bare short link in the body.
func (c *Client) requestQuery(ctx context.Context, longURL string) (string, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	q.Set("api", c.apiKey)
	q.Set("url", longURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var payload struct {
		Status       string `json:"status"`
		ShortenedURL string `json:"shortenedUrl"`
	}
	if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil && payload.Status != "" {
		if !strings.EqualFold(payload.Status, "success") {
			return "", fmt.Errorf("shortener: status %q", payload.Status)
		}
		return validateLink(payload.ShortenedURL)
	}

	// Some deployments answer with the short link as plain text.
	return validateLink(string(body))
}

// requestBearer performs POST <base> with a JSON body and bearer auth,
// expecting {shortUrl} back.
func (c *Client) requestBearer(ctx context.Context, longURL string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{"longUrl": longURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var payload struct {
		ShortURL string `json:"shortUrl"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("shortener: malformed response: %w", err)
	}
	return validateLink(payload.ShortURL)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shortener: unexpected status %s", resp.Status)
	}
	return body, nil
}

func validateLink(raw string) (string, error) {
	link := strings.TrimSpace(raw)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("shortener: malformed link %q", logger.SanitizeLimit(link, 64))
	}
	return link, nil
}
