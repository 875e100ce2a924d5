package shortener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/filegate/filegate/core/config"
)

func newClient(t *testing.T, baseURL, mode string) *Client {
	t.Helper()
	c := New(coreconfig.ShortenerConfig{
		BaseURL:        baseURL,
		APIKey:         "k123",
		Mode:           mode,
		TimeoutSeconds: 2,
	})
	require.NotNil(t, c)
	return c
}

func TestQueryModeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k123", r.URL.Query().Get("api"))
		assert.Equal(t, "https://cdn/x/report.pdf", r.URL.Query().Get("url"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       "success",
			"shortenedUrl": "https://s.ly/abc",
		})
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/report.pdf")
	require.NoError(t, res.Err)
	assert.True(t, res.Shortened)
	assert.Equal(t, "https://s.ly/abc", res.URL)
}

func TestQueryModePlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("https://s.ly/xyz\n"))
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/a")
	require.NoError(t, res.Err)
	assert.True(t, res.Shortened)
	assert.Equal(t, "https://s.ly/xyz", res.URL)
}

func TestBearerModeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k123", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://cdn/x/a", body["longUrl"])

		_ = json.NewEncoder(w).Encode(map[string]string{"shortUrl": "https://s.ly/b"})
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeBearer).Shorten(context.Background(), "https://cdn/x/a")
	require.NoError(t, res.Err)
	assert.Equal(t, "https://s.ly/b", res.URL)
}

func TestFallbackOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/a")
	require.Error(t, res.Err)
	assert.False(t, res.Shortened)
	assert.Equal(t, "https://cdn/x/a", res.URL, "input must pass through unchanged")
}

func TestFallbackOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/a")
	require.Error(t, res.Err)
	assert.Equal(t, "https://cdn/x/a", res.URL)
}

func TestFallbackOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not a link at all"))
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/a")
	require.Error(t, res.Err)
	assert.Equal(t, "https://cdn/x/a", res.URL)
}

func TestFallbackOnUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	res := newClient(t, srv.URL, coreconfig.ShortenerModeQuery).Shorten(context.Background(), "https://cdn/x/a")
	require.Error(t, res.Err)
	assert.False(t, res.Shortened)
	assert.Equal(t, "https://cdn/x/a", res.URL)
}

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	assert.Nil(t, New(coreconfig.ShortenerConfig{}))
}
