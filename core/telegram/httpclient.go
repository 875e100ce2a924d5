package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/filegate/filegate/core/telegram/netutil"
)

const (
	dialTimeout        = 5 * time.Second
	tlsHandshakeLimit  = 5 * time.Second
	idleConnTimeout    = 30 * time.Second
	responseHeaderWait = 5 * time.Second
	clientTimeout      = 30 * time.Second
	keepAliveInterval  = 30 * time.Second
	transportRetries   = 3
	transportBackoff   = 2 * time.Second
)

// BuildHTTPClient returns the HTTP client handed to telebot. The retry
// transport absorbs transient dial and timeout failures below the SDK.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeLimit,
		ResponseHeaderTimeout: responseHeaderWait,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			base:       base,
			maxRetries: transportRetries,
			backoff:    transportBackoff,
		},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq, err := t.prepare(req, attempt, lastErr)
		if err != nil {
			return nil, err
		}
		if currReq == nil {
			break
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// prepare clones the request for re-send. A request whose body cannot be
// rewound is not retried; the last error stands.
func (t *retryTransport) prepare(req *http.Request, attempt int, lastErr error) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
		return clone, nil
	}
	if req.Body != nil {
		return nil, lastErr
	}
	return clone, nil
}
