// Package opsapi implements the HTTP client for the farm operations API.
// All methods are context-aware, carry the bearer token, respect the shared
// rate limiter, and retry on transient errors (429, 5xx) up to the configured
// attempt count.
package opsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://api.kebunops.id/"
	defaultAttempts = 1
	userAgent       = "opsreport-cli/1.0"
)

// Error taxonomy. Every failure returned by the client matches exactly one of
// these with errors.Is / errors.As.
var (
	ErrTransport = errors.New("transport failure")
	ErrDecode    = errors.New("malformed response")
	ErrEmpty     = errors.New("empty response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// PayloadCache persists raw response bodies keyed by request. The local bbolt
// store implements it.
type PayloadCache interface {
	GetPayload(key string) ([]byte, bool, error)
	PutPayload(key string, body []byte) error
}

// CacheMode selects how the client uses its PayloadCache.
type CacheMode int

const (
	// CacheOff ignores the cache.
	CacheOff CacheMode = iota
	// CacheWrite fetches live and records every successful body.
	CacheWrite
	// CacheOffline serves only from the cache and never touches the network.
	CacheOffline
)

// ErrNotCached is returned in offline mode when no stored payload matches.
var ErrNotCached = errors.New("not in local store")

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RatePerSec float64
	// Attempts is the total number of tries per request (1 = no retry).
	Attempts int
	Debug    bool
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	Cache      PayloadCache
	CacheMode  CacheMode
}

// Client is the operations API HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	debug      bool
	cache      PayloadCache
	cacheMode  CacheMode
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	ratePerSec := opts.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = defaultAttempts
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		attempts:   attempts,
		debug:      opts.Debug,
		cache:      opts.Cache,
		cacheMode:  opts.CacheMode,
	}
}

// CacheKey builds the store key for a request: the endpoint plus its sorted
// query string.
func CacheKey(endpoint string, params url.Values) string {
	key := strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	return key
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// getRaw returns the response body for endpoint, honouring the cache mode.
func (c *Client) getRaw(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.cache == nil || c.cacheMode == CacheOff {
		return c.fetch(ctx, endpoint, params)
	}
	key := CacheKey(endpoint, params)
	if c.cacheMode == CacheOffline {
		body, ok, err := c.cache.GetPayload(key)
		if err != nil {
			return nil, fmt.Errorf("reading local store: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, key)
		}
		slog.Debug("serving from local store", "key", key)
		return body, nil
	}
	body, err := c.fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := c.cache.PutPayload(key, body); err != nil {
		slog.Warn("could not store payload", "key", key, "err", err)
	}
	return body, nil
}

// fetch performs a GET and returns the response body of a 2xx reply.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	reqURL := c.baseURL + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	if c.debug {
		slog.Debug("ops request", "url", reqURL, "token", redact(c.token))
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*500) * time.Millisecond
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: reading body: %v", ErrTransport, err)
			continue
		}

		if c.debug {
			slog.Debug("ops response", "status", resp.StatusCode, "bytes", len(body))
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{Code: resp.StatusCode, Message: apiMessage(body)}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Code: resp.StatusCode, Message: apiMessage(body)}
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, ErrEmpty
		}
		return body, nil
	}
	if c.attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

// decode unmarshals a JSON body with numbers kept as json.Number so that
// large integer IDs survive untouched.
func decode(body []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// apiMessage extracts a human-readable message from an error body.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + "****" + token[len(token)-2:]
}
