package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every attempt.
const DefaultTimeout = 30 * time.Second

const maxBodySize = 8 << 20

// Client talks to the conversations API. Every call goes through Do, which
// applies authentication, retries and error shaping. It never mutates local state.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	policy  RetryPolicy
	sleep   Sleeper
	cache   *Cache
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithCache sets the query cache. A nil cache disables caching.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL authenticated with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		policy:  DefaultRetryPolicy,
		sleep:   sleepContext,
		cache:   NewCache(nil),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the retry policy in use.
func (c *Client) Policy() RetryPolicy { return c.policy }

// Cache returns the query cache, or nil when disabled.
func (c *Client) Cache() *Cache { return c.cache }

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Do executes req with retries and returns the raw response body.
// Failures are always *QueryError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
	}
	header := c.headers()
	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	var lastErr *QueryError
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Warn("retrying request",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Int("status", lastErr.Status))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, lastErr
			}
		}

		body, qe := c.attempt(ctx, req.Method, url, payload, header)
		if qe == nil {
			return body, nil
		}
		lastErr = qe
		if ctx.Err() != nil || !c.policy.Retryable(qe) {
			break
		}
	}

	c.logger.Info("request failed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", lastErr.Status),
		zap.String("message", lastErr.Data.Message))
	return nil, lastErr
}

func (c *Client) headers() http.Header {
	h := make(http.Header)
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	h.Set("Content-Type", "application/json")
	return h
}

func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, header http.Header) ([]byte, *QueryError) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &QueryError{Data: ErrorData{Message: DefaultErrorMessage}, Cause: err}
	}
	httpReq.Header = header.Clone()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &QueryError{
			Data:    ErrorData{Message: DefaultErrorMessage},
			Timeout: isTimeout(err) && ctx.Err() == nil,
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &QueryError{
			Status:  resp.StatusCode,
			Data:    ErrorData{Message: DefaultErrorMessage},
			Timeout: isTimeout(err) && ctx.Err() == nil,
			Cause:   err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, shapeError(resp.StatusCode, raw)
	}
	return raw, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
