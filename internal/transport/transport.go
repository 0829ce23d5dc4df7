// Package transport is the single-endpoint JSON POST client described in
// spec §4.C. It follows the teacher's resty-based Client in internal/exchange
// (base URL + timeout + structured logging) but replaces the teacher's
// always-on resty retry condition with an explicit, opt-in back-off policy
// so HTTP_4XX/HTTP_5XX/IO classification stays visible to the caller instead
// of being swallowed inside resty's own retry loop.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"hlgo/pkg/hlerr"
)

// RetryPolicy controls the back-off wrapper around post. Back-off is
// min(prev×Multiplier, MaxBackoff); HTTP_4XX short-circuits regardless of
// MaxRetries.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// NoRetry disables the back-off wrapper: post is attempted exactly once.
var NoRetry = RetryPolicy{}

// Client is the JSON transport shared by the metadata cache, account
// reader, and order facade. One Client instance backs both /info and
// /exchange traffic for a given base URL.
type Client struct {
	http       *resty.Client
	infoPath   string
	exchgPath  string
	retry      RetryPolicy
	logger     *slog.Logger
	debugWire  bool
}

// Config is the subset of client settings transport needs to build itself;
// internal/config.Config.TransportConfig projects its own fields into it.
type Config struct {
	BaseURL      string
	InfoPath     string // default "/info"
	ExchangePath string // default "/exchange"
	Timeout      time.Duration
	Retry        RetryPolicy
	DebugWire    bool
}

// New builds a Client. logger must not be nil; pass slog.Default() if the
// caller has no preference.
func New(cfg Config, logger *slog.Logger) *Client {
	infoPath := cfg.InfoPath
	if infoPath == "" {
		infoPath = "/info"
	}
	exchgPath := cfg.ExchangePath
	if exchgPath == "" {
		exchgPath = "/exchange"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      httpClient,
		infoPath:  infoPath,
		exchgPath: exchgPath,
		retry:     cfg.Retry,
		logger:    logger.With("component", "transport"),
		debugWire: cfg.DebugWire,
	}
}

// PostInfo issues a /info request and returns the raw JSON response body.
func (c *Client) PostInfo(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.postWithRetry(ctx, c.infoPath, payload)
}

// PostExchange issues a /exchange request (a signed action envelope) and
// returns the raw JSON response body.
func (c *Client) PostExchange(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.postWithRetry(ctx, c.exchgPath, payload)
}

func (c *Client) postWithRetry(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	backoff := c.retry.InitialBackoff
	attempts := c.retry.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, hlerr.Wrap(hlerr.IO, "context cancelled during retry wait", ctx.Err())
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, c.retry.Multiplier, c.retry.MaxBackoff)
		}

		result, err := c.post(ctx, path, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !hlerr.Retryable(err) {
			return nil, err
		}
		c.logger.Warn("retrying after classified error", "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func nextBackoff(prev time.Duration, multiplier float64, max time.Duration) time.Duration {
	if prev <= 0 {
		return prev
	}
	next := time.Duration(float64(prev) * multiplier)
	if max > 0 && next > max {
		return max
	}
	return next
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	if c.debugWire {
		if body, err := json.Marshal(payload); err == nil {
			c.logger.Debug("request", "path", path, "body", string(body))
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		return nil, hlerr.Wrap(hlerr.IO, fmt.Sprintf("post %s", path), err)
	}

	if c.debugWire {
		c.logger.Debug("response", "path", path, "status", resp.StatusCode(), "body", resp.String())
	}

	status := resp.StatusCode()
	if status >= 400 {
		return nil, hlerr.HTTPStatus(status, resp.String())
	}
	if status < 200 || status >= 300 {
		return nil, hlerr.Wrap(hlerr.IO, fmt.Sprintf("unexpected status %d", status), errors.New(resp.String()))
	}
	return json.RawMessage(resp.Body()), nil
}
