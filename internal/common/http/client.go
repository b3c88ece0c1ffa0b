package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatbot-parser/internal/common/logger"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Options struct {
	Name               string
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	RetryAttempts      uint
	RetryDelay         time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Client posts JSON to one upstream API. Every call runs through a circuit
// breaker; inside it, transient failures are retried with backoff.
type Client struct {
	httpClient *http.Client
	opts       Options
	breaker    *gobreaker.CircuitBreaker
	logger     logger.Logger
}

func NewClient(opts Options, log logger.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     log.WithFields(map[string]interface{}{"upstream": opts.Name}),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerMaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return c
}

// BreakerState exposes the breaker state for health output.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// PostJSON sends payload to BaseURL+path and returns the response body.
func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var respBody []byte
		err := retry.Do(
			func() error {
				var err error
				respBody, err = c.post(ctx, path, body)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(c.opts.RetryAttempts),
			retry.Delay(c.opts.RetryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(isRetryable),
			retry.OnRetry(func(n uint, err error) {
				c.logger.Debug("retrying request", map[string]interface{}{
					"path":    path,
					"attempt": n + 1,
					"error":   err.Error(),
				})
			}),
		)
		return respBody, err
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
