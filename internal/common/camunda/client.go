package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/errors"
	"chatbot-parser/internal/common/logger"

	"github.com/avast/retry-go/v4"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with retry and error mapping.
type Client struct {
	client zbc.Client
	config ClientConfig
	logger logger.Logger
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	Retry                  RetryConfig
}

// RetryConfig bounds retries of transient broker failures.
type RetryConfig struct {
	Attempts  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryConfig = RetryConfig{
	Attempts:  4,
	BaseDelay: time.Second,
	MaxDelay:  10 * time.Second,
}

// ConfigFrom builds a ClientConfig from the camunda config section.
func ConfigFrom(cfg config.CamundaConfig) ClientConfig {
	return ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.UsePlaintext,
		ConnectionTimeout:      config.GetDuration(cfg.Timeout),
		RequestTimeout:         config.GetDuration(cfg.RequestTimeout),
		Retry:                  DefaultRetryConfig,
	}
}

// NewClient dials the gateway and waits until the topology answers.
func NewClient(ctx context.Context, cfg ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client: zeebeClient,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"gateway": cfg.GatewayAddress}),
	}

	if err := c.ExecuteWithRetry(ctx, "topology", c.HealthCheck); err != nil {
		zeebeClient.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Zeebe() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs command until it succeeds, fails permanently or the
// attempts run out. The final error is mapped to a StandardError.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation string, command func(context.Context) error) error {
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return command(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(c.config.Retry.Attempts),
		retry.Delay(c.config.Retry.BaseDelay),
		retry.MaxDelay(c.config.Retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableZeebeError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("zeebe operation failed, retrying", map[string]interface{}{
				"operation": operation,
				"attempt":   n + 1,
				"error":     err.Error(),
			})
		}),
	)
	if err != nil {
		return mapZeebeError(err, operation, attempts)
	}
	return nil
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempts int) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)

	enhanced := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempts > 1 {
		enhanced += fmt.Sprintf(" after %d attempts", attempts)
	}
	wrapped := fmt.Errorf("%s: %w", enhanced, err)

	switch {
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)

	case strings.Contains(lowerMsg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())

	case strings.Contains(lowerMsg, "already exists"):
		return errors.NewBusinessRuleError(wrapped.Error(), "Resource already exists")

	case strings.Contains(lowerMsg, "permission denied") ||
		strings.Contains(lowerMsg, "unauthorized"):
		return errors.NewAuthenticationError(wrapped.Error())

	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
