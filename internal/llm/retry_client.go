package llm

import (
	"context"
	"time"

	"taedam/internal/logging"
	"taedam/internal/xerrors"
)

// retryClient wraps a Client with bounded retry on transient failures.
type retryClient struct {
	underlying Client
	config     xerrors.RetryConfig
	logger     logging.Logger
}

// NewRetryClient decorates client with the engine's collaborator retry policy.
func NewRetryClient(client Client, config xerrors.RetryConfig) Client {
	return &retryClient{
		underlying: client,
		config:     config,
		logger:     logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	var resp *CompletionResponse
	err := xerrors.Retry(ctx, c.config, c.logger, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.underlying.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		c.logger.Warn("completion failed after retries (took %v): %v", time.Since(start), err)
		return nil, err
	}
	return resp, nil
}
