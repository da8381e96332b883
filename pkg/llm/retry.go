package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RobinCoderZhao/newsdesk/pkg/retry"
)

// retryClient wraps any Client with retry logic.
type retryClient struct {
	inner  Client
	policy retry.Policy
}

// wrapWithRetry wraps a client with retry logic.
func wrapWithRetry(client Client, maxRetries int) Client {
	if maxRetries <= 1 {
		return client
	}
	return &retryClient{
		inner: client,
		policy: retry.Policy{
			Retries:     maxRetries,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
			IsRetryable: isRetryableError,
		},
	}
}

func (r *retryClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*Response, error) {
		return r.inner.Generate(ctx, req)
	})
}

func (r *retryClient) Provider() Provider { return r.inner.Provider() }

func (r *retryClient) Close() error { return r.inner.Close() }

// isRetryableError retries rate limits on top of the default 5xx and
// transport failures.
func isRetryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return true
	}
	return retry.DefaultRetryable(err)
}
