// Package resilience wraps calls to hosted services with a bounded
// exponential-backoff retry and a per-provider circuit breaker.
//
// Only transient failures are retried: network errors and HTTP 429/5xx.
// Everything else surfaces on the first attempt, unmodified.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/nadzzz/voicedesk/internal/telemetry"
)

// ErrCircuitOpen is returned without calling the provider while its breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// Policy tunes retry and breaker behaviour.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// FailureThreshold consecutive transient failures open the breaker
	// for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultPolicy retries once.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:       1,
		InitialInterval:  200 * time.Millisecond,
		MaxInterval:      2 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Caller guards calls to one provider.
type Caller struct {
	name    string
	policy  Policy
	breaker *gobreaker.CircuitBreaker
}

// New creates a Caller named after the provider it protects.
func New(name string, p Policy) *Caller {
	threshold := p.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     p.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// Rejections such as 400 or 401 say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.BreakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	}
	return &Caller{
		name:    name,
		policy:  p,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Name returns the provider name.
func (c *Caller) Name() string { return c.name }

// Do runs op under the breaker, retrying transient failures.
func (c *Caller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			telemetry.ProviderRetriesTotal.WithLabelValues(c.name).Inc()
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			telemetry.ProviderErrorsTotal.WithLabelValues(c.name, "circuit_open").Inc()
			return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
		}
		if !IsTransient(err) {
			telemetry.ProviderErrorsTotal.WithLabelValues(c.name, "permanent").Inc()
			return backoff.Permanent(err)
		}

		telemetry.ProviderErrorsTotal.WithLabelValues(c.name, "transient").Inc()
		slog.Debug("transient provider failure", "provider", c.name, "attempt", attempt, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	if c.policy.InitialInterval > 0 {
		b.InitialInterval = c.policy.InitialInterval
	}
	if c.policy.MaxInterval > 0 {
		b.MaxInterval = c.policy.MaxInterval
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.policy.MaxRetries), ctx))
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, c *Caller, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// StatusError is a non-2xx reply from a hosted REST API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Code, e.Body)
}

// CheckResponse returns a *StatusError for non-2xx responses, consuming a
// bounded prefix of the body for the message.
func CheckResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
