package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultRetryConfig retries three times within ten seconds per request.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Timeout:        10 * time.Second,
}

// RetryProvider retries transient failures with jittered exponential backoff.
type RetryProvider struct {
	provider Provider
	logger   *logrus.Logger
	config   RetryConfig
}

var _ Provider = (*RetryProvider)(nil)

// NewRetryProvider wraps p. A nil logger disables retry logging.
func NewRetryProvider(p Provider, logger *logrus.Logger, config ...RetryConfig) *RetryProvider {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &RetryProvider{provider: p, logger: logger, config: cfg}
}

// SpotPrice retries the underlying spot price lookup.
func (r *RetryProvider) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	return r.do(ctx, "spot "+symbol, func(ctx context.Context) (float64, error) {
		return r.provider.SpotPrice(ctx, symbol)
	})
}

// VolatilityIndex retries the underlying VIX lookup.
func (r *RetryProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	return r.do(ctx, "vix", r.provider.VolatilityIndex)
}

// NetLiquidation retries the underlying account value lookup.
func (r *RetryProvider) NetLiquidation(ctx context.Context) (float64, error) {
	return r.do(ctx, "account value", r.provider.NetLiquidation)
}

func (r *RetryProvider) do(ctx context.Context, what string, fn func(context.Context) (float64, error)) (float64, error) {
	callCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := callCtx.Err(); err != nil {
			return 0, fmt.Errorf("%s lookup canceled: %w", what, err)
		}

		v, err := fn(callCtx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == r.config.MaxRetries {
			break
		}
		if r.logger != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"lookup":  what,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Debug("Transient market data error, retrying")
		}
		select {
		case <-time.After(backoff):
			backoff = r.nextBackoff(backoff)
		case <-callCtx.Done():
			return 0, fmt.Errorf("%s lookup canceled during backoff: %w", what, callCtx.Err())
		}
	}
	return 0, fmt.Errorf("%s lookup failed: %w", what, lastErr)
}

func (r *RetryProvider) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > r.config.MaxBackoff {
		backoff = r.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		if j, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			backoff += time.Duration(j.Int64())
		}
	}
	return backoff
}

// isTransientError reports whether a retry could succeed. Missing data and an
// open circuit are final.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) ||
		errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
