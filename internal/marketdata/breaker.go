package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultBreakerSettings trips at 60% failures over at least 5 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// CircuitBreakerProvider wraps a Provider with a circuit breaker. ErrUnavailable
// answers do not count as failures.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

var _ Provider = (*CircuitBreakerProvider)(nil)

// NewCircuitBreakerProvider creates a CircuitBreakerProvider.
func NewCircuitBreakerProvider(p Provider, settings BreakerSettings, logger *logrus.Logger) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			}
		},
	}

	return &CircuitBreakerProvider{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// State reports the breaker state.
func (c *CircuitBreakerProvider) State() gobreaker.State {
	return c.breaker.State()
}

func (c *CircuitBreakerProvider) exec(fn func() (float64, error)) (float64, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return 0, err
	}
	v, ok := res.(float64)
	if !ok {
		return 0, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// SpotPrice wraps the underlying provider call with the circuit breaker
func (c *CircuitBreakerProvider) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	return c.exec(func() (float64, error) { return c.provider.SpotPrice(ctx, symbol) })
}

// VolatilityIndex wraps the underlying provider call with the circuit breaker
func (c *CircuitBreakerProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	return c.exec(func() (float64, error) { return c.provider.VolatilityIndex(ctx) })
}

// NetLiquidation wraps the underlying provider call with the circuit breaker
func (c *CircuitBreakerProvider) NetLiquidation(ctx context.Context) (float64, error) {
	return c.exec(func() (float64, error) { return c.provider.NetLiquidation(ctx) })
}
