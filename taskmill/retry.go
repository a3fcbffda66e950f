package taskmill

import (
	"math"
	"time"
)

// RetryStrategy decides whether and when a failed task is delivered again.
type RetryStrategy interface {
	// ShouldRetry reports whether a task that has been delivered attempts times may run again.
	ShouldRetry(attempts, maxAttempts int) bool

	// NextRetryDelay is the delay before the next delivery.
	NextRetryDelay(attempts int) time.Duration
}

// ExponentialBackoffStrategy grows the delay by Multiplier on each attempt, capped at MaxDelay.
type ExponentialBackoffStrategy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// NewExponentialBackoffStrategy returns 1s x 2^attempts capped at 5m.
func NewExponentialBackoffStrategy() *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Minute,
	}
}

func (s *ExponentialBackoffStrategy) ShouldRetry(attempts, maxAttempts int) bool {
	return attempts < maxAttempts
}

func (s *ExponentialBackoffStrategy) NextRetryDelay(attempts int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(s.Multiplier, float64(attempts))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// FixedDelayStrategy waits the same Delay between attempts.
type FixedDelayStrategy struct {
	Delay time.Duration
}

func NewFixedDelayStrategy(delay time.Duration) *FixedDelayStrategy {
	return &FixedDelayStrategy{Delay: delay}
}

func (s *FixedDelayStrategy) ShouldRetry(attempts, maxAttempts int) bool {
	return attempts < maxAttempts
}

func (s *FixedDelayStrategy) NextRetryDelay(_ int) time.Duration {
	return s.Delay
}

// NoRetryStrategy dead-letters on the first failure.
type NoRetryStrategy struct{}

func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

func (s *NoRetryStrategy) ShouldRetry(_, _ int) bool {
	return false
}

func (s *NoRetryStrategy) NextRetryDelay(_ int) time.Duration {
	return 0
}

// Retry strategy names accepted by RetryStrategyByName.
const (
	RetryExponential = "exponential"
	RetryFixed       = "fixed"
	RetryNone        = "none"
)

// RetryStrategyByName maps a config value to a strategy. Unknown names fall back to exponential.
func RetryStrategyByName(name string, fixedDelay time.Duration) RetryStrategy {
	switch name {
	case RetryFixed:
		return NewFixedDelayStrategy(fixedDelay)
	case RetryNone:
		return NewNoRetryStrategy()
	default:
		return NewExponentialBackoffStrategy()
	}
}
