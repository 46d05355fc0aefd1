// Package httpx holds shared plumbing for outbound HTTP clients.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen signals that a call was rejected without reaching the upstream.
var ErrCircuitOpen = errors.New("circuit open")

// CallerFault is implemented by errors caused by the request itself rather
// than by the upstream, such as a 4xx answer to an unknown id.
type CallerFault interface {
	CallerFault() bool
}

// CircuitBreaker guards calls to a single upstream.
type CircuitBreaker interface {
	Execute(fn func() error) error
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker trips after maxFailures consecutive upstream failures and stays open for openFor.
// Caller faults and canceled contexts do not count as failures.
func NewCircuitBreaker(name string, openFor time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !IsUpstreamFailure(err)
		},
	}
	return &circuitBreakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *circuitBreakerWrapper) Execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("breaker (%s): %w: %w", g.breaker.Name(), ErrCircuitOpen, err)
	}
	return err
}

// IsUpstreamFailure reports whether err should count against the upstream's health.
// Deadlines still count: a slow upstream is a failing one.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var cf CallerFault
	if errors.As(err, &cf) && cf.CallerFault() {
		return false
	}
	return true
}

// NoopBreaker runs every call directly.
type NoopBreaker struct{}

// Execute calls fn.
func (NoopBreaker) Execute(fn func() error) error { return fn() }
