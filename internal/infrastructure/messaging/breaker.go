// Package messaging holds broker-independent decorators for port.EventPublisher.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects publishes
var ErrCircuitOpen = errors.New("event publisher circuit breaker open")

// BreakerSettings configures the circuit breaker
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// BreakerPublisher stops calling an unavailable broker after repeated failures
type BreakerPublisher struct {
	next    port.EventPublisher
	circuit *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next with a circuit breaker
func NewBreakerPublisher(next port.EventPublisher, settings BreakerSettings, log *logger.Logger) *BreakerPublisher {
	if settings.Name == "" {
		settings.Name = "events"
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 5
	}
	if settings.Interval == 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}

	threshold := settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("Event publisher circuit state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			}
		},
	})

	return &BreakerPublisher{next: next, circuit: cb}
}

// PublishEvent forwards the event unless the circuit is open
func (p *BreakerPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	_, err := p.circuit.Execute(func() (interface{}, error) {
		return nil, p.next.PublishEvent(ctx, subject, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, subject)
	}
	return err
}

// State returns the current breaker state
func (p *BreakerPublisher) State() gobreaker.State {
	return p.circuit.State()
}

// Close closes the wrapped publisher
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
