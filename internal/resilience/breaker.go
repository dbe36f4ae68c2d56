// Package resilience guards calls to flaky external services.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned by Breaker.Do while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's operating mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerOptions configures a Breaker. Zero values get defaults.
type BreakerOptions struct {
	Name         string
	MaxFailures  int           // consecutive failures before opening (default 5)
	ResetTimeout time.Duration // time spent open before a probe is allowed (default 30s)
	Log          zerolog.Logger
}

// Breaker is a consecutive-failure circuit breaker. After MaxFailures failures
// in a row it rejects calls for ResetTimeout, then lets one probe through:
// success closes it, failure re-opens it.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:         opts.Name,
		maxFailures:  opts.MaxFailures,
		resetTimeout: opts.ResetTimeout,
		log:          opts.Log,
		now:          time.Now,
	}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	if err != nil {
		b.failures++
		if probe || b.failures >= b.maxFailures {
			if b.state != StateOpen {
				b.log.Warn().Str("breaker", b.name).Int("failures", b.failures).Msg("circuit breaker opened")
			}
			b.state = StateOpen
			b.openedAt = b.now()
		}
		return err
	}
	if b.state != StateClosed {
		b.log.Info().Str("breaker", b.name).Msg("circuit breaker closed")
	}
	b.state = StateClosed
	b.failures = 0
	return nil
}

func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Name returns the breaker's label.
func (b *Breaker) Name() string { return b.name }
