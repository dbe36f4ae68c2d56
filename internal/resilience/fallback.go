package resilience

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrAllFailed is returned when every member of a FallbackGroup failed or was
// skipped because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup tries providers of one type in registration order, each behind
// its own Breaker. It is safe for concurrent use once built.
type FallbackGroup[T any] struct {
	members []member[T]
	opts    BreakerOptions
	log     zerolog.Logger
}

// NewFallbackGroup creates an empty group. opts is the template for each
// member's breaker; its Name is replaced by the member name.
func NewFallbackGroup[T any](opts BreakerOptions) *FallbackGroup[T] {
	return &FallbackGroup[T]{opts: opts, log: opts.Log}
}

// Add appends a provider. Call before the group is shared.
func (g *FallbackGroup[T]) Add(name string, v T) {
	opts := g.opts
	opts.Name = name
	g.members = append(g.members, member[T]{name: name, value: v, breaker: NewBreaker(opts)})
}

// Len returns the number of registered providers.
func (g *FallbackGroup[T]) Len() int { return len(g.members) }

// Names returns the provider names in order.
func (g *FallbackGroup[T]) Names() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

// Execute calls fn on each member until one succeeds, returning its result and
// name. Go has no method type parameters, hence the package-level function.
func Execute[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	if len(g.members) == 0 {
		return zero, "", fmt.Errorf("%w: no providers configured", ErrAllFailed)
	}
	for i := range g.members {
		m := &g.members[i]
		var out R
		err := m.breaker.Do(func() error {
			var callErr error
			out, callErr = fn(m.value)
			return callErr
		})
		if err == nil {
			return out, m.name, nil
		}
		lastErr = fmt.Errorf("%s: %w", m.name, err)
		if errors.Is(err, ErrCircuitOpen) {
			g.log.Debug().Str("provider", m.name).Msg("skipping provider, circuit open")
		} else if i+1 < len(g.members) {
			g.log.Debug().Err(err).Str("provider", m.name).Msg("provider failed, trying next")
		}
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
