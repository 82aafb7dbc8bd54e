package cache

import (
	"sync/atomic"
)

// Signal is a process-wide cache-invalidation token source. Writers call Bump
// after every successful commit; read paths key their caches on Token so a
// bump implicitly evicts everything cached under the previous token. It is
// injected explicitly into every component that observes it rather than
// living in package-level state.
type Signal struct {
	token atomic.Uint64
}

// NewSignal returns a Signal starting at token 0.
func NewSignal() *Signal {
	return &Signal{}
}

// Bump advances the token, invalidating any cache keyed on the previous one.
func (s *Signal) Bump() {
	s.token.Add(1)
}

// Token returns the current invalidation token.
func (s *Signal) Token() uint64 {
	return s.token.Load()
}
