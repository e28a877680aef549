package table

import (
	"errors"
	"sync"
)

// ErrScopeDisposed is returned by Track on a scope that has already been
// cleaned up.
var ErrScopeDisposed = errors.New("table: scope already disposed")

// Scope is an rid lifetime guard active for one host-driven call. Every
// rid the dispatcher allocates for that call is tracked on the scope; the
// scope force-removes all of them on exit, success or failure.
type Scope struct {
	mu       sync.Mutex
	table    *Table
	tracked  []int32
	disposed bool
}

// NewScope returns a fresh scope bound to t.
func NewScope(t *Table) *Scope {
	return &Scope{table: t}
}

// Track registers rid for cleanup when the scope closes.
func (s *Scope) Track(rid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrScopeDisposed
	}
	s.tracked = append(s.tracked, rid)
	return nil
}

// Size reports how many rids the scope is currently tracking.
func (s *Scope) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Close force-removes every tracked rid from the table. Calling Close
// twice is a no-op.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	for _, rid := range s.tracked {
		s.table.ForceRemove(rid)
	}
	s.tracked = nil
	s.disposed = true
}
