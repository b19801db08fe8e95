package common

import "errors"

// ErrReentrantCall is returned when an operation is entered while another
// operation on the same engine is still running.
var ErrReentrantCall = errors.New("reentrant call")

// ReentrancyGuard is a per-engine mutual exclusion flag. It is not a lock:
// the single writer in the application layer already serialises callers, the
// flag only catches callee code re-entering the engine mid-operation.
type ReentrancyGuard struct {
	entered bool
}

// Enter marks the engine busy or fails if it already is.
func (g *ReentrancyGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

// Exit clears the busy flag.
func (g *ReentrancyGuard) Exit() {
	if g == nil {
		return
	}
	g.entered = false
}

// Entered reports whether an operation is in flight.
func (g *ReentrancyGuard) Entered() bool {
	return g != nil && g.entered
}
