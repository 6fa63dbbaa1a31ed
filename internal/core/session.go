package core

import "fmt"

type SessionState int

const (
	SessionOpen SessionState = iota
	SessionActive
	SessionClosed
	SessionAborted
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	case SessionAborted:
		return "aborted"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Transition validates a lifecycle step: open -> active -> closed, with
// aborted reachable from any non-terminal state.
func (s SessionState) Transition(next SessionState) (SessionState, error) {
	switch {
	case s == SessionOpen && next == SessionActive,
		s == SessionActive && next == SessionClosed,
		s == SessionOpen && next == SessionClosed,
		(s == SessionOpen || s == SessionActive) && next == SessionAborted:
		return next, nil
	case s == SessionClosed || s == SessionAborted:
		return s, fmt.Errorf("%w: session is %s", ErrSessionClosed, s)
	default:
		return s, fmt.Errorf("invalid session transition %s -> %s", s, next)
	}
}

func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionAborted
}
