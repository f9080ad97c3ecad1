package solver

import "fmt"

// Status reports the terminal outcome of a solve call.
//
// Unknown is a valid terminal outcome meaning the backend finished
// without a proof either way, typically because a time limit ran out.
// It is deliberately not an error: callers distinguish "no answer"
// from "no solution" by inspecting the status, not by unwrapping
// error chains.
type Status int

const (
	// Unknown means the backend stopped without proving
	// satisfiability or unsatisfiability.
	Unknown Status = iota
	// Satisfiable means the backend found a satisfying assignment.
	Satisfiable
	// Unsatisfiable means the backend proved that no satisfying
	// assignment exists.
	Unsatisfiable
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Satisfiable:
		return "satisfiable"
	case Unsatisfiable:
		return "unsatisfiable"
	}
	return fmt.Sprintf("status(%d)", int(s))
}
