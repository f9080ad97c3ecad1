package solver

import (
	"math/big"
	"time"

	"github.com/operator-framework/solvent/pkg/model"
)

// Solution is one satisfying assignment extracted from a backend. It
// is an immutable snapshot: later solve calls never mutate a Solution
// already handed to a caller.
type Solution struct {
	// Values maps every variable the session has materialized to
	// its assigned value. Boolean variables are stored canonically
	// as 0 or 1 regardless of how the backend represents truth.
	Values map[model.Identifier]*big.Int

	// Objective is the objective value derived from the backend's
	// proven bound, or nil when no objective was set.
	Objective *big.Int
}

// Int returns the value assigned to v. The second return is false when
// v was never materialized by the session that produced this solution,
// or when the receiver is nil.
func (s *Solution) Int(v model.Variable) (*big.Int, bool) {
	if s == nil {
		return nil, false
	}
	val, ok := s.Values[v.Identifier()]
	return val, ok
}

// Bool returns the truth value assigned to v, reading zero as false
// and anything else as true.
func (s *Solution) Bool(v model.Variable) (bool, bool) {
	val, ok := s.Int(v)
	if !ok {
		return false, false
	}
	return val.Sign() != 0, true
}

// BoolRef returns the truth value of a possibly negated reference.
func (s *Solution) BoolRef(r model.Ref) (bool, bool) {
	b, ok := s.Bool(r.Var())
	if !ok {
		return false, false
	}
	if r.Negated() {
		return !b, true
	}
	return b, true
}

// Stats describes the work a session has performed across all of its
// solve calls.
type Stats struct {
	// Runtime is the total wall-clock time spent inside backend
	// search calls.
	Runtime time.Duration

	// Solves counts individual backend search invocations,
	// including the intermediate calls of a chunked backend run.
	Solves int
}
