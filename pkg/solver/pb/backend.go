// Package pb compiles normalized constraint expressions into the flat
// primitives of a pseudo-Boolean/linear backend: bounded linear
// constraints over named variables, plus one-directional and
// two-directional reifications of linear inequalities. Everything a
// backend sees has already been reduced to coefficient/variable/bound
// triples; no expression trees cross the boundary.
package pb

import "math/big"

// Var identifies a declared variable inside a flat backend. Flat
// backends address variables purely by name.
type Var string

// Lit is a session-side handle to a declared variable or, for Boolean
// variables, its logical complement. Backends never see negated
// handles: negation is compiled away algebraically before any
// primitive is posted.
type Lit struct {
	Var Var
	Neg bool
}

// Not returns the logical complement of m.
func (m Lit) Not() Lit {
	m.Neg = !m.Neg
	return m
}

func (m Lit) String() string {
	if m.Neg {
		return "~" + string(m.Var)
	}
	return string(m.Var)
}

// Status codes reported by a flat backend's Run.
const (
	// RunSolved means the backend finished: a plain run has proved
	// its answer, an enumerating run has exhausted the solution
	// space.
	RunSolved = 0
	// RunFound means the backend found a solution and more may
	// exist. It is only reported by enumerating runs.
	RunFound = 1
	// RunUnknown means the backend gave up without a proof,
	// typically on a time limit. It is a valid terminal answer, not
	// an error.
	RunUnknown = 2
	// RunInProgress means the backend is still processing and Run
	// must be called again to make progress.
	RunInProgress = 3
)

// Backend is the primitive surface a flat pseudo-Boolean/linear engine
// exposes to a Session.
//
// Every numeric primitive has a wide twin that transfers values as
// decimal strings. Sessions route a primitive through its wide twin
// whenever any value it touches has magnitude beyond 1e18, so backends
// may implement the narrow forms in plain 64-bit arithmetic.
type Backend interface {
	// Declare introduces a variable with inclusive bounds. Boolean
	// variables are declared with bounds 0 and 1.
	Declare(name Var, lb, ub int64) error
	DeclareWide(name Var, lb, ub string) error

	// Init fixes the objective as a linear form to be minimized.
	// It is called exactly once per backend lifetime, before the
	// first Run, with empty slices for pure decision problems.
	Init(coefs []int64, vars []Var) error
	InitWide(coefs []string, vars []Var) error

	// PostBoundedLinear posts lower <= coefs*vars <= upper. Either
	// bound may be absent.
	PostBoundedLinear(coefs []int64, vars []Var, hasLower bool, lower int64, hasUpper bool, upper int64) error
	PostBoundedLinearWide(coefs []string, vars []Var, hasLower bool, lower string, hasUpper bool, upper string) error

	// PostReification posts cond <-> coefs*vars >= rhs.
	PostReification(cond Var, coefs []int64, vars []Var, rhs int64) error
	PostReificationWide(cond Var, coefs []string, vars []Var, rhs string) error

	// PostLeftReification posts cond <- coefs*vars >= rhs.
	PostLeftReification(cond Var, coefs []int64, vars []Var, rhs int64) error
	PostLeftReificationWide(cond Var, coefs []string, vars []Var, rhs string) error

	// PostRightReification posts cond -> coefs*vars >= rhs.
	PostRightReification(cond Var, coefs []int64, vars []Var, rhs int64) error
	PostRightReificationWide(cond Var, coefs []string, vars []Var, rhs string) error

	// Run advances the search and reports one of the Run status
	// codes above.
	Run() (int, error)

	// HasSolution reports whether a solution is available for
	// extraction.
	HasSolution() bool

	// ValuesFor returns the values assigned to the given variables
	// in the current solution, in matching order.
	ValuesFor(vars []Var) ([]*big.Int, error)

	// ObjectiveBounds returns the proven bounds on the objective
	// for the current solution.
	ObjectiveBounds() (lower, upper *big.Int, err error)

	// InvalidateLastSolution permanently excludes the current
	// solution from future runs.
	InvalidateLastSolution() error

	// SetOption forwards a backend-specific setting verbatim. This
	// layer performs no validation.
	SetOption(key, value string) error
}
