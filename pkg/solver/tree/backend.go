// Package tree compiles constraint expressions for backends that
// consume nested expression trees natively. Where the flat compiler
// reduces everything to coefficient/variable/bound triples, this one
// preserves structure: conjunctions, disjunctions, implications,
// arithmetic, comparisons, and global constraints all cross the
// boundary as backend-native terms.
package tree

import (
	"math/big"
	"time"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// Term is an opaque handle to a backend-native expression node. Terms
// are produced by Backend constructors and have meaning only within
// the backend that produced them.
type Term interface{}

// Backend is the primitive surface a nested-expression engine exposes
// to a Session. Constructors may reject node kinds the engine cannot
// express; rejection is always loud rather than a silent degradation.
//
// Integer declarations and constants have wide twins that transfer
// values as decimal strings; Sessions route any value of magnitude
// beyond 1e18 through them.
type Backend interface {
	DeclareBool(name string) (Term, error)
	DeclareInt(name string, lb, ub int64) (Term, error)
	DeclareIntWide(name, lb, ub string) (Term, error)

	Const(value int64) (Term, error)
	ConstWide(value string) (Term, error)

	Not(t Term) (Term, error)
	And(ts ...Term) (Term, error)
	Or(ts ...Term) (Term, error)
	Xor(ts ...Term) (Term, error)
	Implies(cond, then Term) (Term, error)

	Sum(ts ...Term) (Term, error)
	WSum(coefs []int64, ts []Term) (Term, error)
	WSumWide(coefs []string, ts []Term) (Term, error)
	Compare(op model.CmpOp, a, b Term) (Term, error)
	Distinct(ts ...Term) (Term, error)

	// Post asserts t for every subsequent Check.
	Post(t Term) error

	// Check runs the search with the given extra assumptions held
	// true for this call only. Unknown is a valid terminal outcome,
	// not an error.
	Check(assumptions []Term) (solver.Status, error)

	// FailedAssumptions returns terms from the most recent Check's
	// assumptions that are jointly sufficient for unsatisfiability.
	// It is meaningful only after Check reported Unsatisfiable.
	FailedAssumptions() ([]Term, error)

	// BoolValue and IntValue read a term's value out of the most
	// recent satisfying assignment.
	BoolValue(t Term) (bool, error)
	IntValue(t Term) (*big.Int, error)

	// SetOption forwards a backend-specific setting verbatim. This
	// layer performs no validation.
	SetOption(key, value string) error

	// SetTimeout bounds each subsequent Check. Zero removes the
	// bound.
	SetTimeout(d time.Duration)
}
