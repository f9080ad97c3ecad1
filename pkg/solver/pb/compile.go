package pb

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

var (
	one      = big.NewInt(1)
	minusOne = big.NewInt(-1)
)

// linexpr is a normalized linear form: the terms coefs*vars compared
// against the constant rhs, with every constant from the original
// expression folded into rhs.
type linexpr struct {
	coefs []*big.Int
	vars  []Var
	rhs   *big.Int
}

// negate returns the linear form with every coefficient and the
// right-hand side negated, turning sum >= rhs into -sum >= -rhs.
func (le *linexpr) negate() *linexpr {
	n := &linexpr{
		coefs: make([]*big.Int, len(le.coefs)),
		vars:  le.vars,
		rhs:   new(big.Int).Neg(le.rhs),
	}
	for i, c := range le.coefs {
		n.coefs[i] = new(big.Int).Neg(c)
	}
	return n
}

// normalize reduces lhs compared against rhs to a single linear form.
// The supported left-hand shapes are constants, variable references,
// sums, weighted sums, and two-term differences; the right-hand side
// must be a constant or a variable reference. Anything else means an
// upstream rewriting pass did not run, and is rejected rather than
// guessed at.
func (s *Session) normalize(lhs, rhs model.Expr) (*linexpr, error) {
	le := &linexpr{rhs: new(big.Int)}

	switch l := lhs.(type) {
	case model.Const:
		le.rhs.Sub(le.rhs, l.Value)
	case model.Variable:
		if err := s.addTerm(le, one, l.Ref()); err != nil {
			return nil, err
		}
	case model.Ref:
		if err := s.addTerm(le, one, l); err != nil {
			return nil, err
		}
	case model.Sum:
		for _, arg := range l.Args {
			if err := s.addArg(le, one, arg); err != nil {
				return nil, err
			}
		}
	case model.WSum:
		if len(l.Coefs) != len(l.Args) {
			return nil, fmt.Errorf("weighted sum has %d coefficients for %d terms", len(l.Coefs), len(l.Args))
		}
		for i, arg := range l.Args {
			if err := s.addArg(le, l.Coefs[i], arg); err != nil {
				return nil, err
			}
		}
	case model.Sub:
		if err := s.addArg(le, one, l.A); err != nil {
			return nil, err
		}
		if err := s.addArg(le, minusOne, l.B); err != nil {
			return nil, err
		}
	default:
		return nil, solver.UnsupportedExpression(model.Name(lhs))
	}

	switch r := rhs.(type) {
	case model.Const:
		le.rhs.Add(le.rhs, r.Value)
	case model.Variable:
		if err := s.addTerm(le, minusOne, r.Ref()); err != nil {
			return nil, err
		}
	case model.Ref:
		if err := s.addTerm(le, minusOne, r); err != nil {
			return nil, err
		}
	default:
		return nil, solver.UnsupportedExpression(model.Name(rhs))
	}

	return le, nil
}

// addArg folds one summand with weight c into the linear form.
func (s *Session) addArg(le *linexpr, c *big.Int, arg model.Expr) error {
	switch a := arg.(type) {
	case model.Const:
		le.rhs.Sub(le.rhs, new(big.Int).Mul(c, a.Value))
		return nil
	case model.Variable:
		return s.addTerm(le, c, a.Ref())
	case model.Ref:
		return s.addTerm(le, c, a)
	}
	return solver.UnsupportedExpression(model.Name(arg))
}

// addTerm appends c*ref to the linear form. A negated Boolean
// reference ~b enters as c*(1-b): the coefficient flips sign and the
// constant c migrates to the right-hand side. The incoming coefficient
// is copied, never aliased.
func (s *Session) addTerm(le *linexpr, c *big.Int, ref model.Ref) error {
	m, err := s.lits.LitOf(ref)
	if err != nil {
		return err
	}
	coef := new(big.Int).Set(c)
	if m.Neg {
		coef.Neg(coef)
		le.rhs.Sub(le.rhs, c)
	}
	le.coefs = append(le.coefs, coef)
	le.vars = append(le.vars, m.Var)
	return nil
}

// compileComparison lowers lhs op rhs into bounded linear primitives.
// Only the non-strict operators and equality reach this layer; strict
// and disequality forms are rewritten upstream.
func (s *Session) compileComparison(op model.CmpOp, lhs, rhs model.Expr) error {
	le, err := s.normalize(lhs, rhs)
	if err != nil {
		return err
	}
	switch op {
	case model.OpLe:
		return s.postLinear(le, nil, le.rhs)
	case model.OpGe:
		return s.postLinear(le, le.rhs, nil)
	case model.OpEq:
		return s.postLinear(le, le.rhs, le.rhs)
	}
	return solver.UnsupportedConstraint(op.String())
}

// compileIndicator lowers cond -> (lhs op rhs) into one-directional
// reification primitives over the condition's base variable.
//
// A direct condition compiles to right reifications of the comparison.
// A negated condition compiles by contraposition to left reifications
// of the comparison's complement, and the resulting strict bound
// tightens to a non-strict one by shifting it one step. The shift is
// exact only because every quantity here is an integer.
func (s *Session) compileIndicator(cond model.Ref, cmp model.Cmp) error {
	if cond.Var().Kind() != model.KindBool {
		return fmt.Errorf("indicator condition %q is not Boolean", cond.Var().Identifier())
	}
	head, err := s.lits.LitOf(cond.Var().Ref())
	if err != nil {
		return err
	}
	le, err := s.normalize(cmp.LHS, cmp.RHS)
	if err != nil {
		return err
	}

	if !cond.Negated() {
		switch cmp.Op {
		case model.OpEq:
			// cond -> sum == rhs splits into both inequalities.
			if err := s.postRight(head.Var, le.coefs, le.vars, le.rhs); err != nil {
				return err
			}
			neg := le.negate()
			return s.postRight(head.Var, neg.coefs, neg.vars, neg.rhs)
		case model.OpGe:
			return s.postRight(head.Var, le.coefs, le.vars, le.rhs)
		case model.OpLe:
			neg := le.negate()
			return s.postRight(head.Var, neg.coefs, neg.vars, neg.rhs)
		}
		return solver.UnsupportedConstraint(cmp.Op.String())
	}

	switch cmp.Op {
	case model.OpEq:
		// ~cond -> sum == rhs contraposes to
		// cond <- (sum >= rhs+1 or sum <= rhs-1), posted one
		// direction at a time.
		if err := s.postLeft(head.Var, le.coefs, le.vars, new(big.Int).Add(le.rhs, one)); err != nil {
			return err
		}
		neg := le.negate()
		return s.postLeft(head.Var, neg.coefs, neg.vars, new(big.Int).Add(neg.rhs, one))
	case model.OpGe:
		// ~cond -> sum >= rhs contraposes to cond <- sum <= rhs-1.
		neg := le.negate()
		return s.postLeft(head.Var, neg.coefs, neg.vars, new(big.Int).Add(neg.rhs, one))
	case model.OpLe:
		// ~cond -> sum <= rhs contraposes to cond <- sum >= rhs+1.
		return s.postLeft(head.Var, le.coefs, le.vars, new(big.Int).Add(le.rhs, one))
	}
	return solver.UnsupportedConstraint(cmp.Op.String())
}

// postLinear posts lower <= terms <= upper, routing through the wide
// form when any participating value requires it. Nil bounds are
// absent.
func (s *Session) postLinear(le *linexpr, lower, upper *big.Int) error {
	var err error
	if model.Wide(le.coefs...) || model.Wide(lower, upper) {
		lo, hi := "", ""
		if lower != nil {
			lo = lower.String()
		}
		if upper != nil {
			hi = upper.String()
		}
		err = s.backend.PostBoundedLinearWide(wideStrings(le.coefs), le.vars, lower != nil, lo, upper != nil, hi)
	} else {
		var lo, hi int64
		if lower != nil {
			lo = lower.Int64()
		}
		if upper != nil {
			hi = upper.Int64()
		}
		err = s.backend.PostBoundedLinear(narrowInts(le.coefs), le.vars, lower != nil, lo, upper != nil, hi)
	}
	if err != nil {
		return err
	}
	s.trace("linear", fmt.Sprintf("%s in [%s, %s]", renderTerms(le.coefs, le.vars), renderBound(lower, "-inf"), renderBound(upper, "+inf")))
	return nil
}

// compileReification lowers cond <-> (lhs op rhs) into the backend's
// two-directional reification primitive, which is defined over >=
// only. An equality under the head is not expressible this way: the
// two inequality directions cannot share one head independently, so
// that shape is rejected.
func (s *Session) compileReification(cond model.Ref, cmp model.Cmp) error {
	if cond.Var().Kind() != model.KindBool {
		return fmt.Errorf("reification head %q is not Boolean", cond.Var().Identifier())
	}
	head, err := s.lits.LitOf(cond.Var().Ref())
	if err != nil {
		return err
	}
	le, err := s.normalize(cmp.LHS, cmp.RHS)
	if err != nil {
		return err
	}

	switch cmp.Op {
	case model.OpGe:
	case model.OpLe:
		le = le.negate()
	default:
		return solver.UnsupportedConstraint(cmp.Op.String())
	}

	rhs := le.rhs
	if cond.Negated() {
		// ~c <-> sum >= rhs is c <-> sum <= rhs-1, which is
		// c <-> -sum >= 1-rhs.
		le = le.negate()
		rhs = new(big.Int).Add(le.rhs, one)
	}
	return s.postReif(head.Var, le.coefs, le.vars, rhs)
}

// postReif posts cond <-> coefs*vars >= rhs.
func (s *Session) postReif(cond Var, coefs []*big.Int, vars []Var, rhs *big.Int) error {
	var err error
	if model.Wide(coefs...) || model.Wide(rhs) {
		err = s.backend.PostReificationWide(cond, wideStrings(coefs), vars, rhs.String())
	} else {
		err = s.backend.PostReification(cond, narrowInts(coefs), vars, rhs.Int64())
	}
	if err != nil {
		return err
	}
	s.trace("reif", fmt.Sprintf("%s <-> %s >= %s", cond, renderTerms(coefs, vars), rhs))
	return nil
}

// postRight posts cond -> coefs*vars >= rhs.
func (s *Session) postRight(cond Var, coefs []*big.Int, vars []Var, rhs *big.Int) error {
	var err error
	if model.Wide(coefs...) || model.Wide(rhs) {
		err = s.backend.PostRightReificationWide(cond, wideStrings(coefs), vars, rhs.String())
	} else {
		err = s.backend.PostRightReification(cond, narrowInts(coefs), vars, rhs.Int64())
	}
	if err != nil {
		return err
	}
	s.trace("right-reif", fmt.Sprintf("%s -> %s >= %s", cond, renderTerms(coefs, vars), rhs))
	return nil
}

// postLeft posts cond <- coefs*vars >= rhs.
func (s *Session) postLeft(cond Var, coefs []*big.Int, vars []Var, rhs *big.Int) error {
	var err error
	if model.Wide(coefs...) || model.Wide(rhs) {
		err = s.backend.PostLeftReificationWide(cond, wideStrings(coefs), vars, rhs.String())
	} else {
		err = s.backend.PostLeftReification(cond, narrowInts(coefs), vars, rhs.Int64())
	}
	if err != nil {
		return err
	}
	s.trace("left-reif", fmt.Sprintf("%s <- %s >= %s", cond, renderTerms(coefs, vars), rhs))
	return nil
}

// initObjective fixes the backend's objective to minimize coefs*vars.
func (s *Session) initObjective(coefs []*big.Int, vars []Var) error {
	if model.Wide(coefs...) {
		return s.backend.InitWide(wideStrings(coefs), vars)
	}
	return s.backend.Init(narrowInts(coefs), vars)
}

func wideStrings(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}

func narrowInts(xs []*big.Int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = x.Int64()
	}
	return out
}

func renderTerms(coefs []*big.Int, vars []Var) string {
	if len(coefs) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, c := range coefs {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%s*%s", c, vars[i])
	}
	return sb.String()
}

func renderBound(b *big.Int, absent string) string {
	if b == nil {
		return absent
	}
	return b.String()
}
