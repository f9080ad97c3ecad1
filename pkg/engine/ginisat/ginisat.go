// Package ginisat adapts the gini SAT solver as a nested-expression
// backend. Logical structure maps onto gini's shared circuit
// representation, and bounded integers are encoded one-hot with a
// selector literal per domain value, which turns comparisons and
// distinctness into purely propositional terms. Arithmetic terms have
// no propositional reading and are rejected at construction.
package ginisat

import (
	"math/big"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/onehot"
	"github.com/operator-framework/solvent/pkg/solver"
	"github.com/operator-framework/solvent/pkg/solver/tree"
)

// maxOneHot bounds the number of selector literals a single integer
// declaration may produce.
const maxOneHot = 1 << 16

// intTerm is the one-hot encoding of a bounded integer: sels[i] holds
// exactly when the variable takes the i'th domain value. The circuit
// literals run parallel to the encoding's indicator Booleans.
type intTerm struct {
	enc   *onehot.Encoding
	sels  []z.Lit
	litOf map[model.Identifier]z.Lit
}

// constTerm carries a constant. It has no literals of its own;
// comparisons treat its single value as unconditionally selected.
type constTerm struct {
	val *big.Int
}

// valLit pairs one admissible value of a term with the literal that
// selects it.
type valLit struct {
	v *big.Int
	m z.Lit
}

// Solver bridges the nested-expression surface to gini. Boolean terms
// are circuit literals, so they stay comparable and survive the round
// trip through failed-assumption reporting. Clauses reach the solver
// incrementally: each Post and each assumed term teaches the cone of
// its literal before use.
type Solver struct {
	c     *logic.C
	g     *gini.Gini
	marks []int8

	names   map[string]bool
	timeout time.Duration

	sat       bool
	lastTerms []tree.Term
	lastLits  []z.Lit
	failed    []tree.Term
}

var _ tree.Backend = (*Solver)(nil)

// New returns an empty SAT-backed nested-expression engine.
func New() *Solver {
	return &Solver{
		c:     logic.NewC(),
		g:     gini.New(),
		names: make(map[string]bool),
	}
}

func (s *Solver) reserve(name string) error {
	if s.names[name] {
		return solver.DuplicateIdentifier(name)
	}
	s.names[name] = true
	return nil
}

// register teaches the solver the variable underlying m without
// constraining it, so model readback is defined even for inputs that
// never reach a posted clause.
func (s *Solver) register(m z.Lit) {
	s.g.Add(m)
	s.g.Add(m.Not())
	s.g.Add(z.LitNull)
}

func (s *Solver) DeclareBool(name string) (tree.Term, error) {
	if err := s.reserve(name); err != nil {
		return nil, err
	}
	m := s.c.Lit()
	s.register(m)
	return m, nil
}

func (s *Solver) DeclareInt(name string, lb, ub int64) (tree.Term, error) {
	return s.declareInt(name, big.NewInt(lb), big.NewInt(ub))
}

func (s *Solver) DeclareIntWide(name, lb, ub string) (tree.Term, error) {
	lo, err := parseWide(lb)
	if err != nil {
		return nil, err
	}
	hi, err := parseWide(ub)
	if err != nil {
		return nil, err
	}
	return s.declareInt(name, lo, hi)
}

func (s *Solver) declareInt(name string, lb, ub *big.Int) (tree.Term, error) {
	if err := s.reserve(name); err != nil {
		return nil, err
	}
	enc, err := onehot.EncodeMax(model.IntBig(model.Identifier(name), lb, ub), maxOneHot)
	if err != nil {
		return nil, err
	}
	indicators := enc.Booleans()
	t := &intTerm{
		enc:   enc,
		sels:  make([]z.Lit, len(indicators)),
		litOf: make(map[model.Identifier]z.Lit, len(indicators)),
	}
	for i, b := range indicators {
		m := s.c.Lit()
		s.register(m)
		t.sels[i] = m
		t.litOf[b.Identifier()] = m
	}

	// Exactly one selector holds: at least one as a plain clause,
	// at most one through a sorting network.
	for _, m := range t.sels {
		s.g.Add(m)
	}
	s.g.Add(z.LitNull)
	if len(t.sels) > 1 {
		s.post(s.c.CardSort(t.sels).Leq(1))
	}
	return t, nil
}

func (s *Solver) Const(value int64) (tree.Term, error) {
	return &constTerm{val: big.NewInt(value)}, nil
}

func (s *Solver) ConstWide(value string) (tree.Term, error) {
	v, err := parseWide(value)
	if err != nil {
		return nil, err
	}
	return &constTerm{val: v}, nil
}

func (s *Solver) Not(t tree.Term) (tree.Term, error) {
	m, err := s.asLit(t)
	if err != nil {
		return nil, err
	}
	return m.Not(), nil
}

func (s *Solver) And(ts ...tree.Term) (tree.Term, error) {
	ms, err := s.asLits(ts)
	if err != nil {
		return nil, err
	}
	return s.c.Ands(ms...), nil
}

func (s *Solver) Or(ts ...tree.Term) (tree.Term, error) {
	ms, err := s.asLits(ts)
	if err != nil {
		return nil, err
	}
	return s.c.Ors(ms...), nil
}

func (s *Solver) Xor(ts ...tree.Term) (tree.Term, error) {
	ms, err := s.asLits(ts)
	if err != nil {
		return nil, err
	}
	acc := s.c.F
	for _, m := range ms {
		acc = s.c.Xor(acc, m)
	}
	return acc, nil
}

func (s *Solver) Implies(cond, then tree.Term) (tree.Term, error) {
	cm, err := s.asLit(cond)
	if err != nil {
		return nil, err
	}
	tm, err := s.asLit(then)
	if err != nil {
		return nil, err
	}
	return s.c.Implies(cm, tm), nil
}

// Sum has no propositional reading; arithmetic stays with engines that
// evaluate numeric terms.
func (s *Solver) Sum(ts ...tree.Term) (tree.Term, error) {
	return nil, solver.UnsupportedConstraint("sum")
}

func (s *Solver) WSum(coefs []int64, ts []tree.Term) (tree.Term, error) {
	return nil, solver.UnsupportedConstraint("wsum")
}

func (s *Solver) WSumWide(coefs []string, ts []tree.Term) (tree.Term, error) {
	return nil, solver.UnsupportedConstraint("wsum")
}

// Compare enumerates the admissible value pairs of its operands and
// disjoins the selections for which the comparison holds.
func (s *Solver) Compare(op model.CmpOp, a, b tree.Term) (tree.Term, error) {
	xs, err := s.valueLits(a)
	if err != nil {
		return nil, err
	}
	ys, err := s.valueLits(b)
	if err != nil {
		return nil, err
	}
	var holds []z.Lit
	for _, x := range xs {
		for _, y := range ys {
			if cmpHolds(op, x.v.Cmp(y.v)) {
				holds = append(holds, s.c.And(x.m, y.m))
			}
		}
	}
	return s.c.Ors(holds...), nil
}

func (s *Solver) Distinct(ts ...tree.Term) (tree.Term, error) {
	vls := make([][]valLit, len(ts))
	for i, t := range ts {
		vl, err := s.valueLits(t)
		if err != nil {
			return nil, err
		}
		vls[i] = vl
	}
	var neqs []z.Lit
	for i := range vls {
		for j := i + 1; j < len(vls); j++ {
			neqs = append(neqs, s.pairEq(vls[i], vls[j]).Not())
		}
	}
	return s.c.Ands(neqs...), nil
}

func (s *Solver) pairEq(xs, ys []valLit) z.Lit {
	var eqs []z.Lit
	for _, x := range xs {
		for _, y := range ys {
			if x.v.Cmp(y.v) == 0 {
				eqs = append(eqs, s.c.And(x.m, y.m))
			}
		}
	}
	return s.c.Ors(eqs...)
}

func (s *Solver) Post(t tree.Term) error {
	m, err := s.asLit(t)
	if err != nil {
		return err
	}
	s.post(m)
	return nil
}

// post teaches the cone of m to the solver and asserts m as a unit
// clause.
func (s *Solver) post(m z.Lit) {
	s.marks, _ = s.c.CnfSince(s.g, s.marks, m)
	s.g.Add(m)
	s.g.Add(z.LitNull)
}

func (s *Solver) Check(assumptions []tree.Term) (solver.Status, error) {
	s.sat = false
	s.failed = nil
	s.lastTerms = s.lastTerms[:0]
	s.lastLits = s.lastLits[:0]
	for _, t := range assumptions {
		m, err := s.asLit(t)
		if err != nil {
			return solver.Unknown, err
		}
		s.marks, _ = s.c.CnfSince(s.g, s.marks, m)
		s.lastTerms = append(s.lastTerms, t)
		s.lastLits = append(s.lastLits, m)
	}
	s.g.Assume(s.lastLits...)

	var res int
	if s.timeout > 0 {
		res = s.g.Try(s.timeout)
	} else {
		res = s.g.Solve()
	}
	switch res {
	case 1:
		s.sat = true
		return solver.Satisfiable, nil
	case -1:
		for _, m := range s.g.Why(nil) {
			for i, am := range s.lastLits {
				if am == m {
					s.failed = append(s.failed, s.lastTerms[i])
					break
				}
			}
		}
		return solver.Unsatisfiable, nil
	case 0:
		return solver.Unknown, nil
	}
	return solver.Unknown, solver.UnknownBackendStatus(res)
}

// FailedAssumptions reports the subset of the last check's assumptions
// the solver used to derive unsatisfiability.
func (s *Solver) FailedAssumptions() ([]tree.Term, error) {
	return s.failed, nil
}

func (s *Solver) BoolValue(t tree.Term) (bool, error) {
	if !s.sat {
		return false, errors.New("no satisfying assignment available")
	}
	switch v := t.(type) {
	case z.Lit:
		if v.Var() > s.g.MaxVar() {
			return false, errors.New("term does not appear in any posted constraint")
		}
		return s.g.Value(v), nil
	case *intTerm, *constTerm:
		return false, errors.New("numeric term has no truth value")
	}
	return false, errors.New("term was not built by this engine")
}

func (s *Solver) IntValue(t tree.Term) (*big.Int, error) {
	if !s.sat {
		return nil, errors.New("no satisfying assignment available")
	}
	switch v := t.(type) {
	case z.Lit:
		if v.Var() > s.g.MaxVar() {
			return nil, errors.New("term does not appear in any posted constraint")
		}
		if s.g.Value(v) {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case *intTerm:
		return v.enc.Decode(func(b model.Variable) bool {
			return s.g.Value(v.litOf[b.Identifier()])
		})
	case *constTerm:
		return new(big.Int).Set(v.val), nil
	}
	return nil, errors.New("term was not built by this engine")
}

// SetOption rejects every key: this engine has no tunables.
func (s *Solver) SetOption(key, value string) error {
	return errors.Errorf("unknown option %q", key)
}

func (s *Solver) SetTimeout(d time.Duration) {
	s.timeout = d
}

func (s *Solver) asLit(t tree.Term) (z.Lit, error) {
	switch v := t.(type) {
	case z.Lit:
		return v, nil
	case *intTerm, *constTerm:
		return z.LitNull, errors.New("numeric term used where a truth value is required")
	}
	return z.LitNull, errors.New("term was not built by this engine")
}

func (s *Solver) asLits(ts []tree.Term) ([]z.Lit, error) {
	ms := make([]z.Lit, len(ts))
	for i, t := range ts {
		m, err := s.asLit(t)
		if err != nil {
			return nil, err
		}
		ms[i] = m
	}
	return ms, nil
}

func (s *Solver) valueLits(t tree.Term) ([]valLit, error) {
	switch v := t.(type) {
	case z.Lit:
		return []valLit{{v: zeroInt, m: v.Not()}, {v: oneInt, m: v}}, nil
	case *intTerm:
		vals := v.enc.Values()
		out := make([]valLit, len(vals))
		for i, val := range vals {
			out[i] = valLit{v: val, m: v.sels[i]}
		}
		return out, nil
	case *constTerm:
		return []valLit{{v: v.val, m: s.c.T}}, nil
	}
	return nil, errors.New("term was not built by this engine")
}

func cmpHolds(op model.CmpOp, sign int) bool {
	switch op {
	case model.OpLe:
		return sign <= 0
	case model.OpLt:
		return sign < 0
	case model.OpGe:
		return sign >= 0
	case model.OpGt:
		return sign > 0
	case model.OpEq:
		return sign == 0
	case model.OpNe:
		return sign != 0
	}
	return false
}

func parseWide(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("malformed wide integer %q", s)
	}
	return v, nil
}

var (
	zeroInt = big.NewInt(0)
	oneInt  = big.NewInt(1)
)
