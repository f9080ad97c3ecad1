package brute

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
	"github.com/operator-framework/solvent/pkg/solver/tree"
)

type nodeKind int

const (
	nVar nodeKind = iota
	nConst
	nNot
	nAnd
	nOr
	nXor
	nImplies
	nSum
	nWSum
	nCmp
	nDistinct
)

type treeVar struct {
	name    string
	boolean bool
	lb, ub  *big.Int
	idx     int
}

// node is one term of the evaluation tree. Terms handed out by Tree
// are always *node values.
type node struct {
	kind  nodeKind
	v     *treeVar
	val   *big.Int
	op    model.CmpOp
	coefs []*big.Int
	kids  []*node
}

// boolean reports whether the node evaluates to a truth value rather
// than an integer.
func (n *node) boolean() bool {
	switch n.kind {
	case nVar:
		return n.v.boolean
	case nConst, nSum, nWSum:
		return false
	}
	return true
}

// value is the result of evaluating a node: a truth value or an exact
// integer, with Booleans coercible to 0 and 1 in numeric positions.
type value struct {
	b       bool
	n       *big.Int
	boolean bool
}

func (v value) asInt() *big.Int {
	if !v.boolean {
		return v.n
	}
	if v.b {
		return oneInt
	}
	return zeroInt
}

var zeroInt = big.NewInt(0)

// Tree is a nested-expression engine that evaluates term trees over
// exhaustively enumerated assignments. Assumptions are checked as
// extra roots scoped to a single call, and the reported core is the
// full assumption set, unminimized. A timeout makes Check report
// Unknown.
type Tree struct {
	vars    []*treeVar
	names   map[string]*treeVar
	posted  []*node
	timeout time.Duration

	sol         []*big.Int
	failedTerms []tree.Term
}

var _ tree.Backend = (*Tree)(nil)

// NewTree returns an empty nested-expression reference engine.
func NewTree() *Tree {
	return &Tree{names: make(map[string]*treeVar)}
}

func (b *Tree) DeclareBool(name string) (tree.Term, error) {
	return b.declare(name, true, zeroInt, oneInt)
}

func (b *Tree) DeclareInt(name string, lb, ub int64) (tree.Term, error) {
	return b.declare(name, false, big.NewInt(lb), big.NewInt(ub))
}

func (b *Tree) DeclareIntWide(name, lb, ub string) (tree.Term, error) {
	wlb, err := parseWide(lb)
	if err != nil {
		return nil, err
	}
	wub, err := parseWide(ub)
	if err != nil {
		return nil, err
	}
	return b.declare(name, false, wlb, wub)
}

func (b *Tree) declare(name string, boolean bool, lb, ub *big.Int) (tree.Term, error) {
	if _, ok := b.names[name]; ok {
		return nil, solver.DuplicateIdentifier(model.Identifier(name))
	}
	if lb.Cmp(ub) > 0 {
		return nil, errors.Errorf("variable %q has empty domain [%s, %s]", name, lb, ub)
	}
	v := &treeVar{name: name, boolean: boolean, lb: lb, ub: ub, idx: len(b.vars)}
	b.names[name] = v
	b.vars = append(b.vars, v)
	return &node{kind: nVar, v: v}, nil
}

func (b *Tree) Const(value int64) (tree.Term, error) {
	return &node{kind: nConst, val: big.NewInt(value)}, nil
}

func (b *Tree) ConstWide(value string) (tree.Term, error) {
	v, err := parseWide(value)
	if err != nil {
		return nil, err
	}
	return &node{kind: nConst, val: v}, nil
}

func (b *Tree) Not(t tree.Term) (tree.Term, error) {
	n, err := asBool(t)
	if err != nil {
		return nil, err
	}
	return &node{kind: nNot, kids: []*node{n}}, nil
}

func (b *Tree) And(ts ...tree.Term) (tree.Term, error) {
	kids, err := asBools(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nAnd, kids: kids}, nil
}

func (b *Tree) Or(ts ...tree.Term) (tree.Term, error) {
	kids, err := asBools(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nOr, kids: kids}, nil
}

func (b *Tree) Xor(ts ...tree.Term) (tree.Term, error) {
	kids, err := asBools(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nXor, kids: kids}, nil
}

func (b *Tree) Implies(cond, then tree.Term) (tree.Term, error) {
	c, err := asBool(cond)
	if err != nil {
		return nil, err
	}
	t, err := asBool(then)
	if err != nil {
		return nil, err
	}
	return &node{kind: nImplies, kids: []*node{c, t}}, nil
}

func (b *Tree) Sum(ts ...tree.Term) (tree.Term, error) {
	kids, err := asNodes(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nSum, kids: kids}, nil
}

func (b *Tree) WSum(coefs []int64, ts []tree.Term) (tree.Term, error) {
	return b.wsum(fromInt64s(coefs), ts)
}

func (b *Tree) WSumWide(coefs []string, ts []tree.Term) (tree.Term, error) {
	parsed, err := parseWides(coefs)
	if err != nil {
		return nil, err
	}
	return b.wsum(parsed, ts)
}

func (b *Tree) wsum(coefs []*big.Int, ts []tree.Term) (tree.Term, error) {
	if len(coefs) != len(ts) {
		return nil, errors.Errorf("%d coefficients for %d terms", len(coefs), len(ts))
	}
	kids, err := asNodes(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nWSum, coefs: coefs, kids: kids}, nil
}

func (b *Tree) Compare(op model.CmpOp, x, y tree.Term) (tree.Term, error) {
	a, err := asNode(x)
	if err != nil {
		return nil, err
	}
	c, err := asNode(y)
	if err != nil {
		return nil, err
	}
	return &node{kind: nCmp, op: op, kids: []*node{a, c}}, nil
}

func (b *Tree) Distinct(ts ...tree.Term) (tree.Term, error) {
	kids, err := asNodes(ts)
	if err != nil {
		return nil, err
	}
	return &node{kind: nDistinct, kids: kids}, nil
}

func (b *Tree) Post(t tree.Term) error {
	n, err := asBool(t)
	if err != nil {
		return err
	}
	b.posted = append(b.posted, n)
	return nil
}

func (b *Tree) Check(assumptions []tree.Term) (solver.Status, error) {
	roots := make([]*node, 0, len(b.posted)+len(assumptions))
	roots = append(roots, b.posted...)
	for _, a := range assumptions {
		n, err := asBool(a)
		if err != nil {
			return solver.Unknown, err
		}
		roots = append(roots, n)
	}

	var deadline time.Time
	if b.timeout > 0 {
		deadline = time.Now().Add(b.timeout)
	}

	lbs := make([]*big.Int, len(b.vars))
	ubs := make([]*big.Int, len(b.vars))
	for i, v := range b.vars {
		lbs[i] = v.lb
		ubs[i] = v.ub
	}
	o := newOdometer(lbs, ubs)
	steps := 0
	for !o.done() {
		steps++
		if !deadline.IsZero() && steps%256 == 0 && time.Now().After(deadline) {
			return solver.Unknown, nil
		}
		assign := o.current()
		ok, err := holds(roots, assign)
		if err != nil {
			return solver.Unknown, err
		}
		if ok {
			b.sol = copyAssign(assign)
			b.failedTerms = nil
			return solver.Satisfiable, nil
		}
		o.advance()
	}
	b.sol = nil
	b.failedTerms = append([]tree.Term(nil), assumptions...)
	return solver.Unsatisfiable, nil
}

// FailedAssumptions reports the full assumption set of the last
// unsatisfiable check. The set is trivially sufficient; this engine
// does not minimize it.
func (b *Tree) FailedAssumptions() ([]tree.Term, error) {
	return b.failedTerms, nil
}

func (b *Tree) BoolValue(t tree.Term) (bool, error) {
	v, err := b.valueOf(t)
	if err != nil {
		return false, err
	}
	if !v.boolean {
		return false, errors.New("numeric term has no truth value")
	}
	return v.b, nil
}

func (b *Tree) IntValue(t tree.Term) (*big.Int, error) {
	v, err := b.valueOf(t)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(v.asInt()), nil
}

func (b *Tree) valueOf(t tree.Term) (value, error) {
	n, err := asNode(t)
	if err != nil {
		return value{}, err
	}
	if b.sol == nil {
		return value{}, errors.New("no satisfying assignment available")
	}
	return eval(n, b.sol)
}

// SetOption rejects every key: this engine has no tunables.
func (b *Tree) SetOption(key, value string) error {
	return errors.Errorf("unknown option %q", key)
}

func (b *Tree) SetTimeout(d time.Duration) {
	b.timeout = d
}

func holds(roots []*node, assign []*big.Int) (bool, error) {
	for _, r := range roots {
		v, err := eval(r, assign)
		if err != nil {
			return false, err
		}
		if !v.b {
			return false, nil
		}
	}
	return true, nil
}

func eval(n *node, assign []*big.Int) (value, error) {
	switch n.kind {
	case nVar:
		x := assign[n.v.idx]
		if n.v.boolean {
			return value{b: x.Sign() != 0, boolean: true}, nil
		}
		return value{n: x}, nil
	case nConst:
		return value{n: n.val}, nil
	case nNot:
		k, err := eval(n.kids[0], assign)
		if err != nil {
			return value{}, err
		}
		return value{b: !k.b, boolean: true}, nil
	case nAnd:
		out := true
		for _, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			out = out && k.b
		}
		return value{b: out, boolean: true}, nil
	case nOr:
		out := false
		for _, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			out = out || k.b
		}
		return value{b: out, boolean: true}, nil
	case nXor:
		out := false
		for _, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			out = out != k.b
		}
		return value{b: out, boolean: true}, nil
	case nImplies:
		c, err := eval(n.kids[0], assign)
		if err != nil {
			return value{}, err
		}
		t, err := eval(n.kids[1], assign)
		if err != nil {
			return value{}, err
		}
		return value{b: !c.b || t.b, boolean: true}, nil
	case nSum:
		sum := new(big.Int)
		for _, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			sum.Add(sum, k.asInt())
		}
		return value{n: sum}, nil
	case nWSum:
		sum := new(big.Int)
		tmp := new(big.Int)
		for i, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			sum.Add(sum, tmp.Mul(n.coefs[i], k.asInt()))
		}
		return value{n: sum}, nil
	case nCmp:
		a, err := eval(n.kids[0], assign)
		if err != nil {
			return value{}, err
		}
		c, err := eval(n.kids[1], assign)
		if err != nil {
			return value{}, err
		}
		d := a.asInt().Cmp(c.asInt())
		var out bool
		switch n.op {
		case model.OpLe:
			out = d <= 0
		case model.OpLt:
			out = d < 0
		case model.OpGe:
			out = d >= 0
		case model.OpGt:
			out = d > 0
		case model.OpEq:
			out = d == 0
		case model.OpNe:
			out = d != 0
		default:
			return value{}, errors.Errorf("unknown comparison operator %d", int(n.op))
		}
		return value{b: out, boolean: true}, nil
	case nDistinct:
		vals := make([]*big.Int, len(n.kids))
		for i, kid := range n.kids {
			k, err := eval(kid, assign)
			if err != nil {
				return value{}, err
			}
			vals[i] = k.asInt()
		}
		for i := range vals {
			for j := i + 1; j < len(vals); j++ {
				if vals[i].Cmp(vals[j]) == 0 {
					return value{b: false, boolean: true}, nil
				}
			}
		}
		return value{b: true, boolean: true}, nil
	}
	return value{}, errors.Errorf("unknown node kind %d", int(n.kind))
}

func asNode(t tree.Term) (*node, error) {
	n, ok := t.(*node)
	if !ok || n == nil {
		return nil, errors.New("term was not built by this engine")
	}
	return n, nil
}

func asNodes(ts []tree.Term) ([]*node, error) {
	out := make([]*node, len(ts))
	for i, t := range ts {
		n, err := asNode(t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func asBool(t tree.Term) (*node, error) {
	n, err := asNode(t)
	if err != nil {
		return nil, err
	}
	if !n.boolean() {
		return nil, errors.New("numeric term used where a truth value is required")
	}
	return n, nil
}

func asBools(ts []tree.Term) ([]*node, error) {
	out := make([]*node, len(ts))
	for i, t := range ts {
		n, err := asBool(t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
