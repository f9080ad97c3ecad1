// Package brute bundles reference engines for both backend styles.
// They enumerate assignments exhaustively with exact big-integer
// arithmetic, which makes them slow, honest, and suitable for
// verifying compiled output on small domains.
package brute

import (
	"math/big"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
	"github.com/operator-framework/solvent/pkg/solver/pb"
)

type reifKind int

const (
	reifFull reifKind = iota
	reifLeft
	reifRight
)

// linear is one posted constraint lower <= coefs*vars <= upper, with
// either bound optional.
type linear struct {
	coefs []*big.Int
	vars  []int
	lower *big.Int
	upper *big.Int
}

// reif ties a Boolean condition variable to the truth of
// coefs*vars >= rhs in one or both directions.
type reif struct {
	kind  reifKind
	cond  int
	coefs []*big.Int
	vars  []int
	rhs   *big.Int
}

// pbScan is the state of one logical run, kept across calls when the
// run is chunked or enumerating.
type pbScan struct {
	o        *odometer
	deadline time.Time
	best     []*big.Int
	bestObj  *big.Int
}

// PB is a flat pseudo-Boolean engine that solves by exhaustive
// enumeration over the declared domains. Wide primitives are parsed
// back into big integers, so arithmetic is exact at any magnitude.
//
// A plain run sweeps the whole space: it stops at the first solution
// of a pure decision problem and otherwise proves the optimum. Setting
// the option "opt-boundupper" to "0" switches to enumeration, where
// each run reports the next solution not yet invalidated, regardless
// of any objective. The option "timeout" bounds a logical run in
// seconds, and "chunk" caps the assignments examined per call, making
// the run report in-progress instead of blocking.
type PB struct {
	names []pb.Var
	lbs   []*big.Int
	ubs   []*big.Int
	index map[pb.Var]int

	objCoefs []*big.Int
	objVars  []int
	inited   bool

	linears []linear
	reifs   []reif
	banned  [][]*big.Int

	enumerate bool
	timeout   time.Duration
	chunk     int

	scan   *pbScan
	sol    []*big.Int
	solObj *big.Int
}

var _ pb.Backend = (*PB)(nil)

// NewPB returns an empty flat reference engine.
func NewPB() *PB {
	return &PB{index: make(map[pb.Var]int)}
}

func (b *PB) Declare(name pb.Var, lb, ub int64) error {
	return b.declare(name, big.NewInt(lb), big.NewInt(ub))
}

func (b *PB) DeclareWide(name pb.Var, lb, ub string) error {
	wlb, err := parseWide(lb)
	if err != nil {
		return err
	}
	wub, err := parseWide(ub)
	if err != nil {
		return err
	}
	return b.declare(name, wlb, wub)
}

func (b *PB) declare(name pb.Var, lb, ub *big.Int) error {
	if _, ok := b.index[name]; ok {
		return solver.DuplicateIdentifier(model.Identifier(name))
	}
	if lb.Cmp(ub) > 0 {
		return errors.Errorf("variable %q has empty domain [%s, %s]", name, lb, ub)
	}
	b.index[name] = len(b.names)
	b.names = append(b.names, name)
	b.lbs = append(b.lbs, lb)
	b.ubs = append(b.ubs, ub)
	return nil
}

func (b *PB) Init(coefs []int64, vars []pb.Var) error {
	return b.init(fromInt64s(coefs), vars)
}

func (b *PB) InitWide(coefs []string, vars []pb.Var) error {
	parsed, err := parseWides(coefs)
	if err != nil {
		return err
	}
	return b.init(parsed, vars)
}

func (b *PB) init(coefs []*big.Int, vars []pb.Var) error {
	if b.inited {
		return errors.New("objective already initialized")
	}
	if len(coefs) != len(vars) {
		return errors.Errorf("%d objective coefficients for %d variables", len(coefs), len(vars))
	}
	idxs, err := b.resolve(vars)
	if err != nil {
		return err
	}
	b.objCoefs = coefs
	b.objVars = idxs
	b.inited = true
	return nil
}

func (b *PB) PostBoundedLinear(coefs []int64, vars []pb.Var, hasLower bool, lower int64, hasUpper bool, upper int64) error {
	var lo, hi *big.Int
	if hasLower {
		lo = big.NewInt(lower)
	}
	if hasUpper {
		hi = big.NewInt(upper)
	}
	return b.postLinear(fromInt64s(coefs), vars, lo, hi)
}

func (b *PB) PostBoundedLinearWide(coefs []string, vars []pb.Var, hasLower bool, lower string, hasUpper bool, upper string) error {
	parsed, err := parseWides(coefs)
	if err != nil {
		return err
	}
	var lo, hi *big.Int
	if hasLower {
		if lo, err = parseWide(lower); err != nil {
			return err
		}
	}
	if hasUpper {
		if hi, err = parseWide(upper); err != nil {
			return err
		}
	}
	return b.postLinear(parsed, vars, lo, hi)
}

func (b *PB) postLinear(coefs []*big.Int, vars []pb.Var, lower, upper *big.Int) error {
	if len(coefs) != len(vars) {
		return errors.Errorf("%d coefficients for %d variables", len(coefs), len(vars))
	}
	idxs, err := b.resolve(vars)
	if err != nil {
		return err
	}
	b.linears = append(b.linears, linear{coefs: coefs, vars: idxs, lower: lower, upper: upper})
	return nil
}

func (b *PB) PostReification(cond pb.Var, coefs []int64, vars []pb.Var, rhs int64) error {
	return b.postReif(reifFull, cond, fromInt64s(coefs), vars, big.NewInt(rhs))
}

func (b *PB) PostReificationWide(cond pb.Var, coefs []string, vars []pb.Var, rhs string) error {
	return b.postReifWide(reifFull, cond, coefs, vars, rhs)
}

func (b *PB) PostLeftReification(cond pb.Var, coefs []int64, vars []pb.Var, rhs int64) error {
	return b.postReif(reifLeft, cond, fromInt64s(coefs), vars, big.NewInt(rhs))
}

func (b *PB) PostLeftReificationWide(cond pb.Var, coefs []string, vars []pb.Var, rhs string) error {
	return b.postReifWide(reifLeft, cond, coefs, vars, rhs)
}

func (b *PB) PostRightReification(cond pb.Var, coefs []int64, vars []pb.Var, rhs int64) error {
	return b.postReif(reifRight, cond, fromInt64s(coefs), vars, big.NewInt(rhs))
}

func (b *PB) PostRightReificationWide(cond pb.Var, coefs []string, vars []pb.Var, rhs string) error {
	return b.postReifWide(reifRight, cond, coefs, vars, rhs)
}

func (b *PB) postReifWide(kind reifKind, cond pb.Var, coefs []string, vars []pb.Var, rhs string) error {
	parsed, err := parseWides(coefs)
	if err != nil {
		return err
	}
	r, err := parseWide(rhs)
	if err != nil {
		return err
	}
	return b.postReif(kind, cond, parsed, vars, r)
}

func (b *PB) postReif(kind reifKind, cond pb.Var, coefs []*big.Int, vars []pb.Var, rhs *big.Int) error {
	if len(coefs) != len(vars) {
		return errors.Errorf("%d coefficients for %d variables", len(coefs), len(vars))
	}
	ci, ok := b.index[cond]
	if !ok {
		return errors.Errorf("unknown variable %q", cond)
	}
	if b.lbs[ci].Sign() < 0 || b.ubs[ci].Cmp(oneInt) > 0 {
		return errors.Errorf("reification condition %q is not Boolean", cond)
	}
	idxs, err := b.resolve(vars)
	if err != nil {
		return err
	}
	b.reifs = append(b.reifs, reif{kind: kind, cond: ci, coefs: coefs, vars: idxs, rhs: rhs})
	return nil
}

// Run advances the current logical run, starting a fresh sweep when
// none is active.
func (b *PB) Run() (int, error) {
	if !b.inited {
		return 0, errors.New("objective not initialized before run")
	}
	if b.scan == nil {
		b.scan = &pbScan{o: newOdometer(b.lbs, b.ubs)}
		if b.timeout > 0 {
			b.scan.deadline = time.Now().Add(b.timeout)
		}
	}

	steps := 0
	for !b.scan.o.done() {
		if b.chunk > 0 && steps >= b.chunk {
			return pb.RunInProgress, nil
		}
		steps++
		if !b.scan.deadline.IsZero() && steps%256 == 0 && time.Now().After(b.scan.deadline) {
			b.scan = nil
			return pb.RunUnknown, nil
		}

		assign := b.scan.o.current()
		if b.satisfies(assign) {
			if b.enumerate {
				b.keep(assign)
				b.scan.o.advance()
				return pb.RunFound, nil
			}
			if len(b.objCoefs) == 0 {
				b.keep(assign)
				b.scan = nil
				return pb.RunSolved, nil
			}
			obj := b.objective(assign)
			if b.scan.bestObj == nil || obj.Cmp(b.scan.bestObj) < 0 {
				b.scan.best = copyAssign(assign)
				b.scan.bestObj = obj
			}
		}
		b.scan.o.advance()
	}

	if !b.enumerate {
		b.sol = b.scan.best
		b.solObj = b.scan.bestObj
	}
	b.scan = nil
	return pb.RunSolved, nil
}

func (b *PB) satisfies(assign []*big.Int) bool {
	for _, c := range b.linears {
		v := dot(c.coefs, c.vars, assign)
		if c.lower != nil && v.Cmp(c.lower) < 0 {
			return false
		}
		if c.upper != nil && v.Cmp(c.upper) > 0 {
			return false
		}
	}
	for _, r := range b.reifs {
		holds := dot(r.coefs, r.vars, assign).Cmp(r.rhs) >= 0
		cond := assign[r.cond].Sign() != 0
		switch r.kind {
		case reifFull:
			if cond != holds {
				return false
			}
		case reifLeft:
			if holds && !cond {
				return false
			}
		case reifRight:
			if cond && !holds {
				return false
			}
		}
	}
	for _, ban := range b.banned {
		if equalAssign(ban, assign) {
			return false
		}
	}
	return true
}

func (b *PB) objective(assign []*big.Int) *big.Int {
	return dot(b.objCoefs, b.objVars, assign)
}

func (b *PB) keep(assign []*big.Int) {
	b.sol = copyAssign(assign)
	b.solObj = b.objective(assign)
}

func (b *PB) HasSolution() bool {
	return b.sol != nil
}

func (b *PB) ValuesFor(vars []pb.Var) ([]*big.Int, error) {
	if b.sol == nil {
		return nil, errors.New("no solution available")
	}
	idxs, err := b.resolve(vars)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(idxs))
	for i, ix := range idxs {
		out[i] = new(big.Int).Set(b.sol[ix])
	}
	return out, nil
}

// ObjectiveBounds reports the objective value of the current solution
// as both bounds: a completed sweep has proved it exact.
func (b *PB) ObjectiveBounds() (*big.Int, *big.Int, error) {
	if b.sol == nil {
		return nil, nil, errors.New("no solution available")
	}
	return new(big.Int).Set(b.solObj), new(big.Int).Set(b.solObj), nil
}

func (b *PB) InvalidateLastSolution() error {
	if b.sol == nil {
		return errors.New("no solution to invalidate")
	}
	b.banned = append(b.banned, b.sol)
	return nil
}

func (b *PB) SetOption(key, value string) error {
	switch key {
	case "timeout":
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(err, "malformed timeout %q", value)
		}
		b.timeout = time.Duration(secs * float64(time.Second))
	case "opt-boundupper":
		b.enumerate = value == "0"
	case "chunk":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "malformed chunk size %q", value)
		}
		b.chunk = n
	default:
		return errors.Errorf("unknown option %q", key)
	}
	return nil
}

func (b *PB) resolve(vars []pb.Var) ([]int, error) {
	idxs := make([]int, len(vars))
	for i, v := range vars {
		ix, ok := b.index[v]
		if !ok {
			return nil, errors.Errorf("unknown variable %q", v)
		}
		idxs[i] = ix
	}
	return idxs, nil
}

func dot(coefs []*big.Int, vars []int, assign []*big.Int) *big.Int {
	sum := new(big.Int)
	tmp := new(big.Int)
	for i, c := range coefs {
		sum.Add(sum, tmp.Mul(c, assign[vars[i]]))
	}
	return sum
}

func copyAssign(assign []*big.Int) []*big.Int {
	out := make([]*big.Int, len(assign))
	for i, v := range assign {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

func equalAssign(a, b []*big.Int) bool {
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			return false
		}
	}
	return true
}

func fromInt64s(coefs []int64) []*big.Int {
	out := make([]*big.Int, len(coefs))
	for i, c := range coefs {
		out[i] = big.NewInt(c)
	}
	return out
}

func parseWide(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("malformed wide integer %q", s)
	}
	return v, nil
}

func parseWides(ss []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(ss))
	for i, s := range ss {
		v, err := parseWide(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
