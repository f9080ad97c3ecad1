package pb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// AssumptionsUnsupported is returned when assumptions are supplied to
// a flat backend session. Flat backends have no assumption primitive,
// and silently dropping assumptions would change the model.
var AssumptionsUnsupported = errors.New("assumption-based solving is not implemented for flat backends")

// CoreUnsupported is returned by Core unconditionally.
var CoreUnsupported = errors.New("unsatisfiable-core extraction is not implemented for flat backends")

// Incomplete is returned when the backend was still processing as the
// configured in-progress limit ran out.
var Incomplete = errors.New("backend still processing when the in-progress limit was reached")

// Session compiles constraints and an objective for one flat backend
// instance and reads solutions back. A Session owns its backend
// outright and must not be shared between goroutines.
//
// Compilation is eager: Add posts primitives immediately, and no
// constraint store is kept on this side of the boundary. The only
// blocking operation is the backend's Run, driven by Solve and
// SolveAll.
type Session struct {
	backend Backend
	lits    *litMapping
	log     logrus.FieldLogger
	tracer  solver.Tracer

	objectiveSet bool
	explicit     bool
	minimize     bool

	status solver.Status
	last   *solver.Solution
	stats  solver.Stats
	buf    []Var
}

// Option values configure a Session at construction time.
type Option func(s *Session) error

// WithLogger sets the logger used for compilation and search events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) error {
		if log == nil {
			return fmt.Errorf("nil logger")
		}
		s.log = log
		return nil
	}
}

// WithTracer sets the tracer fed every posted primitive.
func WithTracer(t solver.Tracer) Option {
	return func(s *Session) error {
		if t == nil {
			return fmt.Errorf("nil tracer")
		}
		s.tracer = t
		return nil
	}
}

var defaults = []Option{
	func(s *Session) error {
		if s.log == nil {
			log := logrus.New()
			log.SetOutput(io.Discard)
			s.log = log
		}
		return nil
	},
	func(s *Session) error {
		if s.tracer == nil {
			s.tracer = solver.DefaultTracer{}
		}
		return nil
	},
}

// NewSession returns a Session bound to the given backend.
func NewSession(backend Backend, options ...Option) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("nil backend")
	}
	s := Session{backend: backend}
	for _, option := range append(options, defaults...) {
		if err := option(&s); err != nil {
			return nil, err
		}
	}
	s.lits = newLitMapping(backend, s.log)
	return &s, nil
}

// Add compiles the given constraints and posts the resulting
// primitives to the backend immediately. The supported shapes are
// linear comparisons, indicator implications whose condition is a
// Boolean reference, equalities between a Boolean reference and a
// linear inequality, and bare Boolean references asserted true.
// Upstream rewriting is expected to have reduced everything else to
// those forms.
func (s *Session) Add(exprs ...model.Expr) error {
	for _, e := range exprs {
		if err := s.add(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) add(e model.Expr) error {
	switch n := e.(type) {
	case model.Cmp:
		if n.Op == model.OpEq {
			if cond, cmp, ok := reifiable(n); ok {
				return s.compileReification(cond, cmp)
			}
		}
		return s.compileComparison(n.Op, n.LHS, n.RHS)
	case model.Implies:
		cond, ok := refOf(n.If)
		if !ok {
			return solver.UnsupportedExpression(model.Name(n.If))
		}
		cmp, ok := n.Then.(model.Cmp)
		if !ok {
			return solver.UnsupportedConstraint(model.Name(n.Then))
		}
		return s.compileIndicator(cond, cmp)
	case model.Variable:
		return s.compileComparison(model.OpGe, n, model.Num(1))
	case model.Ref:
		return s.compileComparison(model.OpGe, n, model.Num(1))
	}
	return solver.UnsupportedConstraint(model.Name(e))
}

// refOf extracts a variable reference from an expression leaf.
func refOf(e model.Expr) (model.Ref, bool) {
	switch n := e.(type) {
	case model.Variable:
		return n.Ref(), true
	case model.Ref:
		return n, true
	}
	return model.Ref{}, false
}

// reifiable splits an equality into a Boolean head and a comparison
// body when it has that shape in either order.
func reifiable(eq model.Cmp) (model.Ref, model.Cmp, bool) {
	if cmp, ok := eq.RHS.(model.Cmp); ok {
		if cond, ok := refOf(eq.LHS); ok && cond.Var().Kind() == model.KindBool {
			return cond, cmp, true
		}
	}
	if cmp, ok := eq.LHS.(model.Cmp); ok {
		if cond, ok := refOf(eq.RHS); ok && cond.Var().Kind() == model.KindBool {
			return cond, cmp, true
		}
	}
	return model.Ref{}, model.Cmp{}, false
}

// Minimize sets the objective to minimize expr. The objective can be
// set at most once per session and must be set before the first solve
// call. Constant terms in expr do not influence the reported value:
// the backend proves bounds on the variable part only.
func (s *Session) Minimize(expr model.Expr) error {
	return s.setObjective(expr, true)
}

// Maximize sets the objective to maximize expr. Maximization reduces
// to minimization by negating every objective coefficient, and the
// proven bound is negated back on extraction.
func (s *Session) Maximize(expr model.Expr) error {
	return s.setObjective(expr, false)
}

func (s *Session) setObjective(expr model.Expr, minimize bool) error {
	if s.objectiveSet {
		return solver.ObjectiveAlreadySet
	}
	le, err := s.normalize(expr, model.Num(0))
	if err != nil {
		return err
	}
	if !minimize {
		for _, c := range le.coefs {
			c.Neg(c)
		}
	}
	if err := s.initObjective(le.coefs, le.vars); err != nil {
		return err
	}
	s.objectiveSet = true
	s.explicit = true
	s.minimize = minimize

	sense := "minimize"
	if !minimize {
		sense = "maximize"
	}
	s.trace("objective", fmt.Sprintf("%s %s", sense, renderTerms(le.coefs, le.vars)))
	return nil
}

// ensureObjective fixes the empty objective for pure decision
// problems. Backends require exactly one objective initialization
// before their first run.
func (s *Session) ensureObjective() error {
	if s.objectiveSet {
		return nil
	}
	if err := s.backend.Init(nil, nil); err != nil {
		return err
	}
	s.objectiveSet = true
	return nil
}

// Solve runs the backend to completion and extracts the result. A nil
// Solution with a nil error means no solution was found; Status
// distinguishes a proof of unsatisfiability from an unknown outcome
// such as a timeout.
func (s *Session) Solve(ctx context.Context, options ...solver.Option) (*solver.Solution, error) {
	o := solver.NewOptions(options...)
	if len(o.Assumptions) > 0 {
		return nil, AssumptionsUnsupported
	}
	if err := s.ensureObjective(); err != nil {
		return nil, err
	}
	if err := s.applyOptions(o); err != nil {
		return nil, err
	}

	raw, err := s.run(ctx, o.InProgressLimit)
	if err != nil {
		return nil, err
	}
	switch raw {
	case RunSolved:
		if !s.backend.HasSolution() {
			s.status = solver.Unsatisfiable
			s.last = nil
			s.log.Debug("proved unsatisfiable")
			return nil, nil
		}
		s.status = solver.Satisfiable
		sol, err := s.extract()
		if err != nil {
			return nil, err
		}
		s.log.WithField("status", s.status).Debug("solve finished")
		return sol, nil
	case RunUnknown:
		s.status = solver.Unknown
		s.last = nil
		s.log.Debug("backend gave up without a proof")
		return nil, nil
	}
	return nil, solver.UnknownBackendStatus(raw)
}

// SolveAll enumerates solutions by repeatedly running the backend and
// invalidating each solution found. When an objective is set, the
// enumeration still visits every solution, each reporting its own
// objective value. yield, when non-nil, receives each solution and may
// stop the enumeration early by returning false. The count of
// solutions found is returned even when an error cuts the enumeration
// short.
func (s *Session) SolveAll(ctx context.Context, yield func(*solver.Solution) bool, options ...solver.Option) (int, error) {
	o := solver.NewOptions(options...)
	if len(o.Assumptions) > 0 {
		return 0, AssumptionsUnsupported
	}
	if err := s.ensureObjective(); err != nil {
		return 0, err
	}
	// Enumeration must visit non-improving solutions, so keep the
	// backend from tightening its own objective bound between runs.
	if err := s.backend.SetOption("opt-boundupper", "0"); err != nil {
		return 0, err
	}
	if err := s.applyOptions(o); err != nil {
		return 0, err
	}

	found := 0
	for o.SolutionLimit == 0 || found < o.SolutionLimit {
		raw, err := s.run(ctx, o.InProgressLimit)
		if err != nil {
			return found, err
		}
		switch raw {
		case RunSolved:
			// Solution space exhausted.
			if found > 0 {
				s.status = solver.Satisfiable
			} else {
				s.status = solver.Unsatisfiable
			}
			s.log.WithField("solutions", found).Debug("enumeration exhausted")
			return found, nil
		case RunFound:
			sol, err := s.extract()
			if err != nil {
				return found, err
			}
			found++
			s.status = solver.Satisfiable
			if yield != nil && !yield(sol) {
				return found, nil
			}
			if err := s.backend.InvalidateLastSolution(); err != nil {
				return found, err
			}
		case RunUnknown:
			s.status = solver.Unknown
			s.last = nil
			s.log.WithField("solutions", found).Debug("enumeration stopped without a proof")
			return found, nil
		default:
			return found, solver.UnknownBackendStatus(raw)
		}
	}
	return found, nil
}

func (s *Session) applyOptions(o solver.Options) error {
	if o.TimeLimit > 0 {
		seconds := strconv.FormatFloat(o.TimeLimit.Seconds(), 'f', -1, 64)
		if err := s.backend.SetOption("timeout", seconds); err != nil {
			return err
		}
	}
	for _, kv := range o.BackendOptions {
		if err := s.backend.SetOption(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// run invokes the backend until it reports something other than
// in-progress. limit > 0 bounds how many consecutive in-progress
// reports are tolerated; zero trusts the backend to terminate.
func (s *Session) run(ctx context.Context, limit int) (int, error) {
	spins := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()
		raw, err := s.backend.Run()
		s.stats.Runtime += time.Since(start)
		s.stats.Solves++
		if err != nil {
			return 0, err
		}
		if raw != RunInProgress {
			return raw, nil
		}
		spins++
		if limit > 0 && spins >= limit {
			return 0, Incomplete
		}
	}
}

// extract reads the backend's current solution back through the handle
// cache, canonicalizing Boolean values to 0 and 1.
func (s *Session) extract() (*solver.Solution, error) {
	if !s.backend.HasSolution() {
		return nil, fmt.Errorf("backend reported a solution but has none to extract")
	}
	s.buf = s.lits.Vars(s.buf)
	raw, err := s.backend.ValuesFor(s.buf)
	if err != nil {
		return nil, err
	}
	tracked := s.lits.Variables()
	if len(raw) != len(tracked) {
		return nil, fmt.Errorf("backend returned %d values for %d variables", len(raw), len(tracked))
	}

	sol := &solver.Solution{
		Values: make(map[model.Identifier]*big.Int, len(tracked)),
	}
	for i, v := range tracked {
		val := raw[i]
		if v.Kind() == model.KindBool {
			if val.Sign() != 0 {
				val = big.NewInt(1)
			} else {
				val = big.NewInt(0)
			}
		}
		sol.Values[v.Identifier()] = val
	}

	if s.explicit {
		_, upper, err := s.backend.ObjectiveBounds()
		if err != nil {
			return nil, err
		}
		obj := new(big.Int).Set(upper)
		if !s.minimize {
			obj.Neg(obj)
		}
		sol.Objective = obj
	}

	s.last = sol
	return sol, nil
}

// Core would return the subset of assumptions responsible for
// unsatisfiability. Flat backends do not implement core extraction, so
// Core fails unconditionally rather than degrade silently.
func (s *Session) Core() ([]model.Ref, error) {
	return nil, CoreUnsupported
}

// Value returns the value assigned to v in the most recent solution.
func (s *Session) Value(v model.Variable) (*big.Int, bool) {
	return s.last.Int(v)
}

// Solution returns the most recently extracted solution, or nil when
// the last solve call found none.
func (s *Session) Solution() *solver.Solution {
	return s.last
}

// Status reports the outcome of the most recent solve call.
func (s *Session) Status() solver.Status {
	return s.status
}

// Stats reports the work performed by this session so far.
func (s *Session) Stats() solver.Stats {
	return s.stats
}

func (s *Session) trace(op, detail string) {
	s.tracer.Trace(solver.Posted{Op: op, Detail: detail})
	s.log.Debugf("%s: %s", op, detail)
}
