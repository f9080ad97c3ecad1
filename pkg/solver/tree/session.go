package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// ObjectiveUnsupported is returned by Minimize and Maximize
// unconditionally. Nested-expression backends answer decision
// queries; optimization belongs to the flat layer.
var ObjectiveUnsupported = errors.New("objective functions are not implemented for nested-expression backends")

// Session compiles constraints for one nested-expression backend
// instance and reads solutions back. A Session owns its backend
// outright and must not be shared between goroutines.
//
// Compilation is eager: Add translates each expression into a
// backend-native term and posts it immediately. Assumptions are
// supported natively, so Solve can answer incremental queries and
// Core can explain failed ones.
type Session struct {
	backend Backend
	terms   *termMapping
	log     logrus.FieldLogger
	tracer  solver.Tracer

	assumed     []model.Ref
	assumedTerm []Term

	status solver.Status
	last   *solver.Solution
	stats  solver.Stats
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

// WithTracer sets the tracer fed every posted constraint.
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
	s.terms = newTermMapping(backend, s.log)
	return &s, nil
}

// Add compiles the given constraints and posts each one to the
// backend immediately. Arbitrary nesting is preserved; node kinds the
// backend cannot express are rejected at post time.
func (s *Session) Add(exprs ...model.Expr) error {
	for _, e := range exprs {
		t, err := s.compile(e)
		if err != nil {
			return err
		}
		if err := s.backend.Post(t); err != nil {
			return err
		}
		s.trace("post", model.Name(e))
	}
	return nil
}

// Minimize fails unconditionally; see ObjectiveUnsupported.
func (s *Session) Minimize(expr model.Expr) error {
	return ObjectiveUnsupported
}

// Maximize fails unconditionally; see ObjectiveUnsupported.
func (s *Session) Maximize(expr model.Expr) error {
	return ObjectiveUnsupported
}

// Solve checks satisfiability of the posted constraints under the
// given options. Assumptions hold for this call only. A nil Solution
// with a nil error means no solution was found; Status distinguishes
// a proof of unsatisfiability from an unknown outcome such as a
// timeout.
func (s *Session) Solve(ctx context.Context, options ...solver.Option) (*solver.Solution, error) {
	o := solver.NewOptions(options...)
	if err := s.assume(o.Assumptions); err != nil {
		return nil, err
	}
	if err := s.applyOptions(ctx, o); err != nil {
		return nil, err
	}

	status, err := s.check(ctx)
	if err != nil {
		return nil, err
	}
	s.status = status
	switch status {
	case solver.Satisfiable:
		sol, err := s.extract()
		if err != nil {
			return nil, err
		}
		s.log.WithField("status", status).Debug("solve finished")
		return sol, nil
	case solver.Unsatisfiable:
		s.last = nil
		s.log.Debug("proved unsatisfiable")
		return nil, nil
	}
	s.last = nil
	s.log.Debug("backend gave up without a proof")
	return nil, nil
}

// SolveAll enumerates satisfying assignments by repeatedly checking
// and posting a constraint that blocks the last assignment. Blocking
// constraints persist for the life of the session, so a later Solve
// sees the narrowed space. yield, when non-nil, receives each
// solution and may stop the enumeration early by returning false. The
// count of solutions found is returned even when an error cuts the
// enumeration short.
func (s *Session) SolveAll(ctx context.Context, yield func(*solver.Solution) bool, options ...solver.Option) (int, error) {
	o := solver.NewOptions(options...)
	if err := s.assume(o.Assumptions); err != nil {
		return 0, err
	}
	if err := s.applyOptions(ctx, o); err != nil {
		return 0, err
	}

	found := 0
	for o.SolutionLimit == 0 || found < o.SolutionLimit {
		status, err := s.check(ctx)
		if err != nil {
			return found, err
		}
		switch status {
		case solver.Satisfiable:
			sol, err := s.extract()
			if err != nil {
				return found, err
			}
			found++
			s.status = solver.Satisfiable
			if yield != nil && !yield(sol) {
				return found, nil
			}
			if err := s.blockLast(sol); err != nil {
				return found, err
			}
		case solver.Unsatisfiable:
			// Solution space exhausted.
			if found > 0 {
				s.status = solver.Satisfiable
			} else {
				s.status = solver.Unsatisfiable
			}
			s.log.WithField("solutions", found).Debug("enumeration exhausted")
			return found, nil
		default:
			s.status = solver.Unknown
			s.last = nil
			s.log.WithField("solutions", found).Debug("enumeration stopped without a proof")
			return found, nil
		}
	}
	return found, nil
}

// assume compiles the assumption references for the next check,
// keeping the source references alongside the compiled terms so Core
// can translate failures back.
func (s *Session) assume(refs []model.Ref) error {
	s.assumed = s.assumed[:0]
	s.assumedTerm = s.assumedTerm[:0]
	for _, ref := range refs {
		t, err := s.terms.TermOf(ref)
		if err != nil {
			return err
		}
		s.assumed = append(s.assumed, ref)
		s.assumedTerm = append(s.assumedTerm, t)
		s.trace("assume", ref.String())
	}
	return nil
}

func (s *Session) applyOptions(ctx context.Context, o solver.Options) error {
	timeout := o.TimeLimit
	if timeout == 0 {
		if deadline, ok := ctx.Deadline(); ok {
			if until := time.Until(deadline); until > 0 {
				timeout = until
			}
		}
	}
	s.backend.SetTimeout(timeout)
	for _, kv := range o.BackendOptions {
		if err := s.backend.SetOption(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) check(ctx context.Context) (solver.Status, error) {
	if err := ctx.Err(); err != nil {
		return solver.Unknown, err
	}
	start := time.Now()
	status, err := s.backend.Check(s.assumedTerm)
	s.stats.Runtime += time.Since(start)
	s.stats.Solves++
	return status, err
}

// extract reads the backend's current solution back through the term
// cache, canonicalizing Boolean values to 0 and 1.
func (s *Session) extract() (*solver.Solution, error) {
	tracked := s.terms.Variables()
	sol := &solver.Solution{
		Values: make(map[model.Identifier]*big.Int, len(tracked)),
	}
	for _, v := range tracked {
		t, err := s.terms.TermOf(v.Ref())
		if err != nil {
			return nil, err
		}
		switch v.Kind() {
		case model.KindBool:
			b, err := s.backend.BoolValue(t)
			if err != nil {
				return nil, err
			}
			val := big.NewInt(0)
			if b {
				val.SetInt64(1)
			}
			sol.Values[v.Identifier()] = val
		case model.KindInt:
			val, err := s.backend.IntValue(t)
			if err != nil {
				return nil, err
			}
			sol.Values[v.Identifier()] = val
		}
	}
	s.last = sol
	return sol, nil
}

// blockLast posts a constraint forbidding the assignment in sol, so
// the next check must find a different one. A model with no variables
// has a single empty assignment; blocking it makes the next check
// unsatisfiable, which terminates enumeration after one solution.
func (s *Session) blockLast(sol *solver.Solution) error {
	tracked := s.terms.Variables()
	fixed := make([]Term, 0, len(tracked))
	for _, v := range tracked {
		t, err := s.terms.TermOf(v.Ref())
		if err != nil {
			return err
		}
		val, ok := sol.Values[v.Identifier()]
		if !ok {
			return fmt.Errorf("no value for variable %q in last solution", v.Identifier())
		}
		switch v.Kind() {
		case model.KindBool:
			if val.Sign() == 0 {
				if t, err = s.backend.Not(t); err != nil {
					return err
				}
			}
		case model.KindInt:
			var c Term
			if model.Wide(val) {
				c, err = s.backend.ConstWide(val.String())
			} else {
				c, err = s.backend.Const(val.Int64())
			}
			if err != nil {
				return err
			}
			if t, err = s.backend.Compare(model.OpEq, t, c); err != nil {
				return err
			}
		}
		fixed = append(fixed, t)
	}
	same, err := s.backend.And(fixed...)
	if err != nil {
		return err
	}
	diff, err := s.backend.Not(same)
	if err != nil {
		return err
	}
	if err := s.backend.Post(diff); err != nil {
		return err
	}
	s.log.Debug("blocked last assignment")
	return nil
}

// Core returns the subset of the most recent check's assumptions that
// the backend found jointly sufficient for unsatisfiability. It is
// only meaningful after a check proved unsatisfiability.
func (s *Session) Core() ([]model.Ref, error) {
	if s.status != solver.Unsatisfiable {
		return nil, fmt.Errorf("no unsatisfiable core: last check did not prove unsatisfiability")
	}
	failed, err := s.backend.FailedAssumptions()
	if err != nil {
		return nil, err
	}
	core := make([]model.Ref, 0, len(failed))
	for _, f := range failed {
		found := false
		for i, t := range s.assumedTerm {
			if t == f {
				core = append(core, s.assumed[i])
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("backend reported a failed assumption that was never assumed")
		}
	}
	return core, nil
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
