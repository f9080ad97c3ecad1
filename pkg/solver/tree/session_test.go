package tree

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

func TestNewSessionValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := NewSession(nil)
	assert.Error(err)

	_, err = NewSession(&fakeBackend{}, WithLogger(nil))
	assert.Error(err)

	_, err = NewSession(&fakeBackend{}, WithTracer(nil))
	assert.Error(err)
}

func TestSolveSatisfiable(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	x := model.Int("x", 0, 5)

	assert.NoError(s.Add(model.OrOf(a, model.Eq(x, model.Num(4)))))
	f.sols = []map[string]int64{{"a": 1, "x": 4}}

	sol, err := s.Solve(context.Background())
	assert.NoError(err)
	assert.NotNil(sol)
	assert.Equal(solver.Satisfiable, s.Status())
	assert.Equal(1, s.Stats().Solves)

	av, ok := sol.Bool(a)
	assert.True(ok)
	assert.True(av)
	xv, ok := s.Value(x)
	assert.True(ok)
	assert.Equal("4", xv.String())
	assert.Nil(sol.Objective)
}

func TestSolveUnsatisfiable(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	assert.NoError(s.Add(model.AndOf(a, a.Not())))
	f.statuses = []solver.Status{solver.Unsatisfiable}

	sol, err := s.Solve(context.Background())
	assert.NoError(err)
	assert.Nil(sol)
	assert.Equal(solver.Unsatisfiable, s.Status())
	assert.Nil(s.Solution())
}

func TestSolveUnknownIsTerminalNotError(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	assert.NoError(s.Add(a))
	f.sols = []map[string]int64{{"a": 1}}

	sol, err := s.Solve(context.Background())
	assert.NoError(err)
	assert.NotNil(sol)

	// A later inconclusive outcome must not leave the stale
	// solution visible.
	f.statuses = []solver.Status{solver.Unknown}
	sol, err = s.Solve(context.Background())
	assert.NoError(err)
	assert.Nil(sol)
	assert.Equal(solver.Unknown, s.Status())
	assert.Nil(s.Solution())
}

func TestSolveAssumptionsReachBackend(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")

	sol, err := s.Solve(context.Background(), solver.WithAssumptions(a.Ref(), b.Not()))
	assert.NoError(err)
	assert.NotNil(sol)
	assert.Len(f.assumed, 1)
	assert.Equal([]Term{fakeTerm("a"), fakeTerm("not(b)")}, f.assumed[0])

	// Assumption-only variables are still part of the extracted
	// assignment.
	_, ok := sol.Bool(b)
	assert.True(ok)
}

func TestAssumptionsHoldForOneCallOnly(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")

	_, err := s.Solve(context.Background(), solver.WithAssumptions(a.Ref()))
	assert.NoError(err)
	_, err = s.Solve(context.Background())
	assert.NoError(err)

	assert.Equal([]Term{fakeTerm("a")}, f.assumed[0])
	assert.Empty(f.assumed[1])
}

func TestCoreMapsFailedAssumptions(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")

	_, err := s.Core()
	assert.Error(err)
	assert.Contains(err.Error(), "no unsatisfiable core")

	f.statuses = []solver.Status{solver.Unsatisfiable}
	f.failed = []Term{fakeTerm("not(b)")}
	sol, err := s.Solve(context.Background(), solver.WithAssumptions(a.Ref(), b.Not()))
	assert.NoError(err)
	assert.Nil(sol)

	core, err := s.Core()
	assert.NoError(err)
	assert.Equal([]model.Ref{b.Not()}, core)
}

func TestCoreRejectsUnknownFailedTerm(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")

	f.statuses = []solver.Status{solver.Unsatisfiable}
	f.failed = []Term{fakeTerm("ghost")}
	_, err := s.Solve(context.Background(), solver.WithAssumptions(a.Ref()))
	assert.NoError(err)

	_, err = s.Core()
	assert.Error(err)
	assert.Contains(err.Error(), "never assumed")
}

func TestObjectiveUnsupported(t *testing.T) {
	assert := assert.New(t)

	_, s := newFakeSession(t)
	x := model.Int("x", 0, 5)

	assert.ErrorIs(s.Minimize(x), ObjectiveUnsupported)
	assert.ErrorIs(s.Maximize(x), ObjectiveUnsupported)
}

func TestSolveAllEnumeratesAndBlocks(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")

	assert.NoError(s.Add(model.OrOf(a, b)))
	f.sols = []map[string]int64{{"a": 1, "b": 0}, {"a": 0, "b": 1}}
	f.statuses = []solver.Status{solver.Satisfiable, solver.Satisfiable, solver.Unsatisfiable}

	var seen []string
	n, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
		av, _ := sol.Bool(a)
		bv, _ := sol.Bool(b)
		seen = append(seen, fmt.Sprintf("%v/%v", av, bv))
		return true
	})
	assert.NoError(err)
	assert.Equal(2, n)
	assert.Equal(solver.Satisfiable, s.Status())
	assert.Equal([]string{"true/false", "false/true"}, seen)
	assert.Equal([]string{
		"or(a, b)",
		"not(and(a, not(b)))",
		"not(and(not(a), b))",
	}, f.posted)
	assert.Equal(3, f.checks)
}

func TestSolveAllBlocksIntegerAssignments(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	x := model.Int("x", 0, 5)

	assert.NoError(s.Add(model.Imply(a, model.Ge(x, model.Num(3)))))
	f.sols = []map[string]int64{{"a": 1, "x": 3}}
	f.statuses = []solver.Status{solver.Satisfiable, solver.Unsatisfiable}

	n, err := s.SolveAll(context.Background(), nil)
	assert.NoError(err)
	assert.Equal(1, n)
	assert.Equal([]string{
		"implies(a, (x >= 3))",
		"not(and(a, (x == 3)))",
	}, f.posted)
}

func TestSolveAllYieldStopsEarly(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	assert.NoError(s.Add(a))
	f.sols = []map[string]int64{{"a": 1}}

	n, err := s.SolveAll(context.Background(), func(*solver.Solution) bool { return false })
	assert.NoError(err)
	assert.Equal(1, n)
	assert.Equal(1, f.checks)
	// Stopping early leaves the last assignment unblocked.
	assert.Equal([]string{"a"}, f.posted)
}

func TestSolveAllSolutionLimit(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	assert.NoError(s.Add(model.OrOf(a, a.Not())))
	f.sols = []map[string]int64{{"a": 0}, {"a": 1}, {"a": 0}}

	n, err := s.SolveAll(context.Background(), nil, solver.WithSolutionLimit(2))
	assert.NoError(err)
	assert.Equal(2, n)
	assert.Equal(2, f.checks)
	assert.Equal([]string{
		"or(a, not(a))",
		"not(and(not(a)))",
		"not(and(a))",
	}, f.posted)
}

func TestSolveAllUnsatisfiableFromTheStart(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	f.statuses = []solver.Status{solver.Unsatisfiable}

	n, err := s.SolveAll(context.Background(), nil)
	assert.NoError(err)
	assert.Equal(0, n)
	assert.Equal(solver.Unsatisfiable, s.Status())
}

func TestSolveAllUnknownStopsEnumeration(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	a := model.Bool("a")
	assert.NoError(s.Add(a))
	f.sols = []map[string]int64{{"a": 1}}
	f.statuses = []solver.Status{solver.Satisfiable, solver.Unknown}

	n, err := s.SolveAll(context.Background(), nil)
	assert.NoError(err)
	assert.Equal(1, n)
	assert.Equal(solver.Unknown, s.Status())
	assert.Nil(s.Solution())
}

func TestApplyOptionsForwarding(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	_, err := s.Solve(context.Background(),
		solver.WithTimeLimit(1500*time.Millisecond),
		solver.WithBackendOption("models", "eager"))
	assert.NoError(err)
	assert.Equal(1500*time.Millisecond, f.timeout)
	assert.Equal([]string{"set models eager"}, f.options)
}

func TestContextDeadlineBoundsSearch(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	_, err := s.Solve(ctx)
	assert.NoError(err)
	assert.True(f.timeout > 0)
	assert.True(f.timeout <= time.Hour)
}

func TestSolveContextCancellation(t *testing.T) {
	assert := assert.New(t)

	f, s := newFakeSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Solve(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(0, f.checks)
}

func TestTracerSeesPostsAndAssumptions(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	s, err := NewSession(&fakeBackend{}, WithTracer(solver.LoggingTracer{Writer: &buf}))
	assert.NoError(err)

	a := model.Bool("a")
	b := model.Bool("b")
	assert.NoError(s.Add(model.OrOf(a, b)))
	_, err = s.Solve(context.Background(), solver.WithAssumptions(b.Not()))
	assert.NoError(err)

	out := buf.String()
	assert.Contains(out, "post: or")
	assert.Contains(out, "assume: ~b")
}
