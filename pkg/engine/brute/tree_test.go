package brute

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
	"github.com/operator-framework/solvent/pkg/solver/tree"
)

func newTreeSession(t *testing.T) *tree.Session {
	t.Helper()
	s, err := tree.NewSession(NewTree())
	assert.NoError(t, err)
	return s
}

func TestTreeNestedModelEquivalence(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	x := model.Int("x", 0, 4)
	y := model.Int("y", 0, 4)

	assert.NoError(s.Add(
		model.Distinct(x, y),
		model.Le(model.SumOf(x, y), model.Num(5)),
		model.Imply(model.Gt(x, y), model.Eq(x, model.SumOf(y, model.Num(2)))),
	))

	got := map[[2]int64]bool{}
	_, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
		xv, _ := sol.Int(x)
		yv, _ := sol.Int(y)
		got[[2]int64{xv.Int64(), yv.Int64()}] = true
		return true
	})
	assert.NoError(err)

	want := map[[2]int64]bool{}
	for xv := int64(0); xv <= 4; xv++ {
		for yv := int64(0); yv <= 4; yv++ {
			if xv != yv && xv+yv <= 5 && (xv <= yv || xv == yv+2) {
				want[[2]int64{xv, yv}] = true
			}
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("solution set mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeXorParity(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")
	c := model.Bool("c")
	assert.NoError(s.Add(model.XorOf(a, b, c)))

	n, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
		av, _ := sol.Bool(a)
		bv, _ := sol.Bool(b)
		cv, _ := sol.Bool(c)
		ones := 0
		for _, v := range []bool{av, bv, cv} {
			if v {
				ones++
			}
		}
		assert.Equal(1, ones%2)
		return true
	})
	assert.NoError(err)
	assert.Equal(4, n)
}

func TestTreeStrictComparisons(t *testing.T) {
	for _, tt := range []struct {
		name  string
		cons  func(x, y model.Variable) model.Expr
		holds func(x, y int64) bool
	}{
		{
			name:  "lt",
			cons:  func(x, y model.Variable) model.Expr { return model.Lt(x, y) },
			holds: func(x, y int64) bool { return x < y },
		},
		{
			name:  "gt",
			cons:  func(x, y model.Variable) model.Expr { return model.Gt(x, y) },
			holds: func(x, y int64) bool { return x > y },
		},
		{
			name:  "ne",
			cons:  func(x, y model.Variable) model.Expr { return model.Ne(x, y) },
			holds: func(x, y int64) bool { return x != y },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := newTreeSession(t)
			x := model.Int("x", 0, 2)
			y := model.Int("y", 0, 2)
			assert.NoError(t, s.Add(tt.cons(x, y)))

			got := map[[2]int64]bool{}
			_, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
				xv, _ := sol.Int(x)
				yv, _ := sol.Int(y)
				got[[2]int64{xv.Int64(), yv.Int64()}] = true
				return true
			})
			assert.NoError(t, err)

			want := map[[2]int64]bool{}
			for xv := int64(0); xv <= 2; xv++ {
				for yv := int64(0); yv <= 2; yv++ {
					if tt.holds(xv, yv) {
						want[[2]int64{xv, yv}] = true
					}
				}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("solution set mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTreeBooleanArithmetic(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")
	assert.NoError(s.Add(model.Ge(model.SumOf(a, b), model.Num(2))))

	n, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
		av, _ := sol.Bool(a)
		bv, _ := sol.Bool(b)
		assert.True(av && bv)
		return true
	})
	assert.NoError(err)
	assert.Equal(1, n)
}

func TestTreeDistinctWithConstants(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	x := model.Int("x", 0, 2)
	y := model.Int("y", 0, 2)
	assert.NoError(s.Add(model.Distinct(x, y, model.Num(1))))

	got := map[[2]int64]bool{}
	_, err := s.SolveAll(context.Background(), func(sol *solver.Solution) bool {
		xv, _ := sol.Int(x)
		yv, _ := sol.Int(y)
		got[[2]int64{xv.Int64(), yv.Int64()}] = true
		return true
	})
	assert.NoError(err)
	assert.Equal(map[[2]int64]bool{{0, 2}: true, {2, 0}: true}, got)
}

func TestTreeAssumptionsScoped(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")
	assert.NoError(s.Add(model.Imply(a, b)))

	// a together with ¬b contradicts the implication.
	sol, err := s.Solve(context.Background(), solver.WithAssumptions(a.Ref(), b.Not()))
	assert.NoError(err)
	assert.Nil(sol)
	assert.Equal(solver.Unsatisfiable, s.Status())

	core, err := s.Core()
	assert.NoError(err)
	assert.Equal([]model.Ref{a.Ref(), b.Not()}, core)

	// Assuming only a forces b.
	sol, err = s.Solve(context.Background(), solver.WithAssumptions(a.Ref()))
	assert.NoError(err)
	assert.NotNil(sol)
	bv, _ := sol.Bool(b)
	assert.True(bv)

	// The assumptions did not stick.
	sol, err = s.Solve(context.Background())
	assert.NoError(err)
	assert.NotNil(sol)
}

func TestTreeWideDomains(t *testing.T) {
	assert := assert.New(t)

	lb, _ := new(big.Int).SetString("2000000000000000000", 10)
	ub, _ := new(big.Int).SetString("2000000000000000002", 10)
	mid, _ := new(big.Int).SetString("2000000000000000001", 10)

	s := newTreeSession(t)
	z := model.IntBig("z", lb, ub)
	assert.NoError(s.Add(model.Eq(z, model.NumBig(mid))))

	sol, err := s.Solve(context.Background())
	assert.NoError(err)
	assert.NotNil(sol)
	zv, ok := sol.Int(z)
	assert.True(ok)
	assert.Equal("2000000000000000001", zv.String())
}

func TestTreeTimeLimitReportsUnknown(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	x := model.Int("x", 0, 20)
	y := model.Int("y", 0, 20)
	assert.NoError(s.Add(model.Ge(model.SumOf(x, y), model.Num(100))))

	sol, err := s.Solve(context.Background(), solver.WithTimeLimit(time.Nanosecond))
	assert.NoError(err)
	assert.Nil(sol)
	assert.Equal(solver.Unknown, s.Status())
}

func TestTreeEnumerationBlocksPersist(t *testing.T) {
	assert := assert.New(t)

	s := newTreeSession(t)
	a := model.Bool("a")
	b := model.Bool("b")
	assert.NoError(s.Add(model.OrOf(a, b)))

	n, err := s.SolveAll(context.Background(), nil)
	assert.NoError(err)
	assert.Equal(3, n)

	// Each enumerated assignment was blocked with a posted
	// constraint, so nothing is left for a later solve.
	sol, err := s.Solve(context.Background())
	assert.NoError(err)
	assert.Nil(sol)
	assert.Equal(solver.Unsatisfiable, s.Status())
}

func TestTreeBackendValueReadback(t *testing.T) {
	assert := assert.New(t)

	b := NewTree()
	at, err := b.DeclareBool("a")
	assert.NoError(err)
	xt, err := b.DeclareInt("x", 2, 2)
	assert.NoError(err)
	assert.NoError(b.Post(at))

	status, err := b.Check(nil)
	assert.NoError(err)
	assert.Equal(solver.Satisfiable, status)

	// Booleans coerce to integers on readback.
	av, err := b.IntValue(at)
	assert.NoError(err)
	assert.Equal(int64(1), av.Int64())
	xv, err := b.IntValue(xt)
	assert.NoError(err)
	assert.Equal(int64(2), xv.Int64())

	// Numeric terms have no truth value.
	c, err := b.Const(3)
	assert.NoError(err)
	_, err = b.BoolValue(c)
	assert.Error(err)
	assert.Contains(err.Error(), "no truth value")
}

func TestTreeBackendRejections(t *testing.T) {
	assert := assert.New(t)

	b := NewTree()
	at, err := b.DeclareBool("a")
	assert.NoError(err)

	_, err = b.DeclareBool("a")
	assert.ErrorIs(err, solver.DuplicateIdentifier("a"))

	_, err = b.DeclareInt("empty", 3, 2)
	assert.Error(err)
	assert.Contains(err.Error(), "empty domain")

	c, err := b.Const(3)
	assert.NoError(err)
	err = b.Post(c)
	assert.Error(err)
	assert.Contains(err.Error(), "truth value")

	_, err = b.And(at, c)
	assert.Error(err)

	_, err = b.Not(5)
	assert.Error(err)
	assert.Contains(err.Error(), "not built by this engine")

	_, err = b.BoolValue(at)
	assert.Error(err)
	assert.Contains(err.Error(), "no satisfying assignment")

	err = b.SetOption("anything", "1")
	assert.Error(err)
	assert.Contains(err.Error(), "unknown option")
}
