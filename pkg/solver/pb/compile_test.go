package pb

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

func TestAddComparisons(t *testing.T) {
	x := model.Int("x", 0, 5)
	y := model.Int("y", 0, 5)
	a := model.Bool("a")
	b := model.Bool("b")

	for _, tc := range []struct {
		Name  string
		Expr  model.Expr
		Calls []string
		Error error
	}{
		{
			Name: "sum below constant",
			Expr: model.Le(model.SumOf(x, y), model.Num(3)),
			Calls: []string{
				"declare x [0 5]",
				"declare y [0 5]",
				"linear [1 1] [x y] [- 3]",
			},
		},
		{
			Name: "variable at least constant",
			Expr: model.Ge(x, model.Num(1)),
			Calls: []string{
				"declare x [0 5]",
				"linear [1] [x] [1 -]",
			},
		},
		{
			Name: "equality pins both bounds",
			Expr: model.Eq(model.WeightedSum([]int64{2, -3}, x, y), model.Num(4)),
			Calls: []string{
				"declare x [0 5]",
				"declare y [0 5]",
				"linear [2 -3] [x y] [4 4]",
			},
		},
		{
			Name: "constants fold into the right-hand side",
			Expr: model.Eq(model.SumOf(x, model.Num(2), y), model.Num(5)),
			Calls: []string{
				"declare x [0 5]",
				"declare y [0 5]",
				"linear [1 1] [x y] [3 3]",
			},
		},
		{
			Name: "difference of two terms",
			Expr: model.Le(model.Minus(x, y), model.Num(1)),
			Calls: []string{
				"declare x [0 5]",
				"declare y [0 5]",
				"linear [1 -1] [x y] [- 1]",
			},
		},
		{
			Name: "variable right-hand side moves left",
			Expr: model.Le(x, y),
			Calls: []string{
				"declare x [0 5]",
				"declare y [0 5]",
				"linear [1 -1] [x y] [- 0]",
			},
		},
		{
			Name: "negated reference enters as one minus base",
			Expr: model.Le(model.SumOf(a.Not(), b), model.Num(1)),
			Calls: []string{
				"declare a [0 1]",
				"declare b [0 1]",
				"linear [-1 1] [a b] [- 0]",
			},
		},
		{
			Name: "bare reference asserted true",
			Expr: a.Ref(),
			Calls: []string{
				"declare a [0 1]",
				"linear [1] [a] [1 -]",
			},
		},
		{
			Name: "bare negated reference",
			Expr: a.Not(),
			Calls: []string{
				"declare a [0 1]",
				"linear [-1] [a] [0 -]",
			},
		},
		{
			Name: "bare variable asserted true",
			Expr: b,
			Calls: []string{
				"declare b [0 1]",
				"linear [1] [b] [1 -]",
			},
		},
		{
			Name:  "strict comparison is rejected",
			Expr:  model.Lt(x, model.Num(3)),
			Error: solver.UnsupportedConstraint("<"),
		},
		{
			Name:  "disequality is rejected",
			Expr:  model.Ne(x, model.Num(3)),
			Error: solver.UnsupportedConstraint("!="),
		},
		{
			Name:  "nested expression is rejected",
			Expr:  model.Le(model.OrOf(a, b), model.Num(1)),
			Error: solver.UnsupportedExpression("or"),
		},
		{
			Name:  "sum right-hand side is rejected",
			Expr:  model.Le(x, model.SumOf(y, y)),
			Error: solver.UnsupportedExpression("sum"),
		},
		{
			Name:  "conjunction is rejected",
			Expr:  model.AndOf(a, b),
			Error: solver.UnsupportedConstraint("and"),
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			f, s := newFakeSession(t)

			err := s.Add(tc.Expr)
			if tc.Error != nil {
				assert.ErrorIs(err, tc.Error)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.Calls, f.calls)
		})
	}
}

func TestAddWeightedSumLengthMismatch(t *testing.T) {
	assert := assert.New(t)

	_, s := newFakeSession(t)
	x := model.Int("x", 0, 5)

	err := s.Add(model.Le(model.WSum{
		Coefs: []*big.Int{big.NewInt(1), big.NewInt(2)},
		Args:  []model.Expr{x},
	}, model.Num(3)))
	assert.Error(err)
	assert.Contains(err.Error(), "2 coefficients for 1 terms")
}

func TestAddIndicator(t *testing.T) {
	x := model.Int("x", 0, 5)
	a := model.Bool("a")

	for _, tc := range []struct {
		Name  string
		Expr  model.Expr
		Calls []string
		Error error
	}{
		{
			Name: "direct condition with at-least",
			Expr: model.Imply(a, model.Ge(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"right-reif a [1] [x] 2",
			},
		},
		{
			Name: "direct condition with at-most",
			Expr: model.Imply(a, model.Le(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"right-reif a [-1] [x] -2",
			},
		},
		{
			Name: "direct condition with equality",
			Expr: model.Imply(a, model.Eq(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"right-reif a [1] [x] 2",
				"right-reif a [-1] [x] -2",
			},
		},
		{
			Name: "negated condition with at-least",
			Expr: model.Imply(a.Not(), model.Ge(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"left-reif a [-1] [x] -1",
			},
		},
		{
			Name: "negated condition with at-most",
			Expr: model.Imply(a.Not(), model.Le(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"left-reif a [1] [x] 3",
			},
		},
		{
			Name: "negated condition with equality",
			Expr: model.Imply(a.Not(), model.Eq(x, model.Num(2))),
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"left-reif a [1] [x] 3",
				"left-reif a [-1] [x] -1",
			},
		},
		{
			Name:  "integer condition is rejected",
			Expr:  model.Imply(x, model.Ge(x, model.Num(2))),
			Error: nil, // inspected below by message
		},
		{
			Name:  "non-comparison body is rejected",
			Expr:  model.Imply(a, model.OrOf(a, a)),
			Error: solver.UnsupportedConstraint("or"),
		},
		{
			Name:  "strict body is rejected",
			Expr:  model.Imply(a, model.Lt(x, model.Num(2))),
			Error: solver.UnsupportedConstraint("<"),
		},
		{
			Name:  "non-reference condition is rejected",
			Expr:  model.Imply(model.Num(1), model.Ge(x, model.Num(2))),
			Error: solver.UnsupportedExpression("const"),
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			f, s := newFakeSession(t)

			err := s.Add(tc.Expr)
			if tc.Calls == nil {
				assert.Error(err)
				if tc.Error != nil {
					assert.ErrorIs(err, tc.Error)
				}
				return
			}
			assert.NoError(err)
			assert.Equal(tc.Calls, f.calls)
		})
	}
}

func TestAddReification(t *testing.T) {
	x := model.Int("x", 0, 5)
	b := model.Bool("b")

	for _, tc := range []struct {
		Name  string
		Expr  model.Expr
		Calls []string
		Error error
	}{
		{
			Name: "head equivalent to at-least",
			Expr: model.Eq(b, model.Ge(x, model.Num(2))),
			Calls: []string{
				"declare b [0 1]",
				"declare x [0 5]",
				"reif b [1] [x] 2",
			},
		},
		{
			Name: "orientation does not matter",
			Expr: model.Eq(model.Ge(x, model.Num(2)), b),
			Calls: []string{
				"declare b [0 1]",
				"declare x [0 5]",
				"reif b [1] [x] 2",
			},
		},
		{
			Name: "head equivalent to at-most",
			Expr: model.Eq(b, model.Le(x, model.Num(2))),
			Calls: []string{
				"declare b [0 1]",
				"declare x [0 5]",
				"reif b [-1] [x] -2",
			},
		},
		{
			Name: "negated head flips the comparison",
			Expr: model.Eq(b.Not(), model.Ge(x, model.Num(2))),
			Calls: []string{
				"declare b [0 1]",
				"declare x [0 5]",
				"reif b [-1] [x] -1",
			},
		},
		{
			Name:  "equality under the head is rejected",
			Expr:  model.Eq(b, model.Eq(x, model.Num(2))),
			Error: solver.UnsupportedConstraint("=="),
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			f, s := newFakeSession(t)

			err := s.Add(tc.Expr)
			if tc.Error != nil {
				assert.ErrorIs(err, tc.Error)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.Calls, f.calls)
		})
	}
}

func TestWideRouting(t *testing.T) {
	x := model.Int("x", 0, 5)
	a := model.Bool("a")
	huge := "2000000000000000000"
	hugeVal, _ := new(big.Int).SetString(huge, 10)

	for _, tc := range []struct {
		Name  string
		Add   func(s *Session) error
		Calls []string
	}{
		{
			Name: "wide coefficient routes the row",
			Add: func(s *Session) error {
				return s.Add(model.Le(model.WeightedSum([]int64{2000000000000000000}, x), model.Num(10)))
			},
			Calls: []string{
				"declare x [0 5]",
				"linear-wide [2000000000000000000] [x] [- 10]",
			},
		},
		{
			Name: "wide bound routes the row",
			Add: func(s *Session) error {
				return s.Add(model.Ge(x, model.NumBig(hugeVal)))
			},
			Calls: []string{
				"declare x [0 5]",
				"linear-wide [1] [x] [2000000000000000000 -]",
			},
		},
		{
			Name: "threshold value itself stays narrow",
			Add: func(s *Session) error {
				return s.Add(model.Ge(x, model.NumBig(big.NewInt(1e18))))
			},
			Calls: []string{
				"declare x [0 5]",
				"linear [1] [x] [1000000000000000000 -]",
			},
		},
		{
			Name: "wide indicator right-hand side",
			Add: func(s *Session) error {
				return s.Add(model.Imply(a, model.Ge(x, model.NumBig(hugeVal))))
			},
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"right-reif-wide a [1] [x] 2000000000000000000",
			},
		},
		{
			Name: "wide negated indicator shifts in big arithmetic",
			Add: func(s *Session) error {
				return s.Add(model.Imply(a.Not(), model.Le(x, model.NumBig(hugeVal))))
			},
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"left-reif-wide a [1] [x] 2000000000000000001",
			},
		},
		{
			Name: "wide reification head",
			Add: func(s *Session) error {
				return s.Add(model.Eq(a, model.Ge(x, model.NumBig(hugeVal))))
			},
			Calls: []string{
				"declare a [0 1]",
				"declare x [0 5]",
				"reif-wide a [1] [x] 2000000000000000000",
			},
		},
		{
			Name: "wide objective coefficients",
			Add: func(s *Session) error {
				return s.Minimize(model.WeightedSum([]int64{2000000000000000000}, x))
			},
			Calls: []string{
				"declare x [0 5]",
				"init-wide [2000000000000000000] [x]",
			},
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			assert := assert.New(t)
			f, s := newFakeSession(t)

			assert.NoError(tc.Add(s))
			assert.Equal(tc.Calls, f.calls)
		})
	}
}
