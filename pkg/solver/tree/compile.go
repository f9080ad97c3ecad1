package tree

import (
	"fmt"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// compile recursively lowers a model expression into the backend's
// native term language. Unlike the flat compiler there is no
// normalization step: structure is preserved, and the backend decides
// what it can express. Differences are the one deliberate exception,
// rejected here because no target of this compiler has a subtraction
// node; upstream rewriting turns them into weighted sums.
func (s *Session) compile(e model.Expr) (Term, error) {
	switch n := e.(type) {
	case model.Const:
		if model.Wide(n.Value) {
			return s.backend.ConstWide(n.Value.String())
		}
		return s.backend.Const(n.Value.Int64())
	case model.Variable:
		return s.terms.TermOf(n.Ref())
	case model.Ref:
		return s.terms.TermOf(n)
	case model.And:
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		return s.backend.And(ts...)
	case model.Or:
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		return s.backend.Or(ts...)
	case model.Xor:
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		return s.backend.Xor(ts...)
	case model.Implies:
		cond, err := s.compile(n.If)
		if err != nil {
			return nil, err
		}
		then, err := s.compile(n.Then)
		if err != nil {
			return nil, err
		}
		return s.backend.Implies(cond, then)
	case model.Sum:
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		return s.backend.Sum(ts...)
	case model.WSum:
		if len(n.Coefs) != len(n.Args) {
			return nil, fmt.Errorf("weighted sum has %d coefficients for %d terms", len(n.Coefs), len(n.Args))
		}
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		if model.Wide(n.Coefs...) {
			coefs := make([]string, len(n.Coefs))
			for i, c := range n.Coefs {
				coefs[i] = c.String()
			}
			return s.backend.WSumWide(coefs, ts)
		}
		coefs := make([]int64, len(n.Coefs))
		for i, c := range n.Coefs {
			coefs[i] = c.Int64()
		}
		return s.backend.WSum(coefs, ts)
	case model.Cmp:
		a, err := s.compile(n.LHS)
		if err != nil {
			return nil, err
		}
		b, err := s.compile(n.RHS)
		if err != nil {
			return nil, err
		}
		return s.backend.Compare(n.Op, a, b)
	case model.AllDifferent:
		ts, err := s.compileAll(n.Args)
		if err != nil {
			return nil, err
		}
		return s.backend.Distinct(ts...)
	}
	return nil, solver.UnsupportedConstraint(model.Name(e))
}

func (s *Session) compileAll(args []model.Expr) ([]Term, error) {
	ts := make([]Term, len(args))
	for i, arg := range args {
		t, err := s.compile(arg)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}
