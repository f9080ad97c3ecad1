package model

import (
	"fmt"
	"math/big"
)

// Expr is a node in a constraint expression tree. The set of
// implementations is closed: backend compilers switch exhaustively
// over the variants below and reject anything else, so adding a
// variant means teaching every compiler about it.
type Expr interface {
	exprNode()
}

// Const is a constant integer expression. Boolean contexts read zero
// as false and any other value as true.
type Const struct {
	Value *big.Int
}

// Num returns a Const with the given value.
func Num(v int64) Const {
	return Const{Value: big.NewInt(v)}
}

// NumBig returns a Const holding a copy of the given value.
func NumBig(v *big.Int) Const {
	return Const{Value: new(big.Int).Set(v)}
}

// CmpOp enumerates the comparison operators.
type CmpOp int

const (
	OpLe CmpOp = iota
	OpLt
	OpGe
	OpGt
	OpEq
	OpNe
)

func (op CmpOp) String() string {
	switch op {
	case OpLe:
		return "<="
	case OpLt:
		return "<"
	case OpGe:
		return ">="
	case OpGt:
		return ">"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Cmp compares two expressions.
type Cmp struct {
	Op  CmpOp
	LHS Expr
	RHS Expr
}

// Le returns the constraint lhs <= rhs.
func Le(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpLe, LHS: lhs, RHS: rhs}
}

// Lt returns the constraint lhs < rhs.
func Lt(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpLt, LHS: lhs, RHS: rhs}
}

// Ge returns the constraint lhs >= rhs.
func Ge(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpGe, LHS: lhs, RHS: rhs}
}

// Gt returns the constraint lhs > rhs.
func Gt(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpGt, LHS: lhs, RHS: rhs}
}

// Eq returns the constraint lhs == rhs.
func Eq(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpEq, LHS: lhs, RHS: rhs}
}

// Ne returns the constraint lhs != rhs.
func Ne(lhs, rhs Expr) Cmp {
	return Cmp{Op: OpNe, LHS: lhs, RHS: rhs}
}

// Sum is the sum of its arguments.
type Sum struct {
	Args []Expr
}

// SumOf returns the sum of the given expressions.
func SumOf(args ...Expr) Sum {
	return Sum{Args: args}
}

// WSum is a weighted sum: the pairwise products Coefs[i]*Args[i].
// Coefs and Args must have equal length.
type WSum struct {
	Coefs []*big.Int
	Args  []Expr
}

// WeightedSum returns a WSum with 64-bit coefficients.
func WeightedSum(coefs []int64, args ...Expr) WSum {
	cs := make([]*big.Int, len(coefs))
	for i, c := range coefs {
		cs[i] = big.NewInt(c)
	}
	return WSum{Coefs: cs, Args: args}
}

// Sub is the difference A - B.
type Sub struct {
	A Expr
	B Expr
}

// Minus returns the difference a - b.
func Minus(a, b Expr) Sub {
	return Sub{A: a, B: b}
}

// Implies is the implication If -> Then.
type Implies struct {
	If   Expr
	Then Expr
}

// Imply returns the implication cond -> then.
func Imply(cond, then Expr) Implies {
	return Implies{If: cond, Then: then}
}

// And is the conjunction of its arguments. An empty conjunction is
// true.
type And struct {
	Args []Expr
}

// AndOf returns the conjunction of the given expressions.
func AndOf(args ...Expr) And {
	return And{Args: args}
}

// Or is the disjunction of its arguments. An empty disjunction is
// false.
type Or struct {
	Args []Expr
}

// OrOf returns the disjunction of the given expressions.
func OrOf(args ...Expr) Or {
	return Or{Args: args}
}

// Xor is the parity of its arguments: it holds when an odd number of
// them hold.
type Xor struct {
	Args []Expr
}

// XorOf returns the parity of the given expressions.
func XorOf(args ...Expr) Xor {
	return Xor{Args: args}
}

// AllDifferent requires its arguments to take pairwise distinct
// values.
type AllDifferent struct {
	Args []Expr
}

// Distinct returns the constraint that the given expressions take
// pairwise distinct values.
func Distinct(args ...Expr) AllDifferent {
	return AllDifferent{Args: args}
}

func (Const) exprNode()        {}
func (Variable) exprNode()     {}
func (Ref) exprNode()          {}
func (Cmp) exprNode()          {}
func (Sum) exprNode()          {}
func (WSum) exprNode()         {}
func (Sub) exprNode()          {}
func (Implies) exprNode()      {}
func (And) exprNode()          {}
func (Or) exprNode()           {}
func (Xor) exprNode()          {}
func (AllDifferent) exprNode() {}

// Name returns the conventional node-kind name of an expression, as
// used in error messages and traces.
func Name(e Expr) string {
	switch n := e.(type) {
	case Const:
		return "const"
	case Variable:
		return "var"
	case Ref:
		if n.neg {
			return "not"
		}
		return "var"
	case Cmp:
		return n.Op.String()
	case Sum:
		return "sum"
	case WSum:
		return "wsum"
	case Sub:
		return "sub"
	case Implies:
		return "->"
	case And:
		return "and"
	case Or:
		return "or"
	case Xor:
		return "xor"
	case AllDifferent:
		return "alldifferent"
	}
	return fmt.Sprintf("%T", e)
}
