package model

import (
	"fmt"
	"math/big"
)

// Identifier values uniquely identify particular decision variables
// within one model.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// IdentifierFromString returns an Identifier based on a provided
// string.
func IdentifierFromString(s string) Identifier {
	return Identifier(s)
}

// Kind enumerates the kinds of decision variable understood by the
// backend compilers.
type Kind int

const (
	// KindInvalid is the zero Kind. It never describes a usable
	// variable and is rejected wherever a variable is materialized.
	KindInvalid Kind = iota
	// KindBool describes a Boolean variable with domain {0,1}.
	KindBool
	// KindInt describes an integer variable with inclusive bounds.
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Variable values are the basic unit of the problems and solutions
// understood by this module. A Variable describes one decision to be
// made by a backend: its identity, its kind, and, for integers, its
// inclusive domain bounds.
//
// Variables are plain values. Two Variables with the same Identifier
// denote the same decision, and backend sessions materialize each
// Identifier at most once.
type Variable struct {
	id   Identifier
	kind Kind
	lb   *big.Int
	ub   *big.Int
}

// Bool returns a Boolean decision variable with the given identity.
func Bool(id Identifier) Variable {
	return Variable{id: id, kind: KindBool}
}

// Int returns an integer decision variable with the given identity and
// inclusive bounds.
func Int(id Identifier, lb, ub int64) Variable {
	return Variable{id: id, kind: KindInt, lb: big.NewInt(lb), ub: big.NewInt(ub)}
}

// IntBig returns an integer decision variable with arbitrary-precision
// inclusive bounds. Bounds of magnitude beyond the 64-bit transfer
// limit are legal and select the string-encoded declaration form on
// every backend call that touches them.
func IntBig(id Identifier, lb, ub *big.Int) Variable {
	return Variable{id: id, kind: KindInt, lb: new(big.Int).Set(lb), ub: new(big.Int).Set(ub)}
}

// Identifier returns the Identifier that uniquely identifies this
// Variable among all other Variables in a given model.
func (v Variable) Identifier() Identifier {
	return v.id
}

// Kind returns the variable's kind.
func (v Variable) Kind() Kind {
	return v.kind
}

// Bounds returns the variable's inclusive domain bounds. The returned
// values are shared, not copied, and must not be mutated. Both are nil
// for non-integer variables.
func (v Variable) Bounds() (lb, ub *big.Int) {
	return v.lb, v.ub
}

func (v Variable) String() string {
	return string(v.id)
}

// Ref returns a direct reference to v.
func (v Variable) Ref() Ref {
	return Ref{v: v}
}

// Not returns a reference to the logical complement of v. Negated
// references are only meaningful for Boolean variables. They are never
// independently materialized: every backend session resolves them
// through the base variable's handle.
func (v Variable) Not() Ref {
	return Ref{v: v, neg: true}
}

// Ref is an explicit two-case reference to a variable: either the
// variable itself, or, for Boolean variables, its logical complement.
type Ref struct {
	v   Variable
	neg bool
}

// Var returns the referenced base variable.
func (r Ref) Var() Variable {
	return r.v
}

// Negated reports whether the reference denotes the logical complement
// of its base variable.
func (r Ref) Negated() bool {
	return r.neg
}

// Not returns the logical complement of r.
func (r Ref) Not() Ref {
	r.neg = !r.neg
	return r
}

// Equal reports whether two references denote the same variable with
// the same polarity.
func (r Ref) Equal(o Ref) bool {
	return r.v.id == o.v.id && r.neg == o.neg
}

func (r Ref) String() string {
	if r.neg {
		return "~" + string(r.v.id)
	}
	return string(r.v.id)
}

// wideLimit is the largest magnitude that crosses a backend boundary
// as a native 64-bit number.
var wideLimit = big.NewInt(1e18)

// Wide reports whether any of the given values lies beyond the
// magnitude a session may transfer to a backend in native 64-bit form.
// Such values take the string-encoded transfer path instead. Nil
// values are ignored.
func Wide(xs ...*big.Int) bool {
	for _, x := range xs {
		if x != nil && x.CmpAbs(wideLimit) > 0 {
			return true
		}
	}
	return false
}
