// Package onehot maps bounded integer decision variables onto
// indicator Booleans, one per domain value, tied together by an
// exactly-one channeling constraint. It is the bridge that lets a
// purely Boolean backend participate in integer models: encode each
// integer up front, post the channeling constraint, and decode the
// indicator assignment afterwards.
package onehot

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/operator-framework/solvent/pkg/model"
)

// DefaultMaxDomain bounds how many indicator variables Encode will
// create for a single integer variable.
const DefaultMaxDomain = 1 << 20

// AmbiguousEncoding is returned by Decode when an indicator assignment
// selects zero or several domain values. It means the exactly-one
// channeling constraint was not enforced alongside the indicators.
var AmbiguousEncoding = errors.New("one-hot assignment does not select exactly one value")

// DomainTooLarge is returned by Encode when a variable's domain
// exceeds the indicator budget.
type DomainTooLarge struct {
	Variable model.Identifier
	Size     *big.Int
}

func (e DomainTooLarge) Error() string {
	return fmt.Sprintf("domain of %q has %s values, too many to encode one-hot", e.Variable, e.Size)
}

// Encoding relates one integer variable to its indicator Booleans.
type Encoding struct {
	v     model.Variable
	lb    *big.Int
	bools []model.Variable
}

// Encode builds the one-hot encoding of v with the default indicator
// budget. The indicator at position i stands for the assignment
// v == lower bound + i, and its identifier spells that equation out so
// traces stay readable.
func Encode(v model.Variable) (*Encoding, error) {
	return EncodeMax(v, DefaultMaxDomain)
}

// EncodeMax is Encode with an explicit indicator budget.
func EncodeMax(v model.Variable, max int) (*Encoding, error) {
	if v.Kind() != model.KindInt {
		return nil, errors.Errorf("one-hot encoding applies to integer variables, not %s", v.Kind())
	}
	lb, ub := v.Bounds()
	size := new(big.Int).Sub(ub, lb)
	size.Add(size, one)
	if size.Sign() <= 0 {
		return nil, errors.Errorf("variable %q has an empty domain", v.Identifier())
	}
	if size.Cmp(big.NewInt(int64(max))) > 0 {
		return nil, DomainTooLarge{Variable: v.Identifier(), Size: size}
	}

	enc := &Encoding{
		v:     v,
		lb:    new(big.Int).Set(lb),
		bools: make([]model.Variable, int(size.Int64())),
	}
	val := new(big.Int).Set(lb)
	for i := range enc.bools {
		enc.bools[i] = model.Bool(model.Identifier(fmt.Sprintf("%s=%s", v.Identifier(), val)))
		val.Add(val, one)
	}
	return enc, nil
}

// Variable returns the encoded integer variable.
func (e *Encoding) Variable() model.Variable {
	return e.v
}

// Booleans returns the indicator variables in domain order.
func (e *Encoding) Booleans() []model.Variable {
	return e.bools
}

// Values returns the domain values in indicator order.
func (e *Encoding) Values() []*big.Int {
	vals := make([]*big.Int, len(e.bools))
	val := new(big.Int).Set(e.lb)
	for i := range vals {
		vals[i] = new(big.Int).Set(val)
		val.Add(val, one)
	}
	return vals
}

// ExactlyOne returns the channeling constraint requiring exactly one
// indicator to hold. Posting it alongside any constraints over the
// indicators is what makes Decode well defined.
func (e *Encoding) ExactlyOne() model.Expr {
	args := make([]model.Expr, len(e.bools))
	for i, b := range e.bools {
		args[i] = b
	}
	return model.Eq(model.SumOf(args...), model.Num(1))
}

// Is returns the indicator that stands for v == value, or false when
// the value lies outside the encoded domain.
func (e *Encoding) Is(value *big.Int) (model.Variable, bool) {
	idx := new(big.Int).Sub(value, e.lb)
	if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(len(e.bools)))) >= 0 {
		return model.Variable{}, false
	}
	return e.bools[int(idx.Int64())], true
}

// Decode maps an indicator assignment back to the encoded variable's
// value. truth reports the assigned truth value of one indicator.
func (e *Encoding) Decode(truth func(model.Variable) bool) (*big.Int, error) {
	chosen := -1
	for i, b := range e.bools {
		if !truth(b) {
			continue
		}
		if chosen >= 0 {
			return nil, AmbiguousEncoding
		}
		chosen = i
	}
	if chosen < 0 {
		return nil, AmbiguousEncoding
	}
	return new(big.Int).Add(e.lb, big.NewInt(int64(chosen))), nil
}

var one = big.NewInt(1)
