package brute

import "math/big"

// odometer enumerates every assignment over inclusive integer domains
// in lexicographic order with the first position rotating fastest. A
// zero-length odometer visits exactly one empty assignment.
type odometer struct {
	lbs, ubs []*big.Int
	cur      []*big.Int
	spent    bool
}

func newOdometer(lbs, ubs []*big.Int) *odometer {
	cur := make([]*big.Int, len(lbs))
	for i, lb := range lbs {
		cur[i] = new(big.Int).Set(lb)
	}
	return &odometer{lbs: lbs, ubs: ubs, cur: cur}
}

// current returns the assignment under the cursor. The slice and its
// values are shared with the odometer and change on advance; callers
// that keep an assignment must copy it.
func (o *odometer) current() []*big.Int {
	return o.cur
}

// done reports whether every assignment has been visited.
func (o *odometer) done() bool {
	return o.spent
}

// advance moves the cursor to the next assignment, reporting false
// when the space is exhausted.
func (o *odometer) advance() bool {
	if o.spent {
		return false
	}
	for i := range o.cur {
		if o.cur[i].Cmp(o.ubs[i]) < 0 {
			o.cur[i].Add(o.cur[i], oneInt)
			return true
		}
		o.cur[i].Set(o.lbs[i])
	}
	o.spent = true
	return false
}

var oneInt = big.NewInt(1)
