package pb

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// litMapping performs translation between the variables of a model and
// the handles declared in a flat backend. It is owned by exactly one
// Session and grows monotonically: a variable is declared to the
// backend on first use, and every later reference resolves to the same
// handle.
type litMapping struct {
	backend Backend
	inorder []model.Variable
	lits    map[model.Identifier]Lit
	log     logrus.FieldLogger
}

func newLitMapping(backend Backend, log logrus.FieldLogger) *litMapping {
	return &litMapping{
		backend: backend,
		lits:    make(map[model.Identifier]Lit),
		log:     log,
	}
}

// LitOf returns the handle for ref, declaring the base variable to the
// backend on first sight. A negated reference resolves through the
// base variable's handle; the backend never sees a declaration for a
// complement.
func (d *litMapping) LitOf(ref model.Ref) (Lit, error) {
	v := ref.Var()
	if ref.Negated() && v.Kind() != model.KindBool {
		return Lit{}, fmt.Errorf("negated reference to non-Boolean variable %q", v.Identifier())
	}
	m, err := d.materialize(v)
	if err != nil {
		return Lit{}, err
	}
	if ref.Negated() {
		return m.Not(), nil
	}
	return m, nil
}

func (d *litMapping) materialize(v model.Variable) (Lit, error) {
	if m, ok := d.lits[v.Identifier()]; ok {
		return m, nil
	}

	name := Var(v.Identifier())
	switch v.Kind() {
	case model.KindBool:
		if err := d.backend.Declare(name, 0, 1); err != nil {
			return Lit{}, err
		}
	case model.KindInt:
		lb, ub := v.Bounds()
		if model.Wide(lb, ub) {
			if err := d.backend.DeclareWide(name, lb.String(), ub.String()); err != nil {
				return Lit{}, err
			}
		} else {
			if err := d.backend.Declare(name, lb.Int64(), ub.Int64()); err != nil {
				return Lit{}, err
			}
		}
	default:
		return Lit{}, solver.UnsupportedVariableKind(v.Kind())
	}
	d.log.Debugf("declared %s variable %s", v.Kind(), v.Identifier())

	m := Lit{Var: name}
	d.lits[v.Identifier()] = m
	d.inorder = append(d.inorder, v)
	return m, nil
}

// Variables returns every materialized variable in declaration order.
// The returned slice is shared and valid until the next declaration.
func (d *litMapping) Variables() []model.Variable {
	return d.inorder
}

// Vars returns the backend names of every materialized variable in
// declaration order, reusing dst's backing array when it has
// sufficient capacity.
func (d *litMapping) Vars(dst []Var) []Var {
	if cap(dst) < len(d.inorder) {
		dst = make([]Var, 0, len(d.inorder))
	}
	dst = dst[:0]
	for _, v := range d.inorder {
		dst = append(dst, d.lits[v.Identifier()].Var)
	}
	return dst
}
