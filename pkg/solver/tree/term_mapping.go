package tree

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/solvent/pkg/model"
	"github.com/operator-framework/solvent/pkg/solver"
)

// termMapping performs translation between the variables of a model
// and the terms declared in a nested-expression backend. It is owned
// by exactly one Session and grows monotonically.
type termMapping struct {
	backend Backend
	inorder []model.Variable
	terms   map[model.Identifier]Term
	log     logrus.FieldLogger
}

func newTermMapping(backend Backend, log logrus.FieldLogger) *termMapping {
	return &termMapping{
		backend: backend,
		terms:   make(map[model.Identifier]Term),
		log:     log,
	}
}

// TermOf returns the term for ref, declaring the base variable to the
// backend on first sight. A negated reference resolves to the
// backend's negation of the base term and is never cached as a
// variable of its own.
func (d *termMapping) TermOf(ref model.Ref) (Term, error) {
	v := ref.Var()
	if ref.Negated() && v.Kind() != model.KindBool {
		return nil, fmt.Errorf("negated reference to non-Boolean variable %q", v.Identifier())
	}

	t, ok := d.terms[v.Identifier()]
	if !ok {
		var err error
		t, err = d.declare(v)
		if err != nil {
			return nil, err
		}
		d.terms[v.Identifier()] = t
		d.inorder = append(d.inorder, v)
	}

	if ref.Negated() {
		return d.backend.Not(t)
	}
	return t, nil
}

func (d *termMapping) declare(v model.Variable) (Term, error) {
	name := string(v.Identifier())
	switch v.Kind() {
	case model.KindBool:
		d.log.Debugf("declared bool variable %s", name)
		return d.backend.DeclareBool(name)
	case model.KindInt:
		lb, ub := v.Bounds()
		d.log.Debugf("declared int variable %s in [%s, %s]", name, lb, ub)
		if model.Wide(lb, ub) {
			return d.backend.DeclareIntWide(name, lb.String(), ub.String())
		}
		return d.backend.DeclareInt(name, lb.Int64(), ub.Int64())
	}
	return nil, solver.UnsupportedVariableKind(v.Kind())
}

// Variables returns every materialized variable in declaration order.
// The returned slice is shared and valid until the next declaration.
func (d *termMapping) Variables() []model.Variable {
	return d.inorder
}
