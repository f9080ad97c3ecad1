package solver

import (
	"errors"
	"fmt"

	"github.com/operator-framework/solvent/pkg/model"
)

// ObjectiveAlreadySet is returned when a session's objective is set a
// second time. A backend accepts an objective exactly once per
// lifetime, so the check happens before any backend state is touched.
var ObjectiveAlreadySet = errors.New("objective can only be set once per session")

// DuplicateIdentifier is returned when two distinct variables with the
// same identifier are declared to one backend.
type DuplicateIdentifier model.Identifier

func (e DuplicateIdentifier) Error() string {
	return fmt.Sprintf("duplicate identifier %q in input", model.Identifier(e))
}

// UnsupportedVariableKind is returned when a variable of a kind
// unknown to the compilers reaches a backend session.
type UnsupportedVariableKind model.Kind

func (e UnsupportedVariableKind) Error() string {
	return fmt.Sprintf("unsupported variable kind %q", model.Kind(e))
}

// UnsupportedExpression is returned when a numeric expression node of
// an unexpected shape reaches a compiler. It signals a gap between the
// upstream rewriting passes and this layer rather than a user error,
// and it is always preferred over guessing at semantics.
type UnsupportedExpression string

func (e UnsupportedExpression) Error() string {
	return fmt.Sprintf("unsupported expression node %q", string(e))
}

// UnsupportedConstraint is returned when a constraint uses an
// operation the active backend style cannot express.
type UnsupportedConstraint string

func (e UnsupportedConstraint) Error() string {
	return fmt.Sprintf("constraint %q not supported by this backend", string(e))
}

// UnknownBackendStatus is returned when a backend reports a status
// code this layer does not recognize.
type UnknownBackendStatus int

func (e UnknownBackendStatus) Error() string {
	return fmt.Sprintf("unknown backend status code %d", int(e))
}
