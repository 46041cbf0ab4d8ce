package smartlist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaDrift marks a saved clause whose field no longer exists.
	ErrSchemaDrift = errors.New("schema drift")
	// ErrInvalidClause marks a clause that fails operator, arity or value checks.
	ErrInvalidClause = errors.New("invalid filter clause")
	// ErrValueTypeMismatch marks a stored entity value whose type does not fit
	// the field's declared type.
	ErrValueTypeMismatch = errors.New("value type mismatch")
)

// ErrorKind classifies a validation problem.
type ErrorKind string

const (
	KindUnknownEntityType       ErrorKind = "unknown_entity_type"
	KindUnknownField            ErrorKind = "unknown_field"
	KindInvalidOperatorForField ErrorKind = "invalid_operator_for_field"
	KindInvalidValueArity       ErrorKind = "invalid_value_arity"
	KindInvalidValueType        ErrorKind = "invalid_value_type"
	KindSchemaDrift             ErrorKind = "schema_drift"
	// KindInvalidInput covers list attributes other than filters, such as a
	// blank name.
	KindInvalidInput ErrorKind = "invalid_input"
)

// ValidationError describes one problem with one clause. Index is -1 for
// problems that are not tied to a clause.
type ValidationError struct {
	Index  int       `json:"index"`
	Field  string    `json:"field,omitempty"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("clause %d (%s): %s", e.Index, e.Field, e.Reason)
}

// ValidationErrors is the full set of problems found in a clause list.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, len(e))
	for i, v := range e {
		messages[i] = v.Error()
	}
	return "invalid filters: " + strings.Join(messages, "; ")
}

// Kinds returns the error kind of each entry in order.
func (e ValidationErrors) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(e))
	for i, v := range e {
		kinds[i] = v.Kind
	}
	return kinds
}

// CompileError reports the clause that stopped compilation.
type CompileError struct {
	ValidationError
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile filters: %s", e.ValidationError.Error())
}

func (e *CompileError) Unwrap() error { return e.Err }
