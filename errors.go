package segment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrConditionNotFound = errors.New("condition not found")
	ErrInvalidLogic      = errors.New("invalid group logic")
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUncoercibleValue  = errors.New("value cannot be coerced to the attribute type")
	ErrMissingValue      = errors.New("row has no value for attribute")
)

// CompileError is returned when a tree cannot be compiled.  NodeID returns the
// ID of the node that failed, allowing callers to show the error next to it.
type CompileError interface {
	error
	NodeID() string
}

// UnknownAttributeError is returned when a condition references an attribute key
// that is not present within the AttributeIndex, eg. after a catalog reload.
type UnknownAttributeError struct {
	ConditionID  string
	AttributeKey string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("condition %s: unknown attribute %q", e.ConditionID, e.AttributeKey)
}

func (e *UnknownAttributeError) NodeID() string { return e.ConditionID }

// InvalidOperatorError is returned when a condition's operator is not legal for
// the attribute's current data type.
type InvalidOperatorError struct {
	ConditionID  string
	AttributeKey string
	DataType     string
	Operator     Operator
	Allowed      []Operator
}

func (e *InvalidOperatorError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for n, op := range e.Allowed {
		allowed[n] = string(op)
	}
	return fmt.Sprintf(
		"condition %s: operator %q is not valid for %s (%s); expected one of: %s",
		e.ConditionID,
		e.Operator,
		e.AttributeKey,
		e.DataType,
		strings.Join(allowed, ", "),
	)
}

func (e *InvalidOperatorError) NodeID() string { return e.ConditionID }

// MalformedValueError is returned when a condition's value does not match the shape
// required by its operator, eg. BETWEEN without exactly two bounds.
type MalformedValueError struct {
	ConditionID  string
	AttributeKey string
	Operator     Operator
	Value        string
	Reason       string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("condition %s: invalid value %q for %s %s: %s", e.ConditionID, e.Value, e.AttributeKey, e.Operator, e.Reason)
}

func (e *MalformedValueError) NodeID() string { return e.ConditionID }

// StructuralInvariantError is returned when compilation finds a node that breaks the
// tree's structure:  a cycle, a node shared between parents, a duplicate ID, a nil
// child or a nested root.  None of these are reachable via the Tree API.
type StructuralInvariantError struct {
	ID     string
	Reason string
}

func (e *StructuralInvariantError) Error() string {
	return fmt.Sprintf("node %s: invalid tree structure: %s", e.ID, e.Reason)
}

func (e *StructuralInvariantError) NodeID() string { return e.ID }
