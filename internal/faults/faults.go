// Package faults defines the error taxonomy shared by the rules engine:
// validation, not-found, rule conflict, partial failure, and dependency
// failure. Handlers map these onto the response envelope; nothing in the
// engine panics across a public boundary.
package faults

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validation reports malformed or missing caller input. Never retried.
type Validation struct {
	Msg string
}

func (e *Validation) Error() string { return e.Msg }

// Validationf builds a Validation error.
func Validationf(format string, args ...any) error {
	return &Validation{Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an absent referenced entity. Never retried.
type NotFound struct {
	Kind string // "vehicle", "plan", "batch", "row", ...
	Key  string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// Conflict reports an operation that contradicts current state, such as a
// commit on an already-committed batch or a commit gate blocked by
// unresolved rows. Breakdown carries the per-status row counts for the
// structured error payload.
type Conflict struct {
	Msg       string
	Breakdown map[string]int
}

func (e *Conflict) Error() string {
	if len(e.Breakdown) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Breakdown))
	for k := range e.Breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Breakdown[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Msg, strings.Join(parts, ", "))
}

// Dependency reports a collaborator failure (alert delivery, persistence
// write). Logged and surfaced as a warning; it never rolls back an
// already-decided state transition.
type Dependency struct {
	Op  string
	Err error
}

func (e *Dependency) Error() string {
	return fmt.Sprintf("dependency failure in %s: %v", e.Op, e.Err)
}

func (e *Dependency) Unwrap() error { return e.Err }

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool {
	var v *Validation
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool {
	var c *Conflict
	return errors.As(err, &c)
}

// IsDependency reports whether err is a Dependency error.
func IsDependency(err error) bool {
	var d *Dependency
	return errors.As(err, &d)
}
