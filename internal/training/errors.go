package training

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfirmed is returned when a confirmation hook declines an action.
// Nothing is written in that case.
var ErrNotConfirmed = errors.New("action not confirmed")

// IncompleteOrderingError is returned by reorder when the given ids are not
// exactly the course's current course subjects.
type IncompleteOrderingError struct {
	CourseID   string
	Missing    []string
	Duplicated []string
	Unknown    []string
}

func (e *IncompleteOrderingError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicated "+strings.Join(e.Duplicated, ","))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown "+strings.Join(e.Unknown, ","))
	}
	return fmt.Sprintf("incomplete ordering for course %s: %s", e.CourseID, strings.Join(parts, "; "))
}

// DuplicateTaskNameError is returned when a task name collides with another
// task of the same subject.
type DuplicateTaskNameError struct {
	Name string
}

func (e *DuplicateTaskNameError) Error() string {
	return fmt.Sprintf("duplicate task name %q", e.Name)
}

// InvalidDateRangeError is returned when a finish date precedes its start
// date, or a required date is missing.
type InvalidDateRangeError struct {
	Field  string
	Start  *time.Time
	Finish *time.Time
}

func (e *InvalidDateRangeError) Error() string {
	switch {
	case e.Start == nil && e.Finish == nil:
		return fmt.Sprintf("%s: start and finish dates are required", e.Field)
	case e.Start == nil:
		return fmt.Sprintf("%s: start date is required", e.Field)
	case e.Finish == nil:
		return fmt.Sprintf("%s: finish date is required", e.Field)
	}
	return fmt.Sprintf("%s: finish %s is before start %s",
		e.Field, e.Finish.Format(time.DateOnly), e.Start.Format(time.DateOnly))
}

// ScoreOutOfRangeError is returned when a score is outside [0, max].
type ScoreOutOfRangeError struct {
	Score int
	Max   int
}

func (e *ScoreOutOfRangeError) Error() string {
	return fmt.Sprintf("score %d out of range [0, %d]", e.Score, e.Max)
}

// NotFoundError reports a stale or unknown id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError reports an invalid field that has no dedicated error type.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError wraps a transient storage failure. Callers may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable is always true; it lets transports tell transient errors apart.
func (e *PersistenceError) Retryable() bool { return true }

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is one of the validation errors that are
// raised before anything is written.
func IsValidation(err error) bool {
	var (
		io *IncompleteOrderingError
		dn *DuplicateTaskNameError
		dr *InvalidDateRangeError
		so *ScoreOutOfRangeError
		ve *ValidationError
	)
	return errors.As(err, &io) || errors.As(err, &dn) || errors.As(err, &dr) ||
		errors.As(err, &so) || errors.As(err, &ve)
}
