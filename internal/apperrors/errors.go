// Package apperrors defines the failure taxonomy shared by mirrors and
// mutations.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotSignedIn         = errors.New("you must be signed in")
	ErrNoActiveTeam        = errors.New("you must belong to a team")
	ErrTeamNameRequired    = errors.New("team name is required")
	ErrMembersRequired     = errors.New("select at least one member")
	ErrTitleRequired       = errors.New("task title is required")
	ErrDescriptionRequired = errors.New("task description is required")
	ErrWrongTeam           = errors.New("task must belong to the active team")
	ErrNotTeamMember       = errors.New("user is not a member of the active team")
)

// ValidationError is a local input failure. It never reaches the store.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func Invalid(err error) error {
	return &ValidationError{Err: err}
}

// NotFoundError means the target id was absent from the mirror when the
// operation ran. The caller should re-derive from the latest snapshot.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s not found", e.Collection, e.ID)
}

// WriteError is a store failure on a single write.
type WriteError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("failed to %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the write gave up on the store client's deadline.
func (e *WriteError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ReadError is a subscription failure. Mirrors carry it as a degraded flag.
type ReadError struct {
	Collection string
	Filter     string
	Err        error
}

func (e *ReadError) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("subscription to %s failed: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("subscription to %s where %s failed: %v", e.Collection, e.Filter, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// PartialWriteError is returned when a team document was written but some
// member reference writes were not. Nothing is rolled back; reference
// writes are idempotent and can be re-issued for Failed.
type PartialWriteError struct {
	TeamID string
	Failed map[string]error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("team %s created but %d member reference(s) failed: %s",
		e.TeamID, len(e.Failed), strings.Join(e.FailedIDs(), ", "))
}

// FailedIDs returns the user ids whose reference write failed, sorted.
func (e *PartialWriteError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserMessage maps an error to the text shown to the person who acted.
func UserMessage(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		partial    *PartialWriteError
		write      *WriteError
		read       *ReadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &notFound):
		return "this item no longer exists, refreshing"
	case errors.As(err, &partial):
		return "team created, but some members could not be linked to it; retry to finish"
	case errors.As(err, &write):
		if write.Timeout() {
			return "the store did not respond in time, please retry"
		}
		return "could not save your change, please retry"
	case errors.As(err, &read):
		return "live data is temporarily unavailable"
	default:
		return "something went wrong"
	}
}
