package cases

import (
	"errors"
	"fmt"
)

var (
	// ErrCaseNotFound is returned when a lookup or update matches nothing.
	ErrCaseNotFound = errors.New("case not found")

	// ErrCaseActive is returned when an operation requires the case to be
	// retired first, such as soft deletion.
	ErrCaseActive = errors.New("case is still active")

	// ErrCaseDeleted is returned when an operation targets a soft-deleted case.
	ErrCaseDeleted = errors.New("case is deleted")

	// ErrUnknownMember is returned by the platform when the subject is not
	// a resolvable guild member.
	ErrUnknownMember = errors.New("unknown member")

	// ErrTargetProtected is returned when the subject holds staff clearance.
	ErrTargetProtected = errors.New("target has staff clearance")
)

// DurationError describes a rejected duration string.
type DurationError struct {
	Input  string
	Reason string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Reason)
}

// AlreadySanctionedError is returned when the live platform state already
// shows the sanction the command would apply.
type AlreadySanctionedError struct {
	SubjectID string
	Kind      Kind
	ChannelID string
}

func (e *AlreadySanctionedError) Error() string {
	if e.ChannelID != "" {
		return fmt.Sprintf("user %s already has an active %s in channel %s", e.SubjectID, e.Kind, e.ChannelID)
	}
	return fmt.Sprintf("user %s already has an active %s", e.SubjectID, e.Kind)
}

// NotSanctionedError is returned by inverse commands when the live platform
// state shows no sanction to lift.
type NotSanctionedError struct {
	SubjectID string
	Kind      Kind
	ChannelID string
}

func (e *NotSanctionedError) Error() string {
	if e.ChannelID != "" {
		return fmt.Sprintf("user %s has no active %s in channel %s", e.SubjectID, e.Kind, e.ChannelID)
	}
	return fmt.Sprintf("user %s has no active %s", e.SubjectID, e.Kind)
}
