package actor

import "errors"

// ErrReplayMismatch is returned when a journal entry at the current replay
// cursor disagrees with the primitive the actor's code path is about to
// invoke. This is fatal to the invocation: per spec, the actor must be
// quarantined and an operator must intervene, since the journal no longer
// proves what code produced the current state.
var ErrReplayMismatch = errors.New("actor: journal replay mismatch")

// ErrNoHandler names an actor type with no registered handler. The
// runtime's Dispatch and DispatchActor report an unknown actor type with
// their own error, which does not wrap it.
var ErrNoHandler = errors.New("actor: no handler registered for actor type")

// ErrActivityNotFound is returned by resumeWithActivity/resumeWithActivityError
// when no matching activity_scheduled entry exists for the given id.
var ErrActivityNotFound = errors.New("actor: no scheduled activity with that id")

// ErrEventAlreadyConsumed names an event delivered to an actor that is not
// currently suspended on a waitForEvent of that type. Core.AppendEventReceived
// records events without that check and does not return it.
var ErrEventAlreadyConsumed = errors.New("actor: no pending waitForEvent for that event type")

// Error is a structured error produced by actor user code or the runtime,
// carrying a machine-readable Code alongside a human Message, following the
// same shape as the teacher's NodeError.
type Error struct {
	Message string
	Code    string
	ActorID string
	Cause   error
}

func (e *Error) Error() string {
	if e.ActorID != "" {
		return "actor " + e.ActorID + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }
