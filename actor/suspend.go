package actor

import "encoding/json"

// ActivitySuspend is the sentinel value returned from execute when an actor
// calls callActivity during forward execution. It is not an error in the
// ordinary sense: the runtime's dispatch loop interprets it to mean
// "persist state, release the lock, wait for the activity result" rather
// than "this invocation failed." Modeling suspension as a sentinel value
// (instead of a panic/exception) keeps suspend and error control flow
// distinct, per the composable-capability design notes.
type ActivitySuspend struct {
	ActivityID string
	Name       string
	Input      json.RawMessage
}

func (s *ActivitySuspend) Error() string {
	return "actor: suspended awaiting activity " + s.ActivityID + " (" + s.Name + ")"
}

// EventSuspend is the sentinel returned when an actor calls waitForEvent.
type EventSuspend struct {
	EventType string
}

func (s *EventSuspend) Error() string {
	return "actor: suspended awaiting event " + s.EventType
}

// AsActivitySuspend reports whether err is an ActivitySuspend sentinel.
func AsActivitySuspend(err error) (*ActivitySuspend, bool) {
	s, ok := err.(*ActivitySuspend)
	return s, ok
}

// AsEventSuspend reports whether err is an EventSuspend sentinel.
func AsEventSuspend(err error) (*EventSuspend, bool) {
	s, ok := err.(*EventSuspend)
	return s, ok
}
