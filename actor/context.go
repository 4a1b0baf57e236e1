package actor

// Context carries the invocation-scoped identity of an actor. It is created
// per invocation and is immutable for the lifetime of that invocation,
// mirroring the teacher's plain-struct state passed into Node.Run.
type Context struct {
	ActorID       string
	ActorType     string
	CorrelationID string
	ParentTraceID string
	TenantID      string
	ClientID      string
	Environment   string
	TraceID       string
}
