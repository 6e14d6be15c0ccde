package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator guidance on failures.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID is the standardized structured logging key for daemon run identifiers.
	FieldSessionID = "session_id"
	// FieldPath is the standardized structured logging key for filesystem paths.
	FieldPath = "path"
)
