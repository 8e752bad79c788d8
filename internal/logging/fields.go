package logging

// Standard attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact  = "impact"
	FieldRunID   = "run_id"
	FieldSession = "session"
	FieldFrame   = "frame"
	FieldMount   = "mount"
	FieldCode    = "error_code"
)
