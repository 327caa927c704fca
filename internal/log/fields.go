package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID    = "session_id"
	FieldDeviceID     = "device_id"
	FieldConnectionID = "connection_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Media fields
	FieldTrack    = "track"
	FieldCodec    = "codec"
	FieldPosition = "position"
	FieldTimeline = "timeline_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldURL     = "url"
	FieldAttempt = "attempt"
)
