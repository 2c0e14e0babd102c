package logging

// Canonical field names for structured logging.
const (
	FieldService    = "service"
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldPage       = "page"
	FieldIdentifier = "identifier"
	FieldVideoID    = "video_id"
	FieldUserID     = "user_id"
	FieldURL        = "url"
	FieldSaved      = "saved"
	FieldReason     = "reason"
)
