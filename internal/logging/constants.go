package logging

// Standardized field names for structured logging. Using constants keeps the
// log output consistent and easy to filter per run, user and stage.
const (
	FieldRunID      = "run_id"
	FieldUserID     = "user_id"
	FieldStage      = "stage"
	FieldInputKind  = "input_kind"
	FieldIntent     = "intent"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldConfidence = "confidence"
	FieldReason     = "reason"
	FieldTier       = "tier"
	FieldRemaining  = "remaining"
	FieldAttempt    = "attempt"
	FieldDuration   = "duration_ms"
	FieldService    = "service"
	FieldStatus     = "status"
)
