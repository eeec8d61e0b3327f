package models

// Validation reason codes. These are stable identifiers surfaced to the user
// layer, which maps them onto localized messages.
const (
	ReasonInvalidAmount      = "invalid_amount"
	ReasonUnknownCategory    = "unknown_category"
	ReasonDateInFuture       = "date_in_future"
	ReasonDateTooOld         = "date_too_old"
	ReasonLowConfidence      = "low_confidence"
	ReasonNotATransaction    = "not_a_transaction"
	ReasonQuotaExceeded      = "quota_exceeded"
	ReasonCancelled          = "cancelled"
	ReasonUnsupportedMedia   = "unsupported_media"
	ReasonServiceUnavailable = "service_unavailable"
	ReasonMalformedOutput    = "malformed_output"
)

// ValidationStatus is the tag of a ValidationOutcome.
type ValidationStatus string

const (
	// ValidationAccepted means the candidate passed every rule.
	ValidationAccepted ValidationStatus = "accepted"
	// ValidationNeedsConfirmation means the candidate is recordable but the
	// user should confirm one or more recovered fields.
	ValidationNeedsConfirmation ValidationStatus = "needs_confirmation"
	// ValidationRejected means the candidate violates a hard rule.
	ValidationRejected ValidationStatus = "rejected"
)

// ValidationOutcome is the tagged result of the sanity validator.
// Transaction carries the (possibly corrected) candidate for Accepted and
// NeedsConfirmation; it is the zero value for Rejected.
type ValidationOutcome struct {
	Status      ValidationStatus
	Transaction ParsedTransaction
	Reasons     []string
}

// PipelineStatus is the terminal state of a pipeline run.
type PipelineStatus string

const (
	// PipelineAccepted means a confirmed transaction is ready for persistence.
	PipelineAccepted PipelineStatus = "accepted"
	// PipelineNeedsConfirmation means the user should be re-prompted to
	// confirm the candidate before it is recorded.
	PipelineNeedsConfirmation PipelineStatus = "needs_confirmation"
	// PipelineRejected means nothing was recorded and the user was told why.
	PipelineRejected PipelineStatus = "rejected"
	// PipelineFailed means an internal or upstream failure ended the run.
	PipelineFailed PipelineStatus = "failed"
	// PipelineCommand means the input is a bot command and was handed back
	// to the command dispatcher untouched.
	PipelineCommand PipelineStatus = "command"
)

// PipelineResult is the externally visible final value of a run.
type PipelineResult struct {
	RunID  string
	UserID string
	Status PipelineStatus

	// Transaction is populated for Accepted and NeedsConfirmation.
	Transaction ParsedTransaction

	// Reasons carries the reason codes behind a non-accepted outcome.
	Reasons []string

	// Message is a human-readable explanation safe to show the user.
	// It never contains raw provider errors.
	Message string

	// CreditsRemaining is the user's balance after metering, -1 when the run
	// never reached the credit meter.
	CreditsRemaining int
}

// Terminal reports whether the status is one of the terminal pipeline states.
func (s PipelineStatus) Terminal() bool {
	switch s {
	case PipelineAccepted, PipelineNeedsConfirmation, PipelineRejected, PipelineFailed, PipelineCommand:
		return true
	}
	return false
}
