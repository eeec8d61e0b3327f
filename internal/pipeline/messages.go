package pipeline

import "finot/ingest/internal/models"

// reasonMessages maps reason codes onto user-safe phrasing. The chat layer
// may localize further; raw provider errors never appear here.
var reasonMessages = map[string]string{
	models.ReasonInvalidAmount:      "The amount is missing, not positive, or out of range.",
	models.ReasonUnknownCategory:    "The category was not recognized, so it was filed under the catch-all.",
	models.ReasonDateInFuture:       "The date lies in the future.",
	models.ReasonDateTooOld:         "The date is older than the retention window.",
	models.ReasonLowConfidence:      "The reading was uncertain.",
	models.ReasonNotATransaction:    "This does not look like a transaction.",
	models.ReasonQuotaExceeded:      "You are out of credits for this feature.",
	models.ReasonCancelled:          "Processing was cancelled.",
	models.ReasonUnsupportedMedia:   "This media format is not supported.",
	models.ReasonServiceUnavailable: "The service is temporarily unavailable, please try again.",
	models.ReasonMalformedOutput:    "The message could not be interpreted, please rephrase it.",
}

// messageFor builds the user-facing message of a terminal result.
func messageFor(status models.PipelineStatus, reasons []string) string {
	switch status {
	case models.PipelineAccepted:
		return "Transaction recorded."
	case models.PipelineCommand:
		return ""
	case models.PipelineNeedsConfirmation:
		if len(reasons) > 0 {
			if msg, ok := reasonMessages[reasons[0]]; ok {
				return "Please confirm: " + msg
			}
		}
		return "Please confirm the details."
	}

	if len(reasons) > 0 {
		if msg, ok := reasonMessages[reasons[0]]; ok {
			return msg
		}
	}
	return "The input could not be processed."
}
