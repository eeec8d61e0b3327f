package extraction

import (
	"fmt"
	"strings"
	"time"
)

// extractionPrompt is the fixed template sent for every extraction. It pins
// the output schema, the closed category set and the amount expansion rules
// so the parser can be strict about what comes back.
const extractionPrompt = `You extract financial transactions from short Indonesian or English messages.

Return ONLY a JSON object, no prose, with this exact shape:
{
  "transactions": [
    {
      "intent": "income" or "expense",
      "amount": <number, full numeric value>,
      "currency": "<ISO 4217 code, e.g. IDR>",
      "category": "<one of the allowed categories>",
      "merchant": "<merchant or counterparty, or null>",
      "date": "<YYYY-MM-DD, or null when the message gives no date>",
      "note": "<short free-text summary>",
      "confidence": <your certainty, 0.0 to 1.0>
    }
  ]
}

Rules:
- Expand Indonesian amount shorthand to full numbers: "25rb" means 25000, "5jt" means 5000000.
- "amount" must be positive; use "intent" for the direction.
- "category" MUST be one of: %s
- Default currency is IDR when the message does not name one.
- Today's date is %s; resolve relative dates against it.

Message:
"""
%s
"""`

// repairPrompt is the single bounded correction attempt after a schema
// violation. It shows the model its own malformed output and the reason.
const repairPrompt = `Your previous response did not match the required schema.

Previous response:
"""
%s
"""

Problem: %s

Produce a corrected JSON object with the exact schema you were given:
"intent" ("income"/"expense"), "amount" (positive number), "currency",
"category" (one of: %s), "merchant", "date" (YYYY-MM-DD or null),
"note", "confidence" (0.0-1.0). Return ONLY the JSON object.`

// buildExtractionPrompt fills the extraction template.
func buildExtractionPrompt(categories []string, text string, now time.Time) string {
	return fmt.Sprintf(extractionPrompt,
		strings.Join(categories, ", "),
		now.Format("2006-01-02"),
		text,
	)
}

// buildRepairPrompt fills the repair template.
func buildRepairPrompt(categories []string, previous, problem string) string {
	return fmt.Sprintf(repairPrompt, previous, problem, strings.Join(categories, ", "))
}
