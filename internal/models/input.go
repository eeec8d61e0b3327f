// Package models defines the data types that flow through the ingestion
// pipeline, from raw user input to the validated transaction candidate.
package models

import "time"

// InputKind is the media kind of a raw input.
type InputKind string

const (
	// InputKindText is a plain chat message.
	InputKindText InputKind = "text"
	// InputKindImage is a photographed receipt or screenshot.
	InputKindImage InputKind = "image"
	// InputKindAudio is a voice note.
	InputKindAudio InputKind = "audio"
)

// RawInput is one user submission before any processing.
type RawInput struct {
	UserID     string
	Kind       InputKind
	Text       string // set for text inputs
	Payload    []byte // raw media bytes for image and audio inputs
	Format     string // media container format ("png", "ogg", "wav", ...)
	ReceivedAt time.Time
}

// Warning flags attached to normalized text or a pipeline result.
const (
	// WarningLowConfidence marks OCR or transcription output below the
	// configured confidence floor.
	WarningLowConfidence = "low_confidence"
	// WarningTruncated marks audio cut at the maximum duration.
	WarningTruncated = "truncated"
	// WarningMultipleCandidates marks a model response that contained more
	// than one transaction; only the first was kept.
	WarningMultipleCandidates = "multiple_candidates"
	// WarningAmbiguousIntent marks a message whose intent could not be
	// decided; the extraction still ran but the candidate carries the doubt.
	WarningAmbiguousIntent = "ambiguous_intent"
)

// NormalizedText is the output of media normalization: plain text plus a
// confidence estimate of the conversion that produced it.
type NormalizedText struct {
	SourceKind InputKind
	Text       string
	// Confidence is the media conversion certainty in [0,1]. Plain text is
	// always 1.0.
	Confidence float64
	Warnings   []string
}

// HasWarning reports whether the named warning flag is attached.
func (n NormalizedText) HasWarning(name string) bool {
	for _, w := range n.Warnings {
		if w == name {
			return true
		}
	}
	return false
}

// Intent labels what a normalized message is asking for.
type Intent string

const (
	// IntentTransaction is a message recording money movement.
	IntentTransaction Intent = "transaction"
	// IntentCommand is an app command handled outside the pipeline.
	IntentCommand Intent = "command"
	// IntentAmbiguous is unclear; extraction proceeds with a lower-confidence
	// mark.
	IntentAmbiguous Intent = "ambiguous"
	// IntentNoise is small talk with nothing recordable.
	IntentNoise Intent = "noise"
)
