// Package normalizer converts raw image and audio payloads into plain text
// by preprocessing the media and delegating recognition to external OCR and
// speech-to-text engines. Native text input passes through untouched.
package normalizer

import "context"

// OCRRegion is one recognized region (line or block) with the engine's
// reported confidence for it.
type OCRRegion struct {
	Text       string
	Confidence float64
}

// OCRResult is the full output of one recognition call.
type OCRResult struct {
	Regions []OCRRegion
}

// OCREngine is the external optical character recognition service.
// Implementations return *ingesterror.TransientError when the service is
// temporarily unavailable and *ingesterror.UnsupportedMediaError when the
// payload format cannot be processed.
type OCREngine interface {
	Recognize(ctx context.Context, imageBytes []byte, languageHints []string) (OCRResult, error)
}

// Transcript is the output of one speech-to-text call.
type Transcript struct {
	Text       string
	Confidence float64
}

// SpeechToText is the external transcription service. The failure taxonomy
// matches OCREngine.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioBytes []byte, format string) (Transcript, error)
}
