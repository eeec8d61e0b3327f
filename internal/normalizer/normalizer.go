package normalizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finot/ingest/internal/ingesterror"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
	"finot/ingest/internal/textutils"
)

// Options holds the tunables of the media normalizer.
type Options struct {
	// LanguageHints is passed to the OCR engine ("ind", "eng", ...).
	LanguageHints []string
	// OCRConfidenceFloor is the aggregate confidence below which a
	// low_confidence warning is attached. Text is still returned.
	OCRConfidenceFloor float64
	// TargetImageHeight is the height images are upscaled to when smaller.
	TargetImageHeight int
	// TargetSampleRate is the sample rate the speech engine expects.
	TargetSampleRate int
	// MaxAudioDuration caps voice notes; longer audio is cut and flagged.
	MaxAudioDuration time.Duration
}

// audio formats the speech engine accepts directly, no transcoding needed.
var passthroughAudioFormats = map[string]bool{
	"ogg": true,
	"oga": true,
	"mp3": true,
}

// MediaNormalizer converts raw inputs into normalized text. It owns media
// preprocessing but no retry policy; transient engine failures surface to
// the coordinator untouched.
type MediaNormalizer struct {
	ocr  OCREngine
	stt  SpeechToText
	opts Options
	log  logging.Logger
}

// New creates a MediaNormalizer. Either engine may be nil when the
// deployment does not accept that media kind; inputs of that kind then fail
// with UnsupportedMediaError.
func New(ocr OCREngine, stt SpeechToText, opts Options, log logging.Logger) *MediaNormalizer {
	return &MediaNormalizer{ocr: ocr, stt: stt, opts: opts, log: log}
}

// Normalize converts a RawInput into NormalizedText.
func (n *MediaNormalizer) Normalize(ctx context.Context, in models.RawInput) (models.NormalizedText, error) {
	switch in.Kind {
	case models.InputKindText:
		return models.NormalizedText{
			SourceKind: models.InputKindText,
			Text:       in.Text,
			Confidence: 1.0,
		}, nil
	case models.InputKindImage:
		return n.normalizeImage(ctx, in)
	case models.InputKindAudio:
		return n.normalizeAudio(ctx, in)
	}
	return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: string(in.Kind), Format: in.Format}
}

func (n *MediaNormalizer) normalizeImage(ctx context.Context, in models.RawInput) (models.NormalizedText, error) {
	if n.ocr == nil {
		return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: "image", Format: in.Format}
	}

	processed, err := preprocessImage(in.Payload, n.opts.TargetImageHeight)
	if err != nil {
		return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: "image", Format: in.Format}
	}

	result, err := n.ocr.Recognize(ctx, processed, n.opts.LanguageHints)
	if err != nil {
		return models.NormalizedText{}, fmt.Errorf("ocr recognize: %w", err)
	}

	text, confidence := aggregateRegions(result.Regions)
	out := models.NormalizedText{
		SourceKind: models.InputKindImage,
		Text:       text,
		Confidence: confidence,
	}
	if confidence < n.opts.OCRConfidenceFloor {
		out.Warnings = append(out.Warnings, models.WarningLowConfidence)
		n.log.WithFields(
			logging.Field{Key: logging.FieldUserID, Value: in.UserID},
			logging.Field{Key: logging.FieldConfidence, Value: confidence},
		).Debug("OCR confidence below floor, flagging for confirmation")
	}
	return out, nil
}

func (n *MediaNormalizer) normalizeAudio(ctx context.Context, in models.RawInput) (models.NormalizedText, error) {
	if n.stt == nil {
		return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: "audio", Format: in.Format}
	}

	format := strings.ToLower(in.Format)
	payload := in.Payload
	var warnings []string

	switch {
	case format == "wav":
		audio, err := decodeWAV(in.Payload)
		if err != nil {
			return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: "audio", Format: in.Format}
		}
		if audio.truncate(n.opts.MaxAudioDuration) {
			warnings = append(warnings, models.WarningTruncated)
		}
		payload = audio.downmixResample(n.opts.TargetSampleRate).encodeWAV()
	case passthroughAudioFormats[format]:
		// Compressed voice-note formats go to the engine as-is.
	default:
		return models.NormalizedText{}, &ingesterror.UnsupportedMediaError{Kind: "audio", Format: in.Format}
	}

	transcript, err := n.stt.Transcribe(ctx, payload, format)
	if err != nil {
		return models.NormalizedText{}, fmt.Errorf("transcribe: %w", err)
	}

	out := models.NormalizedText{
		SourceKind: models.InputKindAudio,
		Text:       transcript.Text,
		Confidence: transcript.Confidence,
		Warnings:   warnings,
	}
	if transcript.Confidence < n.opts.OCRConfidenceFloor {
		out.Warnings = append(out.Warnings, models.WarningLowConfidence)
	}
	return out, nil
}

// aggregateRegions joins region texts and computes a weighted-average
// confidence, weighting each region by its text length so one confident
// short token cannot mask a shaky body.
func aggregateRegions(regions []OCRRegion) (string, float64) {
	var parts []string
	var weighted, weight float64
	for _, r := range regions {
		t := textutils.CleanLine(r.Text)
		if t == "" {
			continue
		}
		parts = append(parts, t)
		w := float64(len(t))
		weighted += r.Confidence * w
		weight += w
	}
	if weight == 0 {
		return "", 0
	}
	return strings.Join(parts, "\n"), weighted / weight
}
