package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finot/ingest/internal/credit"
	"finot/ingest/internal/extraction"
	"finot/ingest/internal/ingesterror"
	"finot/ingest/internal/intent"
	"finot/ingest/internal/llm"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
	"finot/ingest/internal/normalizer"
	"finot/ingest/internal/store"
	"finot/ingest/internal/validation"
)

const extractionResponse = `{
  "transactions": [
    {
      "intent": "expense",
      "amount": 25000,
      "currency": "IDR",
      "category": "makan",
      "note": "beli makan",
      "confidence": 0.9
    }
  ]
}`

type staticTiers map[string]models.Tier

func (s staticTiers) Tier(ctx context.Context, userID string) (models.Tier, error) {
	if tier, ok := s[userID]; ok {
		return tier, nil
	}
	return models.TierFree, nil
}

type recordingStore struct {
	mu    sync.Mutex
	saved []models.PipelineResult
}

func (r *recordingStore) Save(ctx context.Context, result models.PipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, result)
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type fakeOCR struct {
	result normalizer.OCRResult
	err    error
}

func (f fakeOCR) Recognize(ctx context.Context, imageBytes []byte, languageHints []string) (normalizer.OCRResult, error) {
	return f.result, f.err
}

type fixture struct {
	coord  *Coordinator
	ledger *credit.MemoryStore
	saved  *recordingStore
}

func newFixture(t *testing.T, client llm.Client, ocr normalizer.OCREngine, allot credit.Allotments) *fixture {
	t.Helper()
	log := logging.NewMockLogger()
	catalog := store.NewDefaultCatalog()

	norm := normalizer.New(ocr, nil, normalizer.Options{
		LanguageHints:      []string{"ind", "eng"},
		OCRConfidenceFloor: 0.5,
		TargetImageHeight:  800,
	}, log)
	extractor := extraction.New(client, catalog, extraction.Options{
		RepairAttempts:    1,
		DefaultConfidence: 0.55,
	}, log)
	validator := validation.New(catalog, validation.Options{
		MaxAmount:       decimal.New(1, 9),
		FutureDays:      1,
		RetentionDays:   365,
		ConfidenceFloor: 0.6,
	})

	ledger := credit.NewMemoryStore()
	saved := &recordingStore{}
	coord := New(
		norm,
		intent.New(nil, log),
		extractor,
		validator,
		credit.NewMeter(ledger, allot, log),
		staticTiers{},
		saved,
		Options{MaxRetries: 2, BackoffBase: time.Millisecond, QueueBuffer: 4},
		log,
	)
	coord.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(coord.Close)

	return &fixture{coord: coord, ledger: ledger, saved: saved}
}

func textInput(text string) models.RawInput {
	return models.RawInput{
		UserID:     "user-1",
		Kind:       models.InputKindText,
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

func defaultAllotments() credit.Allotments {
	return credit.Allotments{Free: 5, ProWeekly: 50, EliteWeekly: 150}
}

func TestHandleAcceptedEndToEnd(t *testing.T) {
	f := newFixture(t, &llm.MockClient{Responses: []string{extractionResponse}}, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineAccepted, result.Status)
	assert.Equal(t, "25000", result.Transaction.Amount.String())
	assert.Equal(t, "makan", result.Transaction.Category)
	assert.Equal(t, models.DirectionExpense, result.Transaction.Direction)
	assert.Equal(t, 4, result.CreditsRemaining)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "Transaction recorded.", result.Message)
	assert.Equal(t, 1, f.saved.count())
}

func TestHandleNoiseIsRejectedWithoutModelOrMeter(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{extractionResponse}}
	f := newFixture(t, mock, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("hai"))

	assert.Equal(t, models.PipelineRejected, result.Status)
	assert.Equal(t, []string{models.ReasonNotATransaction}, result.Reasons)
	assert.Equal(t, -1, result.CreditsRemaining)
	assert.Zero(t, mock.CallCount())

	entries, err := f.ledger.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleCommandExitsEarly(t *testing.T) {
	mock := &llm.MockClient{}
	f := newFixture(t, mock, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("/export bulan ini"))

	assert.Equal(t, models.PipelineCommand, result.Status)
	assert.Zero(t, mock.CallCount())
	assert.Equal(t, -1, result.CreditsRemaining)
}

func TestHandleInvalidAmountRejectedBeforeMetering(t *testing.T) {
	response := `{"transactions":[{"intent":"expense","amount":0,"currency":"IDR","category":"makan","confidence":0.9}]}`
	f := newFixture(t, &llm.MockClient{Responses: []string{response}}, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("beli makan 0 rupiah"))

	assert.Equal(t, models.PipelineRejected, result.Status)
	assert.Equal(t, []string{models.ReasonInvalidAmount}, result.Reasons)
	assert.Equal(t, -1, result.CreditsRemaining)

	// A rejected run never provisions or spends credits.
	entries, err := f.ledger.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleQuotaDenied(t *testing.T) {
	f := newFixture(t, &llm.MockClient{Responses: []string{extractionResponse}}, nil, credit.Allotments{Free: 0})

	result := f.coord.Handle(context.Background(), textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineRejected, result.Status)
	assert.Equal(t, []string{models.ReasonQuotaExceeded}, result.Reasons)
	assert.Zero(t, result.CreditsRemaining)
	assert.Zero(t, f.saved.count())
}

func TestHandleCancellationSpendsNoCredit(t *testing.T) {
	f := newFixture(t, &llm.MockClient{Responses: []string{extractionResponse}}, nil, defaultAllotments())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := f.coord.Handle(ctx, textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineFailed, result.Status)
	assert.Equal(t, []string{models.ReasonCancelled}, result.Reasons)
	assert.Equal(t, -1, result.CreditsRemaining)

	entries, err := f.ledger.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleMalformedOutputFailsWithoutRetry(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"not json", "still not json"}}
	f := newFixture(t, mock, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineFailed, result.Status)
	assert.Equal(t, []string{models.ReasonMalformedOutput}, result.Reasons)
	// One extraction call plus the bounded repair; no outer retries.
	assert.Equal(t, 2, mock.CallCount())
	assert.Equal(t, -1, result.CreditsRemaining)
}

type completeFunc func(ctx context.Context, prompt string) (string, error)

func (f completeFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	calls := 0
	client := completeFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls <= 2 {
			return "", ingesterror.NewTransient("llm", errors.New("rate limited"))
		}
		return extractionResponse, nil
	})
	f := newFixture(t, client, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineAccepted, result.Status)
	assert.Equal(t, 3, calls)
}

func TestHandleTransientExhaustedFails(t *testing.T) {
	client := completeFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", ingesterror.NewTransient("llm", errors.New("rate limited"))
	})
	f := newFixture(t, client, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), textInput("beli makan 25rb"))

	assert.Equal(t, models.PipelineFailed, result.Status)
	assert.Equal(t, []string{models.ReasonServiceUnavailable}, result.Reasons)
	assert.Equal(t, -1, result.CreditsRemaining)
}

func TestHandleUnsupportedMediaIsRejected(t *testing.T) {
	f := newFixture(t, &llm.MockClient{}, nil, defaultAllotments())

	result := f.coord.Handle(context.Background(), models.RawInput{
		UserID:  "user-1",
		Kind:    models.InputKindAudio,
		Payload: []byte("not audio"),
		Format:  "flac",
	})

	assert.Equal(t, models.PipelineRejected, result.Status)
	assert.Equal(t, []string{models.ReasonUnsupportedMedia}, result.Reasons)
}

func testReceiptPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 60, 30))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHandleLowConfidenceOCRNeedsConfirmation(t *testing.T) {
	ocr := fakeOCR{result: normalizer.OCRResult{
		Regions: []normalizer.OCRRegion{{Text: "beli makan 25rb", Confidence: 0.4}},
	}}
	f := newFixture(t, &llm.MockClient{Responses: []string{extractionResponse}}, ocr, defaultAllotments())

	result := f.coord.Handle(context.Background(), models.RawInput{
		UserID:  "user-1",
		Kind:    models.InputKindImage,
		Payload: testReceiptPNG(t),
		Format:  "png",
	})

	assert.Equal(t, models.PipelineNeedsConfirmation, result.Status)
	assert.Contains(t, result.Reasons, models.ReasonLowConfidence)
	assert.Equal(t, "25000", result.Transaction.Amount.String())
	// Needs-confirmation still meters; only rejection is free.
	assert.Equal(t, 4, result.CreditsRemaining)
	// Nothing is persisted until the user confirms.
	assert.Zero(t, f.saved.count())
}
