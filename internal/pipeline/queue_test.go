package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finot/ingest/internal/credit"
	"finot/ingest/internal/intent"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
	"finot/ingest/internal/normalizer"
	"finot/ingest/internal/store"
	"finot/ingest/internal/validation"
)

// scriptedExtractor returns a fixed candidate carrying the input text in the
// note, recording call order. Calls matching blockOn wait until release is
// closed.
type scriptedExtractor struct {
	mu      sync.Mutex
	order   []string
	blockOn string
	release chan struct{}
}

func (e *scriptedExtractor) Extract(ctx context.Context, text models.NormalizedText) (models.ParsedTransaction, []string, error) {
	if e.blockOn != "" && text.Text == e.blockOn {
		select {
		case <-e.release:
		case <-ctx.Done():
			return models.ParsedTransaction{}, nil, ctx.Err()
		}
	}
	e.mu.Lock()
	e.order = append(e.order, text.Text)
	e.mu.Unlock()

	return models.ParsedTransaction{
		Amount:     decimal.NewFromInt(1000),
		Currency:   "IDR",
		Category:   "makan",
		Direction:  models.DirectionExpense,
		Note:       text.Text,
		Confidence: 0.9,
	}, nil, nil
}

func (e *scriptedExtractor) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func newQueueCoordinator(t *testing.T, extractor Extractor) *Coordinator {
	t.Helper()
	log := logging.NewMockLogger()
	catalog := store.NewDefaultCatalog()
	coord := New(
		normalizer.New(nil, nil, normalizer.Options{}, log),
		intent.New(nil, log),
		extractor,
		validation.New(catalog, validation.Options{
			MaxAmount:       decimal.New(1, 9),
			FutureDays:      1,
			RetentionDays:   365,
			ConfidenceFloor: 0.6,
		}),
		credit.NewMeter(credit.NewMemoryStore(), credit.Allotments{Free: 100}, log),
		staticTiers{},
		nil,
		Options{MaxRetries: 0, BackoffBase: time.Millisecond, QueueBuffer: 8},
		log,
	)
	t.Cleanup(coord.Close)
	return coord
}

func input(userID, text string) models.RawInput {
	return models.RawInput{UserID: userID, Kind: models.InputKindText, Text: text, ReceivedAt: time.Now()}
}

func TestSubmitSerializesPerUser(t *testing.T) {
	extractor := &scriptedExtractor{}
	coord := newQueueCoordinator(t, extractor)
	ctx := context.Background()

	texts := []string{"beli kopi 5rb", "beli teh 3rb", "beli roti 7rb"}
	var results []<-chan models.PipelineResult
	for _, text := range texts {
		results = append(results, coord.Submit(ctx, input("user-1", text)))
	}

	for i, ch := range results {
		result := <-ch
		require.Equal(t, models.PipelineAccepted, result.Status)
		assert.Equal(t, texts[i], result.Transaction.Note)
	}
	assert.Equal(t, texts, extractor.callOrder())
}

func TestSubmitUsersRunIndependently(t *testing.T) {
	blocked := "beli kopi 5rb"
	extractor := &scriptedExtractor{blockOn: blocked, release: make(chan struct{})}
	coord := newQueueCoordinator(t, extractor)
	ctx := context.Background()

	// user-1's run parks inside extraction; user-2 must not wait behind it.
	first := coord.Submit(ctx, input("user-1", blocked))
	second := coord.Submit(ctx, input("user-2", "beli teh 3rb"))

	select {
	case result := <-second:
		assert.Equal(t, models.PipelineAccepted, result.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("user-2 run was blocked behind user-1")
	}

	close(extractor.release)
	result := <-first
	assert.Equal(t, models.PipelineAccepted, result.Status)
}

func TestCloseWaitsForBlockedSubmit(t *testing.T) {
	release := make(chan struct{})
	set := newQueueSet(1, func(ctx context.Context, in models.RawInput) models.PipelineResult {
		<-release
		return models.PipelineResult{UserID: in.UserID, Status: models.PipelineAccepted}
	})
	ctx := context.Background()

	// The worker parks on the first job, the second fills the buffer, so the
	// third submit is still blocked on its send when close begins.
	first := set.submit(ctx, input("user-1", "beli kopi 5rb"))
	second := set.submit(ctx, input("user-1", "beli teh 3rb"))

	thirdReady := make(chan (<-chan models.PipelineResult), 1)
	go func() {
		thirdReady <- set.submit(ctx, input("user-1", "beli roti 7rb"))
	}()

	closed := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		set.close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while a submit was still pending")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	for _, ch := range []<-chan models.PipelineResult{first, second, <-thirdReady} {
		result := <-ch
		assert.Equal(t, models.PipelineAccepted, result.Status)
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not finish after the queues drained")
	}
}

func TestSubmitAfterCloseIsCancelled(t *testing.T) {
	extractor := &scriptedExtractor{}
	coord := newQueueCoordinator(t, extractor)
	coord.Close()

	result := <-coord.Submit(context.Background(), input("user-1", "beli kopi 5rb"))
	assert.Equal(t, models.PipelineFailed, result.Status)
	assert.Equal(t, []string{models.ReasonCancelled}, result.Reasons)
}
