// Package pipeline coordinates one ingestion run through its stages:
// normalization, intent classification, extraction, validation and credit
// metering. The coordinator owns all retry policy; the stages themselves
// fail fast and surface typed errors.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"finot/ingest/internal/credit"
	"finot/ingest/internal/ingesterror"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
)

// Normalizer converts raw media into text.
type Normalizer interface {
	Normalize(ctx context.Context, in models.RawInput) (models.NormalizedText, error)
}

// IntentClassifier labels normalized text.
type IntentClassifier interface {
	Classify(ctx context.Context, text models.NormalizedText) models.Intent
}

// Extractor produces a transaction candidate from normalized text.
type Extractor interface {
	Extract(ctx context.Context, text models.NormalizedText) (models.ParsedTransaction, []string, error)
}

// CandidateValidator runs the sanity rules.
type CandidateValidator interface {
	Validate(tx models.ParsedTransaction, warnings []string) models.ValidationOutcome
}

// CreditMeter spends credits for completed work.
type CreditMeter interface {
	Consume(ctx context.Context, userID string, tier models.Tier, cost int) (credit.Decision, error)
}

// TierLookup resolves a user's subscription tier.
type TierLookup interface {
	Tier(ctx context.Context, userID string) (models.Tier, error)
}

// TransactionStore receives accepted transactions for persistence. It may be
// nil when the caller handles persistence itself.
type TransactionStore interface {
	Save(ctx context.Context, result models.PipelineResult) error
}

// Pipeline stage names used in logs.
const (
	stageNormalize = "normalize"
	stageClassify  = "classify"
	stageExtract   = "extract"
	stageValidate  = "validate"
	stageMeter     = "meter"
	stagePersist   = "persist"
)

// Options tunes the coordinator.
type Options struct {
	// MaxRetries bounds the retries of a transient stage failure.
	MaxRetries int
	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration
	// QueueBuffer is the per-user queue capacity.
	QueueBuffer int
	// ConsumeCost is the credit cost of one metered run.
	ConsumeCost int
}

// Coordinator drives ingestion runs. Runs for the same user are serialized
// in submission order; runs for different users proceed concurrently.
type Coordinator struct {
	normalizer Normalizer
	classifier IntentClassifier
	extractor  Extractor
	validator  CandidateValidator
	meter      CreditMeter
	tiers      TierLookup
	txStore    TransactionStore
	opts       Options
	log        logging.Logger

	queues *queueSet

	// sleep is swapped in tests to skip real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Coordinator. txStore may be nil.
func New(
	normalizer Normalizer,
	classifier IntentClassifier,
	extractor Extractor,
	validator CandidateValidator,
	meter CreditMeter,
	tiers TierLookup,
	txStore TransactionStore,
	opts Options,
	log logging.Logger,
) *Coordinator {
	if opts.ConsumeCost <= 0 {
		opts.ConsumeCost = 1
	}
	if opts.QueueBuffer <= 0 {
		opts.QueueBuffer = 16
	}
	c := &Coordinator{
		normalizer: normalizer,
		classifier: classifier,
		extractor:  extractor,
		validator:  validator,
		meter:      meter,
		tiers:      tiers,
		txStore:    txStore,
		opts:       opts,
		log:        log,
		sleep:      sleepContext,
	}
	c.queues = newQueueSet(opts.QueueBuffer, c.Handle)
	return c
}

// Handle runs one input through the pipeline synchronously and returns the
// terminal result. It never returns an error: failures are encoded in the
// result status and reasons.
func (c *Coordinator) Handle(ctx context.Context, in models.RawInput) models.PipelineResult {
	runID := uuid.NewString()
	log := c.log.WithFields(
		logging.Field{Key: logging.FieldRunID, Value: runID},
		logging.Field{Key: logging.FieldUserID, Value: in.UserID},
		logging.Field{Key: logging.FieldInputKind, Value: string(in.Kind)},
	)
	log.Info("Run received")

	start := time.Now()
	result := c.run(ctx, log, runID, in)

	log.WithFields(
		logging.Field{Key: logging.FieldStatus, Value: string(result.Status)},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()},
	).Info("Run finished")
	return result
}

// Submit enqueues the input on the user's serial queue and returns a channel
// that delivers the terminal result. Results for one user complete in
// submission order.
func (c *Coordinator) Submit(ctx context.Context, in models.RawInput) <-chan models.PipelineResult {
	return c.queues.submit(ctx, in)
}

// Close drains the per-user queues and stops their workers. Pending runs
// finish; new submissions are rejected as cancelled.
func (c *Coordinator) Close() {
	c.queues.close()
}

func (c *Coordinator) run(ctx context.Context, log logging.Logger, runID string, in models.RawInput) models.PipelineResult {
	base := models.PipelineResult{
		RunID:            runID,
		UserID:           in.UserID,
		CreditsRemaining: -1,
	}

	var text models.NormalizedText
	err := c.withRetry(ctx, log, stageNormalize, func(ctx context.Context) error {
		var nerr error
		text, nerr = c.normalizer.Normalize(ctx, in)
		return nerr
	})
	if err != nil {
		return c.failure(log, base, err)
	}

	intent := c.classifier.Classify(ctx, text)
	if err := ctx.Err(); err != nil {
		return c.failure(log, base, err)
	}
	log.WithField(logging.FieldIntent, string(intent)).Debug("Intent classified")

	warnings := append([]string(nil), text.Warnings...)
	switch intent {
	case models.IntentCommand:
		base.Status = models.PipelineCommand
		base.Message = messageFor(base.Status, nil)
		return base
	case models.IntentNoise:
		base.Status = models.PipelineRejected
		base.Reasons = []string{models.ReasonNotATransaction}
		base.Message = messageFor(base.Status, base.Reasons)
		return base
	case models.IntentAmbiguous:
		// Extraction proceeds, but the candidate carries the doubt.
		warnings = append(warnings, models.WarningAmbiguousIntent)
	}

	var tx models.ParsedTransaction
	var extractWarnings []string
	err = c.withRetry(ctx, log, stageExtract, func(ctx context.Context) error {
		var eerr error
		tx, extractWarnings, eerr = c.extractor.Extract(ctx, text)
		return eerr
	})
	if err != nil {
		return c.failure(log, base, err)
	}
	warnings = append(warnings, extractWarnings...)

	outcome := c.validator.Validate(tx, warnings)
	log.WithFields(
		logging.Field{Key: logging.FieldStage, Value: stageValidate},
		logging.Field{Key: logging.FieldStatus, Value: string(outcome.Status)},
	).Debug("Candidate validated")

	if outcome.Status == models.ValidationRejected {
		// Rejected runs never reach the meter; no credit is spent.
		base.Status = models.PipelineRejected
		base.Reasons = outcome.Reasons
		base.Message = messageFor(base.Status, base.Reasons)
		return base
	}

	// Cancellation up to this point must leave the balance untouched.
	if err := ctx.Err(); err != nil {
		return c.failure(log, base, err)
	}

	tier, err := c.tiers.Tier(ctx, in.UserID)
	if err != nil {
		return c.failure(log, base, err)
	}

	decision, err := c.meter.Consume(ctx, in.UserID, tier, c.opts.ConsumeCost)
	if err != nil {
		return c.failure(log, base, err)
	}
	base.CreditsRemaining = decision.Remaining
	if !decision.Granted {
		log.WithFields(
			logging.Field{Key: logging.FieldStage, Value: stageMeter},
			logging.Field{Key: logging.FieldTier, Value: string(tier)},
		).Info("Run denied by credit meter")
		base.Status = models.PipelineRejected
		base.Reasons = []string{models.ReasonQuotaExceeded}
		base.Message = messageFor(base.Status, base.Reasons)
		return base
	}

	base.Transaction = outcome.Transaction
	base.Reasons = outcome.Reasons
	if outcome.Status == models.ValidationNeedsConfirmation {
		base.Status = models.PipelineNeedsConfirmation
	} else {
		base.Status = models.PipelineAccepted
	}
	base.Message = messageFor(base.Status, base.Reasons)

	if base.Status == models.PipelineAccepted && c.txStore != nil {
		if err := c.txStore.Save(ctx, base); err != nil {
			log.WithError(err).WithField(logging.FieldStage, stagePersist).Error("Could not persist accepted transaction")
			return c.failure(log, base, err)
		}
	}
	return base
}

// withRetry runs fn, retrying transient failures with exponential backoff
// and jitter. Terminal errors and cancellation return immediately.
func (c *Coordinator) withRetry(ctx context.Context, log logging.Logger, stage string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !ingesterror.IsTransient(err) || ingesterror.IsCancelled(err) {
			return err
		}
		if attempt >= c.opts.MaxRetries {
			log.WithError(err).WithFields(
				logging.Field{Key: logging.FieldStage, Value: stage},
				logging.Field{Key: logging.FieldAttempt, Value: attempt + 1},
			).Error("Retries exhausted")
			return err
		}

		delay := backoffDelay(c.opts.BackoffBase, attempt)
		log.WithError(err).WithFields(
			logging.Field{Key: logging.FieldStage, Value: stage},
			logging.Field{Key: logging.FieldAttempt, Value: attempt + 1},
			logging.Field{Key: logging.FieldDuration, Value: delay.Milliseconds()},
		).Warn("Transient failure, backing off")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// failure maps a stage error onto a terminal result.
func (c *Coordinator) failure(log logging.Logger, base models.PipelineResult, err error) models.PipelineResult {
	var reason string
	status := models.PipelineFailed

	var unsupported *ingesterror.UnsupportedMediaError
	var malformed *ingesterror.MalformedOutputError
	switch {
	case ingesterror.IsCancelled(err):
		reason = models.ReasonCancelled
	case errors.As(err, &unsupported):
		status = models.PipelineRejected
		reason = models.ReasonUnsupportedMedia
	case errors.As(err, &malformed):
		reason = models.ReasonMalformedOutput
	default:
		reason = models.ReasonServiceUnavailable
	}

	log.WithError(err).WithFields(
		logging.Field{Key: logging.FieldStatus, Value: string(status)},
		logging.Field{Key: logging.FieldReason, Value: reason},
	).Warn("Run did not complete")

	base.Status = status
	base.Reasons = []string{reason}
	base.Message = messageFor(status, base.Reasons)
	return base
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
