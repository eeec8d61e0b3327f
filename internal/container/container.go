// Package container provides dependency injection for the ingestion
// application. It centralizes the creation and wiring of all components so
// commands receive a fully assembled pipeline instead of building their own.
package container

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finot/ingest/internal/config"
	"finot/ingest/internal/credit"
	"finot/ingest/internal/extraction"
	"finot/ingest/internal/intent"
	"finot/ingest/internal/llm"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
	"finot/ingest/internal/normalizer"
	"finot/ingest/internal/pipeline"
	"finot/ingest/internal/store"
	"finot/ingest/internal/validation"
)

// Options overrides parts of the default wiring. Engines without an
// in-process implementation (OCR, speech-to-text) and the tier lookup are
// injected here; leaving them nil disables the corresponding media kind or
// defaults every user to the free tier.
type Options struct {
	OCR   normalizer.OCREngine
	STT   normalizer.SpeechToText
	Tiers pipeline.TierLookup
	Store pipeline.TransactionStore

	// LLM replaces the Gemini client, for offline runs and tests.
	LLM llm.Client
}

// Container holds the wired application components. It is immutable after
// creation; access goes through getters.
type Container struct {
	logger      logging.Logger
	config      *config.Config
	coordinator *pipeline.Coordinator
	meter       *credit.Meter
	gemini      *llm.GeminiClient
	ledger      interface{ Close() error }
}

// freeTiers is the fallback TierLookup when none is injected.
type freeTiers struct{}

func (freeTiers) Tier(ctx context.Context, userID string) (models.Tier, error) {
	return models.TierFree, nil
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := config.NewLogger(cfg)

	catalog, err := store.LoadCatalog(cfg.Catalog.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("could not load category catalog: %w", err)
	}

	c := &Container{logger: logger, config: cfg}

	client := opts.LLM
	if client == nil {
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("no LLM client: set GEMINI_API_KEY or inject one")
		}
		gemini, err := llm.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AITimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("could not create Gemini client: %w", err)
		}
		c.gemini = gemini
		client = gemini
	}

	norm := normalizer.New(opts.OCR, opts.STT, normalizer.Options{
		LanguageHints:      cfg.OCR.LanguageHints,
		OCRConfidenceFloor: cfg.OCR.ConfidenceFloor,
		TargetImageHeight:  cfg.OCR.TargetHeight,
		TargetSampleRate:   cfg.Audio.TargetSampleRate,
		MaxAudioDuration:   cfg.MaxAudioDuration(),
	}, logger)

	extractor := extraction.New(client, catalog, extraction.Options{
		RepairAttempts:    cfg.AI.RepairAttempts,
		DefaultConfidence: cfg.AI.DefaultConfidence,
	}, logger)

	maxAmount, err := decimal.NewFromString(cfg.Validation.MaxAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid validation.max_amount %q: %w", cfg.Validation.MaxAmount, err)
	}
	validator := validation.New(catalog, validation.Options{
		MaxAmount:       maxAmount,
		FutureDays:      cfg.Validation.FutureDays,
		RetentionDays:   cfg.Validation.RetentionDays,
		ConfidenceFloor: cfg.Validation.ConfidenceFloor,
	})

	var ledger credit.LedgerStore
	if cfg.Credits.LedgerPath != "" {
		sqlite, err := credit.NewSQLiteStore(cfg.Credits.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("could not open credit ledger: %w", err)
		}
		c.ledger = sqlite
		ledger = sqlite
	} else {
		logger.Warn("No credit ledger path configured, balances are in-memory only")
		ledger = credit.NewMemoryStore()
	}
	c.meter = credit.NewMeter(ledger, credit.Allotments{
		Free:        cfg.Credits.FreeAllotment,
		ProWeekly:   cfg.Credits.ProWeekly,
		EliteWeekly: cfg.Credits.EliteWeekly,
	}, logger)

	tiers := opts.Tiers
	if tiers == nil {
		tiers = freeTiers{}
	}

	c.coordinator = pipeline.New(
		norm,
		intent.New(client, logger),
		extractor,
		validator,
		c.meter,
		tiers,
		opts.Store,
		pipeline.Options{
			MaxRetries:  cfg.Pipeline.MaxRetries,
			BackoffBase: cfg.BackoffBase(),
			QueueBuffer: cfg.Pipeline.QueueBuffer,
			ConsumeCost: 1,
		},
		logger,
	)
	return c, nil
}

// Coordinator returns the wired pipeline coordinator.
func (c *Container) Coordinator() *pipeline.Coordinator {
	return c.coordinator
}

// Meter returns the credit meter.
func (c *Container) Meter() *credit.Meter {
	return c.meter
}

// Logger returns the application logger.
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops the coordinator queues and releases external resources.
func (c *Container) Close() error {
	c.coordinator.Close()
	if c.gemini != nil {
		c.gemini.Close()
	}
	if c.ledger != nil {
		return c.ledger.Close()
	}
	return nil
}
