package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finot/ingest/internal/config"
	"finot/ingest/internal/llm"
	"finot/ingest/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.InitializeConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewContainerRequiresConfig(t *testing.T) {
	_, err := NewContainer(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestNewContainerRequiresLLM(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.APIKey = ""
	_, err := NewContainer(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestNewContainerWiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(context.Background(), cfg, Options{
		LLM: &llm.MockClient{Responses: []string{`{"transactions":[{"intent":"expense","amount":25000,"currency":"IDR","category":"makan","confidence":0.9}]}`}},
	})
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Coordinator())
	require.NotNil(t, c.Meter())
	require.NotNil(t, c.Logger())

	result := c.Coordinator().Handle(context.Background(), models.RawInput{
		UserID: "user-1",
		Kind:   models.InputKindText,
		Text:   "beli makan 25rb",
	})
	assert.Equal(t, models.PipelineAccepted, result.Status)
	assert.Equal(t, cfg.Credits.FreeAllotment-1, result.CreditsRemaining)
}

func TestNewContainerOpensSQLiteLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credits.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")

	c, err := NewContainer(context.Background(), cfg, Options{LLM: &llm.MockClient{}})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestNewContainerRejectsBadMaxAmount(t *testing.T) {
	cfg := testConfig(t)
	cfg.Validation.MaxAmount = "plenty"
	_, err := NewContainer(context.Background(), cfg, Options{LLM: &llm.MockClient{}})
	assert.Error(t, err)
}
