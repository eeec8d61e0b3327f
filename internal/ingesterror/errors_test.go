package ingesterror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientError(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := NewTransient("ocr", cause)

	assert.Contains(t, err.Error(), "ocr")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(fmt.Errorf("normalize: %w", err)))
}

func TestIsTransientRejectsOtherErrors(t *testing.T) {
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(&UnsupportedMediaError{Kind: "image", Format: "tiff"}))
	assert.False(t, IsTransient(nil))
}

func TestMalformedOutputTruncatesSnippet(t *testing.T) {
	raw := ""
	for i := 0; i < 50; i++ {
		raw += "0123456789"
	}
	err := NewMalformedOutput("missing amount", raw)
	assert.Len(t, err.Snippet, 200)
	assert.Contains(t, err.Error(), "missing amount")
}

func TestIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, IsCancelled(ctx.Err()))
	assert.True(t, IsCancelled(fmt.Errorf("llm call: %w", context.DeadlineExceeded)))
	assert.False(t, IsCancelled(errors.New("other")))
}
