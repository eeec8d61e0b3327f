package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsAndStaysJittered(t *testing.T) {
	base := 200 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		full := base << attempt
		for i := 0; i < 50; i++ {
			d := backoffDelay(base, attempt)
			assert.GreaterOrEqual(t, d, full/2)
			assert.LessOrEqual(t, d, full)
		}
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	d := backoffDelay(time.Second, 30)
	assert.LessOrEqual(t, d, maxBackoff)
	assert.GreaterOrEqual(t, d, maxBackoff/2)
}

func TestBackoffDelayZeroBase(t *testing.T) {
	assert.Positive(t, backoffDelay(0, 0))
}
