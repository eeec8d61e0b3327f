package pipeline

import (
	"math/rand"
	"time"
)

// maxBackoff caps the exponential growth of retry delays.
const maxBackoff = 30 * time.Second

// backoffDelay computes the delay before retry number attempt (zero-based):
// base doubled per attempt, capped, with the upper half jittered so
// concurrent retries do not stampede a recovering upstream.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
