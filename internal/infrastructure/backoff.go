package infrastructure

import (
	"math"
	"math/rand"
	"time"
)

// BackoffWithJitter grows min by factor per attempt, capped at max, plus a
// random jitter within [0, max-min]. The result never exceeds max.
func BackoffWithJitter(attempt int, factor float64, min, max time.Duration, rng *rand.Rand) time.Duration {
	backoff := float64(min) * math.Pow(factor, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}

	base := time.Duration(backoff)
	if max <= min {
		return base
	}

	jitterWindow := max - min
	jitter := time.Duration(rng.Int63n(int64(jitterWindow) + 1))
	result := base + jitter
	if result > max {
		return max
	}

	return result
}
