package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// PublishAttempts bounds the dispatch retries for one post within a single
// enforcement pass. The enforcer's per-post attempt cap across passes is a
// separate, configurable knob.
const PublishAttempts = 3

// RetryScheduler wraps publish dispatches with bounded exponential backoff
// and enforces a minimum spacing between consecutive calls to the same
// platform. The spacing is platform-scoped, not per post: bursts of
// independent posts to one platform are serialized, while different
// platforms proceed concurrently.
type RetryScheduler struct {
	maxAttempts uint64
	baseDelay   time.Duration
	spacing     time.Duration

	mu     sync.Mutex
	pacers map[string]*rate.Limiter
}

func NewRetryScheduler(maxAttempts int, baseDelay, spacing time.Duration) *RetryScheduler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryScheduler{
		maxAttempts: uint64(maxAttempts),
		baseDelay:   baseDelay,
		spacing:     spacing,
		pacers:      make(map[string]*rate.Limiter),
	}
}

func (s *RetryScheduler) pacer(platform string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.pacers[platform]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(s.spacing), 1)
		s.pacers[platform] = limiter
	}
	return limiter
}

// Execute runs fn with up to maxAttempts attempts. Only RATE_LIMITED and
// PLATFORM_UNAVAILABLE results are retried; everything else surfaces after
// one attempt. Every attempt, including retries, waits on the platform
// pacer first. Exhausting the attempts surfaces the last error unchanged.
func (s *RetryScheduler) Execute(ctx context.Context, platform string, fn func(ctx context.Context) (string, error)) (string, error) {
	limiter := s.pacer(platform)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 1 // full jitter
	policy.MaxElapsedTime = 0

	var result string
	operation := func() error {
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		id, err := fn(ctx)
		if err != nil {
			if !KindOf(err).Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		result = id
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxAttempts-1), ctx))
	if err != nil {
		return "", err
	}
	return result, nil
}
