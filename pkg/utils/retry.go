package utils

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryNotice is emitted before the next attempt starts.
type RetryNotice struct {
	Attempt int // failed attempt number, starts at 1
	Total   int
	Err     error
	Delay   time.Duration
}

type RetryNotifyFunc func(RetryNotice)
type RetrySleepFunc func(context.Context, time.Duration) error

// RetryPolicy defines per-attempt timeouts and the waits between attempts.
// The number of attempts is len(AttemptTimeouts); a zero timeout leaves
// that attempt bounded only by the parent context.
type RetryPolicy struct {
	AttemptTimeouts []time.Duration
	Backoffs        []time.Duration
	// MaxRetryAfter caps delays requested by a provider via Retry-After.
	MaxRetryAfter time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	Notify    RetryNotifyFunc
	Sleep     RetrySleepFunc
}

// RetryOnce is the policy used for every external call in a session:
// one attempt, one retry, each bounded by timeout.
func RetryOnce(timeout time.Duration) RetryPolicy {
	return RetryPolicy{
		AttemptTimeouts: []time.Duration{timeout, timeout},
		Backoffs:        []time.Duration{250 * time.Millisecond},
		MaxRetryAfter:   5 * time.Second,
	}
}

// Outcome reports how AttemptOrFallback produced its value.
type Outcome struct {
	Attempts int
	FellBack bool
	// LastErr is the error of the final failed attempt, nil on success.
	LastErr error
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry[- ]after[:=]?\s*(\d+)`)

// AttemptOrFallback runs attempt under policy and, when every attempt
// fails, returns whatever fallback produces from the last error.
// attempt receives the zero-based attempt number so a retry can change
// strategy (a stricter prompt, plain text instead of markup).
// A done parent context ends the loop immediately and fallback is not called.
func AttemptOrFallback[T any](
	ctx context.Context,
	policy RetryPolicy,
	attempt func(ctx context.Context, n int) (T, error),
	fallback func(lastErr error) (T, error),
) (T, Outcome, error) {
	var zero T
	var out Outcome

	total := len(policy.AttemptTimeouts)
	if total == 0 {
		total = 1
	}
	sleepFn := policy.Sleep
	if sleepFn == nil {
		sleepFn = sleepWithCtx
	}

	for n := 0; n < total; n++ {
		if err := ctx.Err(); err != nil {
			return zero, out, err
		}

		attemptCtx := ctx
		cancel := func() {}
		if n < len(policy.AttemptTimeouts) && policy.AttemptTimeouts[n] > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeouts[n])
		}
		val, err := attempt(attemptCtx, n)
		cancel()
		out.Attempts++
		if err == nil {
			out.LastErr = nil
			return val, out, nil
		}
		out.LastErr = err

		if ctx.Err() != nil {
			return zero, out, ctx.Err()
		}
		if n == total-1 {
			break
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			break
		}

		delay := retryDelay(policy, n, err)
		if policy.Notify != nil {
			policy.Notify(RetryNotice{Attempt: n + 1, Total: total, Err: err, Delay: delay})
		}
		if delay > 0 {
			if serr := sleepFn(ctx, delay); serr != nil {
				return zero, out, serr
			}
		}
	}

	if fallback == nil {
		return zero, out, out.LastErr
	}
	out.FellBack = true
	val, err := fallback(out.LastErr)
	return val, out, err
}

func retryDelay(policy RetryPolicy, n int, err error) time.Duration {
	if d, ok := extractRetryAfter(err); ok {
		if policy.MaxRetryAfter > 0 && d > policy.MaxRetryAfter {
			return policy.MaxRetryAfter
		}
		return d
	}
	if n < len(policy.Backoffs) && policy.Backoffs[n] > 0 {
		return policy.Backoffs[n]
	}
	return 0
}

func extractRetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0, false
	}
	secs, convErr := strconv.Atoi(strings.TrimSpace(m[1]))
	if convErr != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
