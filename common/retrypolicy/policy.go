// Package retrypolicy implements the exponential backoff + jitter retry
// policy shared by the Blob Store Adapter (C2), the Vision Primitives
// Client (C3), and the Batch Orchestrator's per-job retry (C7). It is a
// hand-rolled, explicit policy object rather than a decorator — §9's
// redesign notes call for retry/circuit-breaker to be "re-express[ed] as
// explicit policy objects composed around operations, so policy is visible
// in the call graph and testable without the decorated function".
package retrypolicy

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/parkvision/visionserve/common/apierr"
)

// Policy is an exponential backoff + jitter retry policy.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	JitterPct   float64
	Max         time.Duration

	// Sleep defaults to time.Sleep. Do does not call it: it waits on a
	// timer so that ctx cancellation interrupts the backoff.
	Sleep func(time.Duration)
	// Rand is overridable in tests for deterministic jitter; defaults to
	// a package-level source.
	Rand func() float64
}

// Default returns the spec §6 configuration defaults (5 attempts, 200ms
// base, factor 2, ±25% jitter, 10s cap).
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		Base:        200 * time.Millisecond,
		Factor:      2,
		JitterPct:   25,
		Max:         10 * time.Second,
		Sleep:       time.Sleep,
		Rand:        rand.Float64,
	}
}

// New builds a Policy from the §6 RetryConfig fields.
func New(maxAttempts, baseMS int, factor, jitterPct float64, maxMS int) Policy {
	p := Default()
	p.MaxAttempts = maxAttempts
	p.Base = time.Duration(baseMS) * time.Millisecond
	p.Factor = factor
	p.JitterPct = jitterPct
	p.Max = time.Duration(maxMS) * time.Millisecond
	return p
}

// delay computes the backoff for the given 0-indexed attempt with jitter in
// [-JitterPct%, +JitterPct%] of the exponential delay.
func (p Policy) delay(attempt int) time.Duration {
	exp := float64(p.Base) * math.Pow(p.Factor, float64(attempt))
	if d := time.Duration(exp); d > p.Max {
		exp = float64(p.Max)
	}
	jitterRange := exp * (p.JitterPct / 100)
	jittered := exp - jitterRange + p.Rand()*2*jitterRange
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// TransientClassifier reports whether an error is eligible for retry.
// Defaults to apierr.Error.IsTransient when nil.
type TransientClassifier func(error) bool

// defaultClassifier treats *apierr.Error per its IsTransient() verdict and
// treats any other error (e.g. a raw transport error) as transient too,
// since callers that want terminal-only errors should wrap them in a
// non-transient *apierr.Error before returning.
func defaultClassifier(err error) bool {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return true
}

// Do runs fn, retrying on transient errors per the policy, honoring ctx
// cancellation between attempts. It returns the last error if all attempts
// are exhausted, or immediately on a non-transient error.
func (p Policy) Do(ctx context.Context, classify TransientClassifier, fn func(ctx context.Context) error) error {
	if classify == nil {
		classify = defaultClassifier
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !classify(lastErr) {
			return lastErr
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		d := p.delay(attempt)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
