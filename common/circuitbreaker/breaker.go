// Package circuitbreaker implements the per-instance circuit breaker the
// Vision Primitives Client (C3) wraps its upstream calls in: after
// failure_threshold consecutive failures the breaker opens for
// recovery_seconds, then allows a single half-open probe (§4.3, §5, §8
// property 12). State is updated atomically; reads are lock-free, matching
// §5's "circuit-breaker state in C3 is shared and updated atomically;
// reads are lock-free".
package circuitbreaker

import (
	"sync/atomic"
	"time"
)

type state int32

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a consecutive-failure-counted circuit breaker.
type Breaker struct {
	failureThreshold int64
	recovery         time.Duration

	state           atomic.Int32
	consecutiveFail atomic.Int64
	openedAt        atomic.Int64 // unix nanos
	halfOpenProbeInFlight atomic.Bool

	now func() time.Time
}

// New builds a Breaker with the given failure threshold and recovery window.
func New(failureThreshold int, recoverySeconds int) *Breaker {
	b := &Breaker{
		failureThreshold: int64(failureThreshold),
		recovery:         time.Duration(recoverySeconds) * time.Second,
		now:              time.Now,
	}
	b.state.Store(int32(stateClosed))
	return b
}

// Allow reports whether a call may proceed right now, and if not, the
// remaining seconds until a probe will be permitted.
func (b *Breaker) Allow() (ok bool, retryAfterSeconds int) {
	switch state(b.state.Load()) {
	case stateClosed:
		return true, 0
	case stateHalfOpen:
		// Only one probe may be in flight at a time.
		if b.halfOpenProbeInFlight.CompareAndSwap(false, true) {
			return true, 0
		}
		return false, b.remainingRecovery()
	default: // stateOpen
		if b.now().Sub(time.Unix(0, b.openedAt.Load())) >= b.recovery {
			// Transition to half-open and let this caller probe.
			if b.state.CompareAndSwap(int32(stateOpen), int32(stateHalfOpen)) {
				b.halfOpenProbeInFlight.Store(true)
				return true, 0
			}
		}
		return false, b.remainingRecovery()
	}
}

func (b *Breaker) remainingRecovery() int {
	remaining := b.recovery - b.now().Sub(time.Unix(0, b.openedAt.Load()))
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// RecordSuccess resets the breaker to closed.
func (b *Breaker) RecordSuccess() {
	b.consecutiveFail.Store(0)
	b.halfOpenProbeInFlight.Store(false)
	b.state.Store(int32(stateClosed))
}

// RecordFailure records a failure; opens the breaker once the consecutive
// failure count reaches the threshold (or immediately, if the failing call
// was the half-open probe).
func (b *Breaker) RecordFailure() {
	if state(b.state.Load()) == stateHalfOpen {
		b.halfOpenProbeInFlight.Store(false)
		b.trip()
		return
	}

	if b.consecutiveFail.Add(1) >= b.failureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openedAt.Store(b.now().UnixNano())
	b.state.Store(int32(stateOpen))
}

// IsOpen reports whether the breaker is currently open without affecting
// the half-open probe slot; used for stats/health reporting only, never
// as a gate before a real call (use Allow for that).
func (b *Breaker) IsOpen() bool {
	if state(b.state.Load()) != stateOpen {
		return false
	}
	return b.now().Sub(time.Unix(0, b.openedAt.Load())) < b.recovery
}
