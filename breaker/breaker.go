// Package breaker implements the per-node circuit breaker and its bounded
// manager: a three-state machine (Closed, Open, HalfOpen) gating calls to
// a node, plus a manager keyed by node id with LRU eviction and an
// idle-breaker Cleanup sweep.
package breaker

import (
	"sync"
	"time"

	"github.com/npipeline/npipeline/errs"
)

// State is one of the three gate positions of a Breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// ThresholdKind selects how a Breaker decides to trip from Closed to Open.
type ThresholdKind string

const (
	ThresholdConsecutiveFailures ThresholdKind = "ConsecutiveFailures"
	ThresholdFailureRatio        ThresholdKind = "FailureRatio"
)

// Options configures a single node's Breaker.
type Options struct {
	ThresholdKind         ThresholdKind `validate:"required"`
	FailureThreshold      int           `validate:"required_if=ThresholdKind ConsecutiveFailures,gte=1"`
	WindowSize            int           `validate:"required_if=ThresholdKind FailureRatio,gte=1"`
	FailureRatioThreshold float64       `validate:"required_if=ThresholdKind FailureRatio,gte=0,lte=1"`
	MinimumThroughput     int           `validate:"gte=0"`
	OpenDuration          time.Duration `validate:"required,gt=0"`
	HalfOpenMaxCalls      int           `validate:"gte=1"`
	SuccessThreshold      int           `validate:"gte=1"`
}

// DefaultOptions returns a Breaker configuration safe for immediate use:
// five consecutive failures trip it, and it stays Open for 30 seconds
// before probing again.
func DefaultOptions() Options {
	return Options{
		ThresholdKind:    ThresholdConsecutiveFailures,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	}
}

// Breaker is a per-node three-state gate. All methods are safe
// for concurrent use — strategies may call Allow/OnSuccess/OnFailure from
// worker pool goroutines.
type Breaker struct {
	mu sync.Mutex

	opts Options

	state State

	consecutiveFailures int
	window              []bool // true = failure, ring buffer of the last WindowSize outcomes
	windowPos           int

	openedAt        time.Time
	halfOpenCalls   int
	halfOpenSuccess int

	lastTouched time.Time
}

// New builds a Breaker in the Closed state.
func New(opts Options) *Breaker {
	return &Breaker{opts: opts, state: Closed, lastTouched: time.Now()}
}

// State reports the breaker's current state, first applying the
// Open-to-HalfOpen timer transition if due.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

// Allow reports whether a call may proceed, transitioning Open to HalfOpen
// when openDuration has elapsed. When it returns false, the caller should
// fail fast with CircuitBreakerOpen.
func (b *Breaker) Allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTouched = time.Now()
	b.maybeTransitionToHalfOpenLocked()

	switch b.state {
	case Closed:
		return true, nil
	case HalfOpen:
		if b.halfOpenCalls < b.opts.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true, nil
		}
		return false, errs.New(errs.CodeCircuitBreakerOpen, "half-open probe budget exhausted")
	default: // Open
		return false, errs.New(errs.CodeCircuitBreakerOpen, "breaker is open")
	}
}

func (b *Breaker) maybeTransitionToHalfOpenLocked() {
	if b.state == Open && time.Since(b.openedAt) >= b.opts.OpenDuration {
		b.state = HalfOpen
		b.halfOpenCalls = 0
		b.halfOpenSuccess = 0
	}
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTouched = time.Now()

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.opts.SuccessThreshold {
			b.closeLocked()
		}
	case Closed:
		b.consecutiveFailures = 0
		b.recordWindowLocked(false)
	}
}

// OnFailure records a failed call, tripping the breaker if its threshold is
// met.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTouched = time.Now()

	switch b.state {
	case HalfOpen:
		b.openLocked()
		return
	case Closed:
		b.consecutiveFailures++
		b.recordWindowLocked(true)
		if b.shouldTripLocked() {
			b.openLocked()
		}
	}
}

func (b *Breaker) recordWindowLocked(failed bool) {
	if b.opts.ThresholdKind != ThresholdFailureRatio || b.opts.WindowSize <= 0 {
		return
	}
	if len(b.window) < b.opts.WindowSize {
		b.window = append(b.window, failed)
	} else {
		b.window[b.windowPos] = failed
	}
	b.windowPos = (b.windowPos + 1) % b.opts.WindowSize
}

func (b *Breaker) shouldTripLocked() bool {
	switch b.opts.ThresholdKind {
	case ThresholdConsecutiveFailures:
		return b.consecutiveFailures >= b.opts.FailureThreshold
	case ThresholdFailureRatio:
		if len(b.window) < b.opts.MinimumThroughput {
			return false
		}
		failures := 0
		for _, f := range b.window {
			if f {
				failures++
			}
		}
		ratio := float64(failures) / float64(len(b.window))
		return ratio >= b.opts.FailureRatioThreshold
	default:
		return false
	}
}

func (b *Breaker) openLocked() {
	b.state = Open
	b.openedAt = time.Now()
	b.halfOpenCalls = 0
	b.halfOpenSuccess = 0
}

func (b *Breaker) closeLocked() {
	b.state = Closed
	b.consecutiveFailures = 0
	b.window = nil
	b.windowPos = 0
}

// IdleSince reports how long it has been since the breaker was last
// touched, used by the Manager's eviction and cleanup policies.
func (b *Breaker) IdleSince() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.lastTouched)
}
