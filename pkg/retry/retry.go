// Package retry wraps a single fallible operation with bounded
// exponential-backoff retry. Rate-limit failures are retryable up to the
// policy limit; any other failure fails fast. The policy is modeled as an
// explicit state machine so the transition logic is testable without a
// clock or a provider.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/episodic/pkg/llm"
)

// State is one state of the retry machine.
type State int

const (
	// StateAttempting means an attempt is in flight.
	StateAttempting State = iota
	// StateBackoff means the coordinator is waiting before the next attempt.
	StateBackoff
	// StateSucceeded is terminal: the operation completed.
	StateSucceeded
	// StateExhausted is terminal: rate limited with no attempts remaining.
	StateExhausted
	// StateFailed is terminal: a non-retryable error occurred.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine stops in this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateFailed
}

// Classification of an attempt result.
type Classification int

const (
	// Succeeded means the attempt returned no error.
	Succeeded Classification = iota
	// RateLimited means the provider asked the caller to slow down.
	RateLimited
	// Fatal means any other failure.
	Fatal
)

// Next is the pure transition function from an attempt result to the next
// state. It is the whole policy: everything else in this package is plumbing
// around it.
func Next(c Classification, attemptsRemaining bool) State {
	switch c {
	case Succeeded:
		return StateSucceeded
	case RateLimited:
		if attemptsRemaining {
			return StateBackoff
		}
		return StateExhausted
	default:
		return StateFailed
	}
}

// Policy is the immutable retry configuration.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff delay before the second attempt; each
	// subsequent delay doubles.
	BaseDelay time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Delay returns the backoff delay after attempt index i (zero-based):
// BaseDelay * 2^i.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay << uint(attempt)
}

// withDefaults clamps invalid values to the defaults.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	return p
}

// Classifier maps an attempt error to a retryable / fatal decision.
// It is never called with a nil error.
type Classifier func(error) bool

// Sleeper suspends the caller for d, returning early with ctx.Err() if the
// context is cancelled.
type Sleeper func(ctx context.Context, d time.Duration) error

// Outcome is the terminal result of a coordinated operation.
type Outcome struct {
	// State is the terminal state: Succeeded, Exhausted, or Failed.
	State State
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the last attempt error, retained for logging. Callers should
	// branch on Success, not on Err.
	Err error
}

// Success reports whether the operation completed.
func (o Outcome) Success() bool {
	return o.State == StateSucceeded
}

// Coordinator executes operations under a retry policy.
type Coordinator struct {
	policy   Policy
	classify Classifier
	sleep    Sleeper
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClassifier overrides the rate-limit classifier.
func WithClassifier(c Classifier) Option {
	return func(co *Coordinator) { co.classify = c }
}

// WithSleeper overrides the backoff sleep primitive.
func WithSleeper(s Sleeper) Option {
	return func(co *Coordinator) { co.sleep = s }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator creates a Coordinator with the given policy. By default
// rate limits are detected with llm.IsRateLimitError and backoff waits use
// a context-aware timer.
func NewCoordinator(policy Policy, opts ...Option) *Coordinator {
	c := &Coordinator{
		policy:   policy.withDefaults(),
		classify: llm.IsRateLimitError,
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the coordinator's policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Do executes op under the retry policy. The name identifies the operation
// in log output. The underlying error never escapes beyond the Outcome; a
// cancelled backoff terminates as Failed.
func (c *Coordinator) Do(ctx context.Context, name string, op func(context.Context) error) Outcome {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		c.logger.Info("attempting operation",
			"name", name, "attempt", attempt+1, "max_attempts", c.policy.MaxAttempts)

		err := op(ctx)
		lastErr = err

		state := c.classifyAttempt(err, attempt)
		switch state {
		case StateSucceeded:
			c.logger.Info("operation succeeded", "name", name, "attempts", attempt+1)
			return Outcome{State: StateSucceeded, Attempts: attempt + 1}

		case StateBackoff:
			delay := c.policy.Delay(attempt)
			c.logger.Warn("rate limit hit, backing off",
				"name", name, "delay", delay,
				"attempt", attempt+1, "max_attempts", c.policy.MaxAttempts)
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				c.logger.Error("backoff interrupted", "name", name, "error", sleepErr)
				return Outcome{State: StateFailed, Attempts: attempt + 1, Err: sleepErr}
			}

		case StateExhausted:
			c.logger.Error("operation failed: rate limited and attempts exhausted",
				"name", name, "attempts", attempt+1, "error", err)
			return Outcome{State: StateExhausted, Attempts: attempt + 1, Err: err}

		case StateFailed:
			c.logger.Error("operation failed", "name", name, "attempts", attempt+1, "error", err)
			return Outcome{State: StateFailed, Attempts: attempt + 1, Err: err}
		}
	}

	// Unreachable with MaxAttempts >= 1; kept for safety.
	return Outcome{State: StateExhausted, Attempts: c.policy.MaxAttempts, Err: lastErr}
}

func (c *Coordinator) classifyAttempt(err error, attempt int) State {
	classification := Fatal
	switch {
	case err == nil:
		classification = Succeeded
	case c.classify(err):
		classification = RateLimited
	}
	return Next(classification, attempt < c.policy.MaxAttempts-1)
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
