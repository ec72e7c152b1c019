// Package agent defines the small interface every specialized analysis
// agent implements, plus the retry/backoff helper the orchestrator drives
// it with. Grounded on the teacher's internal/llm.Provider shape — one
// small interface, a typed request/response pair, nothing the caller has
// to know about the implementation behind it — generalized from a single
// LLM completion call to a full analysis step that itself may call an LLM
// zero or more times internally.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sec-scan/depscan/internal/model"
)

// Agent is one specialized analysis step (vulnerability, reputation,
// code, supply-chain, synthesis — spec.md §4.10). Analyze must never
// panic or return a raw error to its caller: any internal failure is
// caught and reported through the returned AgentResult's Status/Error/
// ErrorType fields instead, so the orchestrator can make a single
// uniform retry/gate decision regardless of which agent ran.
type Agent interface {
	Name() string
	Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult
}

// Run invokes agent with a bounded timeout and recovers a panic into a
// FAILED result with ErrorUnknown, so one misbehaving agent can never take
// down the orchestrator's run.
func Run(ctx context.Context, a Agent, shared model.SharedContext, timeout time.Duration) (result model.AgentResult) {
	start := time.Now()
	defer func() {
		result.DurationSeconds = time.Since(start).Seconds()
		if r := recover(); r != nil {
			result = model.AgentResult{
				AgentName: a.Name(),
				Status:    model.AgentFailed,
				Error:     fmt.Sprintf("panic: %v", r),
				ErrorType: model.ErrorUnknown,
			}
		}
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result = a.Analyze(runCtx, shared)
	if result.AgentName == "" {
		result.AgentName = a.Name()
	}
	if runCtx.Err() == context.DeadlineExceeded && result.Status != model.AgentSuccess {
		result.Status = model.AgentTimeout
		result.ErrorType = model.ErrorTimeout
		if result.Error == "" {
			result.Error = "agent exceeded its allotted timeout"
		}
	}
	return result
}

// backoffFactor and defaultMaxAttempts match spec.md §4.9's
// retry_with_backoff(max_attempts=2, base_delay=1s, factor=2).
const (
	backoffFactor      = 2
	defaultMaxAttempts = 2
)

// testBackoffBaseDelay is the retry base delay; a package-level var
// (rather than a const) solely so tests can shrink it instead of sleeping
// for real seconds during a retry-exhaustion test.
var testBackoffBaseDelay = time.Second

// RetryWithBackoff calls fn up to maxAttempts times (in addition to the
// first attempt, i.e. maxAttempts total retries), waiting base_delay *
// factor^(attempt-1) between attempts, and stops early if the error
// classifies as non-retryable or the context is canceled. This is used by
// the orchestrator around an Agent's single invocation, not by agents
// internally (spec.md §4.9).
func RetryWithBackoff(ctx context.Context, maxAttempts int, fn func(ctx context.Context) model.AgentResult) model.AgentResult {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var last model.AgentResult
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		last = fn(ctx)
		if last.Status == model.AgentSuccess {
			return last
		}
		if !last.ErrorType.Retryable() {
			return last
		}
		if attempt == maxAttempts {
			break
		}

		delay := testBackoffBaseDelay * time.Duration(pow(backoffFactor, attempt))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
	return last
}

func pow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// ErrAgentNotFound is returned when a caller looks up an agent by name
// that the orchestrator's registry does not know about.
var ErrAgentNotFound = errors.New("agent: not found")
