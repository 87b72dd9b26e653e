package execution

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vaultflow/vaultflow/pkg/adapters"
	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

// Config tunes one Engine (spec §6 execution.mode, execution.rollback_strategy).
type Config struct {
	Mode             Mode
	RollbackStrategy RollbackStrategy
	StepTimeout      time.Duration
	Retry            workflow.RetryPolicy
}

// DefaultConfig matches spec §4.5's documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:             DryRun,
		RollbackStrategy: Automatic,
		StepTimeout:      120 * time.Second,
		Retry:            workflow.DefaultRetryPolicy(),
	}
}

// Engine runs a Plan's steps under one of the three modes, maintaining a
// LIFO rollback stack and invoking compensations per the configured
// strategy (spec §4.5).
type Engine struct {
	cfg     Config
	audit   *audit.Log
	bus     *bus.Bus
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
}

// New constructs an Engine. REAL-mode adapter calls are wrapped in a
// circuit breaker so a persistently failing external adapter trips open
// instead of being hammered on every plan (spec §4.5 invokes the step's
// adapter; the breaker is this engine's defense around that call).
func New(cfg Config, auditLog *audit.Log, eventBus *bus.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "execution.step_adapter",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Engine{cfg: cfg, audit: auditLog, bus: eventBus, logger: logger, breaker: breaker}
}

// Outcome is the result of running an entire plan.
type Outcome struct {
	Results     []StepResult
	Success     bool
	Compensated bool
	Err         error
}

// RunPlan executes plan's steps in order under the engine's configured
// mode, applying the configured rollback strategy on the first failure
// (spec §4.5 "Outcome").
func (e *Engine) RunPlan(ctx context.Context, plan *models.Plan, executor adapters.StepExecutor, correlationID string) Outcome {
	stack := &rollbackStack{}
	results := make([]StepResult, 0, len(plan.Steps))

	for _, step := range plan.Steps {
		result := e.runStep(ctx, step, executor, correlationID)
		results = append(results, result)

		if result.Status == StepSucceeded {
			stack.push(step, result.RollbackToken)
			continue
		}

		compensated := false
		switch e.cfg.RollbackStrategy {
		case Automatic:
			compensated = e.rollbackAll(ctx, stack, executor, correlationID)
		case Manual:
			e.appendAudit("rollback.paused", correlationID, step.Index, map[string]any{"stack_depth": stack.len()})
		case None:
			// fire-and-forget: nothing is undone.
		}

		return Outcome{Results: results, Success: false, Compensated: compensated, Err: faults.New(faults.StepFailed, plan.ID, result.Error)}
	}

	return Outcome{Results: results, Success: true}
}

func (e *Engine) runStep(ctx context.Context, step models.Step, executor adapters.StepExecutor, correlationID string) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	start := time.Now()
	result := StepResult{Index: step.Index, Status: StepRunning, Step: step}

	var lastErr error
	for attempt := 0; ; attempt++ {
		token, err := e.invoke(stepCtx, step, executor)
		if err == nil {
			result.Status = StepSucceeded
			result.RollbackToken = token
			result.DurationMs = time.Since(start).Milliseconds()
			e.appendAudit("step.succeeded", correlationID, step.Index, map[string]any{"attempts": attempt + 1})
			e.publish("step.succeeded", correlationID, step.Index)
			return result
		}
		lastErr = err

		if stepCtx.Err() != nil {
			e.appendAudit("step.failed", correlationID, step.Index, map[string]any{"error": "timeout", "attempt": attempt + 1})
			result.Status = StepFailed
			result.Error = "timeout"
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}

		e.appendAudit("step.failed", correlationID, step.Index, map[string]any{"error": err.Error(), "attempt": attempt + 1})
		if e.cfg.Retry.Exhausted(attempt + 1) {
			break
		}
		delay := e.cfg.Retry.Delay(attempt, rand.New(rand.NewSource(time.Now().UnixNano())))
		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			result.Status = StepFailed
			result.Error = "timeout"
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}
	}

	result.Status = StepFailed
	result.Error = lastErr.Error()
	result.DurationMs = time.Since(start).Milliseconds()
	e.publish("step.failed", correlationID, step.Index)
	return result
}

// invoke dispatches a single attempt per the engine's mode.
func (e *Engine) invoke(ctx context.Context, step models.Step, executor adapters.StepExecutor) (string, error) {
	switch e.cfg.Mode {
	case DryRun:
		e.logger.Info("execution: would execute step", "index", step.Index, "kind", step.Kind)
		return "", nil
	case Simulated:
		ms := 100
		if v, ok := step.Params["simulated_ms"].(int); ok {
			ms = v
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case Real:
		if executor == nil {
			return "", faults.New(faults.StepFailed, string(step.Kind), "no step executor configured")
		}
		result, err := e.breaker.Execute(func() (interface{}, error) {
			return executor.Execute(ctx, step)
		})
		if err != nil {
			return "", err
		}
		return result.(adapters.StepResult).RollbackToken, nil
	default:
		return "", faults.New(faults.SchemaInvalid, string(step.Kind), "unknown execution mode")
	}
}

// rollbackAll pops and invokes compensations in reverse order (spec §4.5
// "AUTOMATIC: on any step failure, pop and invoke compensations in
// reverse"). Returns true if every reversible step compensated cleanly.
func (e *Engine) rollbackAll(ctx context.Context, stack *rollbackStack, executor adapters.StepExecutor, correlationID string) bool {
	allOK := true
	for {
		frame, ok := stack.pop()
		if !ok {
			break
		}
		if !frame.step.Reversible {
			e.appendAudit("rollback.not_supported", correlationID, frame.step.Index, nil)
			continue
		}
		if e.cfg.Mode == Real {
			if err := executor.Rollback(ctx, frame.step, adapters.StepResult{RollbackToken: frame.token}); err != nil {
				e.appendAudit("rollback.failed", correlationID, frame.step.Index, map[string]any{"error": err.Error()})
				allOK = false
				continue
			}
		}
		e.appendAudit("rollback.completed", correlationID, frame.step.Index, nil)
	}
	return allOK
}

func (e *Engine) appendAudit(eventType, correlationID string, stepIndex int, details map[string]any) {
	if e.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["step_index"] = stepIndex
	if _, err := e.audit.Append(audit.AppendInput{
		EventType: eventType, Actor: "execution", Action: "step",
		Resource: "step", CorrelationID: correlationID, Details: details,
	}); err != nil {
		e.logger.Error("execution: audit append failed", "event_type", eventType, "error", err)
	}
}

func (e *Engine) publish(eventType, correlationID string, stepIndex int) {
	if e.bus == nil {
		return
	}
	var busEventType bus.EventType
	switch eventType {
	case "step.succeeded":
		return
	case "step.failed":
		busEventType = bus.ActionFailed
	default:
		return
	}
	evt := bus.NewEvent(busEventType, "execution", correlationID, map[string]any{"step_index": stepIndex})
	if err := e.bus.Publish(evt); err != nil {
		e.logger.Error("execution: publish failed", "event_type", eventType, "error", err)
	}
}
