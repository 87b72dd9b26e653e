package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

// Engine is the sole writer to pipeline folders (spec §3 "Ownership"). It
// owns the two-level lock, the audit log handle, the bus, the correlation
// tracker, and the dead-letter queue, and exposes Transition as the single
// entry point every folder mutation goes through.
type Engine struct {
	root    *vault.Root
	audit   *audit.Log
	bus     *bus.Bus
	logger  *slog.Logger
	locks   *LockTable
	files   *FileLock
	tracker *CorrelationTracker
	dlq     *DeadLetterQueue
	retry   RetryPolicy

	lockTimeout time.Duration
	rng         *rand.Rand

	// entryMu/entered track which same-folder "entry" edges (e.g.
	// NEEDS_ACTION -> ACTION_PROCESSING) a stem has already completed. Those
	// edges move no file, so the target-exists check below can't reject a
	// second racer the way a folder-crossing edge does; this map is the
	// stand-in marker for "already entered".
	entryMu sync.Mutex
	entered map[string]map[State]bool
}

// Config bundles the engine's tunables (spec §6 configuration keys
// lock.timeout_ms, lock.stale_ms, retry.*).
type Config struct {
	LockTimeout    time.Duration
	LockStale      time.Duration
	Retry          RetryPolicy
}

// DefaultConfig matches spec §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout: 10 * time.Second,
		LockStale:   300 * time.Second,
		Retry:       DefaultRetryPolicy(),
	}
}

// New constructs an Engine bound to root, auditLog, and eventBus.
func New(root *vault.Root, auditLog *audit.Log, eventBus *bus.Bus, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		root:        root,
		audit:       auditLog,
		bus:         eventBus,
		logger:      logger,
		locks:       NewLockTable(),
		files:       NewFileLock(root, cfg.LockStale),
		tracker:     NewCorrelationTracker(root),
		dlq:         NewDeadLetterQueue(root),
		retry:       cfg.Retry,
		lockTimeout: cfg.LockTimeout,
		entered:     make(map[string]map[State]bool),
	}
}

// Tracker exposes the engine's correlation tracker. The orchestrator's
// startup and shutdown do not call the tracker's Reload or Snapshot, and
// the dashboard writer does not read it.
func (e *Engine) Tracker() *CorrelationTracker { return e.tracker }

// DeadLetterQueue exposes the engine's DLQ to CLI and operator commands.
func (e *Engine) DeadLetterQueue() *DeadLetterQueue { return e.dlq }

// TransitionRequest is the input to Transition (spec §4.3 "Transition
// contract").
type TransitionRequest struct {
	Stem          string
	Kind          vault.Kind
	From          State
	To            State
	CorrelationID string
	Actor         string
	Metadata      map[string]any
}

// TransitionResult is the output of Transition.
type TransitionResult struct {
	Success bool
	NewPath string
	Err     error
}

// Transition executes the nine-step algorithm in spec §4.3: acquire lock,
// validate edge, resolve source/target, atomic move, append audit, publish
// event, record correlation, release lock.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) TransitionResult {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	fileResult, err := e.files.Acquire(req.Stem)
	if err != nil {
		return e.fail(req, err)
	}
	defer e.files.Release(req.Stem)

	if fileResult.ReclaimedStale {
		e.appendAudit(auditAppend{
			eventType: "lock.stale", actor: "workflow", action: "reclaim",
			resource: "lock", resourceID: req.Stem, correlationID: req.CorrelationID,
		})
	}

	release, err := e.locks.acquire(lockCtx, req.Stem)
	if err != nil {
		return e.fail(req, err)
	}
	defer release()

	sourceState := req.From
	if req.From == Retry {
		if placed, ok := e.tracker.Get(req.CorrelationID); ok && len(placed.StateHistory) > 0 {
			sourceState = placed.StateHistory[len(placed.StateHistory)-1].From
		}
	}
	if !Valid(req.From, req.To, sourceState) {
		err := faults.New(faults.InvalidTransition, req.Stem, fmt.Sprintf("%s -> %s is not a listed edge", req.From, req.To))
		e.appendAudit(auditAppend{
			eventType: "transition.invalid", actor: req.Actor, action: "transition",
			resource: string(req.Kind), resourceID: req.Stem, correlationID: req.CorrelationID,
			details: map[string]any{"from": req.From, "to": req.To},
		})
		return e.fail(req, err)
	}

	source := e.root.FilePath(folderFor(req.From), req.Stem, req.Kind)
	target := e.root.FilePath(folderFor(req.To), req.Stem, req.Kind)

	if source == target {
		// From and To share a folder (e.g. NEEDS_ACTION -> ACTION_PROCESSING,
		// PENDING_APPROVAL -> APPROVAL_REVIEW): the file doesn't move, so
		// there's no target-exists check to reject a second racer the way a
		// folder-crossing edge gets for free. e.markEntered is the
		// corresponding guard: only the first caller to mark (stem, To)
		// proceeds, and later calls fail as an invalid repeat entry.
		if _, statErr := os.Stat(source); statErr != nil {
			return e.fail(req, faults.New(faults.FileNotFound, source, "source file missing at transition"))
		}
		if !e.markEntered(req.Stem, req.To) {
			return e.fail(req, faults.New(faults.TargetExists, source, "stem already entered this state"))
		}
	} else {
		if _, statErr := os.Stat(source); statErr != nil {
			return e.fail(req, faults.New(faults.FileNotFound, source, "source file missing at transition"))
		}
		if _, statErr := os.Stat(target); statErr == nil {
			return e.fail(req, faults.New(faults.TargetExists, target, "target already exists, refusing to overwrite"))
		}
		if err := e.moveWithRetry(req, source, target); err != nil {
			return e.fail(req, err)
		}
	}

	e.appendAudit(auditAppend{
		eventType: "transition.completed", actor: req.Actor, action: "transition",
		resource: string(req.Kind), resourceID: req.Stem, correlationID: req.CorrelationID,
		details: map[string]any{"from": req.From, "to": req.To, "metadata": req.Metadata},
	})

	e.publish(EventTypeFor(req.From, req.To), req)

	e.tracker.Record(req.CorrelationID, "", "", StateTransitionRecord{
		From: req.From, To: req.To, Timestamp: time.Now().UTC(), Success: true,
	})

	return TransitionResult{Success: true, NewPath: target}
}

// moveWithRetry runs atomicMove, and on a Retryable fault (spec §7's
// LockTimeout/MoveFailed recovery column) retries with RetryPolicy backoff
// before giving up — spec.md:113's "transitions tagged retryable fail into
// RETRY". Each attempt after the first is recorded as a RETRY entry in the
// audit log and correlation tracker; RETRY moves no file of its own (it
// shares FAILED's folder per folderFor, and the file in question never left
// source), so re-attempting atomicMove against the same source/target is
// the entire "retry" action. Once the policy's attempt budget is exhausted
// the source file is admitted to the dead-letter queue and the original
// error is returned.
func (e *Engine) moveWithRetry(req TransitionRequest, source, target string) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = atomicMove(source, target)
		if lastErr == nil {
			return nil
		}
		if !faults.KindOf(lastErr).Retryable() {
			return lastErr
		}
		if e.retry.Exhausted(attempt + 1) {
			break
		}
		e.appendAudit(auditAppend{
			eventType: "transition.retry", actor: req.Actor, action: "transition",
			resource: string(req.Kind), resourceID: req.Stem, correlationID: req.CorrelationID,
			details: map[string]any{"from": req.From, "to": req.To, "attempt": attempt, "error": lastErr.Error()},
		})
		e.tracker.Record(req.CorrelationID, "", "", StateTransitionRecord{
			From: req.From, To: Retry, Timestamp: time.Now().UTC(), Success: false, Error: lastErr.Error(),
		})
		time.Sleep(e.retry.Delay(attempt, e.rng))
	}

	e.appendAudit(auditAppend{
		eventType: "transition.retry_exhausted", actor: req.Actor, action: "transition",
		resource: string(req.Kind), resourceID: req.Stem, correlationID: req.CorrelationID,
		details: map[string]any{"from": req.From, "to": req.To, "error": lastErr.Error()},
	})
	if _, statErr := os.Stat(source); statErr == nil {
		dlqErr := e.dlq.Admit(source, models.DLQEntry{
			OriginalPath:  source,
			SourceState:   string(req.From),
			Error:         lastErr.Error(),
			CorrelationID: req.CorrelationID,
		})
		if dlqErr != nil {
			e.logger.Error("workflow: dead-letter admission after retry exhaustion failed", "stem", req.Stem, "error", dlqErr)
		}
	}
	e.tracker.Record(req.CorrelationID, "", "", StateTransitionRecord{
		From: Retry, To: DeadLetter, Timestamp: time.Now().UTC(), Success: true,
	})
	return lastErr
}

// IngestRequest is the input to Ingest: a freshly synthesized action
// record with no pre-existing file anywhere in the vault.
type IngestRequest struct {
	Stem          string
	ActionBody    []byte
	CorrelationID string
	Actor         string
}

// Ingest admits a raw Inbox file into the workflow as the INBOX ->
// NEEDS_ACTION edge (spec §4.3 matrix edge #1). The raw file has no Kind
// of its own — it is replaced by a synthesized action record — so unlike
// Transition there is no source file to move; Ingest instead writes the
// new action file straight into its target folder under the same lock,
// audit, publish, and correlation-tracker discipline Transition applies
// to every other edge, so this hop is never silently unaudited.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (target string, err error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	fileResult, err := e.files.Acquire(req.Stem)
	if err != nil {
		return "", err
	}
	defer e.files.Release(req.Stem)

	if fileResult.ReclaimedStale {
		e.appendAudit(auditAppend{
			eventType: "lock.stale", actor: "ingest", action: "reclaim",
			resource: "lock", resourceID: req.Stem, correlationID: req.CorrelationID,
		})
	}

	release, err := e.locks.acquire(lockCtx, req.Stem)
	if err != nil {
		return "", err
	}
	defer release()

	if !Valid(Inbox, NeedsAction, "") {
		return "", faults.New(faults.InvalidTransition, req.Stem, "INBOX -> NEEDS_ACTION is not a listed edge")
	}

	target = e.root.FilePath(folderFor(NeedsAction), req.Stem, vault.KindAction)
	if _, statErr := os.Stat(target); statErr == nil {
		return "", faults.New(faults.TargetExists, target, "target already exists, refusing to overwrite")
	}

	if err := writeAtomicFile(target, req.ActionBody); err != nil {
		return "", err
	}

	e.appendAudit(auditAppend{
		eventType: "transition.completed", actor: req.Actor, action: "transition",
		resource: string(vault.KindAction), resourceID: req.Stem, correlationID: req.CorrelationID,
		details: map[string]any{"from": Inbox, "to": NeedsAction},
	})

	e.publish(EventTypeFor(Inbox, NeedsAction), TransitionRequest{
		Stem: req.Stem, From: Inbox, To: NeedsAction, CorrelationID: req.CorrelationID,
	})

	e.tracker.Record(req.CorrelationID, "", "", StateTransitionRecord{
		From: Inbox, To: NeedsAction, Timestamp: time.Now().UTC(), Success: true,
	})

	return target, nil
}

// markEntered records the first (and only the first) entry of stem into
// state, returning false for every subsequent call — the same-folder
// counterpart to a folder-crossing edge's target-exists check.
func (e *Engine) markEntered(stem string, state State) bool {
	e.entryMu.Lock()
	defer e.entryMu.Unlock()
	states, ok := e.entered[stem]
	if !ok {
		states = make(map[State]bool)
		e.entered[stem] = states
	}
	if states[state] {
		return false
	}
	states[state] = true
	return true
}

func (e *Engine) fail(req TransitionRequest, err error) TransitionResult {
	e.tracker.Record(req.CorrelationID, "", "", StateTransitionRecord{
		From: req.From, To: req.To, Timestamp: time.Now().UTC(), Success: false, Error: err.Error(),
	})
	kind := faults.KindOf(err)
	e.logger.Warn("workflow: transition failed", "stem", req.Stem, "from", req.From, "to", req.To, "kind", kind, "error", err)
	return TransitionResult{Success: false, Err: err}
}

type auditAppend struct {
	eventType     string
	actor         string
	action        string
	resource      string
	resourceID    string
	correlationID string
	details       map[string]any
}

func (e *Engine) appendAudit(a auditAppend) {
	if e.audit == nil {
		return
	}
	_, err := e.audit.Append(audit.AppendInput{
		EventType:     a.eventType,
		Actor:         a.actor,
		Action:        a.action,
		Resource:      a.resource,
		ResourceID:    a.resourceID,
		CorrelationID: a.correlationID,
		Details:       a.details,
	})
	if err != nil {
		e.logger.Error("workflow: audit append failed", "event_type", a.eventType, "error", err)
	}
}

func (e *Engine) publish(eventType string, req TransitionRequest) {
	if e.bus == nil {
		return
	}
	evt := bus.NewEvent(bus.EventType(eventType), "workflow", req.CorrelationID, map[string]any{
		"stem": req.Stem, "from": string(req.From), "to": string(req.To),
	})
	if err := e.bus.Publish(evt); err != nil {
		e.logger.Error("workflow: publish failed", "event_type", eventType, "error", err)
	}
}
