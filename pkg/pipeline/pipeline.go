// Package pipeline drives an Action from Needs_Action through to a
// terminal state: plan generation, approval evaluation, and (once
// approved) execution, per spec §2's data-flow summary and §4.3-§4.5's
// per-stage contracts. The processor is the one component that calls
// across workflow, approval, and execution rather than any of those
// packages reaching into each other directly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vaultflow/vaultflow/pkg/adapters"
	"github.com/vaultflow/vaultflow/pkg/approval"
	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/execution"
	"github.com/vaultflow/vaultflow/pkg/metrics"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/notify"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

// Processor subscribes to action.generated and carries each action
// through plan generation, approval, and execution. It satisfies the
// orchestrator's Service interface so it starts and stops alongside the
// rest of the vault's services.
type Processor struct {
	root      *vault.Root
	workflow  *workflow.Engine
	approval  *approval.Engine
	execution *execution.Engine
	bus       *bus.Bus
	audit     *audit.Log
	notifier  notify.Notifier
	planGen   adapters.PlanGenerator
	executor  adapters.StepExecutor
	metrics   *metrics.Metrics
	logger    *slog.Logger

	queueCapacity int
	subID         string
}

// New constructs a Processor. planGen and executor may be nil: with no
// PlanGenerator configured, an action that reaches Needs_Action is
// dead-lettered instead of silently stalling; with no StepExecutor
// configured, REAL-mode steps fail and are handled like any other step
// failure (spec §4.5's rollback strategy still applies). queueCapacity is
// the subscriber queue depth for the action.generated subscription (spec
// §6 "bus.subscriber_queue"); <= 0 selects the bus's own default.
func New(
	root *vault.Root,
	workflowEngine *workflow.Engine,
	approvalEngine *approval.Engine,
	executionEngine *execution.Engine,
	eventBus *bus.Bus,
	auditLog *audit.Log,
	notifier notify.Notifier,
	planGen adapters.PlanGenerator,
	executor adapters.StepExecutor,
	m *metrics.Metrics,
	logger *slog.Logger,
	queueCapacity int,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Processor{
		root: root, workflow: workflowEngine, approval: approvalEngine,
		execution: executionEngine, bus: eventBus, audit: auditLog,
		notifier: notifier, planGen: planGen, executor: executor,
		metrics: m, logger: logger, queueCapacity: queueCapacity,
	}
}

// Name identifies this service in the orchestrator's registry and logs.
func (p *Processor) Name() string { return "processor" }

// Start subscribes to action.generated. Each matching event is handled
// synchronously on the bus's delivery goroutine (spec §4.1 subscriber
// queues already provide the buffering a slow handler needs).
func (p *Processor) Start(ctx context.Context) error {
	id, err := p.bus.Subscribe(bus.ActionGenerated, p.handleActionGenerated, bus.SubscribeOptions{
		QueueCapacity: p.queueCapacity,
	})
	if err != nil {
		return fmt.Errorf("pipeline: subscribe: %w", err)
	}
	p.subID = id
	return nil
}

// Stop unsubscribes from the bus.
func (p *Processor) Stop(ctx context.Context) error {
	if p.subID != "" {
		p.bus.Unsubscribe(bus.ActionGenerated, p.subID)
	}
	return nil
}

// HealthCheck always succeeds: the processor has no standing resource to
// probe beyond the bus subscription, which Start either holds or doesn't.
func (p *Processor) HealthCheck(ctx context.Context) error { return nil }

func (p *Processor) handleActionGenerated(e *bus.Event) error {
	stem, _ := e.Payload["stem"].(string)
	if stem == "" {
		stem = e.CorrelationID
	}
	if stem == "" {
		p.logger.Warn("pipeline: action.generated event missing stem", "event_id", e.EventID)
		return nil
	}
	ctx := context.Background()
	p.processAction(ctx, stem, e.CorrelationID)
	return nil
}

// ProcessAction runs one Needs_Action stem through plan generation and
// approval evaluation directly, bypassing the bus. Exported for callers
// that admit an action outside the normal action.generated flow (the
// approval CLI's test harness today; a future direct-admission adapter
// could use it too).
func (p *Processor) ProcessAction(ctx context.Context, stem, correlationID string) {
	p.processAction(ctx, stem, correlationID)
}

// processAction runs one action through plan generation and approval
// evaluation, admitting it to the dead-letter queue on any hard failure
// along the way (spec §4.3 "Dead-letter admission").
func (p *Processor) processAction(ctx context.Context, stem, correlationID string) {
	entry := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.NeedsAction, To: workflow.ActionProcessing,
		CorrelationID: correlationID, Actor: "pipeline",
	})
	if !entry.Success {
		p.logger.Error("pipeline: entry transition to ACTION_PROCESSING failed", "stem", stem, "error", entry.Err)
		return
	}

	actionPath := p.root.FilePath(vault.NeedsAction, stem, vault.KindAction)
	raw, err := os.ReadFile(actionPath)
	if err != nil {
		p.logger.Error("pipeline: read action failed", "stem", stem, "error", err)
		return
	}
	action, err := models.DecodeAction(raw)
	if err != nil {
		p.deadLetter(actionPath, stem, correlationID, "action decode failed", err)
		return
	}

	if p.planGen == nil {
		p.deadLetter(actionPath, stem, correlationID, "no plan generator configured", nil)
		return
	}
	plan, err := p.planGen.GeneratePlan(ctx, action)
	if err != nil {
		p.deadLetter(actionPath, stem, correlationID, "plan generation failed", err)
		return
	}
	plan.ActionID = action.ID
	plan.CorrelationID = correlationID
	plan.Status = models.PlanPlanned

	result := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.ActionProcessing, To: workflow.Plans,
		CorrelationID: correlationID, Actor: "pipeline",
	})
	if !result.Success {
		p.logger.Error("pipeline: transition to PLANS failed", "stem", stem, "error", result.Err)
		return
	}

	if err := p.writeSibling(vault.Plans, stem, vault.KindPlan, plan); err != nil {
		p.logger.Error("pipeline: writing plan file failed", "stem", stem, "error", err)
		return
	}

	p.evaluateApproval(ctx, stem, correlationID, action, plan)
}

func (p *Processor) evaluateApproval(ctx context.Context, stem, correlationID string, action *models.Action, plan *models.Plan) {
	evalResult := p.approval.Evaluate(approval.Context{
		ActionType: action.Type, Priority: action.Priority,
		DurationMin: action.Duration(), Source: action.Source,
	})
	if p.metrics != nil {
		p.metrics.ApprovalDecisionsTotal.WithLabelValues(string(evalResult.Decision), string(evalResult.RiskLevel)).Inc()
	}

	appr := &models.Approval{
		ID: stem, ActionID: action.ID, PlanID: plan.ID,
		Decision: evalResult.Decision, Reason: evalResult.Reason,
		RequestedAt: plan.CreatedAt, RiskLevel: evalResult.RiskLevel,
	}

	switch evalResult.Decision {
	case models.DecisionAutoApprove:
		result := p.workflow.Transition(ctx, workflow.TransitionRequest{
			Stem: stem, Kind: vault.KindAction, From: workflow.Plans, To: workflow.ExecutionPending,
			CorrelationID: correlationID, Actor: "approval-engine",
		})
		if !result.Success {
			p.logger.Error("pipeline: auto-approve transition failed", "stem", stem, "error", result.Err)
			return
		}
		// ExecutionPending lands in the same Approved folder Executed
		// targets, so runExecution's final Transition(Executed->Done)
		// finds the file exactly where this hop left it.
		p.runExecution(ctx, stem, correlationID, plan)

	case models.DecisionAutoReject:
		result := p.workflow.Transition(ctx, workflow.TransitionRequest{
			Stem: stem, Kind: vault.KindAction, From: workflow.Plans, To: workflow.Failed,
			CorrelationID: correlationID, Actor: "approval-engine", Metadata: map[string]any{"reason": evalResult.Reason},
		})
		if !result.Success {
			p.logger.Error("pipeline: auto-reject transition failed", "stem", stem, "error", result.Err)
		}

	default: // require_approval, escalate
		result := p.workflow.Transition(ctx, workflow.TransitionRequest{
			Stem: stem, Kind: vault.KindAction, From: workflow.Plans, To: workflow.PendingApproval,
			CorrelationID: correlationID, Actor: "approval-engine",
		})
		if !result.Success {
			p.logger.Error("pipeline: pending-approval transition failed", "stem", stem, "error", result.Err)
			return
		}
		if err := p.writeSibling(vault.PendingApproval, stem, vault.KindApproval, appr); err != nil {
			p.logger.Error("pipeline: writing approval file failed", "stem", stem, "error", err)
			return
		}
		if evalResult.Decision == models.DecisionEscalate {
			p.escalate(ctx, correlationID, stem, action, evalResult)
		}
	}
}

func (p *Processor) escalate(ctx context.Context, correlationID, stem string, action *models.Action, r approval.Result) {
	err := p.notifier.Notify(ctx, notify.Escalation{
		CorrelationID: correlationID, ActionID: action.ID,
		ActionType: string(action.Type), RiskLevel: string(r.RiskLevel), Reason: r.Reason,
	})
	if err != nil {
		p.logger.Warn("pipeline: escalation notify failed", "stem", stem, "error", err)
	}
}

// RunApproved is invoked once a pending approval is resolved in the
// operator's favor (spec §4.4 human path) — by the CLI's
// `approval approve` command — to move an action into execution. It is
// exported so pkg/cli can drive it directly. EXECUTING and EXECUTED are
// transient states with no standing folder of their own (both resolve to
// the Approved folder per workflow.folderFor), so only the folder-crossing
// hops — into Approved and, at the end, out to Done/Failed — go through
// Transition; running the plan in between needs no transition of its own.
func (p *Processor) RunApproved(ctx context.Context, stem, correlationID string, plan *models.Plan) {
	result := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.ApprovalReview, To: workflow.Approved,
		CorrelationID: correlationID, Actor: "operator",
	})
	if !result.Success {
		p.logger.Error("pipeline: approve transition failed", "stem", stem, "error", result.Err)
		return
	}
	p.runExecution(ctx, stem, correlationID, plan)
}

// RunRejected is invoked when an operator rejects a pending approval.
func (p *Processor) RunRejected(ctx context.Context, stem, correlationID string) {
	result := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.ApprovalReview, To: workflow.Rejected,
		CorrelationID: correlationID, Actor: "operator",
	})
	if !result.Success {
		p.logger.Error("pipeline: reject transition failed", "stem", stem, "error", result.Err)
		return
	}
	p.archive(ctx, stem, correlationID, workflow.Rejected)
}

func (p *Processor) runExecution(ctx context.Context, stem, correlationID string, plan *models.Plan) {
	outcome := p.execution.RunPlan(ctx, plan, p.executor, correlationID)

	to := workflow.Done
	if !outcome.Success {
		to = workflow.Failed
	}
	final := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: workflow.Executed, To: to,
		CorrelationID: correlationID, Actor: "execution-engine",
	})
	if !final.Success {
		p.logger.Error("pipeline: terminal transition failed", "stem", stem, "to", to, "error", final.Err)
		return
	}
	if to == workflow.Done {
		p.archive(ctx, stem, correlationID, workflow.Done)
	}
}

// archive completes the DONE -> ARCHIVED or REJECTED -> ARCHIVED matrix
// edge (workflow/state.go's Done and Rejected rows) immediately after a
// stem reaches one of those terminal states, so finished actions don't
// rest in Done/ or Failed/ (Rejected's folder) indefinitely — only
// retention's age-based purge ever touches Archived/.
func (p *Processor) archive(ctx context.Context, stem, correlationID string, from workflow.State) {
	result := p.workflow.Transition(ctx, workflow.TransitionRequest{
		Stem: stem, Kind: vault.KindAction, From: from, To: workflow.Archived,
		CorrelationID: correlationID, Actor: "pipeline",
	})
	if !result.Success {
		p.logger.Error("pipeline: archive transition failed", "stem", stem, "from", from, "error", result.Err)
	}
}

// deadLetter admits an action to the dead-letter queue and logs why.
func (p *Processor) deadLetter(actionPath, stem, correlationID, reason string, cause error) {
	p.logger.Error("pipeline: dead-lettering action", "stem", stem, "reason", reason, "error", cause)
	errText := reason
	if cause != nil {
		errText = reason + ": " + cause.Error()
	}
	entry := models.DLQEntry{
		OriginalPath:  actionPath,
		SourceState:   string(workflow.NeedsAction),
		Error:         errText,
		CorrelationID: correlationID,
	}
	if err := p.workflow.DeadLetterQueue().Admit(actionPath, entry); err != nil {
		p.logger.Error("pipeline: dlq admit failed", "stem", stem, "error", err)
	}
}

// writeSibling writes a correlated plan/approval artifact alongside an
// action file that engine.Transition has already relocated into folder.
// It does not go through Transition itself: Transition's job is moving
// the canonical action record between folders and emitting the one audit
// entry per hop; sibling artifacts are supplementary documents created
// fresh at each stage, the same way ingest.Ingest writes the initial
// action file directly rather than through the state machine.
func (p *Processor) writeSibling(folder vault.Folder, stem string, kind vault.Kind, v any) error {
	var data []byte
	var err error
	switch kind {
	case vault.KindPlan:
		data, err = models.EncodePlan(v.(*models.Plan))
	case vault.KindApproval:
		data, err = models.EncodeApproval(v.(*models.Approval))
	default:
		return fmt.Errorf("pipeline: unsupported sibling kind %q", kind)
	}
	if err != nil {
		return err
	}
	path := p.root.FilePath(folder, stem, kind)
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_RDWR, 0o644)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	syncErr := f.Sync()
	f.Close()
	if syncErr != nil {
		os.Remove(tmp)
		return syncErr
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
