package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vaultflow/vaultflow/pkg/vault"
)

// StateTransitionRecord is one entry in a WorkflowContext's state history.
type StateTransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// WorkflowContext is the per-correlation-id record maintained by the
// CorrelationTracker (spec §4.3 "Correlation tracker").
type WorkflowContext struct {
	CorrelationID string                   `json:"correlation_id"`
	ActionID      string                   `json:"action_id"`
	PlanID        string                   `json:"plan_id"`
	StateHistory  []StateTransitionRecord  `json:"state_history"`
}

// CorrelationTracker indexes correlation_id → WorkflowContext in memory.
// It is one of the three pieces of shared mutable state called out in
// spec §4.5, each protected by a single lock.
type CorrelationTracker struct {
	mu       sync.Mutex
	contexts map[string]*WorkflowContext
	root     *vault.Root
}

// NewCorrelationTracker constructs an empty tracker bound to root (used for
// snapshot persistence).
func NewCorrelationTracker(root *vault.Root) *CorrelationTracker {
	return &CorrelationTracker{
		contexts: make(map[string]*WorkflowContext),
		root:     root,
	}
}

// Record appends a transition to the named correlation id's history,
// creating the context if it doesn't exist yet.
func (t *CorrelationTracker) Record(correlationID, actionID, planID string, rec StateTransitionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.contexts[correlationID]
	if !ok {
		ctx = &WorkflowContext{CorrelationID: correlationID}
		t.contexts[correlationID] = ctx
	}
	if actionID != "" {
		ctx.ActionID = actionID
	}
	if planID != "" {
		ctx.PlanID = planID
	}
	ctx.StateHistory = append(ctx.StateHistory, rec)
}

// Get returns a copy of the context for correlationID, if tracked.
func (t *CorrelationTracker) Get(correlationID string) (WorkflowContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.contexts[correlationID]
	if !ok {
		return WorkflowContext{}, false
	}
	return *ctx, true
}

// openContextsPath is the file Snapshot writes open contexts to and Reload
// reads them back from (System_Log/open_contexts.json).
func (t *CorrelationTracker) openContextsPath() string {
	return filepath.Join(t.root.Dir(vault.SystemLog), "open_contexts.json")
}

// Snapshot persists every tracked context not already in a terminal state
// to disk.
func (t *CorrelationTracker) Snapshot() error {
	t.mu.Lock()
	open := make([]*WorkflowContext, 0, len(t.contexts))
	for _, ctx := range t.contexts {
		if len(ctx.StateHistory) == 0 {
			continue
		}
		last := ctx.StateHistory[len(ctx.StateHistory)-1]
		if IsTerminal(last.To) {
			continue
		}
		open = append(open, ctx)
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(open, "", "  ")
	if err != nil {
		return fmt.Errorf("workflow: marshal open contexts: %w", err)
	}

	path := t.openContextsPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("workflow: write open contexts: %w", err)
	}
	return os.Rename(tmp, path)
}

// Reload restores tracked contexts from the snapshot written by the prior
// shutdown, if any.
func (t *CorrelationTracker) Reload() error {
	data, err := os.ReadFile(t.openContextsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("workflow: read open contexts: %w", err)
	}

	var contexts []*WorkflowContext
	if err := json.Unmarshal(data, &contexts); err != nil {
		return fmt.Errorf("workflow: parse open contexts: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ctx := range contexts {
		t.contexts[ctx.CorrelationID] = ctx
	}
	return nil
}

// RebuildFromScan returns the folder each stem currently sits in, found by
// scanning the non-terminal folders. It does not populate a
// CorrelationTracker, and engine startup does not call it.
func RebuildFromScan(root *vault.Root) (map[string]vault.Folder, error) {
	nonTerminal := []vault.Folder{
		vault.Inbox, vault.NeedsAction, vault.Plans, vault.PendingApproval,
		vault.Approved, vault.Failed,
	}

	placement := make(map[string]vault.Folder)
	for _, folder := range nonTerminal {
		entries, err := os.ReadDir(root.Dir(folder))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("workflow: scan %s: %w", folder, err)
		}
		for _, e := range entries {
			stem, _, ok := vault.ParseStem(e.Name())
			if !ok {
				continue
			}
			placement[stem] = folder
		}
	}
	return placement, nil
}
