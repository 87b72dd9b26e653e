// Package ingest watches the vault's Inbox folder and turns raw dropped
// files into Action records in Needs_Action (spec §4.3 "Ingestion").
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vaultflow/vaultflow/pkg/bus"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

// Watcher observes Inbox/ for new files and feeds them through Ingest.
// It is a Service (Name/Start/Stop/HealthCheck) so the orchestrator can
// register it alongside the workflow engine's other components.
type Watcher struct {
	root     *vault.Root
	workflow *workflow.Engine
	bus      *bus.Bus
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}

	lastEvent time.Time
	healthy   bool
}

// NewWatcher constructs a Watcher over the given vault root. wfEngine is
// the sole writer of the INBOX -> NEEDS_ACTION edge (spec §3 "Ownership");
// eventBus is used only for the diagnostic file.created notice, not for
// the action.generated transition itself (the engine publishes that).
func NewWatcher(root *vault.Root, wfEngine *workflow.Engine, eventBus *bus.Bus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, workflow: wfEngine, bus: eventBus, logger: logger.With("component", "ingest-watcher"), healthy: true}
}

func (w *Watcher) Name() string { return "inbox-watcher" }

// Start opens the fsnotify watch on Inbox/ and begins dispatching
// file.created events to the bus for every file already present plus
// every file that arrives afterward.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: create watcher: %w", err)
	}
	inbox := w.root.Dir(vault.Inbox)
	if err := fsw.Add(inbox); err != nil {
		fsw.Close()
		return fmt.Errorf("ingest: watch %s: %w", inbox, err)
	}
	w.fsw = fsw

	if err := w.scanExisting(inbox); err != nil {
		w.logger.Warn("ingest: initial inbox scan failed", "error", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
	w.logger.Info("ingest: watcher started", "path", inbox)
	return nil
}

func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done
	if w.fsw != nil {
		w.fsw.Close()
	}
	return nil
}

// HealthCheck reports unhealthy if the fsnotify event loop has exited
// unexpectedly (detected via the closed healthy flag set in run).
func (w *Watcher) HealthCheck(ctx context.Context) error {
	if !w.healthy {
		return fmt.Errorf("ingest: watch loop is not running")
	}
	return nil
}

func (w *Watcher) scanExisting(inbox string) error {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.handlePath(filepath.Join(inbox, e.Name()))
	}
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.healthy = false
				return
			}
			// A dropped file fires CREATE then one or more WRITE events as
			// data lands; handling both would admit the same file twice
			// before the first pass has archived it away (spec §3's "every
			// file traverses the pipeline at most once"). CREATE alone is
			// sufficient — it also fires for a rename into Inbox/, the
			// atomic-write-via-temp-file pattern most writers use.
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			w.handlePath(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.healthy = false
				return
			}
			w.logger.Error("ingest: watch error", "error", err)
		}
	}
}

func (w *Watcher) handlePath(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.lastEvent = time.Now()
	if w.bus != nil {
		w.bus.Publish(bus.NewEvent(bus.FileCreated, w.Name(), "", map[string]any{"path": path}))
	}
	if _, _, err := Ingest(context.Background(), w.workflow, w.root, path, w.logger); err != nil {
		w.logger.Error("ingest: processing inbox file failed", "path", path, "error", err)
	}
}

// LastEvent reports the time of the most recent file seen, for dashboard
// rendering via orchestrator.WatcherStatus.
func (w *Watcher) LastEvent() time.Time { return w.lastEvent }

// Ingest implements spec §4.3's ingestion algorithm for a single file
// already sitting in Inbox/: parse it into an Action and admit it to
// Needs_Action through wfEngine.Ingest, the INBOX -> NEEDS_ACTION matrix
// edge (spec §4.3 edge #1) — the same lock, audit-append, publish, and
// correlation-tracker steps as every other transition, rather than a
// second unaudited write path. Once the action record lands, the raw
// ingress file is moved to Archived under the same stem.
func Ingest(ctx context.Context, wfEngine *workflow.Engine, root *vault.Root, path string, logger *slog.Logger) (stem string, action *models.Action, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	stem = vault.NewStem()
	action = inferAction(raw)

	body, err := models.EncodeAction(action)
	if err != nil {
		return "", nil, fmt.Errorf("ingest: encode action: %w", err)
	}

	if _, err := wfEngine.Ingest(ctx, workflow.IngestRequest{
		Stem: stem, ActionBody: body, CorrelationID: stem, Actor: "ingest",
	}); err != nil {
		return "", nil, fmt.Errorf("ingest: admit to needs_action: %w", err)
	}

	archivePath := filepath.Join(root.Dir(vault.Archived), stem+filepath.Ext(path))
	if err := moveFile(path, archivePath); err != nil {
		logger.Error("ingest: archive raw ingress file failed", "path", path, "error", err)
	}

	logger.Info("ingest: action generated", "stem", stem, "type", action.Type, "source_file", filepath.Base(path))
	return stem, action, nil
}

// inferAction builds an Action record from raw inbox content. Content is
// treated as loose "key: value" lines (the minimal structured-input case
// spec §4.3's example exercises, e.g. a single "type: email_response"
// line); fields absent or unparseable fall back to their defaults, with
// type defaulting to "other" per spec.
func inferAction(raw []byte) *models.Action {
	fields := parseKeyValueLines(raw)

	a := &models.Action{
		ID:        vault.NewStem(),
		Type:      models.ActionOther,
		Priority:  models.PriorityMedium,
		CreatedAt: time.Now().UTC(),
		Source:    "inbox",
		Context:   map[string]string{},
	}

	if t, ok := fields["type"]; ok {
		if isKnownActionType(models.ActionType(t)) {
			a.Type = models.ActionType(t)
		}
	}
	if p, ok := fields["priority"]; ok {
		if isKnownPriority(models.Priority(p)) {
			a.Priority = models.Priority(p)
		}
	}
	if s, ok := fields["source"]; ok {
		a.Source = s
	}
	if d, ok := fields["estimated_duration_min"]; ok {
		var mins int
		if _, err := fmt.Sscanf(d, "%d", &mins); err == nil {
			a.EstimatedDurationMin = &mins
		}
	}
	for k, v := range fields {
		switch k {
		case "type", "priority", "source", "estimated_duration_min":
		default:
			a.Context[k] = v
		}
	}
	return a
}

func isKnownActionType(t models.ActionType) bool {
	switch t {
	case models.ActionEmailResponse, models.ActionMeetingRequest, models.ActionDocumentCreation,
		models.ActionDataAnalysis, models.ActionReportGeneration, models.ActionFollowUp, models.ActionOther:
		return true
	}
	return false
}

func isKnownPriority(p models.Priority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
		return true
	}
	return false
}

func moveFile(source, target string) error {
	tmp := target + ".tmp"
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	out.Sync()
	out.Close()
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(source)
}
