package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

// WatcherStatus is a snapshot of one ingestion watcher's health, rendered
// verbatim into the dashboard.
type WatcherStatus struct {
	Name      string
	Healthy   bool
	LastEvent time.Time
}

// DashboardWriter is a Service of its own (spec §4.6 "Dashboard writer is
// a service of its own"): every interval it snapshots folder counts, the
// recent audit tail, and watcher states, and writes Dashboard.md via the
// same atomic-write primitive used elsewhere in the vault.
type DashboardWriter struct {
	root     *vault.Root
	auditLog *audit.Log
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	watchers []WatcherStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDashboardWriter constructs a DashboardWriter (spec §6
// dashboard.interval_ms, default 30000).
func NewDashboardWriter(root *vault.Root, auditLog *audit.Log, interval time.Duration, logger *slog.Logger) *DashboardWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardWriter{root: root, auditLog: auditLog, interval: interval, logger: logger}
}

func (d *DashboardWriter) Name() string { return "dashboard" }

// SetWatchers updates the watcher states rendered on the next tick.
func (d *DashboardWriter) SetWatchers(watchers []WatcherStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers = watchers
}

func (d *DashboardWriter) Start(ctx context.Context) error {
	if d.cancel != nil {
		return nil
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.run(ctx)
	return nil
}

func (d *DashboardWriter) Stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()
	<-d.done
	return nil
}

// HealthCheck always reports healthy: the dashboard writer logs and
// swallows its own write failures rather than treating them as a
// service-level outage, since a stale snapshot is cosmetic, not a vault
// integrity issue.
func (d *DashboardWriter) HealthCheck(ctx context.Context) error { return nil }

func (d *DashboardWriter) run(ctx context.Context) {
	defer close(d.done)
	d.writeOnce()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.writeOnce()
		}
	}
}

func (d *DashboardWriter) writeOnce() {
	content, err := d.render()
	if err != nil {
		d.logger.Error("dashboard: render failed", "error", err)
		return
	}
	if err := d.writeAtomic(content); err != nil {
		d.logger.Error("dashboard: write failed", "error", err)
	}
}

func (d *DashboardWriter) render() (string, error) {
	var b strings.Builder
	b.WriteString("# Vault Dashboard\n\n")
	fmt.Fprintf(&b, "_Generated %s_\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Folder counts\n\n")
	for _, f := range vault.AllFolders() {
		count := countFiles(d.root.Dir(f))
		fmt.Fprintf(&b, "- %s: %s\n", f, humanize.Comma(int64(count)))
	}

	b.WriteString("\n## Watchers\n\n")
	d.mu.Lock()
	watchers := append([]WatcherStatus{}, d.watchers...)
	d.mu.Unlock()
	if len(watchers) == 0 {
		b.WriteString("_none registered_\n")
	}
	for _, w := range watchers {
		status := "healthy"
		if !w.Healthy {
			status = "unhealthy"
		}
		fmt.Fprintf(&b, "- %s: %s (last event %s)\n", w.Name, status, humanize.Time(w.LastEvent))
	}

	b.WriteString("\n## Recent audit tail (last 20)\n\n")
	if d.auditLog != nil {
		entries, err := d.auditLog.Query(audit.Filter{Limit: 0})
		if err != nil {
			return "", err
		}
		tail := entries
		if len(tail) > 20 {
			tail = tail[len(tail)-20:]
		}
		for _, e := range tail {
			fmt.Fprintf(&b, "- [%s] seq=%d %s actor=%s resource=%s/%s\n",
				e.Timestamp.Format(time.RFC3339), e.Seq, e.EventType, e.Actor, e.Resource, e.ResourceID)
		}
	}

	return b.String(), nil
}

func (d *DashboardWriter) writeAtomic(content string) error {
	path := filepath.Join(d.root.Path(), "Dashboard.md")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}
