package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
)

// Config tunes Orchestrator (spec §6 health.interval_ms, health.timeout_ms,
// plus the 10s bus-drain deadline from spec §4.6).
type Config struct {
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	DrainDeadline  time.Duration
}

// DefaultConfig matches spec §6/§4.6's documented defaults.
func DefaultConfig() Config {
	return Config{
		HealthInterval: 30 * time.Second,
		HealthTimeout:  5 * time.Second,
		DrainDeadline:  10 * time.Second,
	}
}

// Orchestrator owns the service registry, the health monitor, and the
// signal-driven shutdown sequence (spec §4.6).
type Orchestrator struct {
	registry *Registry
	health   *HealthMonitor
	bus      *bus.Bus
	audit    *audit.Log
	cfg      Config
	logger   *slog.Logger
	onReload func()
}

// OnReload registers fn to run whenever SIGHUP arrives. SIGHUP never
// triggers shutdown; only SIGINT/SIGTERM (or ctx cancellation) do.
func (o *Orchestrator) OnReload(fn func()) {
	o.onReload = fn
}

// New constructs an Orchestrator. Register services on the returned
// Registry before calling Run.
func New(cfg Config, eventBus *bus.Bus, auditLog *audit.Log, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry(logger)
	health := NewHealthMonitor(registry, cfg.HealthInterval, cfg.HealthTimeout, auditLog, eventBus, logger)
	return &Orchestrator{registry: registry, health: health, bus: eventBus, audit: auditLog, cfg: cfg, logger: logger}
}

// Registry exposes the service registry for callers to Register services
// on before Run.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Run starts every registered service in dependency order, then blocks
// until SIGINT, SIGTERM, or ctx is cancelled, then runs the shutdown
// sequence (spec §4.6 "Shutdown"). SIGHUP runs the OnReload hook and Run
// keeps waiting.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.registry.StartAll(ctx); err != nil {
		return err
	}
	o.health.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				o.logger.Info("orchestrator: received SIGHUP, reloading")
				if o.onReload != nil {
					o.onReload()
				}
				continue
			}
			o.logger.Info("orchestrator: received signal, shutting down", "signal", sig)
		case <-ctx.Done():
			o.logger.Info("orchestrator: context cancelled, shutting down")
		}
		break
	}

	return o.shutdown(ctx)
}

// shutdown cancels the health loop, stops services in reverse start
// order, drains the event bus with a bounded deadline, then flushes the
// audit log (spec §4.6).
func (o *Orchestrator) shutdown(ctx context.Context) error {
	o.health.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	o.registry.StopAll(stopCtx)

	if o.bus != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), o.cfg.DrainDeadline)
		defer drainCancel()
		if err := o.bus.Close(drainCtx); err != nil {
			o.logger.Warn("orchestrator: bus did not fully drain", "error", err)
		}
	}

	if o.audit != nil {
		if _, err := o.audit.Append(audit.AppendInput{
			EventType: "system.shutdown", Actor: "orchestrator", Action: "shutdown",
		}); err != nil {
			o.logger.Error("orchestrator: final audit append failed", "error", err)
		}
	}

	return nil
}
