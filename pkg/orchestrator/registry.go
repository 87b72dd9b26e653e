package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
)

// Registry holds services in declared dependency order (spec §4.6
// "Startup proceeds in declared dependency order; a failure in one aborts
// startup and rewinds all already-started services in reverse order").
type Registry struct {
	services []Service
	started  []Service
	logger   *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register appends svc to the end of the dependency order.
func (r *Registry) Register(svc Service) {
	r.services = append(r.services, svc)
}

// StartAll starts every registered service in order. On the first failure
// it stops everything already started, in reverse order, and returns the
// originating error.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, svc := range r.services {
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("orchestrator: service failed to start, rewinding", "service", svc.Name(), "error", err)
			r.rewind(ctx)
			return fmt.Errorf("orchestrator: start %s: %w", svc.Name(), err)
		}
		r.started = append(r.started, svc)
		r.logger.Info("orchestrator: service started", "service", svc.Name())
	}
	return nil
}

func (r *Registry) rewind(ctx context.Context) {
	for i := len(r.started) - 1; i >= 0; i-- {
		svc := r.started[i]
		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("orchestrator: error stopping service during rewind", "service", svc.Name(), "error", err)
		}
	}
	r.started = nil
}

// StopAll stops every started service in reverse start order (spec §4.6
// "Shutdown ... stops services in reverse start order").
func (r *Registry) StopAll(ctx context.Context) {
	for i := len(r.started) - 1; i >= 0; i-- {
		svc := r.started[i]
		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("orchestrator: error stopping service", "service", svc.Name(), "error", err)
		}
		r.logger.Info("orchestrator: service stopped", "service", svc.Name())
	}
	r.started = nil
}

// Started returns the currently running services, in start order.
func (r *Registry) Started() []Service {
	out := make([]Service, len(r.started))
	copy(out, r.started)
	return out
}
