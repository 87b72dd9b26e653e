package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/bus"
)

// HealthMonitor runs a periodic health loop over a Registry's started
// services, marking a service unhealthy after three consecutive failed
// probes (spec §4.6 "health loop ... 3-strikes-unhealthy").
type HealthMonitor struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	audit    *audit.Log
	bus      *bus.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	strikes map[string]int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthMonitor constructs a HealthMonitor (spec §6 health.interval_ms,
// health.timeout_ms).
func NewHealthMonitor(registry *Registry, interval, timeout time.Duration, auditLog *audit.Log, eventBus *bus.Bus, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		audit:    auditLog,
		bus:      eventBus,
		logger:   logger,
		strikes:  make(map[string]int),
	}
}

// Start launches the health loop.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop cancels the health loop and waits for it to exit (spec §4.6
// "cancels the health-check loop" on shutdown).
func (m *HealthMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *HealthMonitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *HealthMonitor) probeAll(ctx context.Context) {
	for _, svc := range m.registry.Started() {
		m.probe(ctx, svc)
	}
}

func (m *HealthMonitor) probe(ctx context.Context, svc Service) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := svc.HealthCheck(probeCtx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		m.strikes[svc.Name()] = 0
		m.publish(svc.Name(), "healthy")
		return
	}

	m.strikes[svc.Name()]++
	m.logger.Warn("orchestrator: health probe failed", "service", svc.Name(), "strikes", m.strikes[svc.Name()], "error", err)

	if m.strikes[svc.Name()] >= 3 {
		m.appendAudit(svc.Name(), err.Error())
		m.publish(svc.Name(), "unhealthy")
	}
}

func (m *HealthMonitor) appendAudit(serviceName, reason string) {
	if m.audit == nil {
		return
	}
	_, err := m.audit.Append(audit.AppendInput{
		EventType: "service.error", Actor: "orchestrator", Action: "health_check",
		Resource: "service", ResourceID: serviceName, Details: map[string]any{"reason": reason},
	})
	if err != nil {
		m.logger.Error("orchestrator: audit append failed", "error", err)
	}
}

func (m *HealthMonitor) publish(serviceName, status string) {
	if m.bus == nil {
		return
	}
	eventType := bus.HealthStatus
	if status == "unhealthy" {
		eventType = bus.ServiceError
	}
	evt := bus.NewEvent(eventType, "orchestrator", "", map[string]any{"service": serviceName, "status": status})
	if err := m.bus.Publish(evt); err != nil {
		m.logger.Error("orchestrator: publish failed", "error", err)
	}
}
