// Package orchestrator implements the service-lifecycle orchestrator
// described in spec §4.6: dependency-ordered startup with rewind on
// failure, a periodic health loop, signal-driven graceful shutdown, and
// the dashboard writer.
package orchestrator

import "context"

// Service is anything the orchestrator starts, stops, and health-checks
// (spec §4.6 "Service registry"). Implementations follow the teacher's
// ctx-cancel/done-chan lifecycle shape.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}
