// Package distbus defines the adapter surface a distributed event bus
// would need to implement to extend pkg/bus across hosts. Multi-host
// clustering is an explicit Non-goal of this build; no concrete transport
// ships here. The interface exists so a future networked implementation
// has a contract to satisfy without touching pkg/bus or its callers.
package distbus

import (
	"context"

	"github.com/vaultflow/vaultflow/pkg/bus"
)

// Adapter publishes and subscribes to vaultflow events over a hypothetical
// remote transport, mirroring pkg/bus.Bus's Publish/Subscribe shape so a
// caller can use either interchangeably.
type Adapter interface {
	Publish(ctx context.Context, e *bus.Event) error
	Subscribe(ctx context.Context, eventType bus.EventType, handler bus.Handler) (subscriptionID string, err error)
	Unsubscribe(ctx context.Context, eventType bus.EventType, subscriptionID string) error
	Close(ctx context.Context) error
}
