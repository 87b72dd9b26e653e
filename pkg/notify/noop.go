package notify

import "context"

// Noop discards escalations. Used as the default Notifier when no
// transport is configured, so the approval engine's escalate path always
// has a collaborator to call.
type Noop struct{}

func (Noop) Notify(ctx context.Context, e Escalation) error { return nil }
