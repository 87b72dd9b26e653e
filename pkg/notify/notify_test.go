package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopNotifyAlwaysSucceeds(t *testing.T) {
	var n Notifier = Noop{}
	err := n.Notify(t.Context(), Escalation{ActionID: "a1", RiskLevel: "critical"})
	require.NoError(t, err)
}
