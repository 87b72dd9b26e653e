package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistererRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer("vaultflow_test", reg)

	m.TransitionsTotal.WithLabelValues("Inbox", "Needs_Action", "success").Inc()
	m.DeadLetterDepth.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewWithRegistererIsIsolatedPerRegistry(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		NewWithRegisterer("vaultflow_test", reg1)
		NewWithRegisterer("vaultflow_test", reg2)
	})
}
