package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/models"
)

// newTestIndex starts a disposable Postgres container and returns an Index
// connected to it, skipping the test when Docker isn't available (teacher's
// pkg/database/client_test.go shape, adapted to this package's plain
// database/sql Index instead of an Ent client).
func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vaultflow_audit"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("docker unavailable, skipping audit index integration test: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	idx, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func sampleEntry(seq uint64, correlationID string) *models.AuditEntry {
	return &models.AuditEntry{
		Seq:           seq,
		EntryID:       fmt.Sprintf("entry-%d-%s", seq, correlationID),
		Timestamp:     time.Now().UTC(),
		EventType:     "transition.completed",
		Actor:         "system",
		Action:        "transition",
		Resource:      "action",
		ResourceID:    "stem-1",
		CorrelationID: correlationID,
		Details:       map[string]any{"from": "Inbox", "to": "Needs_Action"},
		EntryHash:     "deadbeef",
		ChainHash:     "feedface",
	}
}

func TestRecordAndQueryByCorrelationID(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Record(sampleEntry(1, "corr-a")))
	require.NoError(t, idx.Record(sampleEntry(2, "corr-b")))

	results, err := idx.Query(audit.Filter{CorrelationID: "corr-a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint64(1), results[0].Seq)
	require.Equal(t, "Inbox", results[0].Details["from"])
}

func TestRecordIsIdempotentOnDuplicateSeq(t *testing.T) {
	idx := newTestIndex(t)

	entry := sampleEntry(1, "corr-dup")
	require.NoError(t, idx.Record(entry))
	require.NoError(t, idx.Record(entry))

	results, err := idx.Query(audit.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestQueryRespectsLimitAndOrder(t *testing.T) {
	idx := newTestIndex(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, idx.Record(sampleEntry(i, "corr-seq")))
	}

	results, err := idx.Query(audit.Filter{CorrelationID: "corr-seq", Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, uint64(1), results[0].Seq)
	require.Equal(t, uint64(3), results[2].Seq)
}
