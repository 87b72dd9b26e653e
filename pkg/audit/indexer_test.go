package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultflow/vaultflow/pkg/models"
)

var errFakeIndex = errors.New("fake index unavailable")

type fakeIndexer struct {
	recorded []*models.AuditEntry
	failNext bool
}

func (f *fakeIndexer) Record(e *models.AuditEntry) error {
	if f.failNext {
		f.failNext = false
		return errFakeIndex
	}
	f.recorded = append(f.recorded, e)
	return nil
}

func TestSetIndexMirrorsAppends(t *testing.T) {
	l := newTestLog(t)
	idx := &fakeIndexer{}
	l.SetIndex(idx)

	_, err := l.Append(AppendInput{EventType: "action.generated", CorrelationID: "corr-a"})
	require.NoError(t, err)
	_, err = l.Append(AppendInput{EventType: "action.generated", CorrelationID: "corr-b"})
	require.NoError(t, err)

	require.Len(t, idx.recorded, 2)
	require.Equal(t, "corr-a", idx.recorded[0].CorrelationID)
}

func TestIndexRecordFailureDoesNotFailAppend(t *testing.T) {
	l := newTestLog(t)
	idx := &fakeIndexer{failNext: true}
	l.SetIndex(idx)

	_, err := l.Append(AppendInput{EventType: "action.generated"})
	require.NoError(t, err, "a failing secondary index must never block the authoritative JSONL append")
	require.Empty(t, idx.recorded)
}
