package audit

import "github.com/vaultflow/vaultflow/pkg/models"

// Indexer mirrors appended entries into an optional secondary query
// index (spec §4.2: "index-on-open permitted but not required"). The
// JSONL log remains authoritative; a failing Indexer never blocks or
// fails an Append.
type Indexer interface {
	Record(entry *models.AuditEntry) error
}

// SetIndex attaches idx so every future Append also mirrors the entry
// into it. Pass nil to detach.
func (l *Log) SetIndex(idx Indexer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index = idx
}
