package audit

import (
	"fmt"
	"time"

	"github.com/vaultflow/vaultflow/pkg/models"
)

// Filter selects a subset of entries for Query (spec §4.2 "Query"). Zero
// values are wildcards; From/To bound Timestamp when non-zero.
type Filter struct {
	CorrelationID string
	Actor         string
	EventType     string
	From          time.Time
	To            time.Time
	Limit         int
}

func (f Filter) matches(e *models.AuditEntry) bool {
	if f.CorrelationID != "" && e.CorrelationID != f.CorrelationID {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Query performs a linear scan over the log, applying filter and returning
// at most filter.Limit matches (0 means unbounded) in ascending seq order.
func (l *Log) Query(filter Filter) ([]*models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := readAll(l.path)
	if err != nil {
		return nil, err
	}

	out := make([]*models.AuditEntry, 0)
	for _, e := range entries {
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// VerifyResult is the outcome of VerifyChain (spec §4.2 "Verify").
type VerifyResult struct {
	Valid         bool     `json:"valid"`
	TotalEntries  int      `json:"total_entries"`
	InvalidEntries int     `json:"invalid_entries"`
	Issues        []string `json:"issues"`
	FirstInvalid  uint64   `json:"first_invalid,omitempty"`
}

// VerifyChain recomputes entry_hash and chain_hash for every entry in
// sequence and compares against the stored values, reporting the first
// mismatch (spec §4.2, §8 invariant "recomputed chain_hash[n] equals stored
// value"). On a mismatch the log is marked broken and refuses further
// Append calls until ResetIntegrity is called by an operator.
func (l *Log) VerifyChain() (VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := readAll(l.path)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{Valid: true, TotalEntries: len(entries)}
	prevChainHash := ""
	for _, e := range entries {
		wantEntryHash, err := hashEntry(e)
		if err != nil {
			return VerifyResult{}, err
		}
		wantChainHash := chainHash(wantEntryHash, prevChainHash)

		if e.EntryHash != wantEntryHash || e.ChainHash != wantChainHash {
			result.Valid = false
			result.InvalidEntries++
			if result.FirstInvalid == 0 {
				result.FirstInvalid = e.Seq
			}
			result.Issues = append(result.Issues, fmt.Sprintf("seq %d: chain hash mismatch", e.Seq))
		}
		prevChainHash = e.ChainHash
	}

	if !result.Valid {
		l.broken = true
	}
	return result, nil
}

// ResetIntegrity clears the broken flag set by a failed VerifyChain,
// acknowledging operator intervention (spec §7 "IntegrityBroken ... refuse
// new appends until operator intervention").
func (l *Log) ResetIntegrity() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broken = false
}

// Export is the portable document produced by ExportChain, carrying every entry
// plus the terminal chain_hash so an external party can verify the log
// independently (spec §4.2 "Export").
type Export struct {
	Entries        []*models.AuditEntry `json:"entries"`
	TerminalChain  string               `json:"terminal_chain_hash"`
	TerminalSeq    uint64               `json:"terminal_seq"`
}

// ExportChain builds the portable export document.
func (l *Log) ExportChain() (*Export, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := readAll(l.path)
	if err != nil {
		return nil, err
	}
	exp := &Export{Entries: entries}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		exp.TerminalChain = last.ChainHash
		exp.TerminalSeq = last.Seq
	}
	return exp, nil
}
