// Package audit implements the immutable, hash-chained append-only log
// described in spec §4.2: JSON-lines entries under
// System_Log/Audit/immutable_audit.jsonl, with a sidecar chain_hashes.json
// mapping seq to chain_hash for O(1) spot verification.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/models"
)

// Log is the single in-process writer for the vault's audit trail.
// Concurrent callers serialize through mu (spec §4.5: "the audit writer
// [is] the only shared mutable state ... protected by a single lock").
type Log struct {
	mu sync.Mutex

	path        string
	sidecarPath string

	lastChainHash string
	nextSeq       uint64

	broken bool
	index  Indexer
}

// sidecar is the on-disk shape of chain_hashes.json.
type sidecar struct {
	ChainHashes map[uint64]string `json:"chain_hashes"`
}

// Open loads (or creates) the audit log at path, replaying existing entries
// to recover nextSeq and lastChainHash.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	l := &Log{
		path:        path,
		sidecarPath: sidecarPathFor(path),
		nextSeq:     1,
	}

	entries, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		l.nextSeq = last.Seq + 1
		l.lastChainHash = last.ChainHash
	}
	return l, nil
}

func sidecarPathFor(auditPath string) string {
	return filepath.Join(filepath.Dir(auditPath), "chain_hashes.json")
}

// AppendInput is the caller-supplied portion of a new entry; Seq,
// EntryHash, and ChainHash are computed by Append.
type AppendInput struct {
	EventType     string
	Actor         string
	Action        string
	Resource      string
	ResourceID    string
	CorrelationID string
	Details       map[string]any
}

// Append writes one new entry, computing entry_hash = H(canonical json of
// the entry sans hashes) and chain_hash = H(entry_hash || prev_chain_hash),
// then fsyncs before releasing the writer lock (spec §4.2 "Append").
func (l *Log) Append(in AppendInput) (*models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.broken {
		return nil, faults.New(faults.IntegrityBroken, l.path, "refusing append: chain verification previously failed")
	}

	entry := &models.AuditEntry{
		Seq:           l.nextSeq,
		EntryID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		EventType:     in.EventType,
		Actor:         in.Actor,
		Action:        in.Action,
		Resource:      in.Resource,
		ResourceID:    in.ResourceID,
		CorrelationID: in.CorrelationID,
		Details:       in.Details,
	}

	entryHash, err := hashEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("audit: hash entry: %w", err)
	}
	entry.EntryHash = entryHash
	entry.ChainHash = chainHash(entryHash, l.lastChainHash)

	if err := l.appendLine(entry); err != nil {
		return nil, err
	}
	if err := l.updateSidecar(entry.Seq, entry.ChainHash); err != nil {
		return nil, err
	}

	l.nextSeq++
	l.lastChainHash = entry.ChainHash

	if l.index != nil {
		if err := l.index.Record(entry); err != nil {
			fmt.Fprintf(os.Stderr, "audit: secondary index record failed for seq %d: %v\n", entry.Seq, err)
		}
	}

	return entry, nil
}

func (l *Log) appendLine(entry *models.AuditEntry) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return f.Sync()
}

func (l *Log) updateSidecar(seq uint64, chainHash string) error {
	sc, err := readSidecar(l.sidecarPath)
	if err != nil {
		return err
	}
	sc.ChainHashes[seq] = chainHash

	tmp := l.sidecarPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("audit: create sidecar temp: %w", err)
	}
	if err := json.NewEncoder(f).Encode(sc); err != nil {
		f.Close()
		return fmt.Errorf("audit: encode sidecar: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: sync sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close sidecar: %w", err)
	}
	return os.Rename(tmp, l.sidecarPath)
}

func readSidecar(path string) (*sidecar, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &sidecar{ChainHashes: make(map[uint64]string)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: read sidecar: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("audit: parse sidecar: %w", err)
	}
	if sc.ChainHashes == nil {
		sc.ChainHashes = make(map[uint64]string)
	}
	return &sc, nil
}

// hashEntry canonicalizes the entry by marshalling it with EntryHash and
// ChainHash zeroed, relying on Go's stable struct-field marshal order for
// determinism.
func hashEntry(entry *models.AuditEntry) (string, error) {
	sansHashes := *entry
	sansHashes.EntryHash = ""
	sansHashes.ChainHash = ""
	data, err := json.Marshal(sansHashes)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func chainHash(entryHash, prevChainHash string) string {
	sum := sha256.Sum256([]byte(entryHash + prevChainHash))
	return hex.EncodeToString(sum[:])
}

func readAll(path string) ([]*models.AuditEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	var entries []*models.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit: parse entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan log: %w", err)
	}
	return entries, nil
}
