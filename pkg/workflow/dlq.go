package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/models"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

const dlqTimestampLayout = "20060102-150405"

// DeadLetterQueue manages admission into, and recovery from,
// vault/Dead_Letter (spec §4.3 "Dead-letter queue").
type DeadLetterQueue struct {
	root *vault.Root
}

// NewDeadLetterQueue constructs a DeadLetterQueue bound to root.
func NewDeadLetterQueue(root *vault.Root) *DeadLetterQueue {
	return &DeadLetterQueue{root: root}
}

// Admit copies offendingPath into Dead_Letter/<timestamp>_<stem> and writes
// a sibling metadata YAML, then removes the original file.
func (q *DeadLetterQueue) Admit(offendingPath string, entry models.DLQEntry) error {
	if entry.DLQID == "" {
		entry.DLQID = uuid.New().String()
	}
	if entry.QuarantinedAt.IsZero() {
		entry.QuarantinedAt = time.Now().UTC()
	}

	base := filepath.Base(offendingPath)
	prefix := entry.QuarantinedAt.Format(dlqTimestampLayout)
	quarantined := filepath.Join(q.root.Dir(vault.DeadLetter), prefix+"_"+base)
	metaPath := quarantined + ".meta.yaml"

	if err := copyFile(offendingPath, quarantined); err != nil {
		return faults.Wrap(faults.MoveFailed, offendingPath, err)
	}

	meta, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("workflow: marshal dlq metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		os.Remove(quarantined)
		return faults.Wrap(faults.MoveFailed, offendingPath, err)
	}

	if err := os.Remove(offendingPath); err != nil {
		return faults.Wrap(faults.MoveFailed, offendingPath, err)
	}
	return nil
}

// entryFile pairs a quarantined file with its metadata sidecar.
type entryFile struct {
	dataPath string
	metaPath string
	entry    models.DLQEntry
}

// List returns every quarantined entry, most recently quarantined last.
func (q *DeadLetterQueue) List() ([]models.DLQEntry, error) {
	files, err := q.entries()
	if err != nil {
		return nil, err
	}
	out := make([]models.DLQEntry, 0, len(files))
	for _, f := range files {
		out = append(out, f.entry)
	}
	return out, nil
}

// Retry moves the quarantined file identified by dlqID back to its
// recorded source folder and deletes the DLQ pair (spec §8 round-trip law
// "add(file) then retry(file) reproduces the file at its original source
// folder and removes the DLQ pair").
func (q *DeadLetterQueue) Retry(dlqID string) (string, error) {
	files, err := q.entries()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.entry.DLQID != dlqID {
			continue
		}
		stem, kind, ok := vault.ParseStem(filepath.Base(f.entry.OriginalPath))
		if !ok {
			return "", faults.New(faults.SchemaInvalid, f.entry.OriginalPath, "cannot parse stem from recorded original path")
		}
		destFolder, err := folderForName(f.entry.SourceState)
		if err != nil {
			return "", err
		}
		dest := q.root.FilePath(destFolder, stem, kind)
		if err := copyFile(f.dataPath, dest); err != nil {
			return "", faults.Wrap(faults.MoveFailed, f.dataPath, err)
		}
		if err := os.Remove(f.dataPath); err != nil {
			return "", faults.Wrap(faults.MoveFailed, f.dataPath, err)
		}
		if err := os.Remove(f.metaPath); err != nil {
			return "", faults.Wrap(faults.MoveFailed, f.metaPath, err)
		}
		return dest, nil
	}
	return "", faults.New(faults.FileNotFound, dlqID, "no dead-letter entry with this id")
}

// Purge removes quarantined entries older than olderThan.
func (q *DeadLetterQueue) Purge(olderThan time.Duration) (int, error) {
	files, err := q.entries()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for _, f := range files {
		if f.entry.QuarantinedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(f.dataPath); err != nil && !os.IsNotExist(err) {
			return purged, faults.Wrap(faults.MoveFailed, f.dataPath, err)
		}
		if err := os.Remove(f.metaPath); err != nil && !os.IsNotExist(err) {
			return purged, faults.Wrap(faults.MoveFailed, f.metaPath, err)
		}
		purged++
	}
	return purged, nil
}

func (q *DeadLetterQueue) entries() ([]entryFile, error) {
	dir := q.root.Dir(vault.DeadLetter)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: read dead-letter folder: %w", err)
	}

	var out []entryFile
	for _, de := range dirEntries {
		name := de.Name()
		if !strings.HasSuffix(name, ".meta.yaml") {
			continue
		}
		metaPath := filepath.Join(dir, name)
		data, err := os.ReadFile(metaPath)
		if err != nil {
			return nil, fmt.Errorf("workflow: read dlq metadata: %w", err)
		}
		var entry models.DLQEntry
		if err := yaml.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("workflow: parse dlq metadata: %w", err)
		}
		out = append(out, entryFile{
			dataPath: strings.TrimSuffix(metaPath, ".meta.yaml"),
			metaPath: metaPath,
			entry:    entry,
		})
	}
	return out, nil
}

func folderForName(name string) (vault.Folder, error) {
	for _, f := range vault.AllFolders() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", faults.New(faults.SchemaInvalid, name, "unknown source folder recorded in dlq metadata")
}
