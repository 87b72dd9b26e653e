// Package vault defines the canonical directory layout of a vaultflow vault
// root and the UUID-stem naming convention shared by correlated files.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// Folder is one of the fixed top-level directories under a vault root.
type Folder string

// Pipeline folders, exactly as named in spec §3. Order here is the
// canonical left-to-right reading order of the pipeline, not the state
// machine's transition order (see pkg/workflow for that).
const (
	Inbox            Folder = "Inbox"
	NeedsAction      Folder = "Needs_Action"
	Plans            Folder = "Plans"
	PendingApproval  Folder = "Pending_Approval"
	Approved         Folder = "Approved"
	Done             Folder = "Done"
	Failed           Folder = "Failed"
	DeadLetter       Folder = "Dead_Letter"
	Archived         Folder = "Archived"
	SystemLog        Folder = "System_Log"
	SystemLogAudit   Folder = "System_Log/Audit"
	DotLocks         Folder = ".locks"
	DotCredentials   Folder = ".credentials"
	DotIntegrity     Folder = ".integrity"
)

// allFolders is the complete set created by `vault init`.
var allFolders = []Folder{
	Inbox, NeedsAction, Plans, PendingApproval, Approved, Done, Failed,
	DeadLetter, Archived, SystemLog, SystemLogAudit, DotLocks,
	DotCredentials, DotIntegrity,
}

// Kind identifies which of the three correlated file types a stem carries.
type Kind string

const (
	KindAction   Kind = "action"
	KindPlan     Kind = "plan"
	KindApproval Kind = "approval"
)

var suffixes = map[Kind]string{
	KindAction:   ".action.yaml",
	KindPlan:     ".plan.md",
	KindApproval: ".approval.md",
}

// Suffix returns the filename suffix for a given correlated-file kind.
func Suffix(k Kind) string {
	return suffixes[k]
}

// AllFolders returns the complete set of fixed top-level folders.
func AllFolders() []Folder {
	out := make([]Folder, len(allFolders))
	copy(out, allFolders)
	return out
}

// Root represents an initialized vault rooted at a directory on the local
// filesystem.
type Root struct {
	path string
}

// NewRoot wraps an existing directory as a vault root. It does not create
// anything; call Init for that.
func NewRoot(path string) *Root {
	return &Root{path: path}
}

// Path returns the vault root's absolute path as given.
func (r *Root) Path() string {
	return r.path
}

// Dir returns the absolute path of one of the fixed folders.
func (r *Root) Dir(f Folder) string {
	return filepath.Join(r.path, filepath.FromSlash(string(f)))
}

// FilePath returns the absolute path of a correlated file of the given kind
// and stem inside the given folder.
func (r *Root) FilePath(f Folder, stem string, k Kind) string {
	return filepath.Join(r.Dir(f), stem+Suffix(k))
}

// LockFilePath returns the path of the stem's lock file under .locks.
func (r *Root) LockFilePath(stem string) string {
	return filepath.Join(r.Dir(DotLocks), stem+".lock")
}

// Init creates every fixed folder (idempotent, safe to re-run) and verifies
// that the root and its staging/lock directories live on one filesystem,
// since the transition engine's atomic move (spec §4.3 step 5) depends on
// same-filesystem rename being atomic (spec §9 "File atomicity").
func (r *Root) Init() error {
	for _, f := range allFolders {
		if err := os.MkdirAll(r.Dir(f), 0o755); err != nil {
			return fmt.Errorf("vault: create %s: %w", f, err)
		}
	}
	return r.checkSameFilesystem()
}

// checkSameFilesystem refuses to proceed if the root and .locks directory
// are not on the same device — a cross-device rename is never atomic.
func (r *Root) checkSameFilesystem() error {
	rootInfo, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("vault: stat root: %w", err)
	}
	locksInfo, err := os.Stat(r.Dir(DotLocks))
	if err != nil {
		return fmt.Errorf("vault: stat .locks: %w", err)
	}
	if !sameDevice(rootInfo, locksInfo) {
		return fmt.Errorf("vault: root %s and .locks are on different filesystems; same-filesystem rename is required for atomic transitions", r.path)
	}
	return nil
}

// EnsureInitialized is a lighter check than Init: it verifies the folders
// exist without attempting to (re)create them, used by commands other than
// `vault init` that must fail fast against an uninitialized vault.
func (r *Root) EnsureInitialized() error {
	for _, f := range allFolders {
		if info, err := os.Stat(r.Dir(f)); err != nil || !info.IsDir() {
			return fmt.Errorf("vault: %s is not initialized (missing %s); run 'vault init' first", r.path, f)
		}
	}
	return nil
}
