package workflow

import (
	"fmt"
	"io"
	"os"

	"github.com/vaultflow/vaultflow/pkg/faults"
)

// atomicMove implements the copy→tmp, fsync, rename, unlink algorithm in
// spec §4.3 step 5. It assumes source and target share a filesystem, as
// vault.Root.checkSameFilesystem enforces at startup.
func atomicMove(source, target string) error {
	tmp := target + ".tmp"

	if err := copyFile(source, tmp); err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, source, err)
	}

	tmpFile, err := os.Open(tmp)
	if err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, source, err)
	}
	syncErr := tmpFile.Sync()
	tmpFile.Close()
	if syncErr != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, source, syncErr)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, source, err)
	}

	if err := os.Remove(source); err != nil {
		return faults.Wrap(faults.MoveFailed, source, fmt.Errorf("rename succeeded but source unlink failed: %w", err))
	}
	return nil
}

// writeAtomicFile writes data to a brand-new target path via tmp file,
// fsync, and rename — the write-side half of atomicMove for a transition
// with no pre-existing source file (Ingest's INBOX -> NEEDS_ACTION hop).
func writeAtomicFile(target string, data []byte) error {
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return faults.Wrap(faults.MoveFailed, target, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, target, err)
	}
	syncErr := f.Sync()
	f.Close()
	if syncErr != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, target, syncErr)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.MoveFailed, target, err)
	}
	return nil
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
