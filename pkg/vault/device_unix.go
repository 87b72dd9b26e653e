//go:build !windows

package vault

import (
	"os"
	"syscall"
)

// sameDevice reports whether two FileInfo values refer to paths on the same
// filesystem device, used to guard the same-filesystem-rename assumption.
func sameDevice(a, b os.FileInfo) bool {
	sa, aok := a.Sys().(*syscall.Stat_t)
	sb, bok := b.Sys().(*syscall.Stat_t)
	if !aok || !bok {
		return true
	}
	return sa.Dev == sb.Dev
}
