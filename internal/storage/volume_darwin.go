//go:build darwin

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// volumeKind reports the f_fstypename of dir, e.g. "apfs" or "smbfs".
func volumeKind(dir string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "", fmt.Errorf("statfs: %w", err)
	}
	return unix.ByteSliceToString(st.Fstypename[:]), nil
}
