//go:build linux

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// volumeKind maps the statfs magic of dir to a name. Local kinds come back
// as their hex magic.
func volumeKind(dir string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "", fmt.Errorf("statfs: %w", err)
	}

	switch magic := uint32(st.Type); magic {
	case unix.NFS_SUPER_MAGIC:
		return "nfs", nil
	case unix.CIFS_SUPER_MAGIC:
		return "cifs", nil
	case unix.SMB_SUPER_MAGIC:
		return "smbfs", nil
	case unix.SMB2_SUPER_MAGIC:
		return "smb2", nil
	default:
		return fmt.Sprintf("%#x", magic), nil
	}
}
