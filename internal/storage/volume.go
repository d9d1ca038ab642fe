package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// errVolumeUnknown is returned by volumeKind on platforms it cannot inspect.
// A journal on an unknown volume is allowed.
var errVolumeUnknown = errors.New("journal volume kind cannot be inspected on this platform")

// remoteVolumes are filesystem kinds whose byte-range locks SQLite cannot trust.
var remoteVolumes = []string{"afpfs", "cifs", "fuse.sshfs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

// checkJournalVolume rejects a journal file whose directory sits on a remote
// volume. kindOf names the volume holding a directory that exists.
func checkJournalVolume(journalPath string, kindOf func(dir string) (string, error)) error {
	if journalPath == "" {
		return errors.New("journal path is empty")
	}

	dir, err := existingAncestor(journalPath)
	if err != nil {
		return fmt.Errorf("locate journal directory for %q: %w", journalPath, err)
	}

	kind, err := kindOf(dir)
	if err != nil {
		return fmt.Errorf("inspect volume of %q: %w", dir, err)
	}
	if isRemoteVolume(kind) {
		return fmt.Errorf("journal %q is on a %s volume; SQLite locking needs local storage, point journal.path (or CRISP_JOURNAL_PATH) at a local file", journalPath, kind)
	}
	return nil
}

// existingAncestor walks up from p to the first path that exists. The journal
// directory may not have been created yet.
func existingAncestor(p string) (string, error) {
	dir, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", fmt.Errorf("nothing along %q exists", p)
		}
		dir = up
	}
}

func isRemoteVolume(kind string) bool {
	return slices.Contains(remoteVolumes, strings.ToLower(strings.TrimSpace(kind)))
}
