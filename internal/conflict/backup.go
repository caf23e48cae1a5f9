package conflict

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BackupTimeFormat is the timestamp layout used in backup names.
const BackupTimeFormat = "20060102-150405"

// BackupRecord describes one backup that was made, or would be made in a dry
// run.
type BackupRecord struct {
	Original string
	Path     string
}

// BackupPath returns the first free name of the form
// <path>.bak.<timestamp>[.<n>] for a backup taken at now.
func BackupPath(path string, now time.Time) (string, error) {
	base := path + ".bak." + now.Format(BackupTimeFormat)
	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = base + "." + strconv.Itoa(n)
		}
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking backup path %s: %w", candidate, err)
		}
	}
}

// MakeBackup renames path (a file or a directory) to a unique backup name.
func MakeBackup(path string, now time.Time) (BackupRecord, error) {
	dest, err := BackupPath(path, now)
	if err != nil {
		return BackupRecord{}, err
	}
	if err := os.Rename(path, dest); err != nil {
		return BackupRecord{}, fmt.Errorf("backing up %s: %w", path, err)
	}
	return BackupRecord{Original: path, Path: dest}, nil
}
