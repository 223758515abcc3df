package dataset

import (
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// FileLock is an advisory lockfile guarding one read-validate-write cycle.
// The dataset file is a single shared resource; a run holds the lock from
// load until the atomic replace completes.
type FileLock struct {
	path string
}

// Lock creates `<path>.lock` exclusively, writing the holder's pid. If
// another run already holds the lock the call fails immediately; a leftover
// lock from a crashed run must be removed by the operator.
func Lock(path string) (*FileLock, error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder := "unknown"
			if data, readErr := os.ReadFile(lockPath); readErr == nil && len(data) > 0 {
				holder = string(data)
			}
			return nil, eris.Errorf("dataset: %s is locked by pid %s (remove %s if that run crashed)", path, holder, lockPath)
		}
		return nil, eris.Wrapf(err, "dataset: create lockfile %s", lockPath)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(lockPath)
		if werr != nil {
			return nil, eris.Wrapf(werr, "dataset: write lockfile %s", lockPath)
		}
		return nil, eris.Wrapf(cerr, "dataset: close lockfile %s", lockPath)
	}

	return &FileLock{path: lockPath}, nil
}

// Release removes the lockfile.
func (l *FileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "dataset: remove lockfile %s", l.path)
	}
	return nil
}
