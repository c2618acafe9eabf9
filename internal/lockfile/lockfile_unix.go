//go:build !windows

package lockfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking exclusive flock on the whole file. flock
// follows the open file description, so a second Acquire conflicts even from
// within the same process.
func lockFile(f *os.File) error {
	if f == nil {
		return errors.New("nil lock file")
	}
	// Keep the lock fd out of any spawned sub-process.
	unix.CloseOnExec(int(f.Fd()))

	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrAlreadyLocked
	}
	return err
}

func unlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
