package store

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/jmscott/blobio/errors"
)

// isCrossDevice reports whether err is the EXDEV a failed Link returns
// when its source and target are on different filesystems.
func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return stderrors.As(err, &errno) && errno == syscall.EXDEV
}

// CheckSameDevice verifies that tmp/ and data/ live on one filesystem,
// so rename-into-place is atomic. A daemon must refuse to run against a
// cross-device root rather than silently fall back to a copy; blobiod
// calls this once at startup.
func (s *Store) CheckSameDevice() error {
	dev := func(path string) (uint64, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return 0, errors.E(errors.Invalid, "store: stat "+path, err)
		}
		st, ok := fi.Sys().(*syscall.Stat_t)
		if !ok {
			return 0, errors.E(errors.Invalid, "store: no device info for "+path)
		}
		return uint64(st.Dev), nil
	}
	dataDev, err := dev(filepath.Join(s.Root, "data"))
	if err != nil {
		return err
	}
	tmpDev, err := dev(filepath.Join(s.Root, "tmp"))
	if err != nil {
		return err
	}
	if dataDev != tmpDev {
		return errors.E(errors.Invalid,
			"store: tmp/ and data/ are on different filesystems; rename would not be atomic")
	}
	return nil
}
