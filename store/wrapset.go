package store

import (
	"os"

	"github.com/jmscott/blobio/digest"
)

// WrapProtected reports whether u's blob is currently a member of the
// unrolled wrap set, i.e. whether spool/wrap/<udig>.brr exists. A
// protected blob MUST NOT be removed by take until the wrap set
// containing it has been rolled.
func (s *Store) WrapProtected(u digest.Udig) (bool, error) {
	_, err := os.Stat(s.WrapPath(u))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
