// Package store implements the content-addressed storage engine: the
// mapping from digest to on-disk path, the atomic publication discipline,
// blob lifecycle (publish/read/remove), and the opportunistic garbage
// collection of empty fanout directories.
//
// All de-publication and directory trimming is serialized through a
// single goroutine-owned arborist, so sibling-directory removal never
// races publication under a different prefix.
package store

import (
	"os"
	"path/filepath"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/sync/once"
)

// Store is a content-addressed blob store rooted at a directory
// containing the data/, tmp/, spool/, and run/ subtrees.
type Store struct {
	Root string

	arborist *arborist
	closing  once.Task
}

// Open prepares the four subtrees under root and returns a Store ready
// for use. tmp/ and data/ are required to share a filesystem so rename is
// atomic; Open does not itself verify this. The embedding daemon calls
// CheckSameDevice at startup.
func Open(root string) (*Store, error) {
	for _, sub := range []string{"data", "tmp", "spool", filepath.Join("spool", "wrap"), "run"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, errors.E(errors.Invalid, "store.Open", err)
		}
	}
	s := &Store{Root: root}
	s.arborist = newArborist(s)
	return s, nil
}

// Close stops the store's arborist. Close does not remove any files and
// is idempotent.
func (s *Store) Close() error {
	return s.closing.Do(func() error {
		s.arborist.stop()
		return nil
	})
}

// DataDir returns the fanout directory containing u's blob, not including
// the final full-digest file name component.
func (s *Store) DataDir(u digest.Udig) (string, error) {
	path, err := digest.FanoutPath(u)
	if err != nil {
		return "", err
	}
	segs := append([]string{s.Root, "data", u.Algorithm}, path[:len(path)-1]...)
	return filepath.Join(segs...), nil
}

// DataPath returns the full on-disk path at which u's blob is (or would
// be) published.
func (s *Store) DataPath(u digest.Udig) (string, error) {
	dir, err := s.DataDir(u)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, u.Digest), nil
}

// Exists reports whether u's blob is currently published.
func (s *Store) Exists(u digest.Udig) (bool, error) {
	path, err := s.DataPath(u)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.E(errors.Unavailable, "store.Exists", err)
	}
}

// SpoolPath returns the path of the daemon's append-only BRR log named
// name: <root>/spool/<name>.brr.
func (s *Store) SpoolPath(name string) string {
	return filepath.Join(s.Root, "spool", name+".brr")
}

// WrapDir returns <root>/spool/wrap, where frozen BRR logs accumulate
// between a wrap and the roll that dissolves them.
func (s *Store) WrapDir() string {
	return filepath.Join(s.Root, "spool", "wrap")
}

// WrapPath returns the path at which u's frozen BRR log blob is recorded
// in the current wrap set: <root>/spool/wrap/<algorithm:digest>.brr.
func (s *Store) WrapPath(u digest.Udig) string {
	return filepath.Join(s.WrapDir(), u.String()+".brr")
}

// RunPath returns <root>/run/<name>, used for pidfiles and reply FIFOs.
func (s *Store) RunPath(name string) string {
	return filepath.Join(s.Root, "run", name)
}
