package store

import (
	"io"
	"os"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
)

// VerifiedReader streams a published blob's bytes while checking them
// against its own udig, catching silent on-disk corruption at the cost of
// reading the file exactly once (verifying ahead of time would
// double the read bandwidth).
type VerifiedReader struct {
	f       *os.File
	verify  *digest.VerifyingWriter
	trustFS bool
}

// OpenVerified opens u's blob for streaming. When trustFS is true the
// read-back verification pass is skipped; Close still simply closes the file in that mode.
func (s *Store) OpenVerified(u digest.Udig, alg digest.Algorithm, trustFS bool) (*VerifiedReader, error) {
	path, err := s.DataPath(u)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, "store.OpenVerified", err)
		}
		return nil, errors.E(errors.Unavailable, "store.OpenVerified", err)
	}
	r := &VerifiedReader{f: f, trustFS: trustFS}
	if !trustFS {
		r.verify = digest.NewVerifyingWriter(alg, u)
	}
	return r, nil
}

func (r *VerifiedReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if n > 0 && r.verify != nil {
		r.verify.Write(p[:n]) //nolint:errcheck // VerifyingWriter.Write never errors
	}
	return n, err
}

// Close closes the underlying file. It does not itself inspect the
// verification outcome; callers must call Corrupt after EOF.
func (r *VerifiedReader) Close() error {
	return r.f.Close()
}

// Corrupt reports whether the bytes read so far fail to match the blob's
// own udig. Meaningless (always false) before EOF has been reached, and
// always false in trust-fs mode.
func (r *VerifiedReader) Corrupt() bool {
	if r.verify == nil {
		return false
	}
	return r.verify.Finish() != digest.Matched
}

var _ io.ReadCloser = (*VerifiedReader)(nil)

// RemoveCorrupt unlinks u's on-disk file following detection of a digest
// mismatch during Get/Take. Ancestor directories are deliberately NOT
// trimmed here: a get-time corruption is not itself a removal of the
// blob from the store's namespace, only evidence that this read failed.
func (s *Store) RemoveCorrupt(u digest.Udig) error {
	path, err := s.DataPath(u)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.E(errors.Fatal, "store.RemoveCorrupt", err)
	}
	return nil
}
