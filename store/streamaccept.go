package store

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
)

// PublishStream accepts a blob body straight off the wire for put/give/take,
// where the body carries no length prefix and is not bounded by connection
// EOF: the protocol instead marks the body's end the instant the bytes
// received so far hash to target. It therefore cannot
// reuse Publish's io.Copy-to-EOF loop, which assumes src itself ends where
// the blob does.
//
// After every byte written, the running digest is cloned, finalized, and
// compared to the target; accepting stops the instant it matches.
// Reading one byte at a time off r (rather than fixed-size chunk reads,
// which would have to track left-over bytes whenever a chunk ran past
// the match point) means r's own internal buffering is the only place
// bytes belonging to the next exchange can ever sit: nothing is ever
// read past the boundary, so there is no scan-ahead slice to carry
// forward.
//
// An empty blob (target is an algorithm's EmptyDigest) matches with zero
// bytes read, so PublishStream checks the match before its first read.
func (s *Store) PublishStream(ctx context.Context, verb string, alg digest.Algorithm, target digest.Udig, r *bufio.Reader) (PublishResult, error) {
	tmpPath := filepath.Join(s.Root, "tmp", tempName(verb, target, time.Now))
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0400)
	if err != nil {
		return PublishResult{}, errors.E(errors.Unavailable, "store.PublishStream: create temp", err)
	}
	bw := bufio.NewWriter(f)
	verify := digest.NewVerifyingWriter(alg, target)

	var n int64
	for verify.Status() != digest.Matched {
		b, readErr := r.ReadByte()
		if readErr != nil {
			bw.Flush()
			f.Close()
			os.Remove(tmpPath)
			// A clean peer close before the digest matches is the
			// protocol's "ok,no", not a transport fault.
			if readErr == io.EOF {
				return PublishResult{}, errors.E(errors.Invalid, "store.PublishStream: source closed before digest match")
			}
			return PublishResult{}, errors.E(errors.Net, "store.PublishStream: read blob body", readErr)
		}
		if werr := bw.WriteByte(b); werr != nil {
			f.Close()
			os.Remove(tmpPath)
			return PublishResult{}, errors.E(errors.Unavailable, "store.PublishStream: write temp", werr)
		}
		verify.Write([]byte{b}) //nolint:errcheck // VerifyingWriter.Write never errors
		n++
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Unavailable, "store.PublishStream: flush temp", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Unavailable, "store.PublishStream: close temp", err)
	}
	if verify.Finish() != digest.Matched {
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Invalid, "store.PublishStream: digest mismatch")
	}

	existed, err := s.renameIntoPlace(ctx, tmpPath, target)
	if err != nil {
		os.Remove(tmpPath)
		return PublishResult{}, err
	}
	return PublishResult{Size: n, AlreadyExisted: existed}, nil
}
