package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/retry"
)

// tempName builds the scratch file name
// tmp/<verb>-<unix-seconds>-<pid>-<digest>.
func tempName(verb string, u digest.Udig, now func() time.Time) string {
	return fmt.Sprintf("%s-%d-%d-%s", verb, now().Unix(), os.Getpid(), u.Digest)
}

// PublishResult reports the outcome of a Publish call.
type PublishResult struct {
	// Size is the number of bytes read from src.
	Size int64
	// AlreadyExisted is true when the target path was already present;
	// content-addressed storage treats this as a silent success
	//, not a distinguishable error.
	AlreadyExisted bool
}

// Publish streams src through a digest module into the store under
// target, following the temp-then-rename publication discipline. now
// defaults to time.Now; tests may override it to pin the temp file name.
func (s *Store) Publish(ctx context.Context, verb string, alg digest.Algorithm, target digest.Udig, src io.Reader) (PublishResult, error) {
	return s.publish(ctx, verb, alg, target, src, time.Now)
}

func (s *Store) publish(ctx context.Context, verb string, alg digest.Algorithm, target digest.Udig, src io.Reader, now func() time.Time) (PublishResult, error) {
	tmpPath := filepath.Join(s.Root, "tmp", tempName(verb, target, now))
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0400)
	if err != nil {
		return PublishResult{}, errors.E(errors.Unavailable, "store.Publish: create temp", err)
	}
	verify := digest.NewVerifyingWriter(alg, target)
	n, copyErr := io.Copy(io.MultiWriter(f, verify), src)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Net, "store.Publish: read source", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Unavailable, "store.Publish: close temp", closeErr)
	}
	if status := verify.Finish(); status != digest.Matched {
		os.Remove(tmpPath)
		return PublishResult{}, errors.E(errors.Invalid, "store.Publish: digest mismatch")
	}
	existed, err := s.renameIntoPlace(ctx, tmpPath, target)
	if err != nil {
		os.Remove(tmpPath)
		return PublishResult{}, err
	}
	return PublishResult{Size: n, AlreadyExisted: existed}, nil
}

// renameIntoPlace renames tmpPath onto the target's data path,
// recreating the fanout and retrying up to three times on ENOENT, and
// treating EEXIST/idempotent rename as success.
func (s *Store) renameIntoPlace(ctx context.Context, tmpPath string, target digest.Udig) (existed bool, err error) {
	dataPath, err := s.DataPath(target)
	if err != nil {
		return false, err
	}
	dataDir := filepath.Dir(dataPath)

	policy := retry.MaxRetries(retry.Backoff(0, 0, 1), 3)
	for retries := 0; ; retries++ {
		renameErr := os.Rename(tmpPath, dataPath)
		switch {
		case renameErr == nil:
			os.Chmod(dataPath, 0440)
			return false, nil
		case os.IsExist(renameErr):
			return true, nil
		case os.IsNotExist(renameErr):
			if mkErr := os.MkdirAll(dataDir, 0755); mkErr != nil {
				return false, errors.E(errors.Fatal, "store.Publish: recreate fanout", mkErr)
			}
			if waitErr := retry.Wait(ctx, policy, retries); waitErr != nil {
				return false, errors.E(errors.Fatal, "store.Publish: rename retries exhausted", renameErr)
			}
			continue
		default:
			if already, statErr := s.Exists(target); statErr == nil && already {
				return true, nil
			}
			return false, errors.E(errors.Fatal, "store.Publish: rename", renameErr)
		}
	}
}

// PublishLocalFile publishes the contents of localPath, using a hard
// link instead of a copy when localPath is on the same filesystem as the
// store, falling back to a
// streamed copy on EXDEV or any other link failure.
func (s *Store) PublishLocalFile(ctx context.Context, verb string, alg digest.Algorithm, target digest.Udig, localPath string) (PublishResult, error) {
	dataPath, err := s.DataPath(target)
	if err != nil {
		return PublishResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return PublishResult{}, errors.E(errors.Fatal, "store.PublishLocalFile: mkdir fanout", err)
	}
	switch err := os.Link(localPath, dataPath); {
	case err == nil:
		os.Chmod(dataPath, 0440)
		return PublishResult{}, nil
	case os.IsExist(err):
		return PublishResult{AlreadyExisted: true}, nil
	case isCrossDevice(err):
		// fall through to the verified copy+rename path below.
	default:
		// An unexpected link failure is not expected to recur either;
		// fall through to the same copy+rename path.
	}

	f, err := os.Open(localPath)
	if err != nil {
		return PublishResult{}, errors.E(errors.Invalid, "store.PublishLocalFile: open source", err)
	}
	defer f.Close()
	return s.Publish(ctx, verb, alg, target, f)
}
