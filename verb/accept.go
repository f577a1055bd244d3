package verb

import (
	"context"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
)

// acceptBlob implements the shared ok\n, stream-bytes, ok\n-or-no\n
// exchange of put and give: reply ready, accept a body whose
// boundary is the running digest matching target (store.PublishStream),
// and tell the peer whether the publish succeeded.
//
// Unlike get/take's output side, the size and chat history it returns are
// always couldn't-fail-further: a digest mismatch or peer disconnect ends
// in "ok,no", not an error, because the peer cleanly learns the outcome.
func acceptBlob(ctx context.Context, s *Session, verb string, alg digest.Algorithm, target digest.Udig) (size int64, history string, err error) {
	if werr := proto.WriteOK(s.W); werr != nil {
		return 0, "", errors.E(errors.Net, "verb: write ok", werr)
	}

	result, pubErr := s.Store.PublishStream(ctx, verb, alg, target, s.R)
	if pubErr != nil {
		if errors.Is(errors.Net, pubErr) {
			return 0, "", pubErr
		}
		// Anything short of a connection-level failure (digest mismatch,
		// source closed early) is a reportable "no", not a fault.
		if werr := proto.WriteNo(s.W); werr != nil {
			return 0, "", errors.E(errors.Net, "verb: write no", werr)
		}
		return 0, "ok,no", nil
	}

	if werr := proto.WriteOK(s.W); werr != nil {
		return result.Size, "", errors.E(errors.Net, "verb: write ok", werr)
	}
	return result.Size, "ok,ok", nil
}
