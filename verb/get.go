package verb

import (
	"context"
	"io"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/proto"
)

// doGet serves a read: reply no and close if the blob is
// absent, otherwise reply ok and stream the blob's bytes to EOF.
func doGet(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "get"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.get: missing target udig")
	}
	out.Udig = u

	alg, err := algorithmFor(req.Algorithm)
	if err != nil {
		return out, err
	}

	exists, err := s.Store.Exists(u)
	if err != nil {
		return out, err
	}
	if !exists {
		if werr := proto.WriteNo(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.get: write no", werr)
		}
		out.ChatHistory = "no"
		return out, nil
	}

	n, corrupt, err := serveBlob(s, alg, u)
	if err != nil {
		return out, err
	}
	out.Size = n
	// History is "ok" regardless of corruption: the peer already received
	// bytes before the trailing mismatch was confirmed.
	out.ChatHistory = "ok"
	if corrupt {
		log.Error.Printf("verb.get: corrupt blob %s removed after streaming", u)
		if rmErr := s.Store.RemoveCorrupt(u); rmErr != nil {
			return out, rmErr
		}
	}
	return out, nil
}

// serveBlob writes the ok\n reply then streams u's bytes to the session's
// connection, reporting the byte count and whether read-back verification
// (skipped entirely in trust-fs mode) detected a mismatch. Shared by get
// (whose stream simply ends at EOF) and take's identical bytes-out phase.
func serveBlob(s *Session, alg digest.Algorithm, u digest.Udig) (n int64, corrupt bool, err error) {
	r, err := s.Store.OpenVerified(u, alg, s.TrustFS)
	if err != nil {
		return 0, false, err
	}
	defer r.Close()

	if werr := proto.WriteOK(s.W); werr != nil {
		return 0, false, errors.E(errors.Net, "verb: write ok", werr)
	}
	n, copyErr := io.Copy(s.W, r)
	if copyErr != nil {
		return n, false, errors.E(errors.Net, "verb: stream blob", copyErr)
	}
	return n, r.Corrupt(), nil
}
