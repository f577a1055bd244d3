package verb

import (
	"context"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
)

// doPut stores a blob: reply ready, accept a body bounded by
// a digest match, and tell the peer whether the publish succeeded.
func doPut(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "put"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.put: missing target udig")
	}
	out.Udig = u

	alg, err := algorithmFor(req.Algorithm)
	if err != nil {
		return out, err
	}

	size, history, err := acceptBlob(ctx, s, "put", alg, u)
	out.Size = size
	out.ChatHistory = history
	return out, err
}
