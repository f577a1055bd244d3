package verb

import (
	"context"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/proto"
)

// doTake is the inverse of give. A blob referenced by the current
// unrolled wrap set is protected and refused outright; otherwise the
// server streams the blob like get, then waits for the peer's own ok/no
// before actually de-publishing it.
//
// On the peer's trailing "no" the exchange still closes with a reply, so
// the connection leaves a clean ok/no boundary, but that closing reply is
// not counted as a chat-history token: the audited history for the
// blob-retained branch is "ok,no", two tokens, because only the peer's
// own decision matters to the record.
func doTake(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "take"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.take: missing target udig")
	}
	out.Udig = u

	alg, err := algorithmFor(req.Algorithm)
	if err != nil {
		return out, err
	}

	protected, err := s.Store.WrapProtected(u)
	if err != nil {
		return out, err
	}
	if protected {
		if werr := proto.WriteNo(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.take: write no", werr)
		}
		out.ChatHistory = "no"
		return out, nil
	}

	exists, err := s.Store.Exists(u)
	if err != nil {
		return out, err
	}
	if !exists {
		if werr := proto.WriteNo(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.take: write no", werr)
		}
		out.ChatHistory = "no"
		return out, nil
	}

	n, corrupt, err := serveBlob(s, alg, u)
	if err != nil {
		return out, err
	}
	out.Size = n
	out.ChatHistory = "ok"
	if corrupt {
		log.Error.Printf("verb.take: corrupt blob %s removed after streaming", u)
		if rmErr := s.Store.RemoveCorrupt(u); rmErr != nil {
			return out, rmErr
		}
		return out, nil
	}

	peerOK, rerr := proto.ReadReply(s.R)
	if rerr != nil {
		return out, rerr
	}
	if !peerOK {
		if werr := proto.WriteOK(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.take: write ok", werr)
		}
		out.ChatHistory = "ok,no"
		return out, nil
	}

	if err := s.Store.Remove(u); err != nil {
		return out, err
	}
	if werr := proto.WriteOK(s.W); werr != nil {
		return out, errors.E(errors.Net, "verb.take: write ok", werr)
	}
	out.ChatHistory = "ok,ok,ok"
	return out, nil
}
