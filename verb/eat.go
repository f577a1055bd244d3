package verb

import (
	"context"
	"io"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/proto"
)

// doEat confirms a blob exists and, outside
// trust-fs mode, that it is still internally consistent, without
// transferring its bytes to the peer.
func doEat(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "eat"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.eat: missing target udig")
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
			return out, errors.E(errors.Net, "verb.eat: write no", werr)
		}
		out.ChatHistory = "no"
		return out, nil
	}

	if s.TrustFS {
		if werr := proto.WriteOK(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.eat: write ok", werr)
		}
		out.ChatHistory = "ok"
		return out, nil
	}

	r, err := s.Store.OpenVerified(u, alg, false)
	if err != nil {
		return out, err
	}
	n, copyErr := io.Copy(io.Discard, r)
	r.Close()
	if copyErr != nil {
		return out, errors.E(errors.Unavailable, "verb.eat: read blob", copyErr)
	}
	out.Size = n
	if r.Corrupt() {
		log.Error.Printf("verb.eat: corrupt blob %s", u)
		if werr := proto.WriteNo(s.W); werr != nil {
			return out, errors.E(errors.Net, "verb.eat: write no", werr)
		}
		out.ChatHistory = "no"
		return out, nil
	}
	if werr := proto.WriteOK(s.W); werr != nil {
		return out, errors.E(errors.Net, "verb.eat: write ok", werr)
	}
	out.ChatHistory = "ok"
	return out, nil
}
