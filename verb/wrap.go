package verb

import (
	"context"
	"io"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
)

// doWrap freezes the BRR log, publishes it and
// the resulting wrap-set snapshot, and return the snapshot's udig.
func doWrap(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "wrap"}

	alg := s.WrapAlgo
	if req.Algorithm != "" {
		a, err := algorithmFor(req.Algorithm)
		if err != nil {
			return out, err
		}
		alg = a
	}

	result, err := s.WrapRoll.WrapWithAlgorithm(ctx, alg)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			if werr := proto.WriteNo(s.W); werr != nil {
				return out, errors.E(errors.Net, "verb.wrap: write no", werr)
			}
			out.ChatHistory = "no"
			return out, nil
		}
		return out, err
	}

	out.Udig = result.SetUdig
	if werr := proto.WriteOK(s.W); werr != nil {
		return out, errors.E(errors.Net, "verb.wrap: write ok", werr)
	}
	if _, werr := io.WriteString(s.W, result.SetUdig.String()+"\n"); werr != nil {
		return out, errors.E(errors.Net, "verb.wrap: write set udig", werr)
	}
	out.ChatHistory = "ok,ok"
	return out, nil
}
