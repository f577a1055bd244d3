package verb

import (
	"context"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
)

// doRoll dissolves the wrap set named by the
// request udig, unlinking each member file it names.
func doRoll(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "roll"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.roll: missing target udig")
	}
	out.Udig = u

	alg, err := algorithmFor(req.Algorithm)
	if err != nil {
		return out, err
	}

	_, err = s.WrapRoll.Roll(ctx, alg, u)
	if err != nil {
		if errors.Is(errors.NotExist, err) || errors.Is(errors.Invalid, err) {
			if werr := proto.WriteNo(s.W); werr != nil {
				return out, errors.E(errors.Net, "verb.roll: write no", werr)
			}
			out.ChatHistory = "no"
			return out, nil
		}
		return out, err
	}

	if werr := proto.WriteOK(s.W); werr != nil {
		return out, errors.E(errors.Net, "verb.roll: write ok", werr)
	}
	out.ChatHistory = "ok,ok"
	return out, nil
}
