package verb

import (
	"context"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
)

// doGive is put's ok/accept/ok exchange, followed by a third round-trip
// in which the peer reports whether it has discarded its own copy now
// that the server holds one.
//
// The server drains that trailing token off the connection but never acts
// on its value: ownership transfer is the peer's own bookkeeping,
// recorded in the peer's local BRR, not this one. The audited history
// therefore stops at "ok,ok" even when the trailing token arrived.
func doGive(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	out := Outcome{Verb: "give"}
	u, ok := req.Udig()
	if !ok {
		return out, errors.E(errors.Invalid, "verb.give: missing target udig")
	}
	out.Udig = u

	alg, err := algorithmFor(req.Algorithm)
	if err != nil {
		return out, err
	}

	size, history, err := acceptBlob(ctx, s, "give", alg, u)
	out.Size = size
	out.ChatHistory = history
	if err != nil || history != "ok,ok" {
		return out, err
	}

	if _, rerr := proto.ReadReply(s.R); rerr != nil {
		return out, rerr
	}
	return out, nil
}
