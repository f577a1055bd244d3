// Package verb implements the per-verb chat protocols: get, put, give,
// take, eat, wrap, and roll, each driving an ok/no exchange with the peer
// while streaming bytes through the digest and storage engines.
//
// Handlers return a structured Outcome instead of writing a BRR record
// directly: the connection supervisor (package server) owns BRR emission.
package verb

import (
	"bufio"
	"context"
	"io"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
	"github.com/jmscott/blobio/store"
	"github.com/jmscott/blobio/wraproll"
)

// Session is the per-request context a verb handler runs under: the
// storage and wrap/roll engines it drives, the buffered connection it
// reads requests and writes replies on, and the behavioral knobs exposed
// through the service URI's query options.
type Session struct {
	Store    *store.Store
	WrapRoll *wraproll.Engine

	R *bufio.Reader
	W io.Writer

	// TrustFS disables read-back digest verification on get/take/eat and
	// end-to-end verification on put/give.
	TrustFS bool

	// WrapAlgo resolves a bare "wrap" request's own algorithm when the
	// peer did not name one in "wrap algorithm\n".
	WrapAlgo digest.Algorithm
}

// Outcome is what a verb handler hands back to the connection supervisor:
// enough to build one BRR record regardless of
// whether the exchange ultimately succeeded.
type Outcome struct {
	Verb        string
	Udig        digest.Udig // zero only for a failed wrap
	ChatHistory string
	Size        int64
}

// Dispatch routes req to its verb handler. The returned error, when
// non-nil, is always an errors.E value whose Kind classifies the outcome
// (Invalid = client error, Timeout, Integrity = blob
// corruption, Fatal = OS-level fault); Outcome is always populated with
// whatever chat history and size accumulated before the error, so the
// supervisor can still emit a BRR record.
func Dispatch(ctx context.Context, s *Session, req proto.Request) (Outcome, error) {
	switch req.Verb {
	case "get":
		return doGet(ctx, s, req)
	case "put":
		return doPut(ctx, s, req)
	case "give":
		return doGive(ctx, s, req)
	case "take":
		return doTake(ctx, s, req)
	case "eat":
		return doEat(ctx, s, req)
	case "wrap":
		return doWrap(ctx, s, req)
	case "roll":
		return doRoll(ctx, s, req)
	default:
		return Outcome{Verb: req.Verb}, errors.E(errors.Invalid, "verb.Dispatch: unknown verb "+req.Verb)
	}
}

// algorithmFor resolves req's named algorithm, yielding an Invalid-kind
// error naming the unknown algorithm for an unregistered name.
func algorithmFor(name string) (digest.Algorithm, error) {
	alg, ok := digest.Lookup(name)
	if !ok {
		return nil, errors.E(errors.Invalid, "verb: unknown algorithm "+name)
	}
	return alg, nil
}
