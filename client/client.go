// Package client implements the initiator's side of the blob protocol:
// a Driver per service scheme mirroring the verb state machines from the
// requesting end. The bio4 driver speaks the wire protocol over TCP; the
// fs driver short-circuits the wire entirely and works a local store;
// the cache4 driver puts a local fs cache in front of a bio4 service.
package client

import (
	"context"
	"io"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/serviceuri"
)

// Driver runs one protocol exchange per call against a single service.
// The boolean result mirrors the wire's ok/no: a "no" from the service is
// not an error, it is the protocol saying the blob is absent, refused, or
// protected.
type Driver interface {
	// Get streams the blob u into dst.
	Get(ctx context.Context, u digest.Udig, dst io.Writer) (ok bool, size int64, err error)

	// Put stores the blob u, reading its bytes from src.
	Put(ctx context.Context, u digest.Udig, src io.Reader) (ok bool, size int64, err error)

	// Give is Put plus the final round-trip in which this side
	// acknowledges it may now forget its own copy.
	Give(ctx context.Context, u digest.Udig, src io.Reader) (ok bool, size int64, err error)

	// Take streams the blob u into dst and asks the service to remove it.
	Take(ctx context.Context, u digest.Udig, dst io.Writer) (ok bool, size int64, err error)

	// Eat verifies the blob u exists (and, service permitting, is
	// internally consistent) without transferring it.
	Eat(ctx context.Context, u digest.Udig) (ok bool, err error)

	// Wrap freezes the service's BRR log and returns the wrap-set udig.
	// algName optionally overrides the service's wrap algorithm; "" asks
	// for the default.
	Wrap(ctx context.Context, algName string) (set digest.Udig, ok bool, err error)

	// Roll dissolves the wrap set identified by setUdig.
	Roll(ctx context.Context, setUdig digest.Udig) (ok bool, err error)

	// Close releases whatever the driver holds open.
	Close() error
}

// New builds the Driver for a parsed service URI.
func New(svc serviceuri.Service) (Driver, error) {
	switch svc.Scheme {
	case "bio4":
		return newBio4(svc), nil
	case "fs":
		return newFS(svc)
	case "cache4":
		return newCache4(svc)
	default:
		return nil, errors.E(errors.Invalid, "client: unknown service scheme "+svc.Scheme)
	}
}

func algorithmOf(u digest.Udig) (digest.Algorithm, error) {
	alg, ok := digest.Lookup(u.Algorithm)
	if !ok {
		return nil, errors.E(errors.Invalid, "client: unknown algorithm "+u.Algorithm)
	}
	return alg, nil
}
