package client

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/serviceuri"
)

// cache4Driver puts a local fs store in front of a bio4 service: get is
// answered from the local cache when possible, and a miss is fetched from
// the network and published into the cache on the way through.
//
// Only get and eat are served: mutating the store through the cache
// would let the two ends drift, so put/give/take/wrap/roll go straight
// to the bio4 service or not at all.
type cache4Driver struct {
	local  *fsDriver
	remote *bio4Driver
}

func newCache4(svc serviceuri.Service) (*cache4Driver, error) {
	local, err := newFS(serviceuri.Service{
		Scheme:  "fs",
		Root:    svc.Root,
		TrustFS: svc.TrustFS,
	})
	if err != nil {
		return nil, err
	}
	return &cache4Driver{local: local, remote: newBio4(svc)}, nil
}

func (d *cache4Driver) Close() error { return d.local.Close() }

func (d *cache4Driver) Get(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	ok, n, err := d.local.Get(ctx, u, dst)
	if err != nil || ok {
		return ok, n, err
	}

	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}

	// Cache miss: fetch from the network, teeing the stream into the
	// local store so the next get is answered here.
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	var remoteOK bool
	var size int64
	g.Go(func() error {
		ok, n, err := d.remote.Get(gctx, u, io.MultiWriter(dst, pw))
		remoteOK, size = ok, n
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		pw.Close()
		return nil
	})
	g.Go(func() error {
		_, err := d.local.store.Publish(gctx, "get", alg, u, pr)
		if err != nil {
			// Failing to cache is not failing the get; drain so the
			// fetch side never blocks on the pipe.
			io.Copy(io.Discard, pr) //nolint:errcheck // best-effort drain
			if remoteOK {
				log.Debug.Printf("client: cache4: cache %s: %v", u, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, size, err
	}
	return remoteOK, size, nil
}

func (d *cache4Driver) Eat(ctx context.Context, u digest.Udig) (bool, error) {
	ok, err := d.local.Eat(ctx, u)
	if err != nil || ok {
		return ok, err
	}
	return d.remote.Eat(ctx, u)
}

func (d *cache4Driver) Put(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	return false, 0, errCacheVerb("put")
}

func (d *cache4Driver) Give(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	return false, 0, errCacheVerb("give")
}

func (d *cache4Driver) Take(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	return false, 0, errCacheVerb("take")
}

func (d *cache4Driver) Wrap(ctx context.Context, algName string) (digest.Udig, bool, error) {
	return digest.Udig{}, false, errCacheVerb("wrap")
}

func (d *cache4Driver) Roll(ctx context.Context, setUdig digest.Udig) (bool, error) {
	return false, errCacheVerb("roll")
}

func errCacheVerb(verb string) error {
	return errors.E(errors.NotSupported, "client: cache4 service supports get and eat only, not "+verb)
}
