package client

import (
	"context"
	"io"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/serviceuri"
	"github.com/jmscott/blobio/store"
)

// fsDriver serves verbs straight out of a local store, never touching a
// socket, the way cli/blobio/fs.c maps each verb onto the store's own
// directory tree. Wrap and roll are service-side operations over the
// daemon's BRR log, which a bare filesystem store does not have; they
// report NotSupported, as fs.c leaves them unimplemented.
type fsDriver struct {
	store   *store.Store
	trustFS bool
}

func newFS(svc serviceuri.Service) (*fsDriver, error) {
	st, err := store.Open(svc.Root)
	if err != nil {
		return nil, err
	}
	return &fsDriver{store: st, trustFS: svc.TrustFS}, nil
}

func (d *fsDriver) Close() error { return d.store.Close() }

func (d *fsDriver) Get(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}
	exists, err := d.store.Exists(u)
	if err != nil || !exists {
		return false, 0, err
	}
	return d.copyOut(u, alg, dst)
}

func (d *fsDriver) copyOut(u digest.Udig, alg digest.Algorithm, dst io.Writer) (bool, int64, error) {
	r, err := d.store.OpenVerified(u, alg, d.trustFS)
	if err != nil {
		return false, 0, err
	}
	defer r.Close()
	n, err := io.Copy(dst, r)
	if err != nil {
		return false, n, errors.E(errors.Unavailable, "client: read blob", err)
	}
	if r.Corrupt() {
		return false, n, errors.E(errors.Integrity, "client: blob "+u.String()+" is corrupt on disk")
	}
	return true, n, nil
}

func (d *fsDriver) Put(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	return d.accept(ctx, "put", u, src)
}

func (d *fsDriver) Give(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	// With no second party there is no one to hand ownership to; give
	// degenerates to put, and the caller's own copy is the caller's
	// business.
	return d.accept(ctx, "give", u, src)
}

func (d *fsDriver) accept(ctx context.Context, verb string, u digest.Udig, src io.Reader) (bool, int64, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}
	res, err := d.store.Publish(ctx, verb, alg, u, src)
	if err != nil {
		if errors.Is(errors.Invalid, err) {
			// The bytes do not hash to u: the wire protocol's "ok,no".
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, res.Size, nil
}

func (d *fsDriver) Take(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}
	protected, err := d.store.WrapProtected(u)
	if err != nil {
		return false, 0, err
	}
	if protected {
		return false, 0, nil
	}
	exists, err := d.store.Exists(u)
	if err != nil || !exists {
		return false, 0, err
	}
	ok, n, err := d.copyOut(u, alg, dst)
	if err != nil || !ok {
		return ok, n, err
	}
	if err := d.store.Remove(u); err != nil {
		return false, n, err
	}
	return true, n, nil
}

func (d *fsDriver) Eat(ctx context.Context, u digest.Udig) (bool, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, err
	}
	exists, err := d.store.Exists(u)
	if err != nil || !exists {
		return false, err
	}
	if d.trustFS {
		return true, nil
	}
	r, err := d.store.OpenVerified(u, alg, false)
	if err != nil {
		return false, err
	}
	_, err = io.Copy(io.Discard, r)
	r.Close()
	if err != nil {
		return false, errors.E(errors.Unavailable, "client: read blob", err)
	}
	return !r.Corrupt(), nil
}

func (d *fsDriver) Wrap(ctx context.Context, algName string) (digest.Udig, bool, error) {
	return digest.Udig{}, false, errors.E(errors.NotSupported, "client: fs service does not wrap")
}

func (d *fsDriver) Roll(ctx context.Context, setUdig digest.Udig) (bool, error) {
	return false, errors.E(errors.NotSupported, "client: fs service does not roll")
}
