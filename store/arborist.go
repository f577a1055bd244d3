package store

import (
	"os"
	"path/filepath"

	"github.com/jmscott/blobio/digest"
)

// arborist serializes de-publication of blobs and the opportunistic
// removal of the ancestor fanout directories that removal leaves empty:
// a single goroutine owning a request channel, so concurrent removals
// never race each other over shared directory prefixes.
type arborist struct {
	store *Store
	reqCh chan removeReq
	done  chan struct{}
}

type removeReq struct {
	udig  digest.Udig
	reply chan error
}

func newArborist(s *Store) *arborist {
	a := &arborist{
		store: s,
		reqCh: make(chan removeReq),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *arborist) run() {
	for {
		select {
		case req := <-a.reqCh:
			req.reply <- a.remove(req.udig)
		case <-a.done:
			return
		}
	}
}

func (a *arborist) stop() {
	close(a.done)
}

// Remove de-publishes u's blob: unlinks the file, then opportunistically
// trims its two innermost ancestor directories, tolerating both a
// concurrent remove of the same blob (ENOENT) and a non-empty ancestor
// (ENOTEMPTY).
func (s *Store) Remove(u digest.Udig) error {
	reply := make(chan error, 1)
	s.arborist.reqCh <- removeReq{udig: u, reply: reply}
	return <-reply
}

func (a *arborist) remove(u digest.Udig) error {
	path, err := a.store.DataPath(u)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	dir := filepath.Dir(path)
	for i := 0; i < 2; i++ {
		if err := os.Remove(dir); err != nil {
			// ENOTEMPTY (another blob shares this prefix) and ENOENT
			// (a concurrent take already won this directory) are both
			// normal conditions, not errors.
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
