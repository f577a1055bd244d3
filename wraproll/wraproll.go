// Package wraproll implements the wrap/roll engine: freezing the BRR
// log, self-digesting and publishing the frozen log, maintaining the
// wrap set snapshot under spool/wrap/, and dissolving a wrap set by udig.
//
// Wrap runs the freeze-then-digest-then-snapshot sequence; Roll is the
// unlink pass that tolerates ENOENT from a concurrent roll.
package wraproll

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jmscott/blobio/brrlog"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/store"
	"github.com/jmscott/blobio/sync/multierror"
	"github.com/jmscott/blobio/traverse"
)

// Engine ties a store and BRR logger together to implement wrap and roll.
type Engine struct {
	Store     *store.Store
	Logger    *brrlog.Logger
	WrapAlgo  digest.Algorithm
}

// New returns an Engine wrapping s and l, self-digesting with wrapAlgo
//.
func New(s *store.Store, l *brrlog.Logger, wrapAlgo digest.Algorithm) *Engine {
	return &Engine{Store: s, Logger: l, WrapAlgo: wrapAlgo}
}

// WrapResult is the outcome of a successful Wrap.
type WrapResult struct {
	// SetUdig is the udig returned to the peer: the digest of the sorted
	// wrap-set member list.
	SetUdig digest.Udig
}

// Wrap freezes the current BRR log, publishes it as a blob, adds it to
// the wrap set, and republishes the set's udig-sorted snapshot, digesting
// with e.WrapAlgo. It returns brrlog.ErrNoLog, unwrapped, when no BRR log
// exists yet.
func (e *Engine) Wrap(ctx context.Context) (WrapResult, error) {
	return e.WrapWithAlgorithm(ctx, e.WrapAlgo)
}

// WrapWithAlgorithm is Wrap, digesting with alg instead of e.WrapAlgo: the
// request-line grammar allows "wrap algorithm\n", naming a
// wrap algorithm for that one call.
func (e *Engine) WrapWithAlgorithm(ctx context.Context, alg digest.Algorithm) (WrapResult, error) {
	frozenPath, err := e.Logger.Freeze(ctx)
	if err != nil {
		return WrapResult{}, err
	}

	f, err := os.Open(frozenPath)
	if err != nil {
		return WrapResult{}, errors.E(errors.Fatal, "wraproll.Wrap: open frozen log", err)
	}
	w := digest.NewWriter(alg)
	if _, err := io.Copy(w, f); err != nil {
		f.Close()
		return WrapResult{}, errors.E(errors.Fatal, "wraproll.Wrap: digest frozen log", err)
	}
	f.Close()
	frozenUdig := w.Udig()

	f, err = os.Open(frozenPath)
	if err != nil {
		return WrapResult{}, errors.E(errors.Fatal, "wraproll.Wrap: reopen frozen log", err)
	}
	_, err = e.Store.Publish(ctx, "wrap", alg, frozenUdig, f)
	f.Close()
	if err != nil {
		return WrapResult{}, err
	}

	if err := os.Rename(frozenPath, e.Store.WrapPath(frozenUdig)); err != nil {
		return WrapResult{}, errors.E(errors.Fatal, "wraproll.Wrap: move into wrap set", err)
	}

	setUdig, err := e.buildAndPublishSet(ctx, alg)
	if err != nil {
		return WrapResult{}, err
	}
	return WrapResult{SetUdig: setUdig}, nil
}

// buildAndPublishSet enumerates spool/wrap/*.brr, extracts each member's
// udig, sorts them byte-lexicographically so the snapshot never depends
// on directory enumeration order, and publishes the newline-terminated
// member list as a blob under e.WrapAlgo.
func (e *Engine) buildAndPublishSet(ctx context.Context, alg digest.Algorithm) (digest.Udig, error) {
	entries, err := os.ReadDir(e.Store.WrapDir())
	if err != nil {
		return digest.Udig{}, errors.E(errors.Fatal, "wraproll.Wrap: enumerate wrap set", err)
	}

	members := make([]digest.Udig, len(entries))
	err = traverse.Each(len(entries)).Do(func(i int) error {
		u, parseErr := udigFromWrapFilename(entries[i].Name())
		if parseErr != nil {
			return parseErr
		}
		members[i] = u
		return nil
	})
	if err != nil {
		return digest.Udig{}, errors.E(errors.Fatal, "wraproll.Wrap: parse wrap set members", err)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })

	var buf bytes.Buffer
	for _, u := range members {
		buf.WriteString(u.String())
		buf.WriteByte('\n')
	}

	w := digest.NewWriter(alg)
	w.Write(buf.Bytes()) //nolint:errcheck // digest.Writer.Write never errors
	setUdig := w.Udig()

	if _, err := e.Store.Publish(ctx, "wrap", alg, setUdig, bytes.NewReader(buf.Bytes())); err != nil {
		return digest.Udig{}, err
	}
	return setUdig, nil
}

func udigFromWrapFilename(name string) (digest.Udig, error) {
	stem := strings.TrimSuffix(name, ".brr")
	if stem == name {
		return digest.Udig{}, fmt.Errorf("wraproll: unexpected wrap-set file name %q", name)
	}
	return digest.Parse(stem)
}

// RollResult is the outcome of a successful Roll.
type RollResult struct {
	// Removed is the number of spool/wrap/ files unlinked.
	Removed int
}

// Roll dissolves the wrap set identified by setUdig: it fetches the
// udig-set blob, parses it into a set of member udigs, and unlinks every
// spool/wrap/ file whose udig is a member, tolerating ENOENT for files a
// concurrent roll already removed.
func (e *Engine) Roll(ctx context.Context, alg digest.Algorithm, setUdig digest.Udig) (RollResult, error) {
	r, err := e.Store.OpenVerified(setUdig, alg, false)
	if err != nil {
		return RollResult{}, err
	}
	defer r.Close()

	set := map[digest.Udig]bool{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		u, err := digest.Parse(scanner.Text())
		if err != nil {
			return RollResult{}, errors.E(errors.Invalid, "wraproll.Roll: malformed wrap-set blob", err)
		}
		set[u] = true
	}
	if err := scanner.Err(); err != nil {
		return RollResult{}, errors.E(errors.Invalid, "wraproll.Roll: read wrap-set blob", err)
	}
	if r.Corrupt() {
		return RollResult{}, errors.E(errors.Integrity, "wraproll.Roll: wrap-set blob corrupt")
	}

	merr := multierror.NewMultiError(len(set))
	removed := 0
	for u := range set {
		path := e.Store.WrapPath(u)
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				merr.Add(err)
			}
			continue
		}
		removed++
	}
	if err := merr.ErrorOrNil(); err != nil {
		return RollResult{Removed: removed}, errors.E(errors.Fatal, "wraproll.Roll: unlink wrap-set members", err)
	}
	return RollResult{Removed: removed}, nil
}
