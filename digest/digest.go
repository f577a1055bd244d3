// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package digest provides the uniform digest ("udig") abstraction: the
// algorithm registry, ASCII parse/format, well-known empty digests, and
// the directory fanout derived from a digest's prefix bytes.
//
// A digest module is polymorphic over the capability set {init, update,
// copy-state, finalize, is-syntactic, is-empty, empty-udig, parse-ascii,
// format-ascii, path-fanout}; State carries init/update/copy-state/finalize,
// Algorithm carries the rest.
package digest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmscott/blobio/must"
)

var (
	// ErrInvalidUdig is returned when a string does not parse as a udig.
	ErrInvalidUdig = errors.New("digest: invalid udig")
	// ErrUnknownAlgorithm is returned when a udig names an algorithm that
	// has not been registered.
	ErrUnknownAlgorithm = errors.New("digest: unknown algorithm")
)

// State is a running, incremental digest computation. Clone must be cheap:
// the verb state machine clones the running state after every chunk,
// finalizes the clone, and compares it against a target udig without
// disturbing the original.
type State interface {
	// Write folds p into the running digest. Write never returns an error;
	// hash.Hash implementations never fail to write.
	Write(p []byte) (n int, err error)

	// Clone returns an independent copy of the current state.
	Clone() State

	// AsciiDigest finalizes the state and formats the result in the
	// algorithm's ASCII digest alphabet. Finalizing consumes the state;
	// callers that need to continue writing must Clone first.
	AsciiDigest() string
}

// Algorithm is a registered digest module.
type Algorithm interface {
	// Name is the lowercase algorithm name appearing before the ':' in a
	// udig, e.g. "sha", "bc160", "btc20", "skein".
	Name() string

	// NewState returns a fresh State for incremental hashing.
	NewState() State

	// IsSyntacticDigest reports whether s has the syntactic shape of a
	// digest produced by this algorithm (length and alphabet only; it does
	// not imply any blob actually hashes to s).
	IsSyntacticDigest(s string) bool

	// EmptyDigest is this algorithm's ASCII digest of the zero-length blob.
	EmptyDigest() string

	// Fanout splits an ASCII digest into the directory path segments under
	// which a blob with that digest is stored, innermost-last, not
	// including the final full-digest file name component.
	Fanout(asciiDigest string) ([]string, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Algorithm{}
)

// Register adds alg to the algorithm registry. Register panics if an
// algorithm of the same name is already registered; it is meant to be
// called from package init functions only.
func Register(alg Algorithm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := alg.Name()
	if _, ok := registry[name]; ok {
		panic("digest: algorithm already registered: " + name)
	}
	must.Truef(isAlgorithmName(name), "digest: malformed algorithm name %q", name)
	must.Truef(alg.IsSyntacticDigest(alg.EmptyDigest()),
		"digest: %s empty digest fails its own syntax", name)
	registry[name] = alg
}

// Lookup returns the registered Algorithm named name, if any.
func Lookup(name string) (Algorithm, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	alg, ok := registry[name]
	return alg, ok
}

// Algorithms returns the registered algorithm names in frozen
// lexicographic order, so enumeration is reproducible across runs.
func Algorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Udig is a parsed uniform digest: algorithm, ":", ascii digest.
type Udig struct {
	Algorithm string
	Digest    string
}

// String formats u in its canonical "algorithm:digest" form.
func (u Udig) String() string {
	return u.Algorithm + ":" + u.Digest
}

// IsZero reports whether u is the zero value (no algorithm parsed).
func (u Udig) IsZero() bool {
	return u.Algorithm == "" && u.Digest == ""
}

// Less orders udigs first by algorithm, then byte-lexicographically by
// digest; used to give the wrap set a deterministic enumeration order.
func (u Udig) Less(v Udig) bool {
	if u.Algorithm != v.Algorithm {
		return u.Algorithm < v.Algorithm
	}
	return u.Digest < v.Digest
}

// isAlgorithmName reports whether s satisfies the udig grammar for an
// algorithm name: 1-8 characters, [a-z] then [a-z0-9]*.
func isAlgorithmName(s string) bool {
	if len(s) < 1 || len(s) > 8 {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// isGraphicASCII reports whether s is entirely graphic, non-space ASCII,
// the alphabet the digest field of a udig must stay within.
func isGraphicASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f {
			return false
		}
	}
	return true
}

// Parse parses s as "algorithm:digest", validating the udig grammar
// (algorithm 1-8 chars [a-z][a-z0-9]*, digest 32-128 graphic
// ASCII characters) and the named algorithm's own syntactic shape.
func Parse(s string) (Udig, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return Udig{}, ErrInvalidUdig
	}
	algName, dig := s[:i], s[i+1:]
	if !isAlgorithmName(algName) {
		return Udig{}, ErrInvalidUdig
	}
	if len(dig) < 32 || len(dig) > 128 || !isGraphicASCII(dig) {
		return Udig{}, ErrInvalidUdig
	}
	alg, ok := Lookup(algName)
	if !ok {
		return Udig{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algName)
	}
	if !alg.IsSyntacticDigest(dig) {
		return Udig{}, ErrInvalidUdig
	}
	return Udig{Algorithm: algName, Digest: dig}, nil
}

// EmptyUdig returns the well-known udig of the empty blob under the named
// algorithm.
func EmptyUdig(algName string) (Udig, error) {
	alg, ok := Lookup(algName)
	if !ok {
		return Udig{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algName)
	}
	return Udig{Algorithm: algName, Digest: alg.EmptyDigest()}, nil
}

// FanoutPath returns the directory path segments (innermost-last) plus
// the full-digest file name for u, as defined by u's algorithm.
func FanoutPath(u Udig) ([]string, error) {
	alg, ok := Lookup(u.Algorithm)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, u.Algorithm)
	}
	dirs, err := alg.Fanout(u.Digest)
	if err != nil {
		return nil, err
	}
	path := make([]string, 0, len(dirs)+1)
	path = append(path, dirs...)
	path = append(path, u.Digest)
	return path, nil
}

// Writer adapts an Algorithm's State to io.Writer: bytes streamed
// through Write accumulate into the running digest, retrievable at any
// point via Udig.
type Writer struct {
	alg   Algorithm
	state State
}

// NewWriter returns a Writer accumulating a digest under alg.
func NewWriter(alg Algorithm) Writer {
	return Writer{alg: alg, state: alg.NewState()}
}

func (w Writer) Write(p []byte) (int, error) {
	return w.state.Write(p)
}

// Udig finalizes a clone of the running state and returns it as a udig.
// The Writer itself remains usable for further writes.
func (w Writer) Udig() Udig {
	return Udig{Algorithm: w.alg.Name(), Digest: w.state.Clone().AsciiDigest()}
}
