// Package proto implements the wire-level request parser and reply
// primitives: the four-state byte scanner that extracts
// "verb[ algorithm:digest]\n" from a connection, and the ok/no reply
// exchange shared by every verb's chat history.
package proto

import (
	"bufio"
	"fmt"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/limitbuf"
)

// Verbs is the fixed vocabulary of request verbs.
var Verbs = map[string]bool{
	"get":  true,
	"put":  true,
	"give": true,
	"take": true,
	"eat":  true,
	"wrap": true,
	"roll": true,
}

// Request is a parsed request line. Algorithm and Digest are both empty
// for a bare "wrap\n" request (the target is absent for wrap);
// the grammar also allows "wrap algorithm\n", naming a wrap algorithm for
// that call with no digest, which leaves Digest empty and Algorithm set.
type Request struct {
	Verb      string
	Algorithm string
	Digest    string
}

// Udig reports r's target udig and whether one was present.
func (r Request) Udig() (digest.Udig, bool) {
	if r.Digest == "" {
		return digest.Udig{}, false
	}
	return digest.Udig{Algorithm: r.Algorithm, Digest: r.Digest}, true
}

type scanState int

const (
	scanVerb scanState = iota
	scanAlgorithm
	scanDigest
)

func (s scanState) String() string {
	switch s {
	case scanVerb:
		return "SCAN_VERB"
	case scanAlgorithm:
		return "SCAN_ALGORITHM"
	case scanDigest:
		return "SCAN_DIGEST"
	default:
		return "SCAN_UNKNOWN"
	}
}

const (
	minVerbLen   = 3
	maxVerbLen   = 5
	minAlgoLen   = 1
	maxAlgoLen   = 8
	minDigestLen = 32
	maxDigestLen = 128
)

// Parse reads one request line from r, byte by byte, stopping exactly at
// the newline. Any payload bytes that arrived in the same read stay
// buffered in the *bufio.Reader, which the caller keeps reading for the
// rest of the request, so there is no separate scan-ahead value to
// thread through the call.
func Parse(r *bufio.Reader) (Request, error) {
	var req Request
	state := scanVerb
	var buf []byte

	for {
		b, err := readByteTolerateCR(r)
		if err != nil {
			return Request{}, errors.E(errors.Invalid, "proto.Parse: read request line", err)
		}

		switch state {
		case scanVerb:
			switch {
			case b == ' ':
				if err := setVerb(&req, buf); err != nil {
					return Request{}, err
				}
				buf = nil
				state = scanAlgorithm
			case b == '\n':
				if err := setVerb(&req, buf); err != nil {
					return Request{}, err
				}
				if req.Verb != "wrap" {
					return Request{}, errors.E(errors.Invalid,
						fmt.Sprintf("proto.Parse: verb %q requires algorithm:digest", req.Verb))
				}
				return req, nil
			case b >= 'a' && b <= 'z':
				if len(buf) >= maxVerbLen {
					return Request{}, parseErr(state, b)
				}
				buf = append(buf, b)
			default:
				return Request{}, parseErr(state, b)
			}

		case scanAlgorithm:
			switch {
			case b == ':':
				if err := setAlgorithm(&req, buf); err != nil {
					return Request{}, err
				}
				buf = nil
				state = scanDigest
			case b == '\n':
				if req.Verb != "wrap" {
					return Request{}, errors.E(errors.Invalid,
						"proto.Parse: bare algorithm with no digest is legal only for wrap")
				}
				if err := setAlgorithm(&req, buf); err != nil {
					return Request{}, err
				}
				return req, nil
			case isAlgorithmByte(b, len(buf)):
				if len(buf) >= maxAlgoLen {
					return Request{}, parseErr(state, b)
				}
				buf = append(buf, b)
			default:
				return Request{}, parseErr(state, b)
			}

		case scanDigest:
			switch {
			case b == '\n':
				if err := setDigest(&req, buf); err != nil {
					return Request{}, err
				}
				return req, nil
			case isGraphicASCIIByte(b):
				if len(buf) >= maxDigestLen {
					return Request{}, parseErr(state, b)
				}
				buf = append(buf, b)
			default:
				return Request{}, parseErr(state, b)
			}
		}
	}
}

// readByteTolerateCR reads the next logical byte of the request line,
// collapsing a CR that immediately precedes an LF into the LF itself
// into the LF itself. A bare CR not followed
// by LF is a grammar violation.
func readByteTolerateCR(r *bufio.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != '\r' {
		return b, nil
	}
	nb, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if nb != '\n' {
		return 0, fmt.Errorf("proto: bare CR not followed by LF (got 0x%02x)", nb)
	}
	return '\n', nil
}

func setVerb(req *Request, buf []byte) error {
	if len(buf) < minVerbLen || len(buf) > maxVerbLen {
		return errors.E(errors.Invalid, fmt.Sprintf("proto.Parse: verb length %d out of [%d,%d]", len(buf), minVerbLen, maxVerbLen))
	}
	verb := string(buf)
	if !Verbs[verb] {
		return errors.E(errors.Invalid, fmt.Sprintf("proto.Parse: unknown verb %q", verb))
	}
	req.Verb = verb
	return nil
}

func setAlgorithm(req *Request, buf []byte) error {
	if len(buf) < minAlgoLen || len(buf) > maxAlgoLen {
		return errors.E(errors.Invalid, fmt.Sprintf("proto.Parse: algorithm length %d out of [%d,%d]", len(buf), minAlgoLen, maxAlgoLen))
	}
	req.Algorithm = string(buf)
	return nil
}

func setDigest(req *Request, buf []byte) error {
	if len(buf) < minDigestLen || len(buf) > maxDigestLen {
		return errors.E(errors.Invalid, fmt.Sprintf("proto.Parse: digest length %d out of [%d,%d]", len(buf), minDigestLen, maxDigestLen))
	}
	req.Digest = string(buf)
	return nil
}

func isAlgorithmByte(b byte, pos int) bool {
	if pos == 0 {
		return b >= 'a' && b <= 'z'
	}
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func isGraphicASCIIByte(b byte) bool {
	return b > 0x20 && b < 0x7f
}

// parseErr builds a client-error diagnostic naming the offending byte in
// hex and the scanner state, capped by limitbuf so a
// pathological byte stream cannot grow the message unboundedly.
func parseErr(state scanState, b byte) error {
	lg := limitbuf.NewLogger(64)
	fmt.Fprintf(lg, "proto.Parse: unexpected byte 0x%02x in state %s", b, state)
	return errors.E(errors.Invalid, lg.String())
}
