package proto

import (
	"bufio"
	"io"

	"github.com/jmscott/blobio/errors"
)

// ChatHistory accumulates the comma-joined ok/no tokens that
// brr.Record.ChatHistory ultimately carries. Callers are bounded by
// construction (no verb exchanges more than three tokens), but Add
// still refuses silently-wrong growth past that bound.
type ChatHistory struct {
	tokens []string
}

// Add appends a token ("ok" or "no") to h.
func (h *ChatHistory) Add(ok bool) {
	if ok {
		h.tokens = append(h.tokens, "ok")
	} else {
		h.tokens = append(h.tokens, "no")
	}
	if len(h.tokens) > 3 {
		panic("proto.ChatHistory: more than 3 tokens")
	}
}

// String joins the accumulated tokens with commas.
func (h *ChatHistory) String() string {
	s := ""
	for i, t := range h.tokens {
		if i > 0 {
			s += ","
		}
		s += t
	}
	return s
}

// WriteOK writes the "ok\n" reply line.
func WriteOK(w io.Writer) error {
	_, err := io.WriteString(w, "ok\n")
	if err != nil {
		return errors.E(errors.Unknown, "proto.WriteOK", err)
	}
	return nil
}

// WriteNo writes the "no\n" reply line.
func WriteNo(w io.Writer) error {
	_, err := io.WriteString(w, "no\n")
	if err != nil {
		return errors.E(errors.Unknown, "proto.WriteNo", err)
	}
	return nil
}

// ReadReply reads a trailing "ok\n" or "no\n" token from r, tolerating a
// CR before the LF exactly as the request-line scanner does. It reports
// true for "ok", false for "no"; anything else on the wire is a protocol
// violation.
func ReadReply(r *bufio.Reader) (bool, error) {
	b1, err := r.ReadByte()
	if err != nil {
		return false, errors.E(errors.Invalid, "proto.ReadReply: read reply", err)
	}
	switch b1 {
	case 'o':
		if err := expect(r, 'k'); err != nil {
			return false, err
		}
		if err := expectNewline(r); err != nil {
			return false, err
		}
		return true, nil
	case 'n':
		if err := expect(r, 'o'); err != nil {
			return false, err
		}
		if err := expectNewline(r); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, errors.E(errors.Invalid, "proto.ReadReply: expected ok or no")
	}
}

func expect(r *bufio.Reader, want byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return errors.E(errors.Invalid, "proto.ReadReply: read reply", err)
	}
	if b != want {
		return errors.E(errors.Invalid, "proto.ReadReply: malformed reply token")
	}
	return nil
}

func expectNewline(r *bufio.Reader) error {
	b, err := readByteTolerateCR(r)
	if err != nil {
		return errors.E(errors.Invalid, "proto.ReadReply: read reply", err)
	}
	if b != '\n' {
		return errors.E(errors.Invalid, "proto.ReadReply: reply token not newline-terminated")
	}
	return nil
}
