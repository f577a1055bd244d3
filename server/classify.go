package server

import (
	stderrors "errors"

	"github.com/jmscott/blobio/errors"
)

// Outcome is the low two bits of a request's exit classification
//: how the request as a whole resolved.
type Outcome uint8

const (
	Success Outcome = iota
	ClientError
	TimedOut
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ClientError:
		return "client-error"
	case TimedOut:
		return "timeout"
	default:
		return "fault"
	}
}

// verbCode maps a verb to its 3-bit field; 0 is reserved for "unused"
// (no verb was ever parsed off the wire).
var verbCode = map[string]uint8{
	"get": 1, "put": 2, "give": 3, "take": 4, "eat": 5, "wrap": 6, "roll": 7,
}

var codeVerb = [8]string{"", "get", "put", "give", "take", "eat", "wrap", "roll"}

// chatCode maps a chat history to its 2-bit field: 0 for an all-ok
// exchange, then the position of the peer's (or our) terminating no.
func chatCode(history string) uint8 {
	switch history {
	case "no":
		return 1
	case "ok,no":
		return 2
	case "ok,ok,no":
		return 3
	default:
		return 0
	}
}

var codeChat = [4]string{"ok", "no", "ok-no", "ok-ok-no"}

// Class packs a request's exit classification into 7 bits: bits 0-1
// outcome, bits 2-4 verb, bits 5-6 chat outcome. The layout matches a
// wait status as used when each request ran in a forked child, so the
// value stays stable for tooling that knows it; here it only indexes
// the supervisor's counters.
type Class uint8

// NewClass builds the classification for a completed request.
func NewClass(o Outcome, verb, chat string) Class {
	return Class(uint8(o) | verbCode[verb]<<2 | chatCode(chat)<<5)
}

// Outcome returns the outcome-class bits.
func (c Class) Outcome() Outcome {
	return Outcome(c & 0x3)
}

// Verb returns the verb the classification names, "" for unused.
func (c Class) Verb() string {
	return codeVerb[(c>>2)&0x7]
}

// Chat returns the chat-outcome bits' name.
func (c Class) Chat() string {
	return codeChat[(c>>5)&0x3]
}

// classifyErr maps a verb dispatch error onto the outcome taxonomy:
// Invalid and Net kinds are client errors (a grammatically bad
// request, or a peer that vanished mid-exchange), Timeout kinds are
// timeouts, and everything else is an OS-level fault.
func classifyErr(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case isTimeout(err):
		return TimedOut
	case errors.Is(errors.Invalid, err), errors.Is(errors.Net, err):
		return ClientError
	default:
		return Faulted
	}
}

// isTimeout walks err's whole cause chain looking for a timeout, so a
// deadline expiry stays classified as one even after the verb state
// machine wraps it with a kind of its own.
func isTimeout(err error) bool {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if t, ok := e.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
	}
	return false
}
