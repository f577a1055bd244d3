// Package brr implements the blob request record: the tab-delimited,
// newline-terminated audit log line, its fixed field grammar and
// 35-419 byte size bound, and the "frisker" validator every emitted
// record must round-trip through byte-identically.
package brr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mask is the per-verb bitfield selecting which verbs produce BRR
// records.
type Mask uint8

const (
	MaskGet  Mask = 0x01
	MaskTake Mask = 0x02
	MaskPut  Mask = 0x04
	MaskGive Mask = 0x08
	MaskEat  Mask = 0x10
	MaskWrap Mask = 0x20
	MaskRoll Mask = 0x40
	// MaskCat is defined for on-disk/wire compatibility with the mask's
	// bit layout; no "cat" verb exists in the protocol parser, so no code
	// path ever sets it.
	MaskCat Mask = 0x80

	MaskAll Mask = MaskGet | MaskTake | MaskPut | MaskGive | MaskEat | MaskWrap | MaskRoll
)

var verbMask = map[string]Mask{
	"get":  MaskGet,
	"take": MaskTake,
	"put":  MaskPut,
	"give": MaskGive,
	"eat":  MaskEat,
	"wrap": MaskWrap,
	"roll": MaskRoll,
}

// Has reports whether m selects verb.
func (m Mask) Has(verb string) bool {
	bit, ok := verbMask[verb]
	return ok && m&bit != 0
}

// ParseMask builds a Mask from a comma-separated verb list, e.g.
// "get,put,wrap". The empty string means every verb.
func ParseMask(s string) (Mask, error) {
	if s == "" {
		return MaskAll, nil
	}
	var m Mask
	for _, verb := range strings.Split(s, ",") {
		bit, ok := verbMask[verb]
		if !ok {
			return 0, fmt.Errorf("brr: unknown verb %q in mask", verb)
		}
		m |= bit
	}
	return m, nil
}

// Legal chat histories and their audit meaning.
const (
	ChatOK     = "ok"
	ChatNo     = "no"
	ChatOKOK   = "ok,ok"
	ChatOKNo   = "ok,no"
	ChatOKOKOK = "ok,ok,ok"
	ChatOKOKNo = "ok,ok,no"
)

var legalChatHistories = map[string]bool{
	ChatOK: true, ChatNo: true, ChatOKOK: true,
	ChatOKNo: true, ChatOKOKOK: true, ChatOKOKNo: true,
}

// Record is a single blob request record: one line of the append-only
// audit log.
type Record struct {
	Timestamp    time.Time // always formatted/parsed in UTC
	Transport    string    // "<proto8>~<up-to-128-graphic-ASCII>"
	Verb         string
	Udig         string // "algorithm:digest", empty only for a failed wrap
	ChatHistory  string
	Size         int64
	WallDuration time.Duration
}

const (
	minSize = 35
	maxSize = 419
)

// String formats r as its tab-delimited log line, including
// the terminating newline.
func (r Record) String() string {
	sec := int64(r.WallDuration / time.Second)
	nsec := int64(r.WallDuration%time.Second) / int64(time.Nanosecond)
	return fmt.Sprintf(
		"%s\t%s\t%s\t%s\t%s\t%d\t%d.%09d\n",
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Transport,
		r.Verb,
		r.Udig,
		r.ChatHistory,
		r.Size,
		sec, nsec,
	)
}

// Validate checks r against the BRR grammar: legal verb and
// chat-history enumeration, non-negative size and wall duration, and the
// 35-419 byte line-length bound (applied to r's own formatted form).
func (r Record) Validate() error {
	if _, ok := verbMask[r.Verb]; !ok {
		return fmt.Errorf("brr: unknown verb %q", r.Verb)
	}
	if !legalChatHistories[r.ChatHistory] {
		return fmt.Errorf("brr: illegal chat history %q", r.ChatHistory)
	}
	if r.Size < 0 {
		return fmt.Errorf("brr: negative size %d", r.Size)
	}
	if r.WallDuration < 0 {
		return fmt.Errorf("brr: negative wall duration %v", r.WallDuration)
	}
	if n := len(r.String()); n < minSize || n > maxSize {
		return fmt.Errorf("brr: formatted record is %d bytes, want %d-%d", n, minSize, maxSize)
	}
	return nil
}

// Parse parses a single BRR line (with or without its terminating
// newline) back into a Record.
func Parse(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return Record{}, fmt.Errorf("brr: want 7 tab-delimited fields, got %d", len(fields))
	}
	ts, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("brr: timestamp: %w", err)
	}
	size, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("brr: size: %w", err)
	}
	secNsec := strings.SplitN(fields[6], ".", 2)
	if len(secNsec) != 2 {
		return Record{}, fmt.Errorf("brr: malformed wall duration %q", fields[6])
	}
	sec, err := strconv.ParseInt(secNsec[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("brr: wall seconds: %w", err)
	}
	nsec, err := strconv.ParseInt(secNsec[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("brr: wall nanoseconds: %w", err)
	}
	if nsec > 999999999 {
		return Record{}, fmt.Errorf("brr: wall nanoseconds %d > 999999999", nsec)
	}
	r := Record{
		Timestamp:    ts.UTC(),
		Transport:    fields[1],
		Verb:         fields[2],
		Udig:         fields[3],
		ChatHistory:  fields[4],
		Size:         size,
		WallDuration: time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond,
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
