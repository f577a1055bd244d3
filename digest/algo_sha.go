package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
)

func init() {
	Register(shaAlgorithm{})
}

const shaHexLen = 2 * sha1.Size // 40

// shaAlgorithm is SHA-1, the original and most common blobio digest.
type shaAlgorithm struct{}

func (shaAlgorithm) Name() string { return "sha" }

func (shaAlgorithm) NewState() State {
	return newHashState(sha1.New, hex.EncodeToString)
}

func (shaAlgorithm) IsSyntacticDigest(s string) bool {
	return isHex(s, shaHexLen)
}

func (shaAlgorithm) EmptyDigest() string {
	return hex.EncodeToString(sha1.New().Sum(nil))
}

func (shaAlgorithm) Fanout(digest string) ([]string, error) {
	return hexFanout(digest, shaHexLen)
}

// binaryHash is the subset of hash.Hash implementations whose running
// state can be cheaply cloned: marshal, then unmarshal into a fresh hash
// of the same kind. Every algorithm in this package satisfies it.
type binaryHash interface {
	hash.Hash
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// hashState adapts a stdlib hash.Hash to the State interface, giving
// Clone a cheap copy-then-finalize implementation via encoding.Binary
// Marshaler.
type hashState struct {
	newHash func() hash.Hash
	h       hash.Hash
	format  func([]byte) string
}

func newHashState(newHash func() hash.Hash, format func([]byte) string) *hashState {
	return &hashState{newHash: newHash, h: newHash(), format: format}
}

func (s *hashState) Write(p []byte) (int, error) { return s.h.Write(p) }

func (s *hashState) Clone() State {
	marshaler, ok := s.h.(binaryHash)
	if !ok {
		panic("digest: hash does not support cheap state copy")
	}
	b, err := marshaler.MarshalBinary()
	if err != nil {
		panic("digest: marshal hash state: " + err.Error())
	}
	clone := s.newHash()
	if err := clone.(binaryHash).UnmarshalBinary(b); err != nil {
		panic("digest: unmarshal hash state: " + err.Error())
	}
	return &hashState{newHash: s.newHash, h: clone, format: s.format}
}

func (s *hashState) AsciiDigest() string {
	return s.format(s.h.Sum(nil))
}

func isHex(s string, wantLen int) bool {
	if len(s) != wantLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
