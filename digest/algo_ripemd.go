package digest

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160"
)

func init() {
	Register(bc160Algorithm{})
	Register(btc20Algorithm{})
}

const ripemdHexLen = 2 * ripemd160.Size // 40

// bc160Algorithm is BC160 = RIPEMD160(SHA256(blob)), deprecated in favor of
// BTC20 but still accepted. RIPEMD160 is applied once, at
// finalize time, to the fixed 32-byte SHA256 sum; the incremental state
// only ever needs to accumulate into SHA256, which supports the cheap
// Clone the verb state machine requires.
type bc160Algorithm struct{}

func (bc160Algorithm) Name() string { return "bc160" }

func (bc160Algorithm) NewState() State {
	return newHashState(sha256.New, ripemdOfSha256)
}

func (bc160Algorithm) IsSyntacticDigest(s string) bool {
	return isHex(s, ripemdHexLen)
}

func (bc160Algorithm) EmptyDigest() string {
	return ripemdOfSha256(sha256.New().Sum(nil))
}

func (bc160Algorithm) Fanout(digest string) ([]string, error) {
	return hexFanout(digest, ripemdHexLen)
}

// btc20Algorithm is BTC20 = RIPEMD160(SHA256(SHA256(blob))), the
// Bitcoin-style double hash and the preferred replacement for BC160.
type btc20Algorithm struct{}

func (btc20Algorithm) Name() string { return "btc20" }

func (btc20Algorithm) NewState() State {
	return newHashState(sha256.New, ripemdOfDoubleSha256)
}

func (btc20Algorithm) IsSyntacticDigest(s string) bool {
	return isHex(s, ripemdHexLen)
}

func (btc20Algorithm) EmptyDigest() string {
	return ripemdOfDoubleSha256(sha256.New().Sum(nil))
}

func (btc20Algorithm) Fanout(digest string) ([]string, error) {
	return hexFanout(digest, ripemdHexLen)
}

func ripemdOfSha256(sha256Sum []byte) string {
	return hexRipemd160(sha256Sum)
}

func ripemdOfDoubleSha256(firstSha256Sum []byte) string {
	second := sha256.Sum256(firstSha256Sum)
	return hexRipemd160(second[:])
}

func hexRipemd160(p []byte) string {
	h := ripemd160.New()
	h.Write(p) //nolint:errcheck // ripemd160.digest.Write never errors
	return hex.EncodeToString(h.Sum(nil))
}
