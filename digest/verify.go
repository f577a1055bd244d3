package digest

// VerifyStatus is the outcome of feeding one more chunk to a VerifyingWriter.
type VerifyStatus int

const (
	// Continue means the bytes seen so far are a strict prefix of a blob
	// that could still hash to the target; more bytes are expected.
	Continue VerifyStatus = iota
	// Matched means the bytes seen so far, taken whole, hash to the target.
	// The stream is not necessarily finished; EOF must still confirm it.
	Matched
	// Rejected means no additional bytes could ever bring the running
	// digest back to the target: the source is not the target blob.
	Rejected
)

// VerifyingWriter streams bytes through a running digest while
// incrementally checking them against a target udig: after each chunk
// the engine clones the running state, finalizes the clone, and
// compares it to the target. A mismatch with more bytes still arriving
// means "continue"; a match means "done, accept"; a mismatch once the
// stream is known to have ended means "reject".
type VerifyingWriter struct {
	target Udig
	w      Writer
}

// NewVerifyingWriter returns a VerifyingWriter checking bytes against target.
func NewVerifyingWriter(alg Algorithm, target Udig) *VerifyingWriter {
	return &VerifyingWriter{target: target, w: NewWriter(alg)}
}

// Write folds p into the running digest.
func (v *VerifyingWriter) Write(p []byte) (int, error) {
	return v.w.Write(p)
}

// Status reports whether the bytes written so far match the target.
func (v *VerifyingWriter) Status() VerifyStatus {
	if v.w.Udig().Digest == v.target.Digest {
		return Matched
	}
	return Continue
}

// Finish reports the terminal status once the source is known to have
// ended: Matched if the accumulated bytes hash to the target, Rejected
// otherwise.
func (v *VerifyingWriter) Finish() VerifyStatus {
	if v.Status() == Matched {
		return Matched
	}
	return Rejected
}

// Udig returns the udig of the bytes written so far.
func (v *VerifyingWriter) Udig() Udig {
	return v.w.Udig()
}
