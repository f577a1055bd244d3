package status

import (
	"context"
	"time"
)

// A Reporter emits a Status's heartbeat line on a fixed period until its
// context is canceled. Emission goes through Printf so the embedding
// daemon decides whether the line lands in its leveled log or elsewhere.
type Reporter struct {
	Period time.Duration
	Printf func(format string, args ...interface{})
}

// Go blocks, emitting s's line once per r.Period, and returns when ctx is
// canceled. A zero or negative period disables the heartbeat entirely.
func (r Reporter) Go(ctx context.Context, s *Status) {
	if r.Period <= 0 {
		<-ctx.Done()
		return
	}
	tick := time.NewTicker(r.Period)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			r.Printf("heartbeat: %s", s.Line())
		case <-ctx.Done():
			return
		}
	}
}
