package server

import (
	"github.com/jmscott/blobio/status"
)

// counters is the supervisor's full classification cross product
//: connects, per-outcome-class, per-verb, and per-chat-outcome
// counts, plus total blob bytes moved. Registration order fixes the
// heartbeat line's field order.
type counters struct {
	connect *status.Var

	outcome [4]*status.Var
	verb    map[string]*status.Var
	chat    [4]*status.Var

	bytes *status.Var
}

func newCounters(st *status.Status) *counters {
	c := &counters{
		connect: st.Var("connect"),
		verb:    make(map[string]*status.Var),
	}
	for o := Success; o <= Faulted; o++ {
		c.outcome[o] = st.Var(o.String())
	}
	for _, v := range codeVerb[1:] {
		c.verb[v] = st.Var(v)
	}
	for i, name := range codeChat {
		c.chat[i] = st.Var("chat-" + name)
	}
	c.bytes = st.SizeVar("bytes")
	return c
}

// count records one completed (or failed) request's classification.
func (c *counters) count(cl Class, size int64) {
	c.outcome[cl.Outcome()].Add(1)
	if v := c.verb[cl.Verb()]; v != nil {
		v.Add(1)
		c.chat[(cl>>5)&0x3].Add(1)
	}
	c.bytes.Add(size)
}
