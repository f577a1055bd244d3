// Package status collects named counters and renders them as a single
// heartbeat line at a configurable cadence.
//
// One line per period summarizes connects, per-verb counts, chat
// outcomes, and bytes moved. Counters are registered once and updated
// with atomic adds; rendering never blocks an updater.
package status

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmscott/blobio/data"
)

// A Var is a single monotonically growing counter.
type Var struct {
	name string
	size bool
	n    int64
}

// Add adds delta to v.
func (v *Var) Add(delta int64) {
	atomic.AddInt64(&v.n, delta)
}

// Value returns v's current value.
func (v *Var) Value() int64 {
	return atomic.LoadInt64(&v.n)
}

// Status is an ordered registry of counters. The zero value is ready for
// use.
type Status struct {
	mu     sync.Mutex
	order  []*Var
	byName map[string]*Var
}

// Var registers (or returns the already registered) counter named name.
// Registration order is rendering order.
func (s *Status) Var(name string) *Var {
	return s.register(name, false)
}

// SizeVar is Var for a counter holding a byte count; it renders through
// data.Size ("1.5GiB") instead of as a bare integer.
func (s *Status) SizeVar(name string) *Var {
	return s.register(name, true)
}

func (s *Status) register(name string, size bool) *Var {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName == nil {
		s.byName = make(map[string]*Var)
	}
	if v, ok := s.byName[name]; ok {
		return v
	}
	v := &Var{name: name, size: size}
	s.byName[name] = v
	s.order = append(s.order, v)
	return v
}

// Line renders every registered counter as "name=value" pairs joined by
// single spaces, in registration order.
func (s *Status) Line() string {
	s.mu.Lock()
	vars := make([]*Var, len(s.order))
	copy(vars, s.order)
	s.mu.Unlock()

	var b strings.Builder
	for i, v := range vars {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v.name)
		b.WriteByte('=')
		if v.size {
			b.WriteString(data.Size(v.Value()).String())
		} else {
			b.WriteString(strconv.FormatInt(v.Value(), 10))
		}
	}
	return b.String()
}
