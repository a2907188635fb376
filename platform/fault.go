// Package platform provides host-side stand-ins for the collaborators a
// sensor driver consumes: an I²C bus with a simulated register file, GPIO
// lines, a regulator bundle, a clock and a firmware namespace. Every fake
// counts acquisitions, releases and enables so leak and balance invariants
// can be asserted from tests, and every fallible call can be made to fail.
package platform

import "sync"

// Fault makes the next N calls of one operation fail with Err. N < 0 fails
// every call until cleared.
type Fault struct {
	Err error
	N   int
}

type fault struct {
	f Fault
}

func (f *fault) set(err error, n int) { f.f = Fault{Err: err, N: n} }

func (f *fault) hit() error {
	if f.f.Err == nil || f.f.N == 0 {
		return nil
	}
	if f.f.N > 0 {
		f.f.N--
	}
	return f.f.Err
}

// Trace is an ordered record of side effects shared by several fakes, so a
// test can check the order in which a sequence touched them.
type Trace struct {
	mu     sync.Mutex
	events []string
}

func (t *Trace) add(ev string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (t *Trace) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

func (t *Trace) Reset() {
	t.mu.Lock()
	t.events = t.events[:0]
	t.mu.Unlock()
}
