package platform

import (
	"sync"

	"camsensor-go/errcode"
	"camsensor-go/resource"
)

// ---- Regulators ----

// FakeBulk is a regulator bundle. Disabling a bundle that is not enabled is
// counted as unbalanced rather than failing.
type FakeBulk struct {
	mu         sync.Mutex
	trace      *Trace
	names      []string
	enabled    bool
	enables    int
	disables   int
	unbalanced int
	releases   int
	failEnable fault
}

func (b *FakeBulk) Enable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failEnable.hit(); err != nil {
		return err
	}
	if b.enabled {
		b.unbalanced++
	}
	b.enabled = true
	b.enables++
	b.trace.add("regulators on")
	return nil
}

func (b *FakeBulk) Disable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		b.unbalanced++
	}
	b.enabled = false
	b.disables++
	b.trace.add("regulators off")
	return nil
}

func (b *FakeBulk) Release() {
	b.mu.Lock()
	b.releases++
	b.mu.Unlock()
}

func (b *FakeBulk) Names() []string { return append([]string(nil), b.names...) }

func (b *FakeBulk) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Counts returns enables, disables and unbalanced calls.
func (b *FakeBulk) Counts() (enables, disables, unbalanced int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enables, b.disables, b.unbalanced
}

func (b *FakeBulk) Releases() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releases
}

func (b *FakeBulk) FailEnable(err error, n int) {
	b.mu.Lock()
	b.failEnable.set(err, n)
	b.mu.Unlock()
}

// FakeRegulators serves a single FakeBulk.
type FakeRegulators struct {
	Bulk   *FakeBulk
	GetErr error
}

func NewFakeRegulators(trace *Trace) *FakeRegulators {
	return &FakeRegulators{Bulk: &FakeBulk{trace: trace}}
}

func (r *FakeRegulators) BulkGet(_ string, names []string) (resource.Bulk, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.Bulk.mu.Lock()
	r.Bulk.names = append([]string(nil), names...)
	r.Bulk.mu.Unlock()
	return r.Bulk, nil
}

// ---- Clocks ----

// FakeClock is a gateable clock. If Fixed is non-zero Rate reports it
// regardless of SetRate.
type FakeClock struct {
	Fixed uint32

	mu         sync.Mutex
	trace      *Trace
	rate       uint32
	enabled    bool
	enables    int
	disables   int
	unbalanced int
	releases   int
	failEnable fault
	failRate   fault
}

func (c *FakeClock) SetRate(hz uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failRate.hit(); err != nil {
		return err
	}
	c.rate = hz
	return nil
}

func (c *FakeClock) Rate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fixed != 0 {
		return c.Fixed
	}
	return c.rate
}

func (c *FakeClock) PrepareEnable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failEnable.hit(); err != nil {
		return err
	}
	if c.enabled {
		c.unbalanced++
	}
	c.enabled = true
	c.enables++
	c.trace.add("clock on")
	return nil
}

func (c *FakeClock) DisableUnprepare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		c.unbalanced++
	}
	c.enabled = false
	c.disables++
	c.trace.add("clock off")
}

func (c *FakeClock) Release() {
	c.mu.Lock()
	c.releases++
	c.mu.Unlock()
}

func (c *FakeClock) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Counts returns enables, disables and unbalanced calls.
func (c *FakeClock) Counts() (enables, disables, unbalanced int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enables, c.disables, c.unbalanced
}

func (c *FakeClock) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

func (c *FakeClock) FailEnable(err error, n int) {
	c.mu.Lock()
	c.failEnable.set(err, n)
	c.mu.Unlock()
}

func (c *FakeClock) FailSetRate(err error, n int) {
	c.mu.Lock()
	c.failRate.set(err, n)
	c.mu.Unlock()
}

// FakeClocks serves named FakeClocks.
type FakeClocks struct {
	mu     sync.Mutex
	clocks map[string]*FakeClock
}

// NewFakeClocks registers one clock per name.
func NewFakeClocks(trace *Trace, names ...string) *FakeClocks {
	f := &FakeClocks{clocks: make(map[string]*FakeClock, len(names))}
	for _, n := range names {
		f.clocks[n] = &FakeClock{trace: trace}
	}
	return f
}

func (f *FakeClocks) Clock(_ string, name string) (resource.Clock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clocks[name]
	if !ok {
		return nil, &errcode.E{C: errcode.ResourceAcquisitionFailed, Op: "clock.get", Msg: name}
	}
	return c, nil
}

// Get returns the named clock, or nil.
func (f *FakeClocks) Get(name string) *FakeClock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clocks[name]
}
