package platform

import (
	"strconv"
	"sync"

	"camsensor-go/errcode"
	"camsensor-go/resource"
)

// FakeLine is a GPIO line that remembers its logical level.
type FakeLine struct {
	mu       sync.Mutex
	name     string
	trace    *Trace
	active   bool
	sets     int
	releases int
	failSet  fault
}

// Set drives the logical level.
func (l *FakeLine) Set(active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failSet.hit(); err != nil {
		return err
	}
	l.sets++
	l.active = active
	if active {
		l.trace.add("gpio " + l.name + " on")
	} else {
		l.trace.add("gpio " + l.name + " off")
	}
	return nil
}

func (l *FakeLine) Release() {
	l.mu.Lock()
	l.releases++
	l.mu.Unlock()
}

func (l *FakeLine) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Sets counts successful Set calls.
func (l *FakeLine) Sets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sets
}

func (l *FakeLine) Releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}

// FailSet makes the next n Set calls fail.
func (l *FakeLine) FailSet(err error, n int) {
	l.mu.Lock()
	l.failSet.set(err, n)
	l.mu.Unlock()
}

// FakeGPIO hands out FakeLines, both by firmware index and by chip/offset.
// Lines are created on first request and reused afterwards.
type FakeGPIO struct {
	Trace *Trace

	mu       sync.Mutex
	lines    map[string]*FakeLine
	fails    map[string]error
	requests int
}

func NewFakeGPIO(trace *Trace) *FakeGPIO {
	return &FakeGPIO{
		Trace: trace,
		lines: make(map[string]*FakeLine),
		fails: make(map[string]error),
	}
}

func indexKey(i int) string { return "crs." + strconv.Itoa(i) }

func chipKey(chip string, off int) string { return chip + "." + strconv.Itoa(off) }

func (g *FakeGPIO) request(key, name string, init resource.Init) (resource.Line, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fails[key]; err != nil {
		return nil, err
	}
	l, ok := g.lines[key]
	if !ok {
		l = &FakeLine{name: name, trace: g.Trace}
		g.lines[key] = l
	}
	l.mu.Lock()
	switch init {
	case resource.InitHigh:
		l.active = true
	case resource.InitLow:
		l.active = false
	}
	l.mu.Unlock()
	g.requests++
	return l, nil
}

func (g *FakeGPIO) RequestIndexed(_ string, index int, init resource.Init) (resource.Line, error) {
	if index < 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "gpio.request", Msg: "negative index"}
	}
	k := indexKey(index)
	return g.request(k, k, init)
}

func (g *FakeGPIO) Request(_ string, d resource.LineDesc) (resource.Line, error) {
	return g.request(chipKey(d.Chip, d.Offset), d.Role, d.Init)
}

// Indexed returns the line at firmware index i, creating it if needed.
func (g *FakeGPIO) Indexed(i int) *FakeLine { return g.get(indexKey(i), indexKey(i)) }

// Named returns the line at chip/offset, creating it if needed.
func (g *FakeGPIO) Named(chip string, off int) *FakeLine {
	k := chipKey(chip, off)
	return g.get(k, k)
}

func (g *FakeGPIO) get(key, name string) *FakeLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lines[key]
	if !ok {
		l = &FakeLine{name: name, trace: g.Trace}
		g.lines[key] = l
	}
	return l
}

// FailIndexed makes requests for firmware index i fail.
func (g *FakeGPIO) FailIndexed(i int, err error) {
	g.mu.Lock()
	g.fails[indexKey(i)] = err
	g.mu.Unlock()
}

// FailNamed makes requests for chip/offset fail.
func (g *FakeGPIO) FailNamed(chip string, off int, err error) {
	g.mu.Lock()
	g.fails[chipKey(chip, off)] = err
	g.mu.Unlock()
}

// Outstanding is requests minus releases across all lines.
func (g *FakeGPIO) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.requests
	for _, l := range g.lines {
		n -= l.Releases()
	}
	return n
}
