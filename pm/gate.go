// Package pm is a reference-counted runtime power gate. The first user
// resumes the device, the last one suspends it.
package pm

import (
	"log/slog"
	"sync"

	"camsensor-go/errcode"
)

// Gate counts active users of a device. Resume and Suspend are called
// synchronously on the 0→1 and 1→0 transitions.
type Gate struct {
	mu      sync.Mutex
	resume  func() error
	suspend func() error
	log     *slog.Logger

	count  int
	active bool
}

// New returns a suspended gate. Either callback may be nil.
func New(resume, suspend func() error, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{resume: resume, suspend: suspend, log: log}
}

// GetSync takes a reference, resuming the device if it was suspended. If
// resume fails the reference is not taken.
func (g *Gate) GetSync() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	if g.active {
		return nil
	}
	if g.resume != nil {
		if err := g.resume(); err != nil {
			g.count--
			return &errcode.E{C: errcode.PMActivationFailed, Op: "pm.get_sync", Err: err}
		}
	}
	g.active = true
	return nil
}

// GetIfInUse takes a reference only if the device is already active and
// referenced. It never resumes.
func (g *Gate) GetIfInUse() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || g.count == 0 {
		return false
	}
	g.count++
	return true
}

// Put drops a reference and suspends on the last one. Suspend failures are
// logged; the gate is considered suspended either way.
func (g *Gate) Put() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count == 0 {
		g.log.Warn("pm: unbalanced put")
		return
	}
	g.count--
	if g.count > 0 || !g.active {
		return
	}
	g.active = false
	if g.suspend != nil {
		if err := g.suspend(); err != nil {
			g.log.Warn("pm: suspend failed", "error", err)
		}
	}
}

func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
