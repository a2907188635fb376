// Package power sequences a sensor's resource set on and off: GPIO lines,
// the regulator bundle and the clock, with the settle delays the hardware
// needs and a bounded number of power-up attempts.
package power

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"camsensor-go/errcode"
	"camsensor-go/resource"
)

type State uint8

const (
	Off State = iota
	PoweringUp
	On
	PoweringDown
)

func (s State) String() string {
	switch s {
	case PoweringUp:
		return "powering_up"
	case On:
		return "on"
	case PoweringDown:
		return "powering_down"
	default:
		return "off"
	}
}

// Policy decides which step failures fail a power-up attempt. Every step
// runs regardless.
type Policy uint8

const (
	// FirstError fails the attempt on any step failure and reports the
	// first one.
	FirstError Policy = iota
	// ClockOnly judges the attempt by the clock enable alone; other
	// failures are logged.
	ClockOnly
)

func (p Policy) String() string {
	if p == ClockOnly {
		return "clock_only"
	}
	return "first_error"
}

// ParsePolicy maps a config string to a Policy. Empty means FirstError.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "first_error":
		return FirstError, nil
	case "clock_only":
		return ClockOnly, nil
	}
	return FirstError, &errcode.E{C: errcode.InvalidParams, Op: "power.parse_policy", Msg: s}
}

type Config struct {
	Attempts       int
	Settle         time.Duration // after rails and clock
	SecondaryDelay time.Duration // after the secondary lines
	// Secondary names line roles asserted only after Settle.
	Secondary []string
	Policy    Policy

	Sleep  func(time.Duration) // nil: time.Sleep
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Attempts:       4,
		Settle:         10 * time.Millisecond,
		SecondaryDelay: 30 * time.Millisecond,
		Policy:         FirstError,
	}
}

func (c Config) Validate() error {
	const op = "power.validate"
	if c.Attempts < 1 {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "attempts must be >= 1"}
	}
	if c.Settle < 0 || c.SecondaryDelay < 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "negative delay"}
	}
	if c.Policy > ClockOnly {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "unknown policy"}
	}
	return nil
}

// Sequencer owns the on/off state of one resource set. It does not acquire
// or release the set.
type Sequencer struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	crs       []resource.NamedLine
	companion []resource.NamedLine
	secondary []resource.NamedLine
	supplies  resource.Bulk
	clock     resource.Clock

	state State
	regOn bool
	clkOn bool
}

// New binds a sequencer to set. Secondary roles must name lines in set.
func New(set *resource.Set, cfg Config) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Sequencer{cfg: cfg, log: log, supplies: set.Supplies, clock: set.Clock}

	isSecondary := func(role string) bool {
		for _, r := range cfg.Secondary {
			if r == role {
				return true
			}
		}
		return false
	}
	for _, r := range cfg.Secondary {
		l, ok := set.Line(r)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "power.new", Msg: "unknown secondary role " + r}
		}
		s.secondary = append(s.secondary, resource.NamedLine{Role: r, Line: l})
	}
	for _, n := range set.CRS {
		if !isSecondary(n.Role) {
			s.crs = append(s.crs, n)
		}
	}
	for _, n := range set.Companion {
		if !isSecondary(n.Role) {
			s.companion = append(s.companion, n)
		}
	}
	return s, nil
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Powered reports whether the last PowerUp succeeded and no PowerDown
// followed.
func (s *Sequencer) Powered() bool { return s.State() == On }

// PowerUp runs up to Attempts power-up attempts. Each failed attempt is
// followed by exactly one full power-down. When every attempt fails the
// sequencer is left Off and the last error is returned as power_failed.
func (s *Sequencer) PowerUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == On {
		return nil
	}
	var last error
	for i := 1; i <= s.cfg.Attempts; i++ {
		s.state = PoweringUp
		err := s.attempt()
		if err == nil {
			s.state = On
			s.log.Debug("power: up", "attempt", i)
			return nil
		}
		last = err
		s.log.Warn("power: attempt failed", "attempt", i, "of", s.cfg.Attempts, "error", err)
		s.powerDown()
	}
	s.log.Error("power: sensor power-up failed", "attempts", s.cfg.Attempts, "error", last)
	return &errcode.E{C: errcode.PowerFailed, Op: "power.up", Err: last}
}

func (s *Sequencer) attempt() error {
	// Every failure is kept; the first one leads the joined error.
	var failed []error
	step := func(what string, err error) {
		if err == nil {
			s.log.Debug("power: step", "what", what)
			return
		}
		s.log.Warn("power: step failed", "what", what, "error", err)
		failed = append(failed, err)
	}

	for _, n := range s.crs {
		step(n.Role, n.Line.Set(true))
	}
	for _, n := range s.companion {
		step(n.Role, n.Line.Set(true))
	}
	if s.supplies != nil {
		err := s.supplies.Enable()
		if err == nil {
			s.regOn = true
		}
		step("regulators", err)
	}
	clkErr := s.clock.PrepareEnable()
	if clkErr == nil {
		s.clkOn = true
	}
	step("clock", clkErr)

	if s.cfg.Policy == ClockOnly {
		if clkErr != nil {
			return clkErr
		}
	} else if len(failed) > 0 {
		return errors.Join(failed...)
	}

	s.cfg.Sleep(s.cfg.Settle)

	for _, n := range s.secondary {
		if err := n.Line.Set(true); err != nil {
			s.log.Debug("power: secondary retry", "role", n.Role, "error", err)
			if err = n.Line.Set(true); err != nil {
				return err
			}
		}
	}
	s.cfg.Sleep(s.cfg.SecondaryDelay)
	return nil
}

// PowerDown switches everything off in reverse order. It always runs to
// completion and is safe to repeat; the clock and regulators are only
// disabled if this sequencer enabled them. The first failure is returned
// for logging.
func (s *Sequencer) PowerDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerDown()
}

func (s *Sequencer) powerDown() error {
	s.state = PoweringDown
	var first error
	note := func(what string, err error) {
		if err == nil {
			return
		}
		s.log.Warn("power: down step failed", "what", what, "error", err)
		if first == nil {
			first = err
		}
	}

	for i := len(s.secondary) - 1; i >= 0; i-- {
		note(s.secondary[i].Role, s.secondary[i].Line.Set(false))
	}
	if s.clkOn {
		s.clock.DisableUnprepare()
		s.clkOn = false
	}
	if s.regOn {
		note("regulators", s.supplies.Disable())
		s.regOn = false
	}
	for i := len(s.companion) - 1; i >= 0; i-- {
		note(s.companion[i].Role, s.companion[i].Line.Set(false))
	}
	for i := len(s.crs) - 1; i >= 0; i-- {
		note(s.crs[i].Role, s.crs[i].Line.Set(false))
	}
	s.state = Off
	return first
}
