package resource

import (
	"log/slog"
	"strconv"

	"camsensor-go/errcode"
)

// MaxCompanionLines bounds the companion GPIO bank.
const MaxCompanionLines = 10

// CRSLine is a line described by the companion's firmware resource list.
type CRSLine struct {
	Role  string
	Index int
	Init  Init
}

// Spec lists what Acquire must obtain, in acquisition order.
type Spec struct {
	Consumer  string
	CRS       []CRSLine
	Companion []LineDesc
	Supplies  []string
	ClockName string
	ClockRate uint32 // Hz; 0 leaves the rate alone
}

// Validate checks the shape of the spec, not the availability of anything.
func (s Spec) Validate() error {
	const op = "resource.validate"
	if len(s.Companion) > MaxCompanionLines {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "too many companion lines"}
	}
	if s.ClockName == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "clock name required"}
	}
	seen := make(map[string]bool, len(s.CRS)+len(s.Companion))
	for _, l := range s.CRS {
		if l.Role == "" || seen[l.Role] {
			return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "bad crs role " + l.Role}
		}
		seen[l.Role] = true
	}
	for _, l := range s.Companion {
		if l.Role == "" || seen[l.Role] {
			return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "bad companion role " + l.Role}
		}
		seen[l.Role] = true
	}
	return nil
}

// NamedLine is an acquired line tagged with its role.
type NamedLine struct {
	Role string
	Line Line
}

// Set is a fully acquired resource bundle. A Set is either complete or
// never returned.
type Set struct {
	CRS       []NamedLine
	Companion []NamedLine
	Supplies  Bulk
	Clock     Clock

	released bool
}

// Acquire obtains every resource in spec order: CRS lines, companion lines,
// regulators, then the clock (rate set and verified). On any failure the
// resources already held are released in reverse order.
func Acquire(spec Spec, p Providers, log *slog.Logger) (*Set, error) {
	const op = "resource.acquire"
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Set{}
	fail := func(msg string, err error) (*Set, error) {
		log.Error("resource acquisition failed", "what", msg, "error", err)
		s.Release()
		return nil, &errcode.E{C: errcode.ResourceAcquisitionFailed, Op: op, Msg: msg, Err: err}
	}

	for _, c := range spec.CRS {
		l, err := p.CRS.RequestIndexed(spec.Consumer, c.Index, c.Init)
		if err != nil {
			return fail("crs gpio "+c.Role, err)
		}
		s.CRS = append(s.CRS, NamedLine{Role: c.Role, Line: l})
	}
	for _, d := range spec.Companion {
		l, err := p.Companion.Request(spec.Consumer, d)
		if err != nil {
			return fail("companion gpio "+d.Role, err)
		}
		s.Companion = append(s.Companion, NamedLine{Role: d.Role, Line: l})
	}
	if len(spec.Supplies) > 0 {
		b, err := p.Regulators.BulkGet(spec.Consumer, spec.Supplies)
		if err != nil {
			return fail("regulators", err)
		}
		s.Supplies = b
	}

	clk, err := p.Clocks.Clock(spec.Consumer, spec.ClockName)
	if err != nil {
		return fail("clock "+spec.ClockName, err)
	}
	s.Clock = clk
	if spec.ClockRate != 0 {
		if err := clk.SetRate(spec.ClockRate); err != nil {
			return fail("clock rate", err)
		}
		if got := clk.Rate(); got != spec.ClockRate {
			return fail("clock rate", &errcode.E{C: errcode.InvalidParams, Op: op,
				Msg: "want " + strconv.FormatUint(uint64(spec.ClockRate), 10) + " Hz, got " + strconv.FormatUint(uint64(got), 10)})
		}
	}
	log.Debug("resources acquired", "crs", len(s.CRS), "companion", len(s.Companion),
		"supplies", len(spec.Supplies), "clock", spec.ClockName, "rate_hz", spec.ClockRate)
	return s, nil
}

// Release gives everything back in reverse acquisition order. Safe to call
// more than once.
func (s *Set) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if s.Clock != nil {
		s.Clock.Release()
	}
	if s.Supplies != nil {
		s.Supplies.Release()
	}
	for i := len(s.Companion) - 1; i >= 0; i-- {
		s.Companion[i].Line.Release()
	}
	for i := len(s.CRS) - 1; i >= 0; i-- {
		s.CRS[i].Line.Release()
	}
}

// Released reports whether Release has run.
func (s *Set) Released() bool { return s.released }

// Line finds a line by role in either bank.
func (s *Set) Line(role string) (Line, bool) {
	for _, n := range s.CRS {
		if n.Role == role {
			return n.Line, true
		}
	}
	for _, n := range s.Companion {
		if n.Role == role {
			return n.Line, true
		}
	}
	return nil, false
}
