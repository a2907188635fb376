// Package resource describes the power resources a sensor consumes (GPIO
// lines, a regulator bundle, a clock) and acquires them as one unit.
package resource

// ---- GPIO lines ----

// Init is the direction/level hint passed when a line is requested.
type Init uint8

const (
	InitAsIs Init = iota // keep whatever the line is doing
	InitLow              // output, inactive
	InitHigh             // output, active
)

func (i Init) String() string {
	switch i {
	case InitLow:
		return "out_low"
	case InitHigh:
		return "out_high"
	default:
		return "as_is"
	}
}

// Line is an acquired GPIO line. Set drives the logical (active) level and
// may sleep.
type Line interface {
	Set(active bool) error
	Release()
}

// LineDesc names a line on a companion GPIO chip.
type LineDesc struct {
	Role      string // logical role, e.g. "s_enable"
	Chip      string // chip label, e.g. "tps68470-gpio"
	Offset    int
	ActiveLow bool
	Init      Init
}

// GPIOProvider hands out lines either by position in the owning device's
// firmware resource list or by explicit descriptor.
type GPIOProvider interface {
	RequestIndexed(consumer string, index int, init Init) (Line, error)
	Request(consumer string, d LineDesc) (Line, error)
}

// ---- Regulators ----

// Bulk is a set of supplies enabled and disabled together.
type Bulk interface {
	Enable() error
	Disable() error
	Release()
}

type RegulatorProvider interface {
	BulkGet(consumer string, names []string) (Bulk, error)
}

// ---- Clocks ----

type Clock interface {
	SetRate(hz uint32) error
	Rate() uint32
	PrepareEnable() error
	DisableUnprepare()
	Release()
}

type ClockProvider interface {
	Clock(consumer, name string) (Clock, error)
}

// Providers bundles the collaborators Acquire draws from. CRS lines come
// from the companion device; companion-bank lines are looked up by chip.
type Providers struct {
	CRS        GPIOProvider
	Companion  GPIOProvider
	Regulators RegulatorProvider
	Clocks     ClockProvider
}
