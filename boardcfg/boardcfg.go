// Package boardcfg loads the board description of a camera sensor: where
// firmware describes it, how the companion's GPIO lines map to logical
// roles, which supplies and clock feed it, how it is powered and the
// register tables for its modes.
//
// Design notes:
// • One YAML file per board. Fields left out keep the Default value.
// • Unknown keys are an error, so typos do not silently fall back.
// • Validate checks shape only; availability is discovered at attach.
package boardcfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"camsensor-go/drivers/cci"
	"camsensor-go/drivers/ov5670"
	"camsensor-go/errcode"
	"camsensor-go/firmware"
	"camsensor-go/power"
	"camsensor-go/resource"
	"camsensor-go/x/mathx"

	"gopkg.in/yaml.v3"
)

// Board is the complete board description.
type Board struct {
	Sensor    SensorConfig    `yaml:"sensor"`
	Companion CompanionConfig `yaml:"companion"`

	// CRSGPIOs are lines listed in the companion's firmware resources,
	// requested by position.
	CRSGPIOs []CRSGPIO `yaml:"crs_gpios"`

	// CompanionGPIOs are lines on the companion's own GPIO chip.
	// At most ten.
	CompanionGPIOs []CompanionGPIO `yaml:"companion_gpios"`

	// Supplies are regulator names enabled together.
	Supplies []string `yaml:"supplies"`

	Clock ClockConfig `yaml:"clock"`
	Power PowerConfig `yaml:"power"`

	// Tables maps mode table names to [address, value] pairs applied in
	// order when a mode is programmed.
	Tables map[string][][2]uint16 `yaml:"tables"`
}

// SensorConfig locates the sensor.
type SensorConfig struct {
	// Node is the firmware path of the sensor, e.g. \_SB_.PCI0.LNK0.
	Node string `yaml:"node"`

	// Address is the 7-bit I2C address.
	// Default: 0x36
	Address uint16 `yaml:"address"`

	// SSDB is the name of the sensor data object.
	// Default: SSDB
	SSDB string `yaml:"ssdb"`
}

// CompanionConfig says how the power-management companion is found.
type CompanionConfig struct {
	// IDs are the accepted hardware ids.
	// Default: [INT3472]
	IDs []string `yaml:"ids"`

	// Buses are searched in order for the live companion device.
	// Values: platform, pci, i2c
	// Default: [platform, pci]
	Buses []string `yaml:"buses"`

	// CLDB is the name of the control logic data object.
	// Default: CLDB
	CLDB string `yaml:"cldb"`
}

type CRSGPIO struct {
	Role  string `yaml:"role"`
	Index int    `yaml:"index"`
	// Values: as_is, low, high
	Init string `yaml:"init"`
}

type CompanionGPIO struct {
	Role      string `yaml:"role"`
	Chip      string `yaml:"chip"`
	Offset    int    `yaml:"offset"`
	ActiveLow bool   `yaml:"active_low"`
	// Values: as_is, low, high
	Init string `yaml:"init"`
}

type ClockConfig struct {
	Name string `yaml:"name"`

	// Rate in Hz. Firmware sensor data overrides it when it carries one.
	// Default: 19200000
	Rate uint32 `yaml:"rate"`
}

// PowerConfig tunes the power-up sequence.
type PowerConfig struct {
	// Default: 4
	Attempts int `yaml:"attempts"`

	// Settle is the delay after rails and clock are on.
	// Default: 10ms
	Settle time.Duration `yaml:"settle"`

	// SecondaryDelay is the delay after the secondary lines are asserted.
	// Default: 30ms
	SecondaryDelay time.Duration `yaml:"secondary_delay"`

	// Secondary names GPIO roles asserted only after Settle.
	Secondary []string `yaml:"secondary"`

	// Policy decides which step failures fail an attempt.
	// Values: first_error, clock_only
	// Default: first_error
	Policy string `yaml:"policy"`
}

// Default returns the Surface-style TPS68470 wiring with no firmware node
// and no register tables.
func Default() *Board {
	res := ov5670.DefaultResources()
	pc := power.DefaultConfig()

	b := &Board{
		Sensor: SensorConfig{
			Address: ov5670.AddressDefault,
			SSDB:    firmware.ObjectSensorData,
		},
		Companion: CompanionConfig{
			IDs:   []string{firmware.CompanionHID},
			Buses: []string{string(firmware.BusPlatform), string(firmware.BusPCI)},
			CLDB:  firmware.ObjectControlLogic,
		},
		Supplies: append([]string(nil), res.Supplies...),
		Clock:    ClockConfig{Name: res.ClockName, Rate: res.ClockRate},
		Power: PowerConfig{
			Attempts:       pc.Attempts,
			Settle:         pc.Settle,
			SecondaryDelay: pc.SecondaryDelay,
			Policy:         pc.Policy.String(),
		},
	}
	for _, l := range res.CRS {
		b.CRSGPIOs = append(b.CRSGPIOs, CRSGPIO{Role: l.Role, Index: l.Index, Init: initName(l.Init)})
	}
	for _, l := range res.Companion {
		b.CompanionGPIOs = append(b.CompanionGPIOs, CompanionGPIO{
			Role: l.Role, Chip: l.Chip, Offset: l.Offset, ActiveLow: l.ActiveLow, Init: initName(l.Init),
		})
	}
	return b
}

// Load reads and validates a board file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "boardcfg.load", Msg: path, Err: err}
	}
	return Parse(data)
}

// Parse decodes a board description over the defaults and validates it.
func Parse(data []byte) (*Board, error) {
	b := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(b); err != nil && !errors.Is(err, io.EOF) {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "boardcfg.parse", Err: err}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// ---------------- Validation ----------------

// Validate reports every problem found, joined.
func (b *Board) Validate() error {
	const op = "boardcfg.validate"
	var errs []error
	bad := func(msg string) { errs = append(errs, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: msg}) }

	if b.Sensor.Node == "" {
		bad("sensor.node is required")
	}
	if !mathx.Between(b.Sensor.Address, 0x01, 0x7f) {
		bad(fmt.Sprintf("sensor.address out of range: %#x", b.Sensor.Address))
	}
	if len(b.Companion.IDs) == 0 {
		bad("companion.ids is empty")
	}
	if _, err := b.buses(); err != nil {
		bad(err.Error())
	}
	for i, l := range b.CRSGPIOs {
		if _, ok := parseInit(l.Init); !ok {
			bad("crs_gpios[" + strconv.Itoa(i) + "].init: " + l.Init)
		}
		if l.Index < 0 {
			bad("crs_gpios[" + strconv.Itoa(i) + "].index is negative")
		}
	}
	for i, l := range b.CompanionGPIOs {
		if _, ok := parseInit(l.Init); !ok {
			bad("companion_gpios[" + strconv.Itoa(i) + "].init: " + l.Init)
		}
		if l.Chip == "" || l.Offset < 0 {
			bad("companion_gpios[" + strconv.Itoa(i) + "] needs a chip and offset")
		}
	}
	roles := b.roles()
	for _, r := range b.Power.Secondary {
		if !roles[r] {
			bad("power.secondary: unknown role " + r)
		}
	}
	if _, err := power.ParsePolicy(b.Power.Policy); err != nil {
		bad("power.policy: " + b.Power.Policy)
	}
	for name, regs := range b.Tables {
		if name == "" {
			bad("tables: empty name")
		}
		for _, r := range regs {
			if r[1] > 0xff {
				bad(fmt.Sprintf("tables.%s: value out of range at 0x%04x", name, r[0]))
				break
			}
		}
	}

	if err := b.ResourceSpec().Validate(); err != nil {
		errs = append(errs, err)
	}
	if pc, err := b.PowerConfig(); err == nil {
		if err := pc.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Board) roles() map[string]bool {
	m := make(map[string]bool, len(b.CRSGPIOs)+len(b.CompanionGPIOs))
	for _, l := range b.CRSGPIOs {
		m[l.Role] = true
	}
	for _, l := range b.CompanionGPIOs {
		m[l.Role] = true
	}
	return m
}

func (b *Board) buses() ([]firmware.BusKind, error) {
	out := make([]firmware.BusKind, 0, len(b.Companion.Buses))
	for _, s := range b.Companion.Buses {
		switch k := firmware.BusKind(s); k {
		case firmware.BusPlatform, firmware.BusPCI, firmware.BusI2C:
			out = append(out, k)
		default:
			return nil, errors.New("companion.buses: unknown bus " + s)
		}
	}
	return out, nil
}

// ---------------- Conversion ----------------

func parseInit(s string) (resource.Init, bool) {
	switch s {
	case "", "as_is":
		return resource.InitAsIs, true
	case "low":
		return resource.InitLow, true
	case "high":
		return resource.InitHigh, true
	}
	return resource.InitAsIs, false
}

func initName(i resource.Init) string {
	switch i {
	case resource.InitLow:
		return "low"
	case resource.InitHigh:
		return "high"
	default:
		return "as_is"
	}
}

// ResourceSpec converts the GPIO, supply and clock sections. Unparsable
// init hints fall back to as_is; Validate reports them.
func (b *Board) ResourceSpec() resource.Spec {
	s := resource.Spec{
		Consumer:  "ov5670",
		Supplies:  append([]string(nil), b.Supplies...),
		ClockName: b.Clock.Name,
		ClockRate: b.Clock.Rate,
	}
	for _, l := range b.CRSGPIOs {
		in, _ := parseInit(l.Init)
		s.CRS = append(s.CRS, resource.CRSLine{Role: l.Role, Index: l.Index, Init: in})
	}
	for _, l := range b.CompanionGPIOs {
		in, _ := parseInit(l.Init)
		s.Companion = append(s.Companion, resource.LineDesc{
			Role: l.Role, Chip: l.Chip, Offset: l.Offset, ActiveLow: l.ActiveLow, Init: in,
		})
	}
	return s
}

// PowerConfig converts the power section. Sleep and Logger are left unset.
func (b *Board) PowerConfig() (power.Config, error) {
	pol, err := power.ParsePolicy(b.Power.Policy)
	if err != nil {
		return power.Config{}, err
	}
	return power.Config{
		Attempts:       b.Power.Attempts,
		Settle:         b.Power.Settle,
		SecondaryDelay: b.Power.SecondaryDelay,
		Secondary:      append([]string(nil), b.Power.Secondary...),
		Policy:         pol,
	}, nil
}

// RegTables converts the register tables.
func (b *Board) RegTables() map[string]cci.RegList {
	out := make(map[string]cci.RegList, len(b.Tables))
	for name, regs := range b.Tables {
		l := make(cci.RegList, len(regs))
		for i, r := range regs {
			l[i] = cci.Reg{Addr: r[0], Val: uint8(r[1])}
		}
		out[name] = l
	}
	return out
}

// Apply validates the board and writes its description into cfg. Runtime
// collaborators (bus, providers, namespace, logger) and the power Sleep
// and Logger hooks already in cfg are kept.
func (b *Board) Apply(cfg *ov5670.Config) error {
	if err := b.Validate(); err != nil {
		return err
	}
	buses, _ := b.buses()
	pc, _ := b.PowerConfig()
	pc.Sleep, pc.Logger = cfg.Power.Sleep, cfg.Power.Logger

	cfg.Node = firmware.Handle(b.Sensor.Node)
	cfg.Address = b.Sensor.Address
	cfg.SSDBName = b.Sensor.SSDB
	cfg.CompanionIDs = append([]string(nil), b.Companion.IDs...)
	cfg.Buses = buses
	cfg.CLDBName = b.Companion.CLDB
	cfg.Resources = b.ResourceSpec()
	cfg.Power = pc
	cfg.Tables = b.RegTables()
	return nil
}
