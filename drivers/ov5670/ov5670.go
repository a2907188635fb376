// Package ov5670 drives the OmniVision OV5670 5MP raw bayer sensor on
// platforms where firmware describes the sensor and a power-management
// companion (INT3472: TPS68470 PMIC or discrete GPIOs) supplies its rails,
// clock and control lines.
//
// Design notes:
// • Register access is CCI over I²C: 16-bit addresses, big-endian values.
// • Mode selection is bookkeeping; registers are programmed at stream on.
// • Control changes made while the sensor is idle are cached and replayed
//   at the next stream start.
// • All public methods serialise on one mutex, bus I/O included.
package ov5670

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"camsensor-go/bus"
	"camsensor-go/drivers/cci"
	"camsensor-go/errcode"
	"camsensor-go/firmware"
	"camsensor-go/pm"
	"camsensor-go/power"
	"camsensor-go/resource"
	"camsensor-go/x/mathx"

	"tinygo.org/x/drivers"
)

// ---------------- Configuration ----------------

type Config struct {
	// Firmware description of the sensor.
	Node         firmware.Handle
	Namespace    firmware.Namespace
	Finder       firmware.DeviceFinder
	CompanionIDs []string           // default [INT3472]
	Buses        []firmware.BusKind // default [platform, pci]
	SSDBName     string             // default SSDB
	CLDBName     string             // default CLDB

	Bus     drivers.I2C
	Address uint16

	Providers resource.Providers
	// CRSFor, if set, returns the provider for the companion's firmware
	// GPIO resources. Otherwise Providers.CRS is used.
	CRSFor    func(companion firmware.Device) resource.GPIOProvider
	Resources resource.Spec
	Power     power.Config

	Modes  []Mode
	// Tables maps Mode.Table names to register lists.
	Tables map[string]cci.RegList

	Logger *slog.Logger

	// Events, if set, receives retained state, format and control
	// announcements under camera/<Name>.
	Events *bus.Connection
	Name   string // default ov5670
}

// DefaultResources is the TPS68470 wiring: three firmware GPIOs on the
// companion, ten PMIC lines, seven supplies and the PMIC clock at 19.2 MHz.
func DefaultResources() resource.Spec {
	const chip = "tps68470-gpio"
	comp := make([]resource.LineDesc, 0, resource.MaxCompanionLines)
	for i := 0; i < 7; i++ {
		comp = append(comp, resource.LineDesc{Role: "gpio." + strconv.Itoa(i), Chip: chip, Offset: i, Init: resource.InitHigh})
	}
	for i, r := range []string{"s_enable", "s_idle", "s_resetn"} {
		comp = append(comp, resource.LineDesc{Role: r, Chip: chip, Offset: 7 + i, Init: resource.InitHigh})
	}
	return resource.Spec{
		Consumer: "ov5670",
		CRS: []resource.CRSLine{
			{Role: "xshutdn", Index: 0, Init: resource.InitAsIs},
			{Role: "pwdnb", Index: 1, Init: resource.InitAsIs},
			{Role: "led", Index: 2, Init: resource.InitAsIs},
		},
		Companion: comp,
		Supplies:  []string{"CORE", "ANA", "VCM", "VIO", "VSIO", "AUX1", "AUX2"},
		ClockName: "tps68470-clk",
		ClockRate: 19200000,
	}
}

func DefaultConfig() Config {
	return Config{
		Address:   AddressDefault,
		SSDBName:  firmware.ObjectSensorData,
		CLDBName:  firmware.ObjectControlLogic,
		Resources: DefaultResources(),
		Power:     power.DefaultConfig(),
		Modes:     DefaultModes(),
		Name:      "ov5670",
	}
}

func (c Config) Validate() error {
	const op = "ov5670.validate"
	bad := func(msg string) error { return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: msg} }
	switch {
	case c.Namespace == nil || c.Finder == nil:
		return bad("firmware namespace and finder required")
	case c.Bus == nil:
		return bad("i2c bus required")
	case !mathx.Between(c.Address, 0x01, 0x7f):
		return bad("bad i2c address")
	case c.Providers.Companion == nil || c.Providers.Regulators == nil || c.Providers.Clocks == nil:
		return bad("resource providers required")
	case c.Providers.CRS == nil && c.CRSFor == nil && len(c.Resources.CRS) > 0:
		return bad("crs gpio provider required")
	case len(c.Modes) == 0:
		return bad("empty mode catalog")
	}
	for _, m := range c.Modes {
		if m.LinkFreqIndex < 0 || m.LinkFreqIndex >= len(linkFreqs) {
			return bad("mode link frequency out of range")
		}
		if m.Width == 0 || m.Width > FixedPPL || m.Height == 0 || m.VTSMin < m.Height ||
			m.VTSDef < m.VTSMin || m.VTSDef > VTSMax {
			return bad("bad mode timing")
		}
	}
	if err := c.Resources.Validate(); err != nil {
		return err
	}
	return c.Power.Validate()
}

// ---------------- Device ----------------

type Device struct {
	mu     sync.Mutex
	log    *slog.Logger
	events *bus.Connection
	name   string

	regs      *cci.Device
	companion firmware.Device
	disc      firmware.Discovery
	res       *resource.Set
	seq       *power.Sequencer
	pm        *pm.Gate

	modes []Mode
	mode  *Mode
	ctrls controls

	streaming bool
	detached  bool
}

func errDetached(op string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "device detached"}
}

// Attach discovers the companion, acquires and powers the sensor's
// resources, verifies the chip id and builds the control set. The sensor
// is left powered down. On error nothing stays acquired.
func Attach(cfg Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("sensor", "ov5670", "node", string(cfg.Node))
	d := &Device{log: log, regs: cci.New(cfg.Bus, cfg.Address), events: cfg.Events, name: cfg.Name}
	if d.name == "" {
		d.name = "ov5670"
	}

	r := firmware.Resolver{
		NS:           cfg.Namespace,
		Finder:       cfg.Finder,
		CompanionIDs: cfg.CompanionIDs,
		Buses:        cfg.Buses,
		Logger:       log,
	}
	disc, err := r.Discover(cfg.Node, cfg.SSDBName, cfg.CLDBName)
	if err != nil {
		log.Error("attach: discovery", "error", err)
		return nil, err
	}
	d.companion = disc.Companion
	d.disc = disc

	spec := cfg.Resources
	if disc.HasSensor && disc.Sensor.ClockSpeed != 0 {
		spec.ClockRate = disc.Sensor.ClockSpeed
	}
	prov := cfg.Providers
	if cfg.CRSFor != nil {
		prov.CRS = cfg.CRSFor(disc.Companion)
	}
	d.res, err = resource.Acquire(spec, prov, log)
	if err != nil {
		d.teardown()
		return nil, err
	}

	pcfg := cfg.Power
	if pcfg.Logger == nil {
		pcfg.Logger = log
	}
	d.seq, err = power.New(d.res, pcfg)
	if err != nil {
		d.teardown()
		return nil, err
	}
	d.pm = pm.New(d.seq.PowerUp, d.seq.PowerDown, log)

	if err := d.seq.PowerUp(); err != nil {
		d.teardown()
		return nil, err
	}
	if err := d.identify(); err != nil {
		d.teardown()
		return nil, err
	}

	d.modes = resolveTables(cfg.Modes, cfg.Tables, log)
	d.mode = &d.modes[0]
	rot := -1
	if disc.HasSensor {
		rot = disc.Sensor.Rotation()
	}
	d.initControls(d.mode, rot)

	if err := d.seq.PowerDown(); err != nil {
		log.Warn("attach: power down", "error", err)
	}
	log.Info("attached", "companion", disc.Companion.Name(),
		"width", d.mode.Width, "height", d.mode.Height)

	d.announceFormat()
	for _, c := range d.ctrls.all {
		d.announceControl(c)
	}
	d.announceState(StateIdle)
	return d, nil
}

// resolveTables copies the catalog and fills each mode's register list
// from tables. Missing tables leave the list empty.
func resolveTables(modes []Mode, tables map[string]cci.RegList, log *slog.Logger) []Mode {
	out := append([]Mode(nil), modes...)
	for i := range out {
		m := &out[i]
		if m.Regs != nil || m.Table == "" {
			continue
		}
		regs, ok := tables[m.Table]
		if !ok {
			log.Warn("no register table for mode", "table", m.Table)
			continue
		}
		m.Regs = regs
	}
	return out
}

func (d *Device) identify() error {
	v, err := d.regs.Read(regChipID, 3)
	if err != nil {
		d.log.Error("identify: read chip id", "error", err)
		return err
	}
	if v != ChipID {
		d.log.Error("chip id mismatch", "want", fmt.Sprintf("0x%06x", ChipID), "got", fmt.Sprintf("0x%06x", v))
		return &errcode.E{C: errcode.IdentityMismatch, Op: "ov5670.identify",
			Msg: fmt.Sprintf("want 0x%06x got 0x%06x", ChipID, v)}
	}
	return nil
}

// teardown powers down and gives back whatever is held, newest first.
func (d *Device) teardown() {
	if d.seq != nil {
		_ = d.seq.PowerDown()
	}
	if d.res != nil {
		d.res.Release()
	}
	if d.companion != nil {
		d.companion.Put()
		d.companion = nil
	}
}

// Detach stops streaming, powers the sensor down and releases everything.
// Safe to call more than once.
func (d *Device) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return
	}
	if d.streaming {
		d.stopStreaming()
		d.pm.Put()
		d.streaming = false
	}
	d.teardown()
	d.detached = true
	d.retractAll()
	d.announceState(StateDetached)
	d.log.Info("detached")
}

// Sensor returns the decoded SSDB record, if firmware provided one.
func (d *Device) Sensor() (firmware.SensorIdentity, bool) {
	return d.disc.Sensor, d.disc.HasSensor
}

// CompanionIdentity returns the decoded CLDB record, if firmware provided one.
func (d *Device) CompanionIdentity() (firmware.CompanionIdentity, bool) {
	return d.disc.Control, d.disc.HasControl
}

// Powered reports whether the sensor's resources are on.
func (d *Device) Powered() bool { return d.seq.Powered() }
