package ov5670

import (
	"camsensor-go/errcode"
	"camsensor-go/x/mathx"
)

// ControlID identifies a control. Values follow the V4L2 control ids.
type ControlID uint32

const (
	CtrlExposure       ControlID = 0x00980911
	CtrlSensorRotation ControlID = 0x009a0923
	CtrlVBlank         ControlID = 0x009e0901
	CtrlHBlank         ControlID = 0x009e0902
	CtrlAnalogueGain   ControlID = 0x009e0903
	CtrlLinkFreq       ControlID = 0x009f0901
	CtrlPixelRate      ControlID = 0x009f0902
	CtrlTestPattern    ControlID = 0x009f0903
	CtrlDigitalGain    ControlID = 0x009f0905
)

func (id ControlID) String() string {
	switch id {
	case CtrlExposure:
		return "exposure"
	case CtrlSensorRotation:
		return "camera_sensor_rotation"
	case CtrlVBlank:
		return "vertical_blanking"
	case CtrlHBlank:
		return "horizontal_blanking"
	case CtrlAnalogueGain:
		return "analogue_gain"
	case CtrlLinkFreq:
		return "link_frequency"
	case CtrlPixelRate:
		return "pixel_rate"
	case CtrlTestPattern:
		return "test_pattern"
	case CtrlDigitalGain:
		return "digital_gain"
	default:
		return "unknown"
	}
}

// TestPatternMenu lists the test pattern choices by value.
var TestPatternMenu = []string{
	"Disabled",
	"Vertical Color Bar Type 1",
}

// Control is a snapshot of one control's range and value.
type Control struct {
	ID       ControlID
	Min      int64
	Max      int64
	Step     int64
	Default  int64
	Value    int64
	ReadOnly bool
	// Menu holds item labels for menu controls; IntMenu holds the values
	// of integer menus. Value is then an index.
	Menu    []string
	IntMenu []int64
}

func (c *Control) clamp(v int64) int64 { return mathx.SnapStep(v, c.Min, c.Max, c.Step) }

// setRange replaces the limits and re-clamps the current value.
func (c *Control) setRange(lo, hi, step, def int64) {
	c.Min, c.Max, c.Step, c.Default = lo, hi, step, def
	c.Value = c.clamp(c.Value)
}

// controls holds the sensor's controls in creation order; replay follows
// this order.
type controls struct {
	all []*Control

	linkFreq  *Control
	pixelRate *Control
	vblank    *Control
	hblank    *Control
	exposure  *Control
}

func (cs *controls) add(c *Control) *Control {
	cs.all = append(cs.all, c)
	return c
}

func (cs *controls) find(id ControlID) *Control {
	for _, c := range cs.all {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// initControls builds the control set for mode m. rotation < 0 omits the
// rotation control.
func (d *Device) initControls(m *Mode, rotation int) {
	var cs controls
	lf := linkFreqs[m.LinkFreqIndex]
	menu := make([]int64, len(linkFreqs))
	for i, l := range linkFreqs {
		menu[i] = l.Hz
	}
	cs.linkFreq = cs.add(&Control{ID: CtrlLinkFreq, Max: int64(len(menu) - 1), Step: 1,
		Value: int64(m.LinkFreqIndex), ReadOnly: true, IntMenu: menu})
	cs.pixelRate = cs.add(&Control{ID: CtrlPixelRate, Max: lf.PixelRate(), Step: 1,
		Default: lf.PixelRate(), Value: lf.PixelRate(), ReadOnly: true})

	vmin, vmax, vdef := m.VBlankRange()
	cs.vblank = cs.add(&Control{ID: CtrlVBlank, Min: vmin, Max: vmax, Step: 1, Default: vdef, Value: vdef})
	hb := m.HBlank()
	cs.hblank = cs.add(&Control{ID: CtrlHBlank, Min: hb, Max: hb, Step: 1, Default: hb, Value: hb, ReadOnly: true})

	cs.add(&Control{ID: CtrlAnalogueGain, Min: AnalogGainMin, Max: AnalogGainMax, Step: AnalogGainStep,
		Default: AnalogGainDefault, Value: AnalogGainDefault})
	cs.add(&Control{ID: CtrlDigitalGain, Min: DigitalGainMin, Max: DigitalGainMax, Step: DigitalGainStep,
		Default: DigitalGainDefault, Value: DigitalGainDefault})

	emax := int64(m.VTSDef) - exposureMargin
	cs.exposure = cs.add(&Control{ID: CtrlExposure, Min: ExposureMin, Max: emax, Step: ExposureStep,
		Default: emax, Value: emax})

	cs.add(&Control{ID: CtrlTestPattern, Max: int64(len(TestPatternMenu) - 1), Step: 1, Menu: TestPatternMenu})

	if rotation >= 0 {
		r := int64(rotation)
		cs.add(&Control{ID: CtrlSensorRotation, Min: r, Max: r, Step: 1, Default: r, Value: r, ReadOnly: true})
	}
	d.ctrls = cs
}

// updateExposureRange recomputes the exposure limit from the current mode
// height and vertical blanking.
func (d *Device) updateExposureRange() {
	emax := int64(d.mode.Height) + d.ctrls.vblank.Value - exposureMargin
	e := d.ctrls.exposure
	e.setRange(e.Min, emax, e.Step, emax)
}

// applyMode updates the mode-dependent control ranges. Bookkeeping only.
func (d *Device) applyMode(m *Mode) {
	d.mode = m
	cs := &d.ctrls
	cs.linkFreq.Value = int64(m.LinkFreqIndex)
	pr := linkFreqs[m.LinkFreqIndex].PixelRate()
	cs.pixelRate.Value = pr

	vmin, vmax, vdef := m.VBlankRange()
	cs.vblank.setRange(vmin, vmax, 1, vdef)
	cs.vblank.Value = vdef

	hb := m.HBlank()
	cs.hblank.setRange(hb, hb, 1, hb)

	d.updateExposureRange()
}

// SetControl sets a control's value, clamped to its range. The value is
// cached and written to the sensor only while it is in use; otherwise it
// takes effect at the next stream start. Unknown ids are ignored.
func (d *Device) SetControl(id ControlID, v int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	const op = "ov5670.set_control"
	if d.detached {
		return errDetached(op)
	}

	c := d.ctrls.find(id)
	if c == nil {
		d.log.Info("unhandled control", "id", uint32(id), "value", v)
		return nil
	}
	if c.ReadOnly {
		return &errcode.E{C: errcode.ReadOnly, Op: op, Msg: id.String()}
	}
	c.Value = c.clamp(v)
	d.announceControl(c)
	exposureClamped := false
	if c == d.ctrls.vblank {
		e := d.ctrls.exposure
		before := e.Value
		d.updateExposureRange()
		exposureClamped = e.Value != before
		d.announceControl(e)
	}

	if !d.pm.GetIfInUse() {
		return nil
	}
	defer d.pm.Put()
	// A clamped exposure goes out before the shorter frame length.
	if exposureClamped {
		if err := d.writeControl(d.ctrls.exposure); err != nil {
			return err
		}
	}
	return d.writeControl(c)
}

// Control returns a copy of the control, or false if the sensor has none
// with that id.
func (d *Device) Control(id ControlID) (Control, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.ctrls.find(id)
	if c == nil {
		return Control{}, false
	}
	return c.snapshot(), true
}

// Controls returns snapshots of all controls in creation order.
func (d *Device) Controls() []Control {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Control, len(d.ctrls.all))
	for i, c := range d.ctrls.all {
		out[i] = c.snapshot()
	}
	return out
}

// snapshot copies c without sharing its menus.
func (c *Control) snapshot() Control {
	cp := *c
	cp.Menu = append([]string(nil), c.Menu...)
	cp.IntMenu = append([]int64(nil), c.IntMenu...)
	return cp
}

// writeControl programs one control into the sensor.
func (d *Device) writeControl(c *Control) error {
	switch c.ID {
	case CtrlAnalogueGain:
		return d.regs.Write(regAnalogGain, 2, uint32(c.Value))
	case CtrlDigitalGain:
		for _, r := range [...]uint16{regRDigitalGain, regGDigitalGain, regBDigitalGain} {
			if err := d.regs.Write(r, 2, uint32(c.Value)); err != nil {
				return err
			}
		}
		return nil
	case CtrlExposure:
		return d.regs.Write(regExposure, 3, uint32(c.Value)<<exposureFracBits)
	case CtrlVBlank:
		return d.regs.Write(regVTS, 2, d.mode.Height+uint32(c.Value))
	case CtrlTestPattern:
		return d.setTestPattern(c.Value != 0)
	default:
		d.log.Info("unhandled control", "id", uint32(c.ID), "value", c.Value)
		return nil
	}
}

// setTestPattern selects the supported bayer order, then flips only the
// enable bit.
func (d *Device) setTestPattern(on bool) error {
	if err := d.regs.Write(regTestPatternCtrl, 1, 0); err != nil {
		return err
	}
	if on {
		return d.regs.Update(regTestPattern, 1, testPatternEnable, 0)
	}
	return d.regs.Update(regTestPattern, 1, 0, testPatternEnable)
}

// replayControls writes every writable control in creation order.
func (d *Device) replayControls() error {
	for _, c := range d.ctrls.all {
		if c.ReadOnly {
			continue
		}
		if err := d.writeControl(c); err != nil {
			return err
		}
	}
	return nil
}
