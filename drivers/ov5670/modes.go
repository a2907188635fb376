package ov5670

import (
	"camsensor-go/drivers/cci"
	"camsensor-go/x/mathx"
)

// LinkFreq is a selectable CSI-2 link frequency and the PLL table that
// produces it.
type LinkFreq struct {
	Hz   int64
	Regs cci.RegList
}

// PixelRate is the pixel rate carried by a link frequency: double data
// rate, two lanes, 10 bits per pixel.
func (l LinkFreq) PixelRate() int64 { return l.Hz * 2 * 2 / 10 }

const LinkFreq422MHz = 422400000

var linkFreqs = []LinkFreq{
	{Hz: LinkFreq422MHz, Regs: pll840Mbps},
}

// LinkFreqs returns the link frequency menu.
func LinkFreqs() []LinkFreq { return append([]LinkFreq(nil), linkFreqs...) }

// Mode is one supported output resolution.
type Mode struct {
	Width  uint32
	Height uint32
	VTSDef uint32 // default frame length in lines
	VTSMin uint32

	LinkFreqIndex int

	// Table names the register list programmed on stream start. Regs, when
	// set, takes precedence.
	Table string
	Regs  cci.RegList
}

// HBlank is the fixed horizontal blanking of the mode.
func (m Mode) HBlank() int64 { return FixedPPL - int64(m.Width) }

// VBlankRange returns the vertical blanking limits and default.
func (m Mode) VBlankRange() (lo, hi, def int64) {
	h := int64(m.Height)
	return int64(m.VTSMin) - h, VTSMax - h, int64(m.VTSDef) - h
}

// DefaultModes returns the mode catalog, largest first. Register tables are
// looked up by name.
func DefaultModes() []Mode {
	return []Mode{
		{Width: 2592, Height: 1944, VTSDef: VTS30FPS, VTSMin: VTS30FPS, Table: "2592x1944"},
		{Width: 1296, Height: 972, VTSDef: VTS30FPS, VTSMin: 996, Table: "1296x972"},
		{Width: 648, Height: 486, VTSDef: VTS30FPS, VTSMin: 516, Table: "648x486"},
		{Width: 2560, Height: 1440, VTSDef: VTS30FPS, VTSMin: VTS30FPS, Table: "2560x1440"},
		{Width: 1280, Height: 720, VTSDef: VTS30FPS, VTSMin: 1020, Table: "1280x720"},
		{Width: 640, Height: 360, VTSDef: VTS30FPS, VTSMin: 510, Table: "640x360"},
	}
}

// NearestMode returns the index of the mode minimising |Δw|+|Δh|. Ties go
// to the earlier mode. It returns -1 for an empty catalog.
func NearestMode(modes []Mode, w, h uint32) int {
	best, bestErr := -1, uint32(0)
	for i, m := range modes {
		e := mathx.AbsDiff(m.Width, w) + mathx.AbsDiff(m.Height, h)
		if best < 0 || e < bestErr {
			best, bestErr = i, e
			if e == 0 {
				break
			}
		}
	}
	return best
}
