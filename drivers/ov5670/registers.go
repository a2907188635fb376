package ov5670

import "camsensor-go/drivers/cci"

const (
	// 7-bit I2C address.
	AddressDefault = 0x36

	ChipID = 0x005670

	// --- Register addresses (16-bit) ---
	regChipID          = 0x300a // 24-bit
	regModeSelect      = 0x0100
	regSoftwareReset   = 0x0103
	regVTS             = 0x380e // 16-bit
	regHTS             = 0x380c // 16-bit
	regExposure        = 0x3500 // 24-bit, 4 fractional bits
	regAnalogGain      = 0x3508 // 16-bit
	regRDigitalGain    = 0x5032 // 16-bit
	regGDigitalGain    = 0x5034 // 16-bit
	regBDigitalGain    = 0x5036 // 16-bit
	regTestPattern     = 0x4303
	regTestPatternCtrl = 0x4320

	// --- Values ---
	modeStandby       = 0x00
	modeStreaming     = 0x01
	softwareReset     = 0x01
	testPatternEnable = 1 << 3
	exposureFracBits  = 4

	// --- Timing ---
	VTS30FPS       = 0x0808
	VTSMax         = 0xffff
	FixedPPL       = 2724 // pixels per line
	exposureMargin = 8

	ExposureMin  = 4
	ExposureStep = 1

	AnalogGainMin     = 0
	AnalogGainMax     = 8191
	AnalogGainStep    = 1
	AnalogGainDefault = 128

	DigitalGainMin     = 0
	DigitalGainMax     = 4095
	DigitalGainStep    = 1
	DigitalGainDefault = 1024

	NumSkipFrames = 2
)

// MIPI data rate 840 Mbps from a 19.2 MHz clock.
var pll840Mbps = cci.RegList{
	{Addr: 0x0300, Val: 0x04},
	{Addr: 0x0301, Val: 0x00},
	{Addr: 0x0302, Val: 0x84},
	{Addr: 0x0303, Val: 0x00},
	{Addr: 0x0304, Val: 0x03},
	{Addr: 0x0305, Val: 0x01},
	{Addr: 0x0306, Val: 0x01},
	{Addr: 0x030a, Val: 0x00},
	{Addr: 0x030b, Val: 0x00},
	{Addr: 0x030c, Val: 0x00},
	{Addr: 0x030d, Val: 0x26},
	{Addr: 0x030e, Val: 0x00},
	{Addr: 0x030f, Val: 0x06},
	{Addr: 0x0312, Val: 0x01},
	{Addr: 0x3031, Val: 0x0a},
}
