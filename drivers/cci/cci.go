// Package cci implements camera-control-interface register access: 16-bit
// big-endian register addresses carrying 1 to 4 byte big-endian values over
// an I²C write / write-then-read transaction.
//
// NOTE: drivers.I2C.Tx MUST perform the address write and the data read as a
// single combined transaction (repeated start) when both w and r are given.
package cci

import (
	"fmt"

	"camsensor-go/errcode"

	"tinygo.org/x/drivers"
)

// Reg is one single-byte register assignment of an initialisation table.
type Reg struct {
	Addr uint16
	Val  uint8
}

// RegList is an ordered register table. Tables are opaque data: the driver
// applies them in order and never interprets their contents.
type RegList []Reg

// Device is a CCI target at a fixed 7-bit address. It is not safe for
// concurrent use; owners serialise access.
type Device struct {
	bus  drivers.I2C
	addr uint16

	// Fixed buffers to avoid per-call heap allocations.
	w [6]byte
	r [4]byte
}

// New binds a register target on bus at addr.
func New(bus drivers.I2C, addr uint16) *Device {
	return &Device{bus: bus, addr: addr}
}

// Addr returns the target's bus address.
func (d *Device) Addr() uint16 { return d.addr }

func checkWidth(op string, width int) error {
	if width < 1 || width > 4 {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "width must be 1..4"}
	}
	return nil
}

// Read returns the width-byte big-endian value at reg, right-aligned.
func (d *Device) Read(reg uint16, width int) (uint32, error) {
	const op = "cci.read"
	if err := checkWidth(op, width); err != nil {
		return 0, err
	}
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	if err := d.bus.Tx(d.addr, d.w[:2], d.r[:width]); err != nil {
		return 0, &errcode.E{C: errcode.IOError, Op: op, Msg: fmt.Sprintf("0x%04x", reg), Err: err}
	}
	var v uint32
	for _, b := range d.r[:width] {
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// Write stores the low width bytes of val at reg, most significant first.
func (d *Device) Write(reg uint16, width int, val uint32) error {
	const op = "cci.write"
	if err := checkWidth(op, width); err != nil {
		return err
	}
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	for i := 0; i < width; i++ {
		d.w[2+i] = byte(val >> (8 * uint(width-1-i)))
	}
	if err := d.bus.Tx(d.addr, d.w[:2+width], nil); err != nil {
		return &errcode.E{C: errcode.IOError, Op: op, Msg: fmt.Sprintf("0x%04x", reg), Err: err}
	}
	return nil
}

// WriteList applies regs in order with single-byte writes. It stops at the
// first failure; registers already written stay written.
func (d *Device) WriteList(regs RegList) error {
	for _, r := range regs {
		if err := d.Write(r.Addr, 1, uint32(r.Val)); err != nil {
			return err
		}
	}
	return nil
}

// Update is a read-modify-write of a width-byte register.
func (d *Device) Update(reg uint16, width int, set, clear uint32) error {
	cur, err := d.Read(reg, width)
	if err != nil {
		return err
	}
	return d.Write(reg, width, (cur|set)&^clear)
}
