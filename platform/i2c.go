package platform

import (
	"sync"

	"camsensor-go/errcode"
)

// ----------------------------- I²C (host) ------------------------------------

// Tx is one recorded bus transaction.
type Tx struct {
	Addr  uint16
	Reg   uint16
	Data  []byte // bytes written after the register address
	ReadN int
}

// IsWrite reports whether the transaction carried no read phase.
func (t Tx) IsWrite() bool { return t.ReadN == 0 }

// SimSensor implements tinygo drivers.I2C as a device with a 16-bit
// addressed, auto-incrementing byte register file. Transactions to other
// addresses are NACKed.
type SimSensor struct {
	Address uint16

	mu      sync.Mutex
	regs    map[uint16]byte
	log     []Tx
	offline bool
	wfail   map[uint16]*fault
	rfail   map[uint16]*fault
}

func NewSimSensor(addr uint16) *SimSensor {
	return &SimSensor{
		Address: addr,
		regs:    make(map[uint16]byte),
		wfail:   make(map[uint16]*fault),
		rfail:   make(map[uint16]*fault),
	}
}

var errNack = &errcode.E{C: errcode.IOError, Op: "i2c.tx", Msg: "nack"}

func (s *SimSensor) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != s.Address || s.offline || len(w) < 2 {
		return errNack
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	t := Tx{Addr: addr, Reg: reg, ReadN: len(r)}
	if len(w) > 2 {
		t.Data = append([]byte(nil), w[2:]...)
	}

	if len(r) > 0 {
		if f := s.rfail[reg]; f != nil {
			if err := f.hit(); err != nil {
				return err
			}
		}
		for i := range r {
			r[i] = s.regs[reg+uint16(i)]
		}
		s.log = append(s.log, t)
		return nil
	}

	if f := s.wfail[reg]; f != nil {
		if err := f.hit(); err != nil {
			return err
		}
	}
	for i, b := range t.Data {
		s.regs[reg+uint16(i)] = b
	}
	s.log = append(s.log, t)
	return nil
}

// SetReg preloads consecutive registers starting at reg.
func (s *SimSensor) SetReg(reg uint16, vals ...byte) {
	s.mu.Lock()
	for i, v := range vals {
		s.regs[reg+uint16(i)] = v
	}
	s.mu.Unlock()
}

// Reg returns the width-byte big-endian value at reg.
func (s *SimSensor) Reg(reg uint16, width int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(s.regs[reg+uint16(i)])
	}
	return v
}

// SetOffline makes every transaction fail until cleared.
func (s *SimSensor) SetOffline(off bool) {
	s.mu.Lock()
	s.offline = off
	s.mu.Unlock()
}

// FailWrites makes the next n writes starting at reg fail with err.
func (s *SimSensor) FailWrites(reg uint16, err error, n int) {
	s.mu.Lock()
	f := &fault{}
	f.set(err, n)
	s.wfail[reg] = f
	s.mu.Unlock()
}

// FailReads makes the next n reads starting at reg fail with err.
func (s *SimSensor) FailReads(reg uint16, err error, n int) {
	s.mu.Lock()
	f := &fault{}
	f.set(err, n)
	s.rfail[reg] = f
	s.mu.Unlock()
}

// Log returns a copy of the completed transactions.
func (s *SimSensor) Log() []Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tx(nil), s.log...)
}

// Writes counts completed writes starting at reg.
func (s *SimSensor) Writes(reg uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.log {
		if t.IsWrite() && t.Reg == reg {
			n++
		}
	}
	return n
}

func (s *SimSensor) ResetLog() {
	s.mu.Lock()
	s.log = s.log[:0]
	s.mu.Unlock()
}
