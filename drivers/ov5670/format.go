package ov5670

import "camsensor-go/errcode"

// MbusCode is a media bus pixel format code.
type MbusCode uint32

// MbusSGRBG10 is the only format the sensor produces: 10-bit GRBG bayer.
const MbusSGRBG10 MbusCode = 0x300a

type Field uint8

const FieldNone Field = 1

// Format is a pad format.
type Format struct {
	Width  uint32
	Height uint32
	Code   MbusCode
	Field  Field
}

// Which selects the active format or a caller's trial format.
type Which uint8

const (
	Active Which = iota
	Try
)

// PadState is per-caller scratch storage for trial formats.
type PadState struct {
	Try Format
}

// FrameSize is one discrete frame size; min equals max.
type FrameSize struct {
	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

func modeFormat(m *Mode) Format {
	return Format{Width: m.Width, Height: m.Height, Code: MbusSGRBG10, Field: FieldNone}
}

// SetFormat picks the mode nearest to req and returns its format. Active
// updates the current mode and its control ranges but does not touch the
// sensor; the new mode is programmed at the next stream start. Try stores
// the result in st only.
func (d *Device) SetFormat(which Which, req Format, st *PadState) (Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const op = "ov5670.set_format"
	if d.detached {
		return Format{}, errDetached(op)
	}
	if which == Try && st == nil {
		return Format{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "try format needs pad state"}
	}

	i := NearestMode(d.modes, req.Width, req.Height)
	m := &d.modes[i]
	f := modeFormat(m)
	if which == Try {
		st.Try = f
		return f, nil
	}
	d.applyMode(m)
	d.announceFormat()
	d.announceModeControls()
	d.log.Debug("mode selected", "width", m.Width, "height", m.Height, "req_width", req.Width, "req_height", req.Height)
	return f, nil
}

// GetFormat returns the active format or the trial format held in st.
func (d *Device) GetFormat(which Which, st *PadState) (Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if which == Try {
		if st == nil {
			return Format{}, &errcode.E{C: errcode.InvalidParams, Op: "ov5670.get_format", Msg: "try format needs pad state"}
		}
		return st.Try, nil
	}
	return modeFormat(d.mode), nil
}

// Open initialises a caller's trial format to the current mode.
func (d *Device) Open(st *PadState) {
	d.mu.Lock()
	st.Try = modeFormat(d.mode)
	d.mu.Unlock()
}

// EnumMbusCode returns the index-th supported bus format.
func (d *Device) EnumMbusCode(index int) (MbusCode, error) {
	if index != 0 {
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "ov5670.enum_mbus_code", Msg: "index out of range"}
	}
	return MbusSGRBG10, nil
}

// EnumFrameSize returns the index-th mode size for code.
func (d *Device) EnumFrameSize(index int, code MbusCode) (FrameSize, error) {
	const op = "ov5670.enum_frame_size"
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.modes) {
		return FrameSize{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "index out of range"}
	}
	if code != MbusSGRBG10 {
		return FrameSize{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "unsupported code"}
	}
	m := d.modes[index]
	return FrameSize{MinWidth: m.Width, MaxWidth: m.Width, MinHeight: m.Height, MaxHeight: m.Height}, nil
}

// SkipFrames is the number of frames to drop after stream start.
func (d *Device) SkipFrames() int { return NumSkipFrames }

// Mode returns the current mode.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.mode
}
