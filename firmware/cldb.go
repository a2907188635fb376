package firmware

import (
	"log/slog"

	"camsensor-go/errcode"
)

// CLDB sizes in bytes.
const (
	CLDBSize    = 32
	cldbMinSize = 4
)

// ControlLogicType is the kind of power-management companion.
type ControlLogicType uint8

const (
	ControlLogicUnknown ControlLogicType = iota
	ControlLogicDiscrete
	ControlLogicTPS68470
	ControlLogicUP6641
)

func (t ControlLogicType) String() string {
	switch t {
	case ControlLogicDiscrete:
		return "discrete"
	case ControlLogicTPS68470:
		return "tps68470"
	case ControlLogicUP6641:
		return "up6641"
	default:
		return "unknown"
	}
}

// IsPMIC reports whether the companion is a PMIC rather than discrete GPIOs.
func (t ControlLogicType) IsPMIC() bool {
	return t == ControlLogicTPS68470 || t == ControlLogicUP6641
}

// CompanionIdentity is the decoded companion CLDB record.
type CompanionIdentity struct {
	Version        uint8
	Type           ControlLogicType
	ControlLogicID uint8
	SKU            uint8
}

// DecodeCompanionIdentity decodes a CLDB blob; trailing reserved bytes are
// ignored. Unknown type codes decode as ControlLogicUnknown.
func DecodeCompanionIdentity(b []byte) (CompanionIdentity, error) {
	if len(b) < cldbMinSize {
		return CompanionIdentity{}, &errcode.E{C: errcode.InvalidBlob, Op: "firmware.decode_cldb", Msg: "short record"}
	}
	t := ControlLogicType(b[1])
	if t > ControlLogicUP6641 {
		t = ControlLogicUnknown
	}
	return CompanionIdentity{
		Version:        b[0],
		Type:           t,
		ControlLogicID: b[2],
		SKU:            b[3],
	}, nil
}

// ReadCompanionIdentity reads and decodes the CLDB object under h.
func ReadCompanionIdentity(ns Namespace, h Handle, name string) (CompanionIdentity, error) {
	if name == "" {
		name = ObjectControlLogic
	}
	var buf [identityReadSize]byte
	n, err := ReadBlob(ns, h, name, buf[:])
	if err != nil {
		return CompanionIdentity{}, err
	}
	return DecodeCompanionIdentity(buf[:n])
}

func (c CompanionIdentity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("version", int(c.Version)),
		slog.String("type", c.Type.String()),
		slog.Int("control_logic_id", int(c.ControlLogicID)),
		slog.Int("sku", int(c.SKU)),
	)
}
