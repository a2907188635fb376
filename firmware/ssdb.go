package firmware

import (
	"encoding/binary"
	"log/slog"

	"camsensor-go/errcode"
)

// Layout identifies which on-wire schema an SSDB blob used.
type Layout uint8

const (
	LayoutUnknown Layout = iota
	// LayoutPacked is the compact record ending at the clock port byte.
	LayoutPacked
	// LayoutCoreboot pads the record with 13 reserved bytes and assigns
	// meaning to three bytes the packed form leaves reserved.
	LayoutCoreboot
)

func (l Layout) String() string {
	switch l {
	case LayoutPacked:
		return "packed"
	case LayoutCoreboot:
		return "coreboot"
	default:
		return "unknown"
	}
}

// Record sizes in bytes.
const (
	SSDBPackedSize   = 95
	SSDBCorebootSize = 108

	// identityReadSize bounds padded SSDB and CLDB records. Only the
	// leading record bytes are decoded.
	identityReadSize = 256
)

// SSDB byte offsets (little-endian fields).
const (
	offVersion      = 0
	offSKU          = 1
	offGUID         = 2
	offDevFunction  = 18
	offBus          = 19
	offPHYFuses     = 20
	offLaneClockDiv = 24
	offLink         = 28
	offLanes        = 29
	offMIPITiming   = 30
	offMaxLaneSpeed = 70
	offCalibIndex   = 74
	offROMType      = 78
	offVCMType      = 79
	offPlatform     = 80
	offPlatformSub  = 81
	offFlash        = 82
	offPrivacyLED   = 83
	offDegree       = 84
	offMIPIDefined  = 85
	offClockSpeed   = 86
	offControlLogic = 90
	offMIPIFormat   = 91
	offSiliconVer   = 92
	offCustomerID   = 93
	offClockPort    = 94
)

// SensorIdentity is the decoded sensor SSDB record.
type SensorIdentity struct {
	Version uint8
	SKU     uint8
	// GUID of the CSI-2 data stream interface.
	GUID [16]byte

	DevFunction uint8
	Bus         uint8

	PHYFuses     uint32
	LaneClockDiv uint32
	Link         uint8
	Lanes        uint8
	// MIPITiming holds termen/settle pairs for the clock lane then data
	// lanes 0..3.
	MIPITiming   [10]uint32
	MaxLaneSpeed uint32

	CalibIndex  uint8
	ROMType     uint8
	VCMType     uint8
	Platform    uint8
	PlatformSub uint8
	Flash       bool
	PrivacyLED  bool
	// Degree is the mounting orientation code: 0 upright, 1 rotated 180°.
	Degree      uint8
	MIPIDefined bool

	ClockSpeed     uint32 // Hz
	ControlLogicID uint8
	ClockPort      uint8

	// Populated only by LayoutCoreboot.
	MIPIDataFormat uint8
	SiliconVersion uint8
	CustomerID     uint8

	Layout Layout
}

// Rotation returns the mounting rotation in degrees.
func (s SensorIdentity) Rotation() int {
	if s.Degree == 1 {
		return 180
	}
	return 0
}

// DecodeSensorIdentity decodes an SSDB blob. The layout is chosen from the
// length; bytes beyond the coreboot record are ignored.
func DecodeSensorIdentity(b []byte) (SensorIdentity, error) {
	var s SensorIdentity
	switch {
	case len(b) >= SSDBCorebootSize:
		s.Layout = LayoutCoreboot
	case len(b) >= SSDBPackedSize:
		s.Layout = LayoutPacked
	default:
		return s, &errcode.E{C: errcode.InvalidBlob, Op: "firmware.decode_ssdb", Msg: "short record"}
	}
	le := binary.LittleEndian

	s.Version = b[offVersion]
	s.SKU = b[offSKU]
	copy(s.GUID[:], b[offGUID:offGUID+16])
	s.DevFunction = b[offDevFunction]
	s.Bus = b[offBus]
	s.PHYFuses = le.Uint32(b[offPHYFuses:])
	s.LaneClockDiv = le.Uint32(b[offLaneClockDiv:])
	s.Link = b[offLink]
	s.Lanes = b[offLanes]
	for i := range s.MIPITiming {
		s.MIPITiming[i] = le.Uint32(b[offMIPITiming+4*i:])
	}
	s.MaxLaneSpeed = le.Uint32(b[offMaxLaneSpeed:])
	s.CalibIndex = b[offCalibIndex]
	s.ROMType = b[offROMType]
	s.VCMType = b[offVCMType]
	s.Platform = b[offPlatform]
	s.PlatformSub = b[offPlatformSub]
	s.Flash = b[offFlash] != 0
	s.PrivacyLED = b[offPrivacyLED] != 0
	s.Degree = b[offDegree]
	s.MIPIDefined = b[offMIPIDefined] != 0
	s.ClockSpeed = le.Uint32(b[offClockSpeed:])
	s.ControlLogicID = b[offControlLogic]
	s.ClockPort = b[offClockPort]

	if s.Layout == LayoutCoreboot {
		s.MIPIDataFormat = b[offMIPIFormat]
		s.SiliconVersion = b[offSiliconVer]
		s.CustomerID = b[offCustomerID]
	}
	return s, nil
}

// ReadSensorIdentity reads and decodes the SSDB object under h.
func ReadSensorIdentity(ns Namespace, h Handle, name string) (SensorIdentity, error) {
	if name == "" {
		name = ObjectSensorData
	}
	var buf [identityReadSize]byte
	n, err := ReadBlob(ns, h, name, buf[:])
	if err != nil {
		return SensorIdentity{}, err
	}
	return DecodeSensorIdentity(buf[:n])
}

// LogValue renders the fields worth seeing at bring-up.
func (s SensorIdentity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("layout", s.Layout.String()),
		slog.Int("version", int(s.Version)),
		slog.Int("link", int(s.Link)),
		slog.Int("lanes", int(s.Lanes)),
		slog.Int("vcm_type", int(s.VCMType)),
		slog.Bool("flash", s.Flash),
		slog.Bool("privacy_led", s.PrivacyLED),
		slog.Int("rotation", s.Rotation()),
		slog.Uint64("clock_hz", uint64(s.ClockSpeed)),
		slog.Int("clock_port", int(s.ClockPort)),
		slog.Int("control_logic_id", int(s.ControlLogicID)),
	)
}
