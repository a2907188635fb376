// Package firmware reads the platform-firmware description of a camera
// sensor: the fixed-format identity blobs (SSDB for the sensor, CLDB for its
// power-management companion) and the _DEP dependency list used to locate
// the companion device.
//
// The firmware namespace itself (ACPI evaluation on a real platform) is an
// external collaborator reached through the Namespace interface. Nothing in
// this package touches hardware.
package firmware

import "sync"

// Handle is an opaque firmware node reference, e.g. `\_SB_.PCI0.LNK0`.
// Two handles name the same node iff they are equal.
type Handle string

// Well-known object names.
const (
	MethodDependencies = "_DEP"
	ObjectSensorData   = "SSDB"
	ObjectControlLogic = "CLDB"
)

// ObjectType is the type tag of an evaluated firmware object.
type ObjectType uint8

const (
	ObjectAny ObjectType = iota
	ObjectInteger
	ObjectString
	ObjectBuffer
	ObjectPackage
)

func (t ObjectType) String() string {
	switch t {
	case ObjectInteger:
		return "integer"
	case ObjectString:
		return "string"
	case ObjectBuffer:
		return "buffer"
	case ObjectPackage:
		return "package"
	default:
		return "any"
	}
}

// Object is the result of a namespace evaluation. Its storage is transient
// and owned by the namespace until Release is called.
type Object struct {
	Type    ObjectType
	Buffer  []byte
	Integer uint64

	once    sync.Once
	release func()
}

// NewObject wraps an evaluation result. release may be nil.
func NewObject(t ObjectType, buf []byte, release func()) *Object {
	return &Object{Type: t, Buffer: buf, release: release}
}

// Release returns the object's storage to the namespace. Safe to call more
// than once and on a nil receiver.
func (o *Object) Release() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		if o.release != nil {
			o.release()
		}
		o.Buffer = nil
	})
}

// DeviceInfo is the identifying metadata of a firmware node.
type DeviceInfo struct {
	HID      string
	HIDValid bool
	UID      string
}

// Namespace evaluates objects in the platform firmware.
type Namespace interface {
	// HasMethod reports whether name exists under h.
	HasMethod(h Handle, name string) bool
	// Evaluate evaluates name under h. The caller must Release the result.
	Evaluate(h Handle, name string) (*Object, error)
	// References evaluates name under h as a list of node references.
	References(h Handle, name string) ([]Handle, error)
	// Info returns the identifying metadata of h.
	Info(h Handle) (DeviceInfo, error)
}

// BusKind names a device bus class that can be searched for a live device.
type BusKind string

const (
	BusPlatform BusKind = "platform"
	BusPCI      BusKind = "pci"
	BusI2C      BusKind = "i2c"
)

// Device is a live, bus-attached device bound to a firmware node. A Device
// returned by a finder carries a reference that must be dropped with Put.
type Device interface {
	Name() string
	Node() Handle
	Put()
}

// DeviceFinder maps a firmware node to a live device on one bus class.
type DeviceFinder interface {
	FindDeviceByFirmwareNode(bus BusKind, node Handle) (Device, bool)
}
