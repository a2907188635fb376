package platform

import (
	"sync"

	"camsensor-go/errcode"
	"camsensor-go/firmware"
)

// ----------------------------- Firmware (host) -------------------------------

type fwObject struct {
	typ firmware.ObjectType
	buf []byte
}

// FakeFirmware is a firmware namespace and a device finder over the same
// node table. Live devices are registered per bus kind.
type FakeFirmware struct {
	mu       sync.Mutex
	objects  map[firmware.Handle]map[string]fwObject
	deps     map[firmware.Handle][]firmware.Handle
	infos    map[firmware.Handle]firmware.DeviceInfo
	live     map[firmware.BusKind]map[firmware.Handle]string
	evals    int
	releases int
	gets     int
	puts     int
}

func NewFakeFirmware() *FakeFirmware {
	return &FakeFirmware{
		objects: make(map[firmware.Handle]map[string]fwObject),
		deps:    make(map[firmware.Handle][]firmware.Handle),
		infos:   make(map[firmware.Handle]firmware.DeviceInfo),
		live:    make(map[firmware.BusKind]map[firmware.Handle]string),
	}
}

// AddBuffer installs a buffer object under h.
func (f *FakeFirmware) AddBuffer(h firmware.Handle, name string, buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[h] == nil {
		f.objects[h] = make(map[string]fwObject)
	}
	f.objects[h][name] = fwObject{typ: firmware.ObjectBuffer, buf: append([]byte(nil), buf...)}
}

// AddNode declares h with hardware id hid.
func (f *FakeFirmware) AddNode(h firmware.Handle, hid string) {
	f.mu.Lock()
	f.infos[h] = firmware.DeviceInfo{HID: hid, HIDValid: hid != ""}
	f.mu.Unlock()
}

// SetDeps sets the _DEP list of h.
func (f *FakeFirmware) SetDeps(h firmware.Handle, deps ...firmware.Handle) {
	f.mu.Lock()
	f.deps[h] = append([]firmware.Handle(nil), deps...)
	f.mu.Unlock()
}

// Bind makes node reachable as a live device called name on bus.
func (f *FakeFirmware) Bind(bus firmware.BusKind, node firmware.Handle, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live[bus] == nil {
		f.live[bus] = make(map[firmware.Handle]string)
	}
	f.live[bus][node] = name
}

func (f *FakeFirmware) HasMethod(h firmware.Handle, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == firmware.MethodDependencies {
		_, ok := f.deps[h]
		return ok
	}
	_, ok := f.objects[h][name]
	return ok
}

func (f *FakeFirmware) Evaluate(h firmware.Handle, name string) (*firmware.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[h][name]
	if !ok {
		return nil, &errcode.E{C: errcode.NoSuchBlob, Op: "firmware.evaluate", Msg: string(h) + "." + name}
	}
	f.evals++
	return firmware.NewObject(o.typ, append([]byte(nil), o.buf...), func() {
		f.mu.Lock()
		f.releases++
		f.mu.Unlock()
	}), nil
}

func (f *FakeFirmware) References(h firmware.Handle, name string) ([]firmware.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name != firmware.MethodDependencies {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "firmware.references", Msg: name}
	}
	return append([]firmware.Handle(nil), f.deps[h]...), nil
}

func (f *FakeFirmware) Info(h firmware.Handle) (firmware.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[h]
	if !ok {
		return firmware.DeviceInfo{}, &errcode.E{C: errcode.ResolutionFailed, Op: "firmware.info", Msg: string(h)}
	}
	return info, nil
}

func (f *FakeFirmware) FindDeviceByFirmwareNode(bus firmware.BusKind, node firmware.Handle) (firmware.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.live[bus][node]
	if !ok {
		return nil, false
	}
	f.gets++
	return &fakeDevice{fw: f, name: name, node: node}, true
}

// Balance reports evaluated-minus-released objects and got-minus-put
// device references. Both are zero when nothing leaked.
func (f *FakeFirmware) Balance() (objects, devices int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals - f.releases, f.gets - f.puts
}

type fakeDevice struct {
	fw   *FakeFirmware
	name string
	node firmware.Handle
}

func (d *fakeDevice) Name() string          { return d.name }
func (d *fakeDevice) Node() firmware.Handle { return d.node }
func (d *fakeDevice) Put() {
	d.fw.mu.Lock()
	d.fw.puts++
	d.fw.mu.Unlock()
}

// Surface Go 2 rear camera topology.
const (
	SurfaceSensorNode firmware.Handle = `\_SB_.PCI0.LNK0`
	SurfaceI2CNode    firmware.Handle = `\_SB_.PCI0.I2C2`
	SurfacePMICNode   firmware.Handle = `\_SB_.PCI0.CLP0`
)

// SurfaceRearSSDB is the coreboot-layout sensor record (link 0, four
// lanes, 19.2 MHz).
func SurfaceRearSSDB() []byte {
	b := make([]byte, 108)
	b[0], b[1] = 0x01, 0x50
	copy(b[2:18], []byte{0x69, 0x56, 0x39, 0x8A, 0xF7, 0x11, 0xA9, 0x4E, 0x9C, 0x7D, 0x20, 0xEE, 0x0A, 0xB5, 0xCA, 0x40})
	b[18] = 0xA3
	b[29] = 0x04
	b[78], b[79] = 0x01, 0x04
	b[80], b[82], b[83], b[85] = 0x09, 0x02, 0x01, 0x01
	// 19200000 little-endian
	b[86], b[87], b[88], b[89] = 0x00, 0xF8, 0x24, 0x01
	return b
}

// SurfacePMICCLDB is the TPS68470 companion record.
func SurfacePMICCLDB() []byte {
	b := make([]byte, 32)
	b[0], b[1], b[3] = 0x01, 0x02, 0x50
	b[10], b[13] = 0x1F, 0x03
	return b
}

// NewSurfaceFirmware builds a namespace where the sensor depends on an I²C
// controller first and the INT3472 companion second, the companion being
// live on the PCI bus only.
func NewSurfaceFirmware() *FakeFirmware {
	f := NewFakeFirmware()
	f.AddNode(SurfaceSensorNode, "INT3479")
	f.AddNode(SurfaceI2CNode, "INT34C5")
	f.AddNode(SurfacePMICNode, "INT3472")
	f.SetDeps(SurfaceSensorNode, SurfaceI2CNode, SurfacePMICNode)
	f.Bind(firmware.BusPlatform, SurfaceI2CNode, "i2c-INT34C5:00")
	f.Bind(firmware.BusPCI, SurfacePMICNode, "INT3472:00")
	f.AddBuffer(SurfaceSensorNode, firmware.ObjectSensorData, SurfaceRearSSDB())
	f.AddBuffer(SurfacePMICNode, firmware.ObjectControlLogic, SurfacePMICCLDB())
	return f
}
