package firmware

import (
	"errors"
	"testing"

	"camsensor-go/errcode"
)

// Surface Go 2 rear camera SSDB (ov5670 on link 0, four lanes, 19.2 MHz).
var sgo2RearSSDB = []byte{
	0x01, 0x50, 0x69, 0x56, 0x39, 0x8A, 0xF7, 0x11,
	0xA9, 0x4E, 0x9C, 0x7D, 0x20, 0xEE, 0x0A, 0xB5,
	0xCA, 0x40, 0xA3, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x04,
	0x09, 0x00, 0x02, 0x01, 0x00, 0x01, 0x00, 0xF8,
	0x24, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Surface Go 2 TPS68470 CLDB.
var sgo2PMICCLDB = []byte{
	0x01, 0x02, 0x00, 0x50, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x1F, 0x00, 0x00, 0x03, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

type fakeObj struct {
	typ ObjectType
	buf []byte
}

type fakeNS struct {
	objects  map[Handle]map[string]fakeObj
	deps     map[Handle][]Handle
	depErr   error
	infos    map[Handle]DeviceInfo
	infoErr  map[Handle]error
	evals    int
	releases int
}

func newFakeNS() *fakeNS {
	return &fakeNS{
		objects: map[Handle]map[string]fakeObj{},
		deps:    map[Handle][]Handle{},
		infos:   map[Handle]DeviceInfo{},
		infoErr: map[Handle]error{},
	}
}

func (f *fakeNS) put(h Handle, name string, typ ObjectType, buf []byte) {
	if f.objects[h] == nil {
		f.objects[h] = map[string]fakeObj{}
	}
	f.objects[h][name] = fakeObj{typ: typ, buf: buf}
}

func (f *fakeNS) HasMethod(h Handle, name string) bool {
	if name == MethodDependencies {
		_, ok := f.deps[h]
		return ok
	}
	_, ok := f.objects[h][name]
	return ok
}

func (f *fakeNS) Evaluate(h Handle, name string) (*Object, error) {
	o, ok := f.objects[h][name]
	if !ok {
		return nil, errors.New("AE_NOT_FOUND")
	}
	f.evals++
	buf := append([]byte(nil), o.buf...)
	return NewObject(o.typ, buf, func() { f.releases++ }), nil
}

func (f *fakeNS) References(h Handle, name string) ([]Handle, error) {
	if f.depErr != nil {
		return nil, f.depErr
	}
	return f.deps[h], nil
}

func (f *fakeNS) Info(h Handle) (DeviceInfo, error) {
	if err := f.infoErr[h]; err != nil {
		return DeviceInfo{}, err
	}
	return f.infos[h], nil
}

type fakeDevice struct {
	name string
	node Handle
	puts *int
}

func (d fakeDevice) Name() string { return d.name }
func (d fakeDevice) Node() Handle { return d.node }
func (d fakeDevice) Put()         { *d.puts++ }

type fakeFinder struct {
	devices map[BusKind]map[Handle]string
	queries []BusKind
	puts    int
}

func (f *fakeFinder) FindDeviceByFirmwareNode(bus BusKind, node Handle) (Device, bool) {
	f.queries = append(f.queries, bus)
	name, ok := f.devices[bus][node]
	if !ok {
		return nil, false
	}
	return fakeDevice{name: name, node: node, puts: &f.puts}, true
}

// ------------------------------- ReadBlob -------------------------------------

func TestReadBlobCopiesAndReleases(t *testing.T) {
	ns := newFakeNS()
	ns.put("\\CAM0", "SSDB", ObjectBuffer, []byte{1, 2, 3, 4})

	dst := make([]byte, 8)
	n, err := ReadBlob(ns, "\\CAM0", "SSDB", dst)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if n != 4 || dst[0] != 1 || dst[3] != 4 || dst[4] != 0 {
		t.Fatalf("unexpected copy n=%d dst=%v", n, dst)
	}
	if ns.releases != ns.evals {
		t.Fatalf("leaked objects: evals=%d releases=%d", ns.evals, ns.releases)
	}
}

func TestReadBlobTooSmallDoesNotCopy(t *testing.T) {
	const N = 16
	ns := newFakeNS()
	src := make([]byte, N)
	for i := range src {
		src[i] = 0xAA
	}
	ns.put("\\CAM0", "SSDB", ObjectBuffer, src)

	dst := make([]byte, N-1)
	_, err := ReadBlob(ns, "\\CAM0", "SSDB", dst)
	if errcode.Of(err) != errcode.BufferTooSmall {
		t.Fatalf("want buffer_too_small, got %v", err)
	}
	for i, b := range dst {
		if b != 0 {
			t.Fatalf("byte %d written on failure", i)
		}
	}
	if ns.releases != 1 {
		t.Fatalf("object not released on failure path: %d", ns.releases)
	}
}

func TestReadBlobMissingOrWrongType(t *testing.T) {
	ns := newFakeNS()
	ns.put("\\CAM0", "SSDB", ObjectInteger, nil)

	if _, err := ReadBlob(ns, "\\CAM0", "NOPE", make([]byte, 4)); errcode.Of(err) != errcode.NoSuchBlob {
		t.Fatalf("missing: want no_such_blob, got %v", err)
	}
	if _, err := ReadBlob(ns, "\\CAM0", "SSDB", make([]byte, 4)); errcode.Of(err) != errcode.NoSuchBlob {
		t.Fatalf("integer: want no_such_blob, got %v", err)
	}
	if ns.releases != ns.evals {
		t.Fatalf("leaked objects: evals=%d releases=%d", ns.evals, ns.releases)
	}
}

// ------------------------------- Identity -------------------------------------

func TestDecodeSensorIdentityCoreboot(t *testing.T) {
	s, err := DecodeSensorIdentity(sgo2RearSSDB)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Layout != LayoutCoreboot {
		t.Fatalf("layout = %v", s.Layout)
	}
	if s.Version != 1 || s.SKU != 0x50 || s.Link != 0 || s.Lanes != 4 {
		t.Fatalf("header mismatch: %+v", s)
	}
	if s.GUID[0] != 0x69 || s.GUID[15] != 0x40 {
		t.Fatalf("guid mismatch: %x", s.GUID)
	}
	if s.ROMType != 1 || s.VCMType != 4 || s.Platform != 9 || !s.PrivacyLED || !s.MIPIDefined {
		t.Fatalf("module fields mismatch: %+v", s)
	}
	if s.ClockSpeed != 19200000 {
		t.Fatalf("clock speed = %d", s.ClockSpeed)
	}
	if s.Rotation() != 0 {
		t.Fatalf("rotation = %d", s.Rotation())
	}
}

func TestDecodeSensorIdentityLayoutsAgree(t *testing.T) {
	packed, err := DecodeSensorIdentity(sgo2RearSSDB[:SSDBPackedSize])
	if err != nil {
		t.Fatalf("packed decode: %v", err)
	}
	padded, err := DecodeSensorIdentity(append(append([]byte(nil), sgo2RearSSDB...), 0xFF, 0xFF))
	if err != nil {
		t.Fatalf("padded decode: %v", err)
	}
	if packed.Layout != LayoutPacked || padded.Layout != LayoutCoreboot {
		t.Fatalf("layouts: %v %v", packed.Layout, padded.Layout)
	}
	padded.Layout, packed.Layout = 0, 0
	padded.MIPIDataFormat, padded.SiliconVersion, padded.CustomerID = 0, 0, 0
	if packed != padded {
		t.Fatalf("semantic fields differ:\n%+v\n%+v", packed, padded)
	}
}

func TestDecodeSensorIdentityShort(t *testing.T) {
	if _, err := DecodeSensorIdentity(sgo2RearSSDB[:SSDBPackedSize-1]); errcode.Of(err) != errcode.InvalidBlob {
		t.Fatalf("want invalid_blob, got %v", err)
	}
}

func TestReadCompanionIdentity(t *testing.T) {
	ns := newFakeNS()
	ns.put("\\CLP0", "CLDB", ObjectBuffer, sgo2PMICCLDB)
	c, err := ReadCompanionIdentity(ns, "\\CLP0", "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.Version != 1 || c.Type != ControlLogicTPS68470 || c.ControlLogicID != 0 || c.SKU != 0x50 {
		t.Fatalf("unexpected %+v", c)
	}
	if !c.Type.IsPMIC() || c.Type.String() != "tps68470" {
		t.Fatal("type helpers")
	}
	if _, err := DecodeCompanionIdentity([]byte{1, 2}); errcode.Of(err) != errcode.InvalidBlob {
		t.Fatalf("short cldb: %v", err)
	}
	if c, _ := DecodeCompanionIdentity([]byte{1, 9, 0, 0}); c.Type != ControlLogicUnknown {
		t.Fatalf("out-of-range type decoded as %v", c.Type)
	}
}

func TestReadIdentityIgnoresPadding(t *testing.T) {
	ns := newFakeNS()
	ns.put("\\LNK0", "SSDB", ObjectBuffer, append(append([]byte(nil), sgo2RearSSDB...), 0, 0, 0, 0))
	ns.put("\\CLP0", "CLDB", ObjectBuffer, append(append([]byte(nil), sgo2PMICCLDB...), 0, 0, 0, 0))

	s, err := ReadSensorIdentity(ns, "\\LNK0", "")
	if err != nil || s.Layout != LayoutCoreboot || s.ClockSpeed != 19200000 {
		t.Fatalf("ssdb %+v %v", s, err)
	}
	c, err := ReadCompanionIdentity(ns, "\\CLP0", "")
	if err != nil || c.Type != ControlLogicTPS68470 {
		t.Fatalf("cldb %+v %v", c, err)
	}
	if ns.evals != ns.releases {
		t.Fatalf("evals %d releases %d", ns.evals, ns.releases)
	}

	ns.put("\\LNK0", "SSDB", ObjectBuffer, make([]byte, identityReadSize+1))
	if _, err := ReadSensorIdentity(ns, "\\LNK0", ""); errcode.Of(err) != errcode.BufferTooSmall {
		t.Fatalf("oversized record: %v", err)
	}
}

// ------------------------------- Resolver -------------------------------------

func TestResolveSecondDependencyOnSecondaryBus(t *testing.T) {
	ns := newFakeNS()
	ns.deps["\\LNK0"] = []Handle{"\\PCI0.I2C2", "\\PCI0.CLP0"}
	ns.infos["\\PCI0.I2C2"] = DeviceInfo{HID: "INT3442", HIDValid: true}
	ns.infos["\\PCI0.CLP0"] = DeviceInfo{HID: CompanionHID, HIDValid: true}
	fd := &fakeFinder{devices: map[BusKind]map[Handle]string{
		BusPlatform: {"\\PCI0.I2C2": "i2c_designware.2"},
		BusPCI:      {"\\PCI0.CLP0": "0000:00:15.3"},
	}}
	r := &Resolver{NS: ns, Finder: fd}

	dev, err := r.Resolve("\\LNK0")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dev.Name() != "0000:00:15.3" || dev.Node() != "\\PCI0.CLP0" {
		t.Fatalf("wrong device %s (%s)", dev.Name(), dev.Node())
	}
	// platform is tried before pci for the accepted dependency only.
	if len(fd.queries) != 2 || fd.queries[0] != BusPlatform || fd.queries[1] != BusPCI {
		t.Fatalf("bus order %v", fd.queries)
	}
	dev.Put()
	if fd.puts != 1 {
		t.Fatalf("puts = %d", fd.puts)
	}
}

func TestResolveErrors(t *testing.T) {
	fd := &fakeFinder{}

	ns := newFakeNS()
	r := &Resolver{NS: ns, Finder: fd}
	if _, err := r.Resolve("\\LNK0"); errcode.Of(err) != errcode.NoDependency {
		t.Fatalf("no _DEP: %v", err)
	}

	ns.deps["\\LNK0"] = nil
	if _, err := r.Resolve("\\LNK0"); errcode.Of(err) != errcode.ResolutionFailed {
		t.Fatalf("empty _DEP: %v", err)
	}

	ns.depErr = errors.New("AE_TYPE")
	if _, err := r.Resolve("\\LNK0"); errcode.Of(err) != errcode.ResolutionFailed {
		t.Fatalf("_DEP error: %v", err)
	}
	ns.depErr = nil

	ns.deps["\\LNK0"] = []Handle{"\\CLP0"}
	ns.infoErr["\\CLP0"] = errors.New("AE_ERROR")
	if _, err := r.Resolve("\\LNK0"); errcode.Of(err) != errcode.ResolutionFailed {
		t.Fatalf("info error: %v", err)
	}
	delete(ns.infoErr, "\\CLP0")

	ns.infos["\\CLP0"] = DeviceInfo{HID: CompanionHID, HIDValid: true}
	if _, err := r.Resolve("\\LNK0"); errcode.Of(err) != errcode.CompanionNotFound {
		t.Fatalf("no live device: %v", err)
	}
}

func TestDiscoverReadsBothBlobs(t *testing.T) {
	ns := newFakeNS()
	ns.deps["\\LNK0"] = []Handle{"\\CLP0"}
	ns.infos["\\CLP0"] = DeviceInfo{HID: CompanionHID, HIDValid: true}
	ns.put("\\LNK0", "SSDB", ObjectBuffer, sgo2RearSSDB)
	ns.put("\\CLP0", "CLDB", ObjectBuffer, sgo2PMICCLDB)
	fd := &fakeFinder{devices: map[BusKind]map[Handle]string{BusPlatform: {"\\CLP0": "INT3472:00"}}}
	r := &Resolver{NS: ns, Finder: fd}

	d, err := r.Discover("\\LNK0", "", "")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !d.HasSensor || !d.HasControl || d.Sensor.ClockSpeed != 19200000 || d.Control.Type != ControlLogicTPS68470 {
		t.Fatalf("unexpected discovery %+v", d)
	}
	d.Companion.Put()
	if fd.puts != 1 {
		t.Fatalf("puts = %d", fd.puts)
	}
}

func TestDiscoverBadBlobDropsReference(t *testing.T) {
	ns := newFakeNS()
	ns.deps["\\LNK0"] = []Handle{"\\CLP0"}
	ns.infos["\\CLP0"] = DeviceInfo{HID: CompanionHID, HIDValid: true}
	ns.put("\\LNK0", "SSDB", ObjectBuffer, []byte{1, 2, 3})
	fd := &fakeFinder{devices: map[BusKind]map[Handle]string{BusPlatform: {"\\CLP0": "INT3472:00"}}}
	r := &Resolver{NS: ns, Finder: fd}

	if _, err := r.Discover("\\LNK0", "", ""); errcode.Of(err) != errcode.InvalidBlob {
		t.Fatalf("want invalid_blob, got %v", err)
	}
	if fd.puts != 1 {
		t.Fatalf("reference leaked: puts = %d", fd.puts)
	}
}
