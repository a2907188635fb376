package firmware

import (
	"log/slog"

	"camsensor-go/errcode"
)

// CompanionHID is the hardware id of the Intel camera power-management
// companion (TPS68470 or discrete GPIOs).
const CompanionHID = "INT3472"

// Resolver finds the live companion device a sensor depends on.
type Resolver struct {
	NS     Namespace
	Finder DeviceFinder

	// CompanionIDs are the accepted hardware ids. Default: [CompanionHID].
	CompanionIDs []string
	// Buses are searched in order; the first hit wins.
	// Default: [BusPlatform, BusPCI].
	Buses []BusKind

	Logger *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Resolver) companionIDs() []string {
	if len(r.CompanionIDs) > 0 {
		return r.CompanionIDs
	}
	return []string{CompanionHID}
}

func (r *Resolver) buses() []BusKind {
	if len(r.Buses) > 0 {
		return r.Buses
	}
	return []BusKind{BusPlatform, BusPCI}
}

func (r *Resolver) accepts(hid string) bool {
	for _, id := range r.companionIDs() {
		if id == hid {
			return true
		}
	}
	return false
}

// Resolve walks the _DEP list of h and returns the first dependency whose
// hardware id is accepted and that is bound to a live device. The returned
// Device holds a reference; the caller must Put it exactly once.
func (r *Resolver) Resolve(h Handle) (Device, error) {
	const op = "firmware.resolve"
	log := r.logger().With("node", string(h))

	if !r.NS.HasMethod(h, MethodDependencies) {
		return nil, &errcode.E{C: errcode.NoDependency, Op: op, Msg: string(h)}
	}
	deps, err := r.NS.References(h, MethodDependencies)
	if err != nil {
		return nil, &errcode.E{C: errcode.ResolutionFailed, Op: op, Msg: "evaluate _DEP", Err: err}
	}
	if len(deps) == 0 {
		return nil, &errcode.E{C: errcode.ResolutionFailed, Op: op, Msg: "empty _DEP"}
	}

	for _, dep := range deps {
		info, err := r.NS.Info(dep)
		if err != nil {
			return nil, &errcode.E{C: errcode.ResolutionFailed, Op: op, Msg: "dependency info " + string(dep), Err: err}
		}
		if !info.HIDValid || !r.accepts(info.HID) {
			log.Debug("skipping dependency", "dep", string(dep), "hid", info.HID)
			continue
		}
		for _, bus := range r.buses() {
			dev, ok := r.Finder.FindDeviceByFirmwareNode(bus, dep)
			if ok {
				log.Info("companion device found", "device", dev.Name(), "bus", string(bus), "hid", info.HID)
				return dev, nil
			}
		}
		log.Debug("companion has no live device", "dep", string(dep))
	}

	log.Error("companion device not found")
	return nil, &errcode.E{C: errcode.CompanionNotFound, Op: op, Msg: string(h)}
}

// Discovery is everything firmware says about a sensor and its companion.
type Discovery struct {
	Companion Device

	Sensor    SensorIdentity
	HasSensor bool

	Control    CompanionIdentity
	HasControl bool
}

// Discover resolves the companion of h and reads both identity blobs.
// Absent blobs are logged and left unset; malformed ones are errors. On
// error no companion reference is held.
func (r *Resolver) Discover(h Handle, ssdbName, cldbName string) (Discovery, error) {
	var d Discovery
	dev, err := r.Resolve(h)
	if err != nil {
		return d, err
	}
	d.Companion = dev
	log := r.logger()

	s, err := ReadSensorIdentity(r.NS, h, ssdbName)
	switch {
	case err == nil:
		d.Sensor, d.HasSensor = s, true
		log.Info("sensor identity", "ssdb", s)
	case errcode.Of(err) == errcode.NoSuchBlob:
		log.Warn("sensor identity unavailable", "error", err)
	default:
		dev.Put()
		return Discovery{}, err
	}

	c, err := ReadCompanionIdentity(r.NS, dev.Node(), cldbName)
	switch {
	case err == nil:
		d.Control, d.HasControl = c, true
		log.Info("companion identity", "cldb", c)
	case errcode.Of(err) == errcode.NoSuchBlob:
		log.Warn("companion identity unavailable", "error", err)
	default:
		dev.Put()
		return Discovery{}, err
	}
	return d, nil
}
