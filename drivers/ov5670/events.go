package ov5670

import "camsensor-go/bus"

// State is the lifecycle state announced on the event bus.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateSuspended State = "suspended"
	StateDetached  State = "detached"
)

// Event topics, all retained, under camera/<name>:
//
//	state           State
//	format          Format
//	ctrl/<control>  Control
const (
	topicRoot   = "camera"
	topicState  = "state"
	topicFormat = "format"
	topicCtrl   = "ctrl"
)

// Topic returns the event topic for a device name and sub-path.
func Topic(name string, levels ...string) bus.Topic {
	return bus.T(topicRoot, name).Append(levels...)
}

func (d *Device) announce(payload any, levels ...string) {
	if d.events == nil {
		return
	}
	d.events.Publish(&bus.Message{Topic: Topic(d.name, levels...), Payload: payload, Retained: true})
}

func (d *Device) announceState(s State) { d.announce(s, topicState) }

func (d *Device) announceFormat() { d.announce(modeFormat(d.mode), topicFormat) }

func (d *Device) announceControl(c *Control) {
	d.announce(c.snapshot(), topicCtrl, c.ID.String())
}

// announceModeControls covers the controls whose ranges follow the mode.
func (d *Device) announceModeControls() {
	cs := &d.ctrls
	for _, c := range []*Control{cs.linkFreq, cs.pixelRate, cs.vblank, cs.hblank, cs.exposure} {
		d.announceControl(c)
	}
}

// retractAll clears the retained format and control topics.
func (d *Device) retractAll() {
	d.announce(nil, topicFormat)
	for _, c := range d.ctrls.all {
		d.announce(nil, topicCtrl, c.ID.String())
	}
}
