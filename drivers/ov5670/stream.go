package ov5670

import "camsensor-go/errcode"

// SetStream starts or stops streaming. Asking for the current state is a
// no-op. Starting resumes the sensor through the power gate and programs
// it from scratch; on any failure the gate reference is dropped and the
// sensor stays idle. Stopping never fails.
func (d *Device) SetStream(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return errDetached("ov5670.set_stream")
	}
	if d.streaming == on {
		return nil
	}
	if !on {
		d.stopStreaming()
		d.pm.Put()
		d.streaming = false
		d.announceState(StateIdle)
		d.log.Info("stream off")
		return nil
	}

	if err := d.pm.GetSync(); err != nil {
		d.log.Error("stream on: power", "error", err)
		return err
	}
	if err := d.startStreaming(); err != nil {
		d.pm.Put()
		return err
	}
	d.streaming = true
	d.announceState(StateStreaming)
	d.log.Info("stream on", "width", d.mode.Width, "height", d.mode.Height)
	return nil
}

// Streaming reports the logical streaming state.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Suspend puts a streaming sensor into standby without changing the
// logical streaming state.
func (d *Device) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streaming {
		d.stopStreaming()
		d.announceState(StateSuspended)
	}
}

// Resume restarts streaming if the sensor was streaming when suspended. If
// the restart fails the sensor is put back into standby and the error is
// returned.
func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streaming {
		return nil
	}
	if err := d.startStreaming(); err != nil {
		d.stopStreaming()
		return err
	}
	d.announceState(StateStreaming)
	return nil
}

// startStreaming programs the sensor for the current mode and starts it.
// The caller holds a power gate reference.
func (d *Device) startStreaming() error {
	const op = "ov5670.stream_on"
	fail := func(step string, err error) error {
		d.log.Error("stream on failed", "step", step, "error", err)
		return &errcode.E{C: errcode.StreamStartFailed, Op: op, Msg: step, Err: err}
	}

	if err := d.regs.Write(regSoftwareReset, 1, softwareReset); err != nil {
		return fail("software reset", err)
	}
	if err := d.regs.WriteList(linkFreqs[d.mode.LinkFreqIndex].Regs); err != nil {
		return fail("pll", err)
	}
	if err := d.regs.WriteList(d.mode.Regs); err != nil {
		return fail("mode", err)
	}
	if err := d.replayControls(); err != nil {
		return fail("controls", err)
	}
	if err := d.regs.Write(regModeSelect, 1, modeStreaming); err != nil {
		return fail("stream on", err)
	}
	return nil
}

// stopStreaming writes standby. Failures are logged only.
func (d *Device) stopStreaming() {
	if err := d.regs.Write(regModeSelect, 1, modeStandby); err != nil {
		d.log.Warn("stream off failed", "error", err)
	}
}
