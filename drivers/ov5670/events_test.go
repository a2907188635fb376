package ov5670

import (
	"testing"

	"camsensor-go/bus"
)

func retained(t *testing.T, b *bus.Bus, levels ...string) any {
	t.Helper()
	m, ok := b.Retained(Topic("rear", levels...))
	if !ok {
		t.Fatalf("nothing retained on %v", Topic("rear", levels...))
	}
	return m.Payload
}

func TestEventsFollowLifecycle(t *testing.T) {
	b := bus.NewBus(64)
	h := newHarness()
	h.cfg.Events = b.NewConnection("ov5670")
	h.cfg.Name = "rear"
	d := h.attach(t)

	if s := retained(t, b, "state"); s != StateIdle {
		t.Fatalf("state %v", s)
	}
	if f := retained(t, b, "format").(Format); f.Width != 2592 || f.Height != 1944 {
		t.Fatalf("format %+v", f)
	}
	if c := retained(t, b, "ctrl", "exposure").(Control); c.Value != VTS30FPS-8 {
		t.Fatalf("exposure %+v", c)
	}

	watch := b.NewConnection("watch")
	sub := watch.Subscribe(Topic("rear", "state"))
	<-sub.Channel() // retained idle

	_ = d.SetStream(true)
	d.Suspend()
	_ = d.Resume()
	_ = d.SetStream(false)
	for _, want := range []State{StateStreaming, StateSuspended, StateStreaming, StateIdle} {
		select {
		case m := <-sub.Channel():
			if m.Payload != want {
				t.Fatalf("state %v want %v", m.Payload, want)
			}
		default:
			t.Fatalf("no %v event", want)
		}
	}

	d.Detach()
	if s := retained(t, b, "state"); s != StateDetached {
		t.Fatalf("state %v", s)
	}
	if _, ok := b.Retained(Topic("rear", "ctrl", "exposure")); ok {
		t.Fatalf("control still retained after detach")
	}
	if _, ok := b.Retained(Topic("rear", "format")); ok {
		t.Fatalf("format still retained after detach")
	}
}

func TestEventsOnControlAndFormat(t *testing.T) {
	b := bus.NewBus(64)
	h := newHarness()
	h.cfg.Events = b.NewConnection("ov5670")
	h.cfg.Name = "rear"
	d := h.attach(t)
	defer d.Detach()

	_ = d.SetControl(CtrlVBlank, 200)
	if c := retained(t, b, "ctrl", "vertical_blanking").(Control); c.Value != 200 {
		t.Fatalf("vblank %+v", c)
	}
	if c := retained(t, b, "ctrl", "exposure").(Control); c.Max != 1944+200-8 {
		t.Fatalf("exposure range not announced: %+v", c)
	}

	_, _ = d.SetFormat(Active, Format{Width: 640, Height: 360}, nil)
	if f := retained(t, b, "format").(Format); f.Width != 640 {
		t.Fatalf("format %+v", f)
	}
	if c := retained(t, b, "ctrl", "horizontal_blanking").(Control); c.Value != FixedPPL-640 {
		t.Fatalf("hblank %+v", c)
	}

	tp := retained(t, b, "ctrl", "test_pattern").(Control)
	tp.Menu[0] = "x"
	if ctrl(t, d, CtrlTestPattern).Menu[0] == "x" {
		t.Fatalf("announced control shares its menu")
	}

	// Try formats are private to the caller.
	var st PadState
	_, _ = d.SetFormat(Try, Format{Width: 2592, Height: 1944}, &st)
	if f := retained(t, b, "format").(Format); f.Width != 640 {
		t.Fatalf("try format announced: %+v", f)
	}
}

func TestEventsOptional(t *testing.T) {
	h := newHarness()
	d := h.attach(t)
	_ = d.SetStream(true)
	_ = d.SetControl(CtrlExposure, 100)
	d.Detach()
}
