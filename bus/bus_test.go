package bus

import (
	"sort"
	"testing"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("camera", "state"))
	conn.Publish(b.NewMessage(T("camera", "state"), "streaming", false))

	expectOneOf(t, sub, "streaming")
	expectNoMessage(t, sub)
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(b.NewMessage(T("camera", "state"), "idle", true))
	conn.Publish(b.NewMessage(T("camera", "state"), "streaming", true))

	sub := conn.Subscribe(T("camera", "state"))
	expectOneOf(t, sub, "streaming")
	expectNoMessage(t, sub)

	if m, ok := b.Retained(T("camera", "state")); !ok || m.Payload != "streaming" {
		t.Fatalf("Retained: %v %v", m, ok)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic Topic
		want           bool
	}{
		{T("a", "b", "c"), T("a", "b", "c"), true},
		{T("a", "+", "c"), T("a", "b", "c"), true},
		{T("a", "+", "c"), T("a", "c"), false},
		{T("a", "+", "c"), T("a", "b", "d"), false},
		{T("a", "#"), T("a"), true},
		{T("a", "#"), T("a", "b", "c"), true},
		{T("#"), T("x"), true},
		{T("a", "b", "#"), T("a"), false},
		{T("a"), T("a", "b"), false},
		{T("a", "+"), T("a", "b", "c"), false},
	}
	for _, c := range cases {
		if got := c.pattern.Match(c.topic); got != c.want {
			t.Fatalf("%v match %v = %v", c.pattern, c.topic, got)
		}
	}
}

func TestWildcardRetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("a"), "r0", true))
	c.Publish(b.NewMessage(T("a", "b"), "r1", true))
	c.Publish(b.NewMessage(T("a", "b", "c"), "r2", true))
	c.Publish(b.NewMessage(T("a", "x"), "r3", true))

	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "#")), 4), []string{"r0", "r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "+", "#")), 3), []string{"r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "+")), 2), []string{"r1", "r3"})
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("a", "b"), "keep", true))
	c.Publish(b.NewMessage(T("a", "y"), "other", true))
	c.Publish(b.NewMessage(T("a", "b"), nil, true))

	s := c.Subscribe(T("a", "#"))
	if got := drainPayloads(t, s, 1); got[0] != "other" {
		t.Fatalf("got %v", got)
	}
	expectNoMessage(t, s)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("ctrl", "+"))

	for _, p := range []string{"1", "2", "3", "4"} {
		c.Publish(b.NewMessage(T("ctrl", "exposure"), p, false))
	}
	expectOneOf(t, s, "3")
	expectOneOf(t, s, "4")
	expectNoMessage(t, s)
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b"))

	s1.Unsubscribe()
	s1.Unsubscribe()
	if _, ok := <-s1.Channel(); ok {
		t.Fatalf("channel not closed")
	}

	c.Disconnect()
	if _, ok := <-s2.Channel(); ok {
		t.Fatalf("channel not closed by Disconnect")
	}
	// Publishing to a topic with no subscribers is fine.
	c.Publish(b.NewMessage(T("b"), "x", false))
}

func TestSubscribeCopiesPattern(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	p := T("a", "b")
	s := c.Subscribe(p)
	p[1] = "z"

	c.Publish(b.NewMessage(T("a", "b"), "m", false))
	expectOneOf(t, s, "m")
	if s.Topic().String() != "a/b" {
		t.Fatalf("pattern %v", s.Topic())
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// Delivery is synchronous, so a message is either queued or not.

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		if s, ok := got.Payload.(string); !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	default:
		t.Fatalf("no message, want %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	default:
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	for len(out) < n {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload: %#v", m.Payload)
			}
			out = append(out, s)
		default:
			t.Fatalf("expected %d messages, got %d (%v)", n, len(out), out)
		}
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
