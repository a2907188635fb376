// Package bus is an in-process topic bus used to announce sensor state:
// stream transitions, control values and the active format.
//
// Design notes:
// • Topics are string paths. "+" matches one level; "#" as the last
//   element matches the rest, including nothing.
// • A retained message is kept per topic and handed to later subscribers.
//   Publishing a retained nil payload clears it.
// • Publish never blocks. A full subscriber queue loses its oldest message.
package bus

import (
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics + Messages
// -----------------------------------------------------------------------------

// Topic is a path of levels.
type Topic []string

// T builds a topic.
func T(levels ...string) Topic { return Topic(levels) }

func (t Topic) String() string { return strings.Join(t, "/") }

// Append returns a new topic with levels added.
func (t Topic) Append(levels ...string) Topic {
	out := make(Topic, 0, len(t)+len(levels))
	return append(append(out, t...), levels...)
}

// Match reports whether the concrete topic t matches pattern.
func (pattern Topic) Match(t Topic) bool {
	for i, p := range pattern {
		if p == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if p != "+" && p != t[i] {
			return false
		}
	}
	return len(pattern) == len(t)
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver queues m, evicting the oldest queued message if full.
// Called with the bus lock held.
func (s *Subscription) deliver(m *Message) {
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus whose subscriptions queue up to queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{retained: make(map[string]*Message), qLen: queueLen}
}

func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscription and updates the
// retained store.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		key := msg.Topic.String()
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	for _, s := range b.subs {
		if s.pattern.Match(msg.Topic) {
			s.deliver(msg)
		}
	}
}

// Retained returns the retained message on topic t, if any.
func (b *Bus) Retained(t Topic) (*Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.retained[t.String()]
	return m, ok
}

func (b *Bus) add(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)

	keys := make([]string, 0, len(b.retained))
	for k, m := range b.retained {
		if s.pattern.Match(m.Topic) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.deliver(b.retained[k])
	}
}

// remove drops s and closes its channel. Reports false if s was already gone.
func (b *Bus) remove(s *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.subs {
		if x == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection groups the subscriptions of one client so they can be
// dropped together.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) Bus() *Bus  { return c.bus }

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers pattern. Matching retained messages are queued
// immediately, in topic order.
func (c *Connection) Subscribe(pattern Topic) *Subscription {
	s := &Subscription{
		pattern: append(Topic(nil), pattern...),
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	c.bus.add(s)
	return s
}

// Unsubscribe removes s and closes its channel. Safe to repeat.
func (c *Connection) Unsubscribe(s *Subscription) {
	c.mu.Lock()
	for i, x := range c.subs {
		if x == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.bus.remove(s)
}

// Disconnect unsubscribes everything the connection holds.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.remove(s)
	}
}
