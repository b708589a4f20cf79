package attribute

import (
	"log/slog"
	"slices"
)

// Options configures a Container.
type Options struct {
	// ServerAuthoritative gates expiration bookkeeping behind Authority.
	ServerAuthoritative bool
	// Authority answers whether this side may mutate the expiration queue.
	// Nil counts as authoritative.
	Authority Authority
}

// Container owns a set of attributes and one expiration queue. It is the
// single entry point for applying buffs and effects and for reading or
// serializing attribute state.
//
// Events raised by the container:
//   - AttributeChanged, BuffRemoved, BuffsCleared forwarded from attributes
//   - BuffAdded once per ApplyBuff call that any attribute accepted
//   - BuffEnqueued, BuffDequeued, SecondTicked, PoolTickSet forwarded from the queue
//   - AttributeAdded, AttributeRemoved
type Container struct {
	attributes map[string]*Attribute
	order      []string
	wiring     map[string]SubscriptionID

	queue     *ExpirationQueue
	listeners listeners
}

// NewContainer creates an empty container and wires its expiration queue.
func NewContainer(opts Options) *Container {
	c := &Container{
		attributes: make(map[string]*Attribute),
		wiring:     make(map[string]SubscriptionID),
		queue:      NewExpirationQueue(opts.ServerAuthoritative, opts.Authority),
	}
	c.queue.Subscribe(c.onQueueEvent)
	return c
}

// Subscribe registers a listener for container events.
func (c *Container) Subscribe(fn Listener) SubscriptionID {
	return c.listeners.subscribe(fn)
}

// Unsubscribe removes a listener. Returns false if id is unknown.
func (c *Container) Unsubscribe(id SubscriptionID) bool {
	return c.listeners.unsubscribe(id)
}

// Queue returns the container's expiration queue.
func (c *Container) Queue() *ExpirationQueue {
	return c.queue
}

// AddAttribute registers an attribute, resetting its underlying value to the
// initial value. Returns false, changing nothing, if the name is taken.
func (c *Container) AddAttribute(a *Attribute) bool {
	if _, exists := c.attributes[a.name]; exists {
		return false
	}
	a.ResetUnderlyingValue()
	c.register(a)
	return true
}

func (c *Container) register(a *Attribute) {
	c.attributes[a.name] = a
	c.order = append(c.order, a.name)
	c.wiring[a.name] = a.Subscribe(c.onAttributeEvent)
	c.listeners.emit(Event{Kind: EventAttributeAdded, Attribute: a.name})
}

// RemoveAttribute unregisters an attribute by name. Queue entries that still
// target it expire as no-ops.
func (c *Container) RemoveAttribute(name string) bool {
	a, ok := c.attributes[name]
	if !ok {
		return false
	}
	a.Unsubscribe(c.wiring[name])
	delete(c.wiring, name)
	delete(c.attributes, name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == name })
	c.listeners.emit(Event{Kind: EventAttributeRemoved, Attribute: name})
	return true
}

// Attribute returns the named attribute.
func (c *Container) Attribute(name string) (*Attribute, bool) {
	a, ok := c.attributes[name]
	return a, ok
}

// Attributes returns the attributes in registration order.
func (c *Container) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.attributes[name])
	}
	return out
}

// Value returns the effective value of the named attribute.
func (c *Container) Value(name string) (float64, bool) {
	a, ok := c.attributes[name]
	if !ok {
		return 0, false
	}
	return a.Value(), true
}

// ApplyBuff applies b to every attribute that accepts it. Persistent timed
// buffs are also registered with the expiration queue. A single BuffAdded is
// raised when at least one attribute accepted the buff. Buffs with an
// undefined kind or operation are rejected.
func (c *Container) ApplyBuff(b Buff) bool {
	accepted := false
	for _, name := range c.order {
		a := c.attributes[name]
		seq, ok := a.apply(b)
		if !ok {
			continue
		}
		accepted = true
		if b.expires() {
			c.queue.enqueue(b, seq, b.Duration)
		}
	}
	if !accepted {
		return false
	}

	slog.Debug("buff applied", "attribute", b.Attribute, "buff", b.String(), "kind", b.Kind.String())
	c.listeners.emit(Event{Kind: EventBuffAdded, Attribute: b.Attribute, Buff: b})
	return true
}

// ApplyEffect applies every buff of e in declaration order and returns how
// many were accepted.
func (c *Container) ApplyEffect(e Effect) int {
	count := 0
	for b := range e.All() {
		if c.ApplyBuff(b) {
			count++
		}
	}
	return count
}

// RemoveBuff removes b from the first attribute holding a structurally equal
// buff. Stale queue entries for it are left to expire as no-ops.
func (c *Container) RemoveBuff(b Buff) bool {
	for _, name := range c.order {
		if c.attributes[name].Remove(b) {
			return true
		}
	}
	return false
}

// RemoveEffect removes every buff of e and returns how many were found.
func (c *Container) RemoveEffect(e Effect) int {
	count := 0
	for b := range e.All() {
		if c.RemoveBuff(b) {
			count++
		}
	}
	return count
}

// Tick advances the expiration queue by delta seconds.
func (c *Container) Tick(delta float64) {
	c.queue.Tick(delta)
}

func (c *Container) onAttributeEvent(ev Event) {
	switch ev.Kind {
	case EventAttributeChanged, EventBuffRemoved, EventBuffsCleared:
		c.listeners.emit(ev)
	}
}

func (c *Container) onQueueEvent(ev Event) {
	c.listeners.emit(ev)
	if ev.Kind != EventBuffDequeued {
		return
	}
	// The application may already be gone if it was removed explicitly.
	a, ok := c.attributes[ev.Buff.Attribute]
	if !ok {
		return
	}
	if ev.seq == 0 {
		a.Remove(ev.Buff)
		return
	}
	a.removeSeq(ev.seq)
}
