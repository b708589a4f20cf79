package attribute

import (
	"log/slog"
	"slices"
)

// Attribute is a named scalar with a private underlying value and an ordered
// stack of persistent buffs. Two attributes are equal iff their names match.
//
// The effective value is never cached: it is the fold of the active buffs,
// in insertion order, seeded with the underlying value. Because subtract,
// divide and percentage do not commute, the order of the active list matters
// and is preserved by every add and remove.
//
// Not safe for concurrent use; see simulation.Loop for the owning goroutine.
type Attribute struct {
	name       string
	initial    float64
	min        float64
	max        float64
	underlying float64
	buffs      []activeBuff
	nextSeq    uint64

	listeners listeners
}

// activeBuff is one application of a persistent buff. seq is unique per
// attribute and never reused, so two structurally equal buffs stay distinct.
type activeBuff struct {
	seq  uint64
	buff Buff
}

// New creates an attribute. The underlying value stays zero until
// ResetUnderlyingValue is called, which Container.AddAttribute does.
func New(name string, initial, minValue, maxValue float64) *Attribute {
	return &Attribute{
		name:    name,
		initial: initial,
		min:     minValue,
		max:     maxValue,
		buffs:   make([]activeBuff, 0, 4),
	}
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// InitialValue returns the value the underlying value resets to.
func (a *Attribute) InitialValue() float64 { return a.initial }

// MinValue returns the lower clamp bound.
func (a *Attribute) MinValue() float64 { return a.min }

// MaxValue returns the upper clamp bound.
func (a *Attribute) MaxValue() float64 { return a.max }

// UnderlyingValue returns the value before persistent buffs are folded in.
func (a *Attribute) UnderlyingValue() float64 { return a.underlying }

// Equal reports whether both attributes share a name.
func (a *Attribute) Equal(other *Attribute) bool {
	return other != nil && a.name == other.name
}

// Subscribe registers fn for AttributeChanged, BuffAdded, BuffRemoved and BuffsCleared.
func (a *Attribute) Subscribe(fn Listener) SubscriptionID {
	return a.listeners.subscribe(fn)
}

// Unsubscribe removes a listener. Returns false if id is unknown.
func (a *Attribute) Unsubscribe(id SubscriptionID) bool {
	return a.listeners.unsubscribe(id)
}

// Accepts reports whether the buff targets this attribute.
func (a *Attribute) Accepts(b Buff) bool {
	return b.Matches(a.name)
}

// Apply applies a buff. Immediate buffs fold into the underlying value once
// and are discarded; persistent buffs are appended to the active list.
// Returns false if the buff targets another attribute or carries an
// undefined kind or operation.
func (a *Attribute) Apply(b Buff) bool {
	_, ok := a.apply(b)
	return ok
}

// apply returns the sequence number of the new active entry, or 0 for an
// immediate buff.
func (a *Attribute) apply(b Buff) (uint64, bool) {
	if !a.Accepts(b) || !b.Kind.Valid() || !b.Operation.Valid() {
		return 0, false
	}

	if b.Kind == BuffImmediate {
		prev := a.underlying
		next := b.Operate(prev)
		if next != prev {
			a.underlying = next
			a.listeners.emit(Event{
				Kind:      EventAttributeChanged,
				Attribute: a.name,
				Previous:  prev,
				Current:   next,
			})
		}
		return 0, true
	}

	a.nextSeq++
	a.buffs = append(a.buffs, activeBuff{seq: a.nextSeq, buff: b})
	a.listeners.emit(Event{Kind: EventBuffAdded, Attribute: a.name, Buff: b})
	return a.nextSeq, true
}

// ApplyAll applies buffs in order and returns how many were accepted.
func (a *Attribute) ApplyAll(buffs []Buff) int {
	count := 0
	for _, b := range buffs {
		if a.Apply(b) {
			count++
		}
	}
	return count
}

// Remove removes the first active buff structurally equal to b.
func (a *Attribute) Remove(b Buff) bool {
	return a.removeAt(slices.IndexFunc(a.buffs, func(ab activeBuff) bool {
		return b.Equal(ab.buff)
	}))
}

// removeSeq removes the application identified by seq. A seq that is no
// longer active is a no-op.
func (a *Attribute) removeSeq(seq uint64) bool {
	return a.removeAt(slices.IndexFunc(a.buffs, func(ab activeBuff) bool {
		return ab.seq == seq
	}))
}

func (a *Attribute) removeAt(i int) bool {
	if i < 0 {
		return false
	}
	removed := a.buffs[i].buff
	a.buffs = slices.Delete(a.buffs, i, i+1)
	a.listeners.emit(Event{Kind: EventBuffRemoved, Attribute: a.name, Buff: removed})
	return true
}

// RemoveAll removes each buff once and returns how many were found.
func (a *Attribute) RemoveAll(buffs []Buff) int {
	count := 0
	for _, b := range buffs {
		if a.Remove(b) {
			count++
		}
	}
	return count
}

// RemoveAllOfType removes every active buff in the same group as query:
// same buff name when query is named, same target attribute otherwise.
// Remaining buffs keep their relative order.
func (a *Attribute) RemoveAllOfType(query Buff) int {
	var removed []Buff
	a.buffs = slices.DeleteFunc(a.buffs, func(ab activeBuff) bool {
		if ab.buff.sameType(query) {
			removed = append(removed, ab.buff)
			return true
		}
		return false
	})
	for _, b := range removed {
		a.listeners.emit(Event{Kind: EventBuffRemoved, Attribute: a.name, Buff: b})
	}
	return len(removed)
}

// Has reports whether a structurally equal buff is active.
func (a *Attribute) Has(b Buff) bool {
	return slices.ContainsFunc(a.buffs, func(ab activeBuff) bool {
		return b.Equal(ab.buff)
	})
}

// Clear drops every active buff.
func (a *Attribute) Clear() {
	a.buffs = a.buffs[:0]
	a.listeners.emit(Event{Kind: EventBuffsCleared, Attribute: a.name})
}

// Buffs returns a copy of the active buffs in application order.
func (a *Attribute) Buffs() []Buff {
	out := make([]Buff, len(a.buffs))
	for i, ab := range a.buffs {
		out[i] = ab.buff
	}
	return out
}

// BuffCount returns the number of active buffs.
func (a *Attribute) BuffCount() int {
	return len(a.buffs)
}

// Value returns the effective value: the underlying value folded through
// every active buff in insertion order.
func (a *Attribute) Value() float64 {
	v := a.underlying
	for _, ab := range a.buffs {
		v = ab.buff.Operate(v)
	}
	return v
}

// ClampedValue returns Value bounded to [min, max].
// Bounds are ignored unless max > min.
func (a *Attribute) ClampedValue() float64 {
	v := a.Value()
	if a.max > a.min {
		v = max(a.min, min(v, a.max))
	}
	return v
}

// ResetUnderlyingValue sets the underlying value to the initial value.
// Call it once at registration; calling it later discards every immediate
// buff applied since.
func (a *Attribute) ResetUnderlyingValue() {
	a.underlying = a.initial
}

// restore overwrites state from a snapshot without emitting events. It
// returns the sequence number given to each buff, in order.
func (a *Attribute) restore(underlying float64, buffs []Buff) []uint64 {
	a.underlying = underlying
	a.buffs = a.buffs[:0]
	seqs := make([]uint64, len(buffs))
	for i, b := range buffs {
		a.nextSeq++
		seqs[i] = a.nextSeq
		a.buffs = append(a.buffs, activeBuff{seq: a.nextSeq, buff: b})
	}
	slog.Debug("attribute restored", "attribute", a.name, "value", underlying, "buffs", len(buffs))
	return seqs
}
