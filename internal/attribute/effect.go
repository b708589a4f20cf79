package attribute

import (
	"iter"
	"slices"
)

// Effect is an ordered, immutable bundle of buffs applied and removed as a unit.
type Effect struct {
	name  string
	buffs []Buff
}

// NewEffect creates an effect. The buff slice is copied.
func NewEffect(name string, buffs ...Buff) Effect {
	return Effect{name: name, buffs: slices.Clone(buffs)}
}

// Name returns the effect name.
func (e Effect) Name() string { return e.name }

// Len returns the number of buffs in the effect.
func (e Effect) Len() int { return len(e.buffs) }

// Buffs returns a copy of the buffs in declaration order.
func (e Effect) Buffs() []Buff {
	return slices.Clone(e.buffs)
}

// All yields every buff in declaration order.
func (e Effect) All() iter.Seq[Buff] {
	return slices.Values(e.buffs)
}

// InstantBuffs yields the buffs with zero duration, in declaration order.
func (e Effect) InstantBuffs() iter.Seq[Buff] {
	return e.filter(func(b Buff) bool { return !b.IsTimed() })
}

// TimedBuffs yields the buffs with a positive duration, in declaration order.
func (e Effect) TimedBuffs() iter.Seq[Buff] {
	return e.filter(Buff.IsTimed)
}

func (e Effect) filter(keep func(Buff) bool) iter.Seq[Buff] {
	return func(yield func(Buff) bool) {
		for _, b := range e.buffs {
			if keep(b) && !yield(b) {
				return
			}
		}
	}
}
