package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAttribute creates an attribute whose underlying value is already initialized.
func newTestAttribute(name string, initial float64) *Attribute {
	a := New(name, initial, 0, 1000)
	a.ResetUnderlyingValue()
	return a
}

func persistent(attr string, op Operation, mag float64) Buff {
	return Buff{Attribute: attr, Operation: op, Magnitude: mag, Kind: BuffPersistent}
}

func immediate(attr string, op Operation, mag float64) Buff {
	return Buff{Attribute: attr, Operation: op, Magnitude: mag, Kind: BuffImmediate}
}

func recordEvents(subscribe func(Listener) SubscriptionID) *[]Event {
	var events []Event
	subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestApply_RejectsOtherAttribute(t *testing.T) {
	a := newTestAttribute("health", 100)
	events := recordEvents(a.Subscribe)

	assert.False(t, a.Apply(persistent("mana", OpAdd, 5)))
	assert.False(t, a.Apply(immediate("mana", OpAdd, 5)))

	assert.Equal(t, 100.0, a.UnderlyingValue())
	assert.Zero(t, a.BuffCount())
	assert.Empty(t, *events)
}

func TestApply_RejectsUndefinedKindOrOperation(t *testing.T) {
	a := newTestAttribute("speed", 10)
	events := recordEvents(a.Subscribe)

	assert.False(t, a.Apply(Buff{Attribute: "speed", Operation: OpAdd, Magnitude: 5}))
	assert.False(t, a.Apply(Buff{Attribute: "speed", Operation: Operation(99), Magnitude: 5, Kind: BuffImmediate}))

	assert.Zero(t, a.BuffCount())
	assert.Equal(t, 10.0, a.Value())
	assert.Empty(t, *events)
}

func TestApply_OrderMatters(t *testing.T) {
	sub := persistent("attack", OpSubtract, 3)
	mul := persistent("attack", OpMultiply, 2)

	a := newTestAttribute("attack", 10)
	a.Apply(sub)
	a.Apply(mul)
	assert.Equal(t, 14.0, a.Value()) // (10-3)*2

	b := newTestAttribute("attack", 10)
	b.Apply(mul)
	b.Apply(sub)
	assert.Equal(t, 17.0, b.Value()) // 10*2-3
}

func TestApply_Immediate(t *testing.T) {
	a := newTestAttribute("health", 50)
	events := recordEvents(a.Subscribe)

	require.True(t, a.Apply(immediate("health", OpAdd, 25)))

	assert.Equal(t, 75.0, a.UnderlyingValue())
	assert.Equal(t, 75.0, a.Value())
	assert.Zero(t, a.BuffCount(), "immediate buffs are never retained")
	require.Len(t, *events, 1)
	assert.Equal(t, Event{Kind: EventAttributeChanged, Attribute: "health", Previous: 50, Current: 75}, (*events)[0])
}

func TestApply_ImmediateWithoutChangeIsSilent(t *testing.T) {
	a := newTestAttribute("health", 50)
	events := recordEvents(a.Subscribe)

	assert.True(t, a.Apply(immediate("health", OpAdd, 0)))
	assert.True(t, a.Apply(immediate("health", OpMultiply, 1)))
	assert.Empty(t, *events)
}

func TestApply_ImmediateUnderPersistent(t *testing.T) {
	a := newTestAttribute("speed", 10)
	a.Apply(persistent("speed", OpMultiply, 2))
	a.Apply(immediate("speed", OpAdd, 5))

	assert.Equal(t, 15.0, a.UnderlyingValue())
	assert.Equal(t, 30.0, a.Value())
	assert.Equal(t, 1, a.BuffCount())
}

func TestApply_PersistentRaisesBuffAdded(t *testing.T) {
	a := newTestAttribute("defense", 5)
	events := recordEvents(a.Subscribe)
	b := persistent("defense", OpAdd, 3)

	a.Apply(b)

	require.Len(t, *events, 1)
	assert.Equal(t, EventBuffAdded, (*events)[0].Kind)
	assert.Equal(t, b, (*events)[0].Buff)
	assert.Equal(t, 5.0, a.UnderlyingValue())
	assert.Equal(t, 8.0, a.Value())
}

func TestRemove_FirstMatchOnly(t *testing.T) {
	a := newTestAttribute("attack", 10)
	add := persistent("attack", OpAdd, 5)
	mul := persistent("attack", OpMultiply, 2)
	a.ApplyAll([]Buff{add, mul, add})

	events := recordEvents(a.Subscribe)
	require.True(t, a.Remove(add))

	assert.Equal(t, []Buff{mul, add}, a.Buffs())
	assert.Equal(t, 25.0, a.Value()) // 10*2+5
	require.Len(t, *events, 1)
	assert.Equal(t, EventBuffRemoved, (*events)[0].Kind)
}

func TestRemove_Missing(t *testing.T) {
	a := newTestAttribute("attack", 10)
	a.Apply(persistent("attack", OpAdd, 5))

	assert.False(t, a.Remove(persistent("attack", OpAdd, 6)))
	assert.Equal(t, 1, a.BuffCount())
}

func TestRemoveAll_Counts(t *testing.T) {
	a := newTestAttribute("attack", 10)
	add := persistent("attack", OpAdd, 5)
	a.ApplyAll([]Buff{add, add})

	assert.Equal(t, 2, a.RemoveAll([]Buff{add, add, add}))
	assert.Zero(t, a.BuffCount())
}

func TestRemoveAllOfType_ByTarget(t *testing.T) {
	a := newTestAttribute("speed", 10)
	buffs := []Buff{
		persistent("speed", OpAdd, 1),
		persistent("speed", OpMultiply, 2),
		persistent("speed", OpPercentage, 10),
	}
	a.ApplyAll(buffs)

	assert.Equal(t, 3, a.RemoveAllOfType(Buff{Attribute: "speed"}))
	assert.Zero(t, a.BuffCount())
	assert.Equal(t, 10.0, a.Value())
}

func TestRemoveAllOfType_ByNameKeepsOrder(t *testing.T) {
	a := newTestAttribute("speed", 10)
	haste1 := Buff{Name: "haste", Attribute: "speed", Operation: OpAdd, Magnitude: 1, Kind: BuffPersistent}
	haste2 := Buff{Name: "haste", Attribute: "speed", Operation: OpAdd, Magnitude: 2, Kind: BuffPersistent}
	boots := Buff{Name: "boots", Attribute: "speed", Operation: OpMultiply, Magnitude: 2, Kind: BuffPersistent}
	wind := Buff{Name: "wind", Attribute: "speed", Operation: OpSubtract, Magnitude: 1, Kind: BuffPersistent}
	a.ApplyAll([]Buff{haste1, boots, haste2, wind})

	events := recordEvents(a.Subscribe)
	assert.Equal(t, 2, a.RemoveAllOfType(Buff{Name: "haste"}))

	assert.Equal(t, []Buff{boots, wind}, a.Buffs())
	assert.Len(t, *events, 2)
}

func TestHasAndClear(t *testing.T) {
	a := newTestAttribute("mana", 10)
	b := persistent("mana", OpAdd, 1)
	a.Apply(b)
	assert.True(t, a.Has(b))

	events := recordEvents(a.Subscribe)
	a.Clear()

	assert.False(t, a.Has(b))
	assert.Equal(t, []Event{{Kind: EventBuffsCleared, Attribute: "mana"}}, *events)
}

func TestClampedValue(t *testing.T) {
	a := New("health", 90, 0, 100)
	a.ResetUnderlyingValue()
	a.Apply(persistent("health", OpAdd, 50))

	assert.Equal(t, 140.0, a.Value())
	assert.Equal(t, 100.0, a.ClampedValue())

	unbounded := New("score", 5, 0, 0)
	unbounded.ResetUnderlyingValue()
	unbounded.Apply(persistent("score", OpMultiply, 10))
	assert.Equal(t, 50.0, unbounded.ClampedValue(), "bounds are ignored unless max > min")
}

func TestResetUnderlyingValue(t *testing.T) {
	a := New("health", 100, 0, 200)
	assert.Zero(t, a.UnderlyingValue())

	a.ResetUnderlyingValue()
	assert.Equal(t, 100.0, a.UnderlyingValue())
}

func TestAttributeEqual(t *testing.T) {
	assert.True(t, New("health", 1, 0, 0).Equal(New("health", 2, 0, 5)))
	assert.False(t, New("health", 1, 0, 0).Equal(New("mana", 1, 0, 0)))
	assert.False(t, New("health", 1, 0, 0).Equal(nil))
}

func TestUnsubscribe(t *testing.T) {
	a := newTestAttribute("health", 1)
	calls := 0
	id := a.Subscribe(func(Event) { calls++ })

	a.Apply(persistent("health", OpAdd, 1))
	require.True(t, a.Unsubscribe(id))
	a.Apply(persistent("health", OpAdd, 1))

	assert.Equal(t, 1, calls)
	assert.False(t, a.Unsubscribe(id))
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	a := newTestAttribute("health", 1)
	var order []int
	for i := range 3 {
		a.Subscribe(func(Event) { order = append(order, i) })
	}

	a.Apply(persistent("health", OpAdd, 1))
	assert.Equal(t, []int{0, 1, 2}, order)
}
