package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(attrs ...*Attribute) *Container {
	c := NewContainer(Options{})
	for _, a := range attrs {
		c.AddAttribute(a)
	}
	return c
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestAddAttribute(t *testing.T) {
	c := NewContainer(Options{})
	events := recordEvents(c.Subscribe)

	require.True(t, c.AddAttribute(New("health", 100, 0, 100)))
	assert.False(t, c.AddAttribute(New("health", 5, 0, 10)), "duplicate names are ignored")

	a, ok := c.Attribute("health")
	require.True(t, ok)
	assert.Equal(t, 100.0, a.UnderlyingValue(), "registration initializes the underlying value")
	assert.Equal(t, 100.0, a.InitialValue())
	assert.Equal(t, []EventKind{EventAttributeAdded}, eventKinds(*events))
}

func TestRemoveAttribute(t *testing.T) {
	health := New("health", 100, 0, 100)
	c := newTestContainer(health, New("mana", 50, 0, 50))
	events := recordEvents(c.Subscribe)

	require.True(t, c.RemoveAttribute("health"))
	assert.False(t, c.RemoveAttribute("health"))

	// Detached attributes no longer report through the container.
	health.Apply(immediate("health", OpAdd, 1))

	assert.Len(t, c.Attributes(), 1)
	assert.Equal(t, []EventKind{EventAttributeRemoved}, eventKinds(*events))
}

func TestApplyBuff(t *testing.T) {
	c := newTestContainer(New("health", 100, 0, 200), New("mana", 50, 0, 100))
	events := recordEvents(c.Subscribe)

	require.True(t, c.ApplyBuff(immediate("health", OpSubtract, 30)))
	require.True(t, c.ApplyBuff(persistent("mana", OpMultiply, 2)))
	assert.False(t, c.ApplyBuff(persistent("stamina", OpAdd, 1)))

	health, _ := c.Value("health")
	mana, _ := c.Value("mana")
	assert.Equal(t, 70.0, health)
	assert.Equal(t, 100.0, mana)
	assert.Equal(t, []EventKind{EventAttributeChanged, EventBuffAdded, EventBuffAdded}, eventKinds(*events))
	assert.Zero(t, c.Queue().Len(), "untimed buffs are not tracked")
}

func TestApplyBuff_TimedIsEnqueued(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	events := recordEvents(c.Subscribe)

	b := timed("speed", OpAdd, 5, 2)
	require.True(t, c.ApplyBuff(b))

	assert.Equal(t, 1, c.Queue().Len())
	assert.Equal(t, []EventKind{EventBuffEnqueued, EventBuffAdded}, eventKinds(*events))
}

func TestApplyBuff_TimedImmediateIsNotEnqueued(t *testing.T) {
	c := newTestContainer(New("health", 10, 0, 100))

	c.ApplyBuff(Buff{Attribute: "health", Operation: OpAdd, Magnitude: 5, Duration: 3, Kind: BuffImmediate})

	assert.Zero(t, c.Queue().Len())
}

func TestTimedBuffExpires(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	b := timed("speed", OpAdd, 5, 2)
	c.ApplyBuff(b)

	var dequeued []Buff
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventBuffDequeued {
			dequeued = append(dequeued, ev.Buff)
		}
	})

	c.Tick(1.0)
	speed, _ := c.Attribute("speed")
	assert.True(t, speed.Has(b))
	assert.Equal(t, 15.0, speed.Value())

	c.Tick(1.0)
	assert.False(t, speed.Has(b))
	assert.Equal(t, 10.0, speed.Value())
	assert.Equal(t, []Buff{b}, dequeued)
}

func TestTimedBuffRemovedEarly(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	b := timed("speed", OpAdd, 5, 1)
	c.ApplyBuff(b)

	require.True(t, c.RemoveBuff(b))
	assert.Equal(t, 1, c.Queue().Len(), "the queue entry goes stale")

	assert.NotPanics(t, func() { c.Tick(1) })
	assert.Zero(t, c.Queue().Len())
	v, _ := c.Value("speed")
	assert.Equal(t, 10.0, v)
}

func TestStaleEntryKeepsLaterApplication(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	b := timed("speed", OpAdd, 5, 2)

	require.True(t, c.ApplyBuff(b))
	require.True(t, c.RemoveBuff(b))
	c.Tick(1)
	require.True(t, c.ApplyBuff(b))

	// The first entry runs out here; the second application has 1s left.
	c.Tick(1)
	v, _ := c.Value("speed")
	assert.Equal(t, 15.0, v)
	assert.Equal(t, 1, c.Queue().Len())

	c.Tick(1)
	v, _ = c.Value("speed")
	assert.Equal(t, 10.0, v)
	assert.Zero(t, c.Queue().Len())
}

func TestEqualTimedBuffsExpireIndependently(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	long := timed("speed", OpAdd, 5, 3)
	short := timed("speed", OpAdd, 5, 1)
	c.ApplyBuff(long)
	c.ApplyBuff(short)

	c.Tick(1)

	speed, _ := c.Attribute("speed")
	assert.Equal(t, []Buff{long}, speed.Buffs(), "expiry removes its own application")
	assert.Equal(t, 15.0, speed.Value())

	snap := c.ToDictionary()
	require.Len(t, snap["speed"].Buffs, 1)
	require.NotNil(t, snap["speed"].Buffs[0].Remaining)
	assert.Equal(t, 2.0, *snap["speed"].Buffs[0].Remaining)
}

func TestApplyBuff_RejectsUndefinedKindOrOperation(t *testing.T) {
	c := newTestContainer(New("speed", 10, 0, 100))
	events := recordEvents(c.Subscribe)

	assert.False(t, c.ApplyBuff(Buff{Attribute: "speed", Operation: OpAdd, Magnitude: 5, Duration: 1}))
	assert.False(t, c.ApplyBuff(Buff{Attribute: "speed", Magnitude: 5, Duration: 1, Kind: BuffPersistent}))

	c.Tick(1)
	c.Tick(1)

	v, _ := c.Value("speed")
	assert.Equal(t, 10.0, v)
	assert.Zero(t, c.Queue().Len())
	assert.Empty(t, *events)
}

func TestApplyEffect_DeclaredOrder(t *testing.T) {
	c := newTestContainer(New("attack", 10, 0, 100), New("health", 50, 0, 100))
	e := NewEffect("rage",
		persistent("attack", OpSubtract, 3),
		persistent("attack", OpMultiply, 2),
		immediate("health", OpSubtract, 10),
		persistent("missing", OpAdd, 1),
	)

	assert.Equal(t, 3, c.ApplyEffect(e))

	attack, _ := c.Value("attack")
	health, _ := c.Value("health")
	assert.Equal(t, 14.0, attack)
	assert.Equal(t, 40.0, health)
}

func TestRemoveEffect(t *testing.T) {
	c := newTestContainer(New("attack", 10, 0, 100), New("defense", 5, 0, 100))
	e := NewEffect("stance",
		persistent("attack", OpAdd, 3),
		persistent("defense", OpMultiply, 2),
	)
	c.ApplyEffect(e)
	events := recordEvents(c.Subscribe)

	assert.Equal(t, 2, c.RemoveEffect(e))
	assert.Zero(t, c.RemoveEffect(e))

	attack, _ := c.Value("attack")
	defense, _ := c.Value("defense")
	assert.Equal(t, 10.0, attack)
	assert.Equal(t, 5.0, defense)
	assert.Equal(t, []EventKind{EventBuffRemoved, EventBuffRemoved}, eventKinds(*events))
}

func TestRemoveBuff_NotHeld(t *testing.T) {
	c := newTestContainer(New("attack", 10, 0, 100))
	assert.False(t, c.RemoveBuff(persistent("attack", OpAdd, 1)))
}

func TestContainer_NonAuthoritySkipsExpiry(t *testing.T) {
	c := NewContainer(Options{ServerAuthoritative: true, Authority: StaticAuthority(false)})
	c.AddAttribute(New("speed", 10, 0, 100))
	events := recordEvents(c.Subscribe)

	b := timed("speed", OpAdd, 5, 1)
	require.True(t, c.ApplyBuff(b), "buff state itself still applies on the mirror")

	c.Tick(1)
	c.Tick(1)

	assert.Zero(t, c.Queue().Len())
	v, _ := c.Value("speed")
	assert.Equal(t, 15.0, v)
	assert.Equal(t, []EventKind{EventBuffAdded}, eventKinds(*events))
}

func TestAttributesKeepRegistrationOrder(t *testing.T) {
	c := newTestContainer(New("b", 0, 0, 0), New("a", 0, 0, 0), New("c", 0, 0, 0))

	var names []string
	for _, a := range c.Attributes() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)

	_, ok := c.Value("missing")
	assert.False(t, ok)
}
