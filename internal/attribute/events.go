package attribute

import "fmt"

// EventKind identifies a notification raised by an Attribute, ExpirationQueue or Container.
type EventKind uint8

const (
	EventAttributeChanged EventKind = iota + 1
	EventBuffAdded
	EventBuffRemoved
	EventBuffEnqueued
	EventBuffDequeued
	EventBuffsCleared
	EventAttributeAdded
	EventAttributeRemoved
	EventSecondTicked
	EventPoolTickSet
)

var eventKindNames = [...]string{
	EventAttributeChanged: "attribute_changed",
	EventBuffAdded:        "buff_added",
	EventBuffRemoved:      "buff_removed",
	EventBuffEnqueued:     "attribute_buff_enqueued",
	EventBuffDequeued:     "attribute_buff_dequeued",
	EventBuffsCleared:     "buffs_cleared",
	EventAttributeAdded:   "attribute_added",
	EventAttributeRemoved: "attribute_removed",
	EventSecondTicked:     "second_ticked",
	EventPoolTickSet:      "pool_tick_set",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) && eventKindNames[k] != "" {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is a single notification.
// Which fields are meaningful depends on Kind:
//   - AttributeChanged: Attribute, Previous, Current
//   - BuffAdded, BuffRemoved, BuffEnqueued, BuffDequeued: Buff (Attribute is the target)
//   - BuffsCleared, AttributeAdded, AttributeRemoved: Attribute
//   - SecondTicked, PoolTickSet: Current holds the accumulator value
type Event struct {
	Kind      EventKind
	Attribute string
	Buff      Buff
	Previous  float64
	Current   float64

	seq uint64 // queue events: the application the item belongs to
}

// Listener receives events synchronously on the caller's goroutine.
type Listener func(Event)

// SubscriptionID identifies a registered listener.
type SubscriptionID uint64

type subscription struct {
	id       SubscriptionID
	listener Listener
}

// listeners is an ordered callback registry. The zero value is ready to use.
type listeners struct {
	nextID SubscriptionID
	subs   []subscription
}

func (l *listeners) subscribe(fn Listener) SubscriptionID {
	l.nextID++
	l.subs = append(l.subs, subscription{id: l.nextID, listener: fn})
	return l.nextID
}

func (l *listeners) unsubscribe(id SubscriptionID) bool {
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

// emit calls listeners in registration order. The registry is snapshotted
// first so a listener may unsubscribe itself while being notified.
func (l *listeners) emit(ev Event) {
	if len(l.subs) == 0 {
		return
	}
	subs := l.subs
	for _, s := range subs {
		s.listener(ev)
	}
}
