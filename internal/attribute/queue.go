package attribute

import (
	"log/slog"
	"slices"
)

// secondLength is the amount of accumulated delta that makes one second-pass.
const secondLength = 1.0

// Authority reports whether this side of a client/server pair may mutate
// scheduler state.
type Authority interface {
	IsAuthority() bool
}

// AuthorityFunc adapts a function to Authority.
type AuthorityFunc func() bool

func (f AuthorityFunc) IsAuthority() bool { return f() }

// StaticAuthority is a fixed Authority answer.
type StaticAuthority bool

func (s StaticAuthority) IsAuthority() bool { return bool(s) }

// QueueItem is a read-only view of a tracked timed buff.
type QueueItem struct {
	Buff      Buff
	Remaining float64
	Eligible  bool
}

type queueItem struct {
	buff      Buff
	seq       uint64 // application in the target attribute, 0 if enqueued directly
	remaining float64
	eligible  bool
}

// secondPassed advances the item by one second.
func (it *queueItem) secondPassed() {
	it.remaining -= secondLength
	it.eligible = it.remaining <= 0
}

// ExpirationQueue counts down timed buffs once per accumulated second and
// dequeues them when they run out.
//
// Items are kept in enqueue order. The queue never holds a live reference
// into an Attribute: an item carries the buff value and, when enqueued by a
// Container, the sequence number of that application. Target name plus
// sequence number is the key used to find the buff again on expiry, so a
// stale item never removes a later application of an equal buff.
//
// When server authoritative and not the authority, Enqueue, Tick and Cleanup
// are silent no-ops: that side mirrors buff state through replication.
type ExpirationQueue struct {
	serverAuthoritative bool
	authority           Authority

	accumulator float64
	items       []*queueItem

	listeners listeners
}

// NewExpirationQueue creates an empty queue. A nil authority counts as
// authoritative, which is the single-process case.
func NewExpirationQueue(serverAuthoritative bool, authority Authority) *ExpirationQueue {
	return &ExpirationQueue{
		serverAuthoritative: serverAuthoritative,
		authority:           authority,
		items:               make([]*queueItem, 0, 8),
	}
}

// Subscribe registers fn for BuffEnqueued, BuffDequeued, SecondTicked and PoolTickSet.
func (q *ExpirationQueue) Subscribe(fn Listener) SubscriptionID {
	return q.listeners.subscribe(fn)
}

// Unsubscribe removes a listener. Returns false if id is unknown.
func (q *ExpirationQueue) Unsubscribe(id SubscriptionID) bool {
	return q.listeners.unsubscribe(id)
}

// ServerAuthoritative reports whether mutation is gated by authority.
func (q *ExpirationQueue) ServerAuthoritative() bool {
	return q.serverAuthoritative
}

// Mutable reports whether this side may change queue state.
func (q *ExpirationQueue) Mutable() bool {
	if !q.serverAuthoritative || q.authority == nil {
		return true
	}
	return q.authority.IsAuthority()
}

// Enqueue starts tracking a timed buff with its full duration. Items added
// this way are not tied to one application and, on expiry, remove the first
// structurally equal buff. Returns false when gated by authority.
func (q *ExpirationQueue) Enqueue(b Buff) bool {
	return q.enqueue(b, 0, b.Duration)
}

func (q *ExpirationQueue) enqueue(b Buff, seq uint64, remaining float64) bool {
	if !q.Mutable() {
		return false
	}
	q.listeners.emit(Event{Kind: EventBuffEnqueued, Attribute: b.Attribute, Buff: b, seq: seq})
	q.items = append(q.items, &queueItem{buff: b, seq: seq, remaining: remaining})
	return true
}

// Tick accumulates delta seconds. Once a full second has accumulated it is
// consumed, carrying the remainder, and one second-pass runs followed by
// Cleanup. A single call runs at most one second-pass; surplus delta waits
// for the next calls.
func (q *ExpirationQueue) Tick(delta float64) {
	if !q.Mutable() {
		return
	}
	if delta > 0 {
		q.accumulator += delta
	}
	if q.accumulator < secondLength {
		return
	}
	q.accumulator -= secondLength

	q.listeners.emit(Event{Kind: EventSecondTicked, Current: q.accumulator})
	for _, it := range q.items {
		it.secondPassed()
	}
	q.Cleanup()
}

// Cleanup removes every item marked eligible, walking from the tail so
// earlier indices stay valid. BuffDequeued is raised for each item before it
// leaves the queue. Returns the number of removed items.
func (q *ExpirationQueue) Cleanup() int {
	if !q.Mutable() {
		return 0
	}
	removed := 0
	for i := len(q.items) - 1; i >= 0; i-- {
		it := q.items[i]
		if !it.eligible {
			continue
		}
		slog.Debug("buff expired", "attribute", it.buff.Attribute, "buff", it.buff.String())
		q.listeners.emit(Event{Kind: EventBuffDequeued, Attribute: it.buff.Attribute, Buff: it.buff, seq: it.seq})
		q.items = slices.Delete(q.items, i, i+1)
		removed++
	}
	return removed
}

// SetAccumulator overwrites the tick accumulator. It is not gated: the
// non-authoritative side uses it to follow the authority's clock.
func (q *ExpirationQueue) SetAccumulator(v float64) {
	q.accumulator = v
	q.listeners.emit(Event{Kind: EventPoolTickSet, Current: v})
}

// Accumulator returns the delta carried towards the next second-pass.
func (q *ExpirationQueue) Accumulator() float64 {
	return q.accumulator
}

// Len returns the number of tracked items.
func (q *ExpirationQueue) Len() int {
	return len(q.items)
}

// Items returns a copy of the tracked items in enqueue order.
func (q *ExpirationQueue) Items() []QueueItem {
	out := make([]QueueItem, len(q.items))
	for i, it := range q.items {
		out[i] = QueueItem{Buff: it.buff, Remaining: it.remaining, Eligible: it.eligible}
	}
	return out
}
