package attribute

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
)

// Snapshot is the serialized attribute set of a Container, keyed by attribute name.
type Snapshot map[string]AttributeRecord

// AttributeRecord is the saved state of one attribute.
// AttributeValue holds the underlying value; the effective value is
// recomputed from Buffs after loading.
type AttributeRecord struct {
	AttributeValue float64      `json:"attribute_value" yaml:"attribute_value"`
	InitialValue   float64      `json:"initial_value" yaml:"initial_value"`
	MaxValue       float64      `json:"max_value" yaml:"max_value"`
	MinValue       float64      `json:"min_value" yaml:"min_value"`
	Buffs          []BuffRecord `json:"buffs" yaml:"buffs"`
}

// BuffRecord is an active buff plus, for timed buffs still counting down,
// the seconds left on the expiration queue.
type BuffRecord struct {
	Buff      `yaml:",inline"`
	Remaining *float64 `json:"remaining_seconds,omitempty" yaml:"remaining_seconds,omitempty"`
}

// DecodeMode selects how DecodeSnapshot treats incomplete input.
type DecodeMode uint8

const (
	// DecodeLenient fills missing numbers with 0, ignores unknown keys and
	// drops buffs whose operation or kind cannot be recognized.
	DecodeLenient DecodeMode = iota
	// DecodeStrict rejects unknown keys, missing record fields and invalid buffs.
	DecodeStrict
)

// ErrInvalidSnapshot is wrapped by every strict decoding failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ToDictionary captures the state of every attribute.
func (c *Container) ToDictionary() Snapshot {
	snap := make(Snapshot, len(c.attributes))
	for _, name := range c.order {
		a := c.attributes[name]
		rec := AttributeRecord{
			AttributeValue: a.underlying,
			InitialValue:   a.initial,
			MaxValue:       a.max,
			MinValue:       a.min,
			Buffs:          make([]BuffRecord, 0, len(a.buffs)),
		}
		for _, ab := range a.buffs {
			br := BuffRecord{Buff: ab.buff}
			if ab.buff.expires() {
				if it := c.queue.find(name, ab.seq); it != nil {
					remaining := it.remaining
					br.Remaining = &remaining
				}
			}
			rec.Buffs = append(rec.Buffs, br)
		}
		snap[name] = rec
	}
	return snap
}

// find returns the item tracking application seq of the named attribute.
func (q *ExpirationQueue) find(attributeName string, seq uint64) *queueItem {
	for _, it := range q.items {
		if it.seq == seq && it.buff.Attribute == attributeName {
			return it
		}
	}
	return nil
}

// FromDictionary loads attribute state from a snapshot. Existing attributes
// with the same name are overwritten, new ones are registered. Underlying
// values are restored as saved, not reset. Timed buffs are re-enqueued with
// their saved remaining time, or their full duration when none was saved.
func (c *Container) FromDictionary(snap Snapshot) {
	for _, name := range slices.Sorted(maps.Keys(snap)) {
		rec := snap[name]

		a, ok := c.attributes[name]
		if !ok {
			a = New(name, rec.InitialValue, rec.MinValue, rec.MaxValue)
			c.register(a)
		}
		a.initial, a.min, a.max = rec.InitialValue, rec.MinValue, rec.MaxValue

		records := slices.DeleteFunc(slices.Clone(rec.Buffs), func(br BuffRecord) bool {
			return !br.Buff.Kind.Valid() || !br.Buff.Operation.Valid()
		})
		buffs := make([]Buff, 0, len(records))
		for _, br := range records {
			buffs = append(buffs, br.Buff)
		}
		seqs := a.restore(rec.AttributeValue, buffs)

		c.queue.forget(name)
		for i, br := range records {
			if !br.Buff.expires() {
				continue
			}
			remaining := br.Buff.Duration
			if br.Remaining != nil {
				remaining = *br.Remaining
			}
			c.queue.enqueue(br.Buff, seqs[i], remaining)
		}
	}
}

// forget drops every item targeting the named attribute without events.
func (q *ExpirationQueue) forget(attributeName string) {
	q.items = slices.DeleteFunc(q.items, func(it *queueItem) bool {
		return it.buff.Attribute == attributeName
	})
}

// EncodeSnapshot serializes a snapshot as JSON. Non-finite numbers, which a
// division by zero can produce, are written as the strings "Inf", "-Inf"
// and "NaN".
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	wire := make(map[string]wireRecord, len(snap))
	for name, rec := range snap {
		wr, err := newWireRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding snapshot: attribute %q: %w", name, err)
		}
		wire[name] = wr
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// jsonFloat is a float64 that survives JSON when it is infinite or NaN.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*f = jsonFloat(math.NaN())
		case "Inf", "+Inf":
			*f = jsonFloat(math.Inf(1))
		case "-Inf":
			*f = jsonFloat(math.Inf(-1))
		default:
			return fmt.Errorf("unknown number %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

func floatPtr(v float64) *jsonFloat {
	f := jsonFloat(v)
	return &f
}

type wireRecord struct {
	AttributeValue *jsonFloat `json:"attribute_value"`
	InitialValue   *jsonFloat `json:"initial_value"`
	MaxValue       *jsonFloat `json:"max_value"`
	MinValue       *jsonFloat `json:"min_value"`
	Buffs          []wireBuff `json:"buffs"`
	// Written by older encoders; accepted and ignored.
	AttributeName *string `json:"attribute_name,omitempty"`
}

type wireBuff struct {
	Name      string     `json:"name,omitempty"`
	Attribute *string    `json:"attribute"`
	Operation *string    `json:"operation"`
	Magnitude *jsonFloat `json:"magnitude"`
	Duration  *jsonFloat `json:"duration,omitempty"`
	Kind      *string    `json:"kind"`
	Remaining *jsonFloat `json:"remaining_seconds,omitempty"`
}

func newWireRecord(rec AttributeRecord) (wireRecord, error) {
	wr := wireRecord{
		AttributeValue: floatPtr(rec.AttributeValue),
		InitialValue:   floatPtr(rec.InitialValue),
		MaxValue:       floatPtr(rec.MaxValue),
		MinValue:       floatPtr(rec.MinValue),
		Buffs:          make([]wireBuff, 0, len(rec.Buffs)),
	}
	for i, br := range rec.Buffs {
		op, err := br.Operation.MarshalText()
		if err != nil {
			return wireRecord{}, fmt.Errorf("buff %d: %w", i, err)
		}
		kind, err := br.Kind.MarshalText()
		if err != nil {
			return wireRecord{}, fmt.Errorf("buff %d: %w", i, err)
		}
		wb := wireBuff{
			Name:      br.Name,
			Attribute: ptrTo(br.Attribute),
			Operation: ptrTo(string(op)),
			Magnitude: floatPtr(br.Magnitude),
			Kind:      ptrTo(string(kind)),
		}
		if br.Duration != 0 {
			wb.Duration = floatPtr(br.Duration)
		}
		if br.Remaining != nil {
			wb.Remaining = floatPtr(*br.Remaining)
		}
		wr.Buffs = append(wr.Buffs, wb)
	}
	return wr, nil
}

func ptrTo[T any](v T) *T {
	return &v
}

// DecodeSnapshot parses JSON produced by EncodeSnapshot.
func DecodeSnapshot(data []byte, mode DecodeMode) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if mode == DecodeStrict {
		dec.DisallowUnknownFields()
	}

	var wire map[string]wireRecord
	if err := dec.Decode(&wire); err != nil {
		if mode == DecodeStrict {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	snap := make(Snapshot, len(wire))
	for name, wr := range wire {
		rec, err := wr.record(name, mode)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %w", ErrInvalidSnapshot, name, err)
		}
		snap[name] = rec
	}
	return snap, nil
}

func (wr wireRecord) record(name string, mode DecodeMode) (AttributeRecord, error) {
	if mode == DecodeStrict {
		switch {
		case wr.AttributeValue == nil:
			return AttributeRecord{}, errors.New("missing attribute_value")
		case wr.InitialValue == nil:
			return AttributeRecord{}, errors.New("missing initial_value")
		case wr.MaxValue == nil:
			return AttributeRecord{}, errors.New("missing max_value")
		case wr.MinValue == nil:
			return AttributeRecord{}, errors.New("missing min_value")
		}
	}

	rec := AttributeRecord{
		AttributeValue: orZero(wr.AttributeValue),
		InitialValue:   orZero(wr.InitialValue),
		MaxValue:       orZero(wr.MaxValue),
		MinValue:       orZero(wr.MinValue),
		Buffs:          make([]BuffRecord, 0, len(wr.Buffs)),
	}
	for i, wb := range wr.Buffs {
		br, err := wb.record(name, mode)
		if err != nil {
			if mode == DecodeStrict {
				return AttributeRecord{}, fmt.Errorf("buff %d: %w", i, err)
			}
			slog.Warn("dropping unreadable buff from snapshot", "attribute", name, "index", i, "error", err)
			continue
		}
		rec.Buffs = append(rec.Buffs, br)
	}
	return rec, nil
}

func (wb wireBuff) record(attributeName string, mode DecodeMode) (BuffRecord, error) {
	if mode == DecodeStrict {
		switch {
		case wb.Attribute == nil:
			return BuffRecord{}, errors.New("missing attribute")
		case wb.Magnitude == nil:
			return BuffRecord{}, errors.New("missing magnitude")
		case wb.Kind == nil:
			return BuffRecord{}, errors.New("missing kind")
		}
	}
	if wb.Operation == nil {
		return BuffRecord{}, errors.New("missing operation")
	}
	op, err := ParseOperation(*wb.Operation)
	if err != nil {
		return BuffRecord{}, err
	}

	kind := BuffPersistent
	if wb.Kind != nil {
		if kind, err = ParseBuffKind(*wb.Kind); err != nil {
			return BuffRecord{}, err
		}
	}

	target := attributeName
	if wb.Attribute != nil {
		target = *wb.Attribute
	}

	return BuffRecord{
		Buff: Buff{
			Name:      wb.Name,
			Attribute: target,
			Operation: op,
			Magnitude: orZero(wb.Magnitude),
			Duration:  orZero(wb.Duration),
			Kind:      kind,
		},
		Remaining: remainingOf(wb.Remaining),
	}, nil
}

func orZero(v *jsonFloat) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

func remainingOf(v *jsonFloat) *float64 {
	if v == nil {
		return nil
	}
	remaining := float64(*v)
	return &remaining
}
