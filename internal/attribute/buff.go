package attribute

import (
	"fmt"
	"strings"
)

// BuffKind tells whether a buff mutates the underlying value once or stays attached.
type BuffKind uint8

const (
	BuffImmediate  BuffKind = iota + 1 // applied to the underlying value, then discarded
	BuffPersistent                     // kept in the active list and re-folded on every read
)

func (k BuffKind) String() string {
	switch k {
	case BuffImmediate:
		return "immediate"
	case BuffPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("BuffKind(%d)", uint8(k))
	}
}

// Valid reports whether k is a defined kind.
func (k BuffKind) Valid() bool {
	return k == BuffImmediate || k == BuffPersistent
}

// ParseBuffKind parses "immediate" or "persistent" (case-insensitive).
func ParseBuffKind(s string) (BuffKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return BuffImmediate, nil
	case "persistent":
		return BuffPersistent, nil
	default:
		return 0, fmt.Errorf("unknown buff kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k BuffKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshaling invalid buff kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BuffKind) UnmarshalText(text []byte) error {
	parsed, err := ParseBuffKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Buff is a single modifier targeting one attribute by name.
// Buffs are values: they are never mutated after construction.
type Buff struct {
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Attribute string    `json:"attribute" yaml:"attribute"`
	Operation Operation `json:"operation" yaml:"operation"`
	Magnitude float64   `json:"magnitude" yaml:"magnitude"`
	Duration  float64   `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds, 0 = no expiry
	Kind      BuffKind  `json:"kind" yaml:"kind"`
}

// Operate applies the buff to base.
func (b Buff) Operate(base float64) float64 {
	return b.Operation.Operate(base, b.Magnitude)
}

// Matches reports whether the buff targets the named attribute.
func (b Buff) Matches(attributeName string) bool {
	return b.Attribute == attributeName
}

// Equal reports structural equality: target, operation and magnitude.
func (b Buff) Equal(other Buff) bool {
	return b.Attribute == other.Attribute &&
		b.Operation == other.Operation &&
		b.Magnitude == other.Magnitude
}

// IsTimed reports whether the buff has a positive duration.
func (b Buff) IsTimed() bool {
	return b.Duration > 0
}

// expires reports whether the buff must be tracked by the expiration queue.
func (b Buff) expires() bool {
	return b.Kind == BuffPersistent && b.IsTimed()
}

// sameType reports whether b belongs to the same removal group as query.
// A named query groups by buff name, an unnamed one by target attribute.
func (b Buff) sameType(query Buff) bool {
	if query.Name != "" {
		return b.Name == query.Name
	}
	return b.Attribute == query.Attribute
}

func (b Buff) String() string {
	label := b.Name
	if label == "" {
		label = b.Attribute
	}
	return fmt.Sprintf("%s(%s %s %g)", label, b.Attribute, b.Operation, b.Magnitude)
}
