package attribute

import (
	"fmt"
	"strings"
)

// Operation defines how a buff magnitude combines with a base value.
//
// The zero value is not a valid operation. Decoding never falls back to a
// default variant: unknown names and codes are reported to the caller.
type Operation uint8

const (
	OpAdd        Operation = iota + 1 // base + magnitude
	OpSubtract                        // base - magnitude
	OpMultiply                        // base * magnitude
	OpDivide                          // base / magnitude
	OpPercentage                      // base + base/100*magnitude
)

var operationNames = map[Operation]string{
	OpAdd:        "add",
	OpSubtract:   "subtract",
	OpMultiply:   "multiply",
	OpDivide:     "divide",
	OpPercentage: "percentage",
}

// Operate applies the operation to base.
// Division by zero follows IEEE-754 and yields ±Inf or NaN.
// An invalid operation leaves base unchanged.
func (op Operation) Operate(base, magnitude float64) float64 {
	switch op {
	case OpAdd:
		return base + magnitude
	case OpSubtract:
		return base - magnitude
	case OpMultiply:
		return base * magnitude
	case OpDivide:
		return base / magnitude
	case OpPercentage:
		return base + (base/100)*magnitude
	default:
		return base
	}
}

// Valid reports whether op is one of the defined operations.
func (op Operation) Valid() bool {
	_, ok := operationNames[op]
	return ok
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", uint8(op))
}

// ParseOperation parses a case-insensitive operation name such as "add" or "Percentage".
func ParseOperation(s string) (Operation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range operationNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// OperationFromCode maps a raw integer code onto an Operation.
// Codes follow the declaration order starting at 1; anything else is rejected.
func OperationFromCode(code int) (Operation, bool) {
	op := Operation(code)
	if code < 0 || code > 255 || !op.Valid() {
		return 0, false
	}
	return op, true
}

// MarshalText implements encoding.TextMarshaler.
func (op Operation) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("marshaling invalid operation %d", uint8(op))
	}
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Operation) UnmarshalText(text []byte) error {
	parsed, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
