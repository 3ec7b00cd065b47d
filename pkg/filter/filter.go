// Package filter evaluates the predicates attached to subscriptions.
//
// Equality operators compare strings exactly. Ordering operators parse both
// operands as float64 and fail on non-numeric input rather than coerce.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Filter errors.
var (
	ErrNotNumeric      = errors.New("operand is not numeric")
	ErrUnknownOperator = errors.New("unknown filter operator")
)

// Operator is a comparison applied between an observed value and a
// subscription threshold.
type Operator uint8

const (
	// Any matches every value.
	Any Operator = iota

	// Equal matches when the strings are identical.
	Equal

	// NotEqual matches when the strings differ.
	NotEqual

	// LessThan matches when the observed value is numerically smaller.
	LessThan

	// GreaterThan matches when the observed value is numerically larger.
	GreaterThan
)

// String returns the operator name.
func (o Operator) String() string {
	switch o {
	case Any:
		return "Any"
	case Equal:
		return "Equal"
	case NotEqual:
		return "NotEqual"
	case LessThan:
		return "LessThan"
	case GreaterThan:
		return "GreaterThan"
	default:
		return fmt.Sprintf("Operator(%d)", o)
	}
}

// ParseOperator parses an operator name or symbol.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "*", "":
		return Any, nil
	case "equal", "eq", "==", "=":
		return Equal, nil
	case "notequal", "ne", "!=":
		return NotEqual, nil
	case "lessthan", "lt", "<":
		return LessThan, nil
	case "greaterthan", "gt", ">":
		return GreaterThan, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
}

// MarshalJSON encodes the operator by name.
func (o Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes an operator name.
func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Eval applies op to lvalue (observed) and rvalue (threshold).
func Eval(op Operator, lvalue, rvalue string) (bool, error) {
	switch op {
	case Any:
		return true, nil
	case Equal:
		return lvalue == rvalue, nil
	case NotEqual:
		return lvalue != rvalue, nil
	case LessThan, GreaterThan:
		l, err := toFloat64(lvalue)
		if err != nil {
			return false, err
		}
		r, err := toFloat64(rvalue)
		if err != nil {
			return false, err
		}
		if op == LessThan {
			return l < r, nil
		}
		return l > r, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownOperator, op)
	}
}

func toFloat64(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return v, nil
}

// Filter is an operator bound to a threshold value.
type Filter struct {
	Op    Operator `json:"operator"`
	Value string   `json:"value"`
}

// Match evaluates the filter against an observed value.
func (f Filter) Match(v string) (bool, error) {
	return Eval(f.Op, v, f.Value)
}

// String renders the filter for display.
func (f Filter) String() string {
	if f.Op == Any {
		return "*"
	}
	return f.Op.String() + " " + f.Value
}
