package dependency

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Relation combines the conditions of an expression
type Relation string

const (
	RelationAnd Relation = "AND"
	RelationOr  Relation = "OR"
)

// Operator compares a field's current value with a condition value
type Operator string

const (
	OpEqual        Operator = "=="
	OpIdentical    Operator = "==="
	OpNotEqual     Operator = "!="
	OpNotIdentical Operator = "!=="
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

// Expression is the canonical dependency form
type Expression struct {
	Relation   Relation    `json:"relation"`
	Conditions []Condition `json:"conditions"`
}

// Condition compares one field against an expected value
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// Value is either a single string or a list of strings.
// The zero Value is the scalar "".
type Value struct {
	items []string
	list  bool
}

// Scalar returns a single-valued Value
func Scalar(s string) Value {
	return Value{items: []string{s}}
}

// List returns a list Value
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{items: cp, list: true}
}

// IsList reports whether the value was declared as a list
func (v Value) IsList() bool {
	return v.list
}

// String returns the scalar value, or the list joined by commas
func (v Value) String() string {
	if !v.list {
		if len(v.items) == 0 {
			return ""
		}
		return v.items[0]
	}
	return strings.Join(v.items, ",")
}

// Items returns the candidate values. A scalar yields one item.
func (v Value) Items() []string {
	if !v.list && len(v.items) == 0 {
		return []string{""}
	}
	cp := make([]string, len(v.items))
	copy(cp, v.items)
	return cp
}

// Contains reports whether s is one of the candidate values
func (v Value) Contains(s string) bool {
	if !v.list && len(v.items) == 0 {
		return s == ""
	}
	for _, item := range v.items {
		if item == s {
			return true
		}
	}
	return false
}

// Equal compares two values including their shape
func (v Value) Equal(other Value) bool {
	if v.list != other.list {
		return false
	}
	a, b := v.Items(), other.Items()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a scalar as a string and a list as an array
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		items := v.items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts strings, numbers, booleans, null and arrays of those
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode dependency value: %w", err)
	}
	*v = coerceValue(raw)
	return nil
}

// coerceValue converts a decoded value into a Value, stringifying scalars
func coerceValue(raw any) Value {
	switch val := raw.(type) {
	case Value:
		return val
	case []string:
		return List(val...)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, stringify(item))
		}
		return Value{items: items, list: true}
	default:
		return Scalar(stringify(val))
	}
}

// stringify renders scalars the way form values arrive: true is "1",
// false and nil are empty.
func stringify(raw any) string {
	switch val := raw.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Lookup returns the current value of a field
type Lookup func(fieldID string) string
