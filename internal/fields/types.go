package fields

import (
	"errors"
	"strconv"
)

// Type is the input control a field renders as
type Type string

const (
	TypeSwitch   Type = "switch"
	TypeCheckbox Type = "checkbox"
	TypeDropdown Type = "dropdown"
	TypeNumber   Type = "number"
	TypeText     Type = "text"
	TypeTextarea Type = "textarea"
)

// IsToggle reports whether the field renders as a checkbox input
func (t Type) IsToggle() bool {
	return t == TypeSwitch || t == TypeCheckbox
}

// InputType returns the HTML input type used for the field's control
func (t Type) InputType() string {
	switch t {
	case TypeSwitch, TypeCheckbox:
		return "checkbox"
	case TypeDropdown:
		return "select"
	case TypeNumber:
		return "number"
	case TypeTextarea:
		return "textarea"
	default:
		return "text"
	}
}

// Option is one choice of a dropdown field
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Bounds are the numeric constraints of a number field
type Bounds struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// FormatNumber renders a bound without trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Field describes one setting
type Field struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        Type     `json:"type"`
	Default     string   `json:"default,omitempty"`
	Bounds      *Bounds  `json:"bounds,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`

	// Dependency declares when the field is shown. It accepts the
	// canonical *dependency.Expression, a [field, operator, value]
	// triple, a list of triples, or a map with "relation" and
	// "conditions" keys.
	Dependency any `json:"-"`
}

// Section groups fields under one navigation entry
type Section struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Icon   string  `json:"icon"`
	Fields []Field `json:"fields"`
}

// Common registry errors
var (
	ErrSectionNotFound = errors.New("section not found")
	ErrFieldNotFound   = errors.New("field not found")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrEmptyID         = errors.New("empty id")
)
