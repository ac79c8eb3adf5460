package settings

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// OptionName is the key the settings blob is stored under
const OptionName = "opticore-settings"

// ErrNotFound is returned when no blob has been saved yet
var ErrNotFound = errors.New("settings not found")

// Store persists the settings blob as a single record
type Store interface {
	// Load returns the saved blob, or an empty blob before the first save
	Load(ctx context.Context) (Blob, error)
	// Save replaces the whole blob
	Save(ctx context.Context, blob Blob) error
	Close() error
}

// Blob maps field ids to their stored string values
type Blob map[string]string

// Get returns the raw stored value
func (b Blob) Get(id string) (string, bool) {
	v, ok := b[id]
	return v, ok
}

// Value returns the stored value, or def when it is absent or empty
func (b Blob) Value(id, def string) string {
	if v, ok := b[id]; ok && v != "" {
		return v
	}
	return def
}

// Truthy reports whether a stored value enables a feature.
// Empty and "0" are off; everything else is on.
func (b Blob) Truthy(id string) bool {
	v := b[id]
	return v != "" && v != "0"
}

// Keys returns the stored ids in sorted order
func (b Blob) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy
func (b Blob) Clone() Blob {
	out := make(Blob, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ParseBool reports whether s is one of the truthy toggle spellings
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
