package fields

import (
	"fmt"
	"sync"
)

// Catalog is the immutable, ordered set of sections and fields
type Catalog struct {
	sections []Section
	index    map[string]Field
	order    []string
}

// Sections returns the sections in display order
func (c *Catalog) Sections() []Section {
	out := make([]Section, 0, len(c.sections))
	for _, s := range c.sections {
		out = append(out, cloneSection(s))
	}
	return out
}

// Field looks up a field by id
func (c *Catalog) Field(id string) (Field, bool) {
	f, ok := c.index[id]
	if !ok {
		return Field{}, false
	}
	return cloneField(f), true
}

// Fields returns every field in display order
func (c *Catalog) Fields() []Field {
	out := make([]Field, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneField(c.index[id]))
	}
	return out
}

// Default returns the declared default of a field, or "" when unknown
func (c *Catalog) Default(id string) string {
	return c.index[id].Default
}

// Len returns the number of fields
func (c *Catalog) Len() int {
	return len(c.order)
}

// Extension adjusts the builder before the catalog is frozen
type Extension func(b *Builder) error

// Registry owns the base sections and the registered extensions
type Registry struct {
	mu         sync.RWMutex
	base       []Section
	extensions []namedExtension
}

type namedExtension struct {
	name string
	fn   Extension
}

// NewRegistry creates a registry over the given base sections
func NewRegistry(base []Section) *Registry {
	return &Registry{base: base}
}

// Extend registers an extension. Extensions run in registration order.
func (r *Registry) Extend(name string, ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = append(r.extensions, namedExtension{name: name, fn: ext})
}

// Catalog builds the catalog: base sections, then every extension
func (r *Registry) Catalog() (*Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := NewBuilder(r.base)
	for _, ext := range r.extensions {
		if err := ext.fn(b); err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.name, err)
		}
	}
	return b.Build()
}
