package fields

import (
	"fmt"
)

// Builder is an ordered, mutable catalog used while extensions run
type Builder struct {
	sections []Section
}

// NewBuilder creates a builder holding deep copies of sections
func NewBuilder(sections []Section) *Builder {
	b := &Builder{}
	for _, s := range sections {
		b.sections = append(b.sections, cloneSection(s))
	}
	return b
}

// Sections returns the section ids in order
func (b *Builder) Sections() []string {
	ids := make([]string, 0, len(b.sections))
	for _, s := range b.sections {
		ids = append(ids, s.ID)
	}
	return ids
}

// Section returns a copy of the section with the given id
func (b *Builder) Section(id string) (Section, bool) {
	i := b.sectionIndex(id)
	if i < 0 {
		return Section{}, false
	}
	return cloneSection(b.sections[i]), true
}

// AppendSection adds a section after all others
func (b *Builder) AppendSection(s Section) error {
	return b.InsertSectionAfter("", s)
}

// InsertSectionAfter places s right after the section named after.
// An empty after appends.
func (b *Builder) InsertSectionAfter(after string, s Section) error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if b.sectionIndex(s.ID) >= 0 {
		return fmt.Errorf("section %q: %w", s.ID, ErrDuplicateID)
	}

	pos := len(b.sections)
	if after != "" {
		i := b.sectionIndex(after)
		if i < 0 {
			return fmt.Errorf("section %q: %w", after, ErrSectionNotFound)
		}
		pos = i + 1
	}

	b.sections = append(b.sections, Section{})
	copy(b.sections[pos+1:], b.sections[pos:])
	b.sections[pos] = cloneSection(s)
	return nil
}

// RemoveSection drops a section with all its fields
func (b *Builder) RemoveSection(id string) bool {
	i := b.sectionIndex(id)
	if i < 0 {
		return false
	}
	b.sections = append(b.sections[:i], b.sections[i+1:]...)
	return true
}

// Field returns a copy of the field with the given id
func (b *Builder) Field(id string) (Field, bool) {
	si, fi := b.fieldIndex(id)
	if si < 0 {
		return Field{}, false
	}
	return b.sections[si].Fields[fi], true
}

// Append adds a field at the end of a section
func (b *Builder) Append(sectionID string, f Field) error {
	i := b.sectionIndex(sectionID)
	if i < 0 {
		return fmt.Errorf("section %q: %w", sectionID, ErrSectionNotFound)
	}
	return b.insertField(i, len(b.sections[i].Fields), f)
}

// InsertAfter places f right after the field named after, in that field's section
func (b *Builder) InsertAfter(after string, f Field) error {
	si, fi := b.fieldIndex(after)
	if si < 0 {
		return fmt.Errorf("field %q: %w", after, ErrFieldNotFound)
	}
	return b.insertField(si, fi+1, f)
}

// Replace swaps the definition of an existing field in place
func (b *Builder) Replace(f Field) error {
	si, fi := b.fieldIndex(f.ID)
	if si < 0 {
		return fmt.Errorf("field %q: %w", f.ID, ErrFieldNotFound)
	}
	b.sections[si].Fields[fi] = cloneField(f)
	return nil
}

// Remove drops a field wherever it lives
func (b *Builder) Remove(id string) bool {
	si, fi := b.fieldIndex(id)
	if si < 0 {
		return false
	}
	fs := b.sections[si].Fields
	b.sections[si].Fields = append(fs[:fi], fs[fi+1:]...)
	return true
}

// Move relocates a field to the end of sectionID, or right after the
// field named after when it is not empty.
func (b *Builder) Move(id, sectionID, after string) error {
	f, ok := b.Field(id)
	if !ok {
		return fmt.Errorf("field %q: %w", id, ErrFieldNotFound)
	}
	if b.sectionIndex(sectionID) < 0 {
		return fmt.Errorf("section %q: %w", sectionID, ErrSectionNotFound)
	}
	if after != "" {
		if _, ok := b.Field(after); !ok || after == id {
			return fmt.Errorf("field %q: %w", after, ErrFieldNotFound)
		}
	}

	b.Remove(id)
	if after == "" {
		return b.Append(sectionID, f)
	}
	return b.InsertAfter(after, f)
}

// Build validates ids and freezes the builder into a catalog. Fields
// without an id are skipped.
func (b *Builder) Build() (*Catalog, error) {
	c := &Catalog{index: make(map[string]Field)}

	for _, s := range b.sections {
		section := Section{ID: s.ID, Title: s.Title, Icon: s.Icon}
		for _, f := range s.Fields {
			if f.ID == "" {
				continue
			}
			if _, dup := c.index[f.ID]; dup {
				return nil, fmt.Errorf("field %q: %w", f.ID, ErrDuplicateID)
			}
			f = cloneField(f)
			c.index[f.ID] = f
			c.order = append(c.order, f.ID)
			section.Fields = append(section.Fields, f)
		}
		c.sections = append(c.sections, section)
	}

	return c, nil
}

func (b *Builder) insertField(si, pos int, f Field) error {
	if f.ID == "" {
		return ErrEmptyID
	}
	if s, _ := b.fieldIndex(f.ID); s >= 0 {
		return fmt.Errorf("field %q: %w", f.ID, ErrDuplicateID)
	}

	fs := append(b.sections[si].Fields, Field{})
	copy(fs[pos+1:], fs[pos:])
	fs[pos] = cloneField(f)
	b.sections[si].Fields = fs
	return nil
}

func (b *Builder) sectionIndex(id string) int {
	for i, s := range b.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (b *Builder) fieldIndex(id string) (int, int) {
	for si, s := range b.sections {
		for fi, f := range s.Fields {
			if f.ID == id {
				return si, fi
			}
		}
	}
	return -1, -1
}

func cloneSection(s Section) Section {
	out := s
	out.Fields = make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		out.Fields = append(out.Fields, cloneField(f))
	}
	return out
}

func cloneField(f Field) Field {
	out := f
	if f.Bounds != nil {
		b := *f.Bounds
		out.Bounds = &b
	}
	if f.Options != nil {
		out.Options = append([]Option(nil), f.Options...)
	}
	return out
}
