package data

import (
	"errors"
	"fmt"
	"slices"

	"github.com/udisondev/attrpool/internal/attribute"
)

// ErrRecordNotFound is returned when a table has no record with the requested name.
var ErrRecordNotFound = errors.New("record not found")

// AttributeRecord seeds one attribute of a record.
type AttributeRecord struct {
	Name    string  `yaml:"name"`
	Min     float64 `yaml:"min"`
	Initial float64 `yaml:"initial"`
	Max     float64 `yaml:"max"`
}

// TableRecord is a named row of attribute seeds, e.g. one per creature type.
type TableRecord struct {
	Name       string            `yaml:"name"`
	Attributes []AttributeRecord `yaml:"attributes"`
}

// AttributeTable holds the attribute columns and the records that fill them.
type AttributeTable struct {
	Attributes []string       `yaml:"attributes"`
	Records    []*TableRecord `yaml:"records"`
}

// AddAttribute defines a new column and creates a zero seed for it in every record.
// Returns false if the column already exists.
func (t *AttributeTable) AddAttribute(name string) bool {
	if slices.Contains(t.Attributes, name) {
		return false
	}
	t.Attributes = append(t.Attributes, name)
	for _, r := range t.Records {
		r.CreateAttribute(name)
	}
	return true
}

// RemoveAttribute drops a column from the table and from every record.
func (t *AttributeTable) RemoveAttribute(name string) bool {
	i := slices.Index(t.Attributes, name)
	if i < 0 {
		return false
	}
	t.Attributes = slices.Delete(t.Attributes, i, i+1)
	for _, r := range t.Records {
		r.RemoveAttribute(name)
	}
	return true
}

// EnsureAttributes makes every record carry exactly the given columns in the
// given order, then sorts the table's column list.
func (t *AttributeTable) EnsureAttributes(names []string) {
	for _, r := range t.Records {
		r.EnsureAttributes(names)
	}
	for _, name := range names {
		if !slices.Contains(t.Attributes, name) {
			t.Attributes = append(t.Attributes, name)
		}
	}
	t.SortAttributes()
}

// SortAttributes sorts the column list alphabetically.
func (t *AttributeTable) SortAttributes() {
	slices.Sort(t.Attributes)
}

// HasRecord reports whether a record with the given name exists.
func (t *AttributeTable) HasRecord(name string) bool {
	_, err := t.Record(name)
	return err == nil
}

// Record returns the named record.
func (t *AttributeTable) Record(name string) (*TableRecord, error) {
	for _, r := range t.Records {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("record %q: %w", name, ErrRecordNotFound)
}

// AddRecord appends a record with a zero seed for every column.
// Returns the existing record and false if the name is taken.
func (t *AttributeTable) AddRecord(name string) (*TableRecord, bool) {
	if r, err := t.Record(name); err == nil {
		return r, false
	}
	r := &TableRecord{Name: name}
	r.EnsureAttributes(t.Attributes)
	t.Records = append(t.Records, r)
	return r, true
}

// Attribute returns the seed for the named attribute, or nil.
func (r *TableRecord) Attribute(name string) *AttributeRecord {
	for i := range r.Attributes {
		if r.Attributes[i].Name == name {
			return &r.Attributes[i]
		}
	}
	return nil
}

// CreateAttribute appends a zero seed.
func (r *TableRecord) CreateAttribute(name string) {
	r.Attributes = append(r.Attributes, AttributeRecord{Name: name})
}

// RemoveAttribute drops the named seed.
func (r *TableRecord) RemoveAttribute(name string) bool {
	i := slices.IndexFunc(r.Attributes, func(a AttributeRecord) bool { return a.Name == name })
	if i < 0 {
		return false
	}
	r.Attributes = slices.Delete(r.Attributes, i, i+1)
	return true
}

// EnsureAttributes creates missing seeds, then reorders to match names.
// Seeds not listed in names are dropped.
func (r *TableRecord) EnsureAttributes(names []string) {
	for _, name := range names {
		if r.Attribute(name) == nil {
			r.CreateAttribute(name)
		}
	}
	r.SortAttributes(names)
}

// SortAttributes orders seeds following names.
func (r *TableRecord) SortAttributes(names []string) {
	sorted := make([]AttributeRecord, 0, len(names))
	for _, name := range names {
		if a := r.Attribute(name); a != nil {
			sorted = append(sorted, *a)
		}
	}
	r.Attributes = sorted
}

// NewAttributes builds one attribute per seed.
func (r *TableRecord) NewAttributes() []*attribute.Attribute {
	attrs := make([]*attribute.Attribute, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs = append(attrs, attribute.New(a.Name, a.Initial, a.Min, a.Max))
	}
	return attrs
}

// Seed registers the record's attributes on c and returns how many were new.
func (r *TableRecord) Seed(c *attribute.Container) int {
	added := 0
	for _, a := range r.NewAttributes() {
		if c.AddAttribute(a) {
			added++
		}
	}
	return added
}
