package model

import (
	"fmt"
	"strings"
)

// ClassEntry is one class the model can recognize.
type ClassEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ClassCatalog is the ordered, immutable set of classes of a loaded model.
type ClassCatalog struct {
	entries []ClassEntry
	byID    map[int]int
	byName  map[string]int
}

// NewClassCatalog builds a catalog preserving the order of entries.
// Duplicate ids, duplicate names and blank names are rejected.
func NewClassCatalog(entries []ClassEntry) (*ClassCatalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: catalog has no classes", ErrInvalidArgument)
	}

	c := &ClassCatalog{
		entries: make([]ClassEntry, 0, len(entries)),
		byID:    make(map[int]int, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: class %d has an empty name", ErrInvalidArgument, e.ID)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate class id %d", ErrInvalidArgument, e.ID)
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate class name %q", ErrInvalidArgument, name)
		}
		c.byID[e.ID] = len(c.entries)
		c.byName[name] = len(c.entries)
		c.entries = append(c.entries, ClassEntry{ID: e.ID, Name: name})
	}

	return c, nil
}

// NewClassCatalogFromNames assigns ids by position, starting at zero.
func NewClassCatalogFromNames(names []string) (*ClassCatalog, error) {
	entries := make([]ClassEntry, len(names))
	for i, n := range names {
		entries[i] = ClassEntry{ID: i, Name: n}
	}
	return NewClassCatalog(entries)
}

// Len returns the number of classes.
func (c *ClassCatalog) Len() int { return len(c.entries) }

// Entries returns a copy of the catalog in order.
func (c *ClassCatalog) Entries() []ClassEntry {
	out := make([]ClassEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns class names in catalog order.
func (c *ClassCatalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Name
	}
	return out
}

// Name looks up the class name for an id.
func (c *ClassCatalog) Name(id int) (string, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return c.entries[idx].Name, true
}

// ID looks up the class id for a name.
func (c *ClassCatalog) ID(name string) (int, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	return c.entries[idx].ID, true
}

// Position returns the zero-based catalog position of a class id.
func (c *ClassCatalog) Position(id int) (int, bool) {
	idx, ok := c.byID[id]
	return idx, ok
}
