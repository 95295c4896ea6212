package segment

import (
	"slices"
	"strings"

	"github.com/tidwall/btree"
)

// AttributeDefinition describes a single attribute that conditions may reference,
// eg. a column within a harmonized table.
type AttributeDefinition struct {
	// Name is the column name, eg. "TIER".
	Name string `json:"name"`
	// Label is the human readable name shown when picking attributes.
	Label string `json:"label"`
	// DataType is the declared type as reported by the catalog, eg. "NUMBER(38,0)".
	DataType string `json:"data_type"`
	// SourceTable is the fully qualified table which the attribute belongs to.
	SourceTable string `json:"source_table"`
	// Description is an optional comment from the catalog.
	Description string `json:"description,omitempty"`
	// Category is the palette group the attribute was loaded under, eg. "Profile".
	Category string `json:"category,omitempty"`
}

// Key returns the unique key for the attribute: the source table and column
// name joined with a dot.
func (a AttributeDefinition) Key() string {
	return a.SourceTable + "." + a.Name
}

// AttributeIndex is a read-only lookup of attribute keys to definitions.  It is
// built once from the catalog and is safe for concurrent reads.
type AttributeIndex struct {
	attrs btree.Map[string, AttributeDefinition]
	// categories stores category names in the order they were first seen.
	categories []string
}

// NewAttributeIndex builds an index from the given definitions.  Definitions sharing
// a key replace earlier ones.
func NewAttributeIndex(defs []AttributeDefinition) *AttributeIndex {
	idx := &AttributeIndex{}
	seen := map[string]struct{}{}
	for _, d := range defs {
		idx.attrs.Set(d.Key(), d)
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		idx.categories = append(idx.categories, d.Category)
	}
	return idx
}

// Get returns the definition for the given key.
func (i *AttributeIndex) Get(key string) (AttributeDefinition, bool) {
	if i == nil {
		return AttributeDefinition{}, false
	}
	return i.attrs.Get(key)
}

// Len returns the number of attributes within the index.
func (i *AttributeIndex) Len() int {
	if i == nil {
		return 0
	}
	return i.attrs.Len()
}

// All returns every attribute ordered by key.
func (i *AttributeIndex) All() []AttributeDefinition {
	if i == nil {
		return nil
	}
	res := make([]AttributeDefinition, 0, i.attrs.Len())
	i.attrs.Scan(func(_ string, d AttributeDefinition) bool {
		res = append(res, d)
		return true
	})
	return res
}

// First returns the attribute with the lowest key, used as the default attribute
// for newly added conditions.
func (i *AttributeIndex) First() (AttributeDefinition, bool) {
	if i == nil {
		return AttributeDefinition{}, false
	}
	var (
		first AttributeDefinition
		ok    bool
	)
	i.attrs.Scan(func(_ string, d AttributeDefinition) bool {
		first, ok = d, true
		return false
	})
	return first, ok
}

// Categories returns the palette categories in load order.
func (i *AttributeIndex) Categories() []string {
	if i == nil {
		return nil
	}
	return append([]string(nil), i.categories...)
}

// ByCategory returns the attributes within a category sorted by label.
func (i *AttributeIndex) ByCategory(category string) []AttributeDefinition {
	res := []AttributeDefinition{}
	for _, d := range i.All() {
		if d.Category == category {
			res = append(res, d)
		}
	}
	sortByLabel(res)
	return res
}

// Search returns all attributes whose label contains the query, ignoring case.  An
// empty query matches everything.  Results are sorted by label.
func (i *AttributeIndex) Search(query string) []AttributeDefinition {
	query = strings.ToLower(strings.TrimSpace(query))
	res := []AttributeDefinition{}
	for _, d := range i.All() {
		if query == "" || strings.Contains(strings.ToLower(d.Label), query) {
			res = append(res, d)
		}
	}
	sortByLabel(res)
	return res
}

// sortByLabel keeps equal labels in key order, as All() is key ordered.
func sortByLabel(defs []AttributeDefinition) {
	slices.SortStableFunc(defs, func(a, b AttributeDefinition) int {
		return strings.Compare(a.Label, b.Label)
	})
}
