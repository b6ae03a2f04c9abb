// Package storage contains the interfaces and types shared with list store implementations.
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks
package storage

import (
	"context"
	"fmt"
	"strings"
)

// ListID identifies a list on a site. Exactly one of Title or GUID is set.
type ListID struct {
	Title string `json:"title,omitempty"`
	GUID  string `json:"guid,omitempty"`
}

// ListByTitle returns the ListID for the list with the given display title.
func ListByTitle(title string) ListID {
	return ListID{Title: title}
}

// ListByGUID returns the ListID for the list with the given GUID.
func ListByGUID(guid string) ListID {
	return ListID{GUID: guid}
}

// IsZero reports whether neither a title nor a GUID is set.
func (l ListID) IsZero() bool {
	return l.Title == "" && l.GUID == ""
}

// String returns the identifier used in error messages and logs.
func (l ListID) String() string {
	if l.GUID != "" {
		return "{" + strings.ToLower(strings.Trim(l.GUID, "{}")) + "}"
	}
	return l.Title
}

// Key returns a stable key for the list, suitable for caches.
func (l ListID) Key() string {
	if l.GUID != "" {
		return "guid:" + strings.ToLower(strings.Trim(l.GUID, "{}"))
	}
	return "title:" + l.Title
}

// Item is a raw list item as returned by the store, keyed by internal field name.
type Item map[string]any

// Page is the result of a single query execution.
type Page struct {
	Items []Item
}

// Size returns the number of items returned by the store for this execution.
func (p *Page) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// Field describes one column of a list schema.
type Field struct {
	InternalName string
	// Type is the store's declared type tag (e.g. "Text", "Lookup", "User").
	Type       string
	LookupList string
	ReadOnly   bool
}

// FieldValue is a typed value to be written to the named field.
// Value holds one of the values produced by the fieldvalue package.
type FieldValue struct {
	Name  string
	Value any
}

func (f FieldValue) String() string {
	return fmt.Sprintf("%s=%v", f.Name, f.Value)
}

// Executor runs a compiled query against a list.
type Executor interface {
	// Execute runs query against list starting at cursor and returns a single page of
	// items. A store-side rejection must be reported as an error matching ErrRemoteExecution
	// whose message is the store's own message.
	Execute(ctx context.Context, list ListID, query string, cursor int) (*Page, error)
}

// SchemaResolver yields field metadata for a list.
type SchemaResolver interface {
	// Fields returns the list's fields. If the list does not exist it must return an error
	// matching ErrNotFound.
	Fields(ctx context.Context, list ListID) ([]Field, error)
}

// Writer creates and updates list items.
type Writer interface {
	// Create adds an item with the given values and returns its identifier.
	Create(ctx context.Context, list ListID, values []FieldValue) (int, error)

	// Update sets values on the item with the given identifier. If the item does not exist it
	// must return an error matching ErrNotFound.
	Update(ctx context.Context, list ListID, id int, values []FieldValue) error
}

// ListStore is the full set of operations offered by a list store implementation.
type ListStore interface {
	Executor
	SchemaResolver
	Writer
}

// FieldSet indexes fields by internal name.
type FieldSet map[string]Field

// NewFieldSet indexes the given fields by internal name.
func NewFieldSet(fields []Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f.InternalName] = f
	}
	return set
}

// Has reports whether a field with the given internal name exists.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}
