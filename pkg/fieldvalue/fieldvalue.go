// Package fieldvalue maps typed column updates to the field values written to a list store.
package fieldvalue

import (
	"github.com/openfga/listquery/pkg/storage"
)

// ColumnValue is an update for one column. It is one of Text, Number, URL, Lookup, User,
// MultiChoice or Generic.
type ColumnValue interface {
	Column() string
	isColumnValue()
}

// Text sets a single or multiple lines of text column.
type Text struct {
	Name  string
	Value string
}

// Number sets a number or currency column.
type Number struct {
	Name  string
	Value float64
}

// URL sets a hyperlink column. Both URL and Description are required.
type URL struct {
	Name        string
	URL         string
	Description string
}

// Lookup sets a lookup column. Several ids, or Multi, write one reference per id in order;
// a single id without Multi writes a single reference. No ids clears the column.
type Lookup struct {
	Name  string
	IDs   []int
	Multi bool
}

// User sets a person column from one or more identities (login names or claims).
type User struct {
	Name       string
	Identities []string
}

// MultiChoice sets a multi-valued choice column.
type MultiChoice struct {
	Name   string
	Values []string
}

// Generic sets any other column (Choice, Boolean, DateTime, Note …) to a value written as is.
type Generic struct {
	Name  string
	Value any
}

func (v Text) Column() string        { return v.Name }
func (v Number) Column() string      { return v.Name }
func (v URL) Column() string         { return v.Name }
func (v Lookup) Column() string      { return v.Name }
func (v User) Column() string        { return v.Name }
func (v MultiChoice) Column() string { return v.Name }
func (v Generic) Column() string     { return v.Name }

func (Text) isColumnValue()        {}
func (Number) isColumnValue()      {}
func (URL) isColumnValue()         {}
func (Lookup) isColumnValue()      {}
func (User) isColumnValue()        {}
func (MultiChoice) isColumnValue() {}
func (Generic) isColumnValue()     {}

// LookupID returns a single-valued Lookup update.
func LookupID(name string, id int) Lookup {
	return Lookup{Name: name, IDs: []int{id}}
}

// LookupIDs returns a multi-valued Lookup update.
func LookupIDs(name string, ids ...int) Lookup {
	return Lookup{Name: name, IDs: ids, Multi: true}
}

// URLValue is the typed value of a hyperlink field.
type URLValue struct {
	URL         string
	Description string
}

// LookupValue references an item of the lookup list by identifier.
type LookupValue struct {
	ID int
}

// UserValue references a principal by identity.
type UserValue struct {
	Identity string
}

// Clear removes the field's value.
type Clear struct{}

// MapForWrite converts a column update into the typed value written to the store. Create and
// update use the same mapping.
func MapForWrite(cv ColumnValue) (storage.FieldValue, error) {
	if cv == nil {
		return storage.FieldValue{}, storage.FieldMappingError("", "no column value")
	}
	if cv.Column() == "" {
		return storage.FieldValue{}, storage.FieldMappingError("", "column value %T has no column name", cv)
	}

	var v any
	switch c := cv.(type) {
	case URL:
		if c.URL == "" {
			return storage.FieldValue{}, storage.FieldMappingError(c.Name, "url value has no url")
		}
		if c.Description == "" {
			return storage.FieldValue{}, storage.FieldMappingError(c.Name, "url value has no description")
		}
		v = URLValue{URL: c.URL, Description: c.Description}
	case Lookup:
		switch {
		case len(c.IDs) == 0:
			v = Clear{}
		case len(c.IDs) == 1 && !c.Multi:
			v = LookupValue{ID: c.IDs[0]}
		default:
			refs := make([]LookupValue, 0, len(c.IDs))
			for _, id := range c.IDs {
				refs = append(refs, LookupValue{ID: id})
			}
			v = refs
		}
	case User:
		if len(c.Identities) == 0 {
			v = Clear{}
			break
		}
		refs := make([]UserValue, 0, len(c.Identities))
		for _, identity := range c.Identities {
			refs = append(refs, UserValue{Identity: identity})
		}
		v = refs
	case Text:
		v = c.Value
	case Number:
		v = c.Value
	case MultiChoice:
		v = c.Values
	case Generic:
		v = c.Value
	default:
		return storage.FieldValue{}, storage.FieldMappingError(cv.Column(), "unsupported column value %T", cv)
	}

	return storage.FieldValue{Name: cv.Column(), Value: v}, nil
}

// MapAllForWrite maps every column update, failing on the first that cannot be mapped.
func MapAllForWrite(values []ColumnValue) ([]storage.FieldValue, error) {
	mapped := make([]storage.FieldValue, 0, len(values))
	for _, cv := range values {
		fv, err := MapForWrite(cv)
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, fv)
	}
	return mapped, nil
}
