package keys

import (
	"github.com/openfga/listquery/pkg/storage"
)

type hasher interface {
	WriteString(value string) error
}

// NewListHasher returns a hasher for a list identifier. A title and a GUID never hash to
// the same input, and GUIDs are compared without braces or case.
func NewListHasher(list storage.ListID) *listHasher {
	return &listHasher{list}
}

type listHasher struct {
	list storage.ListID
}

func (l *listHasher) Append(h hasher) error {
	// prefix to avoid overlap with previous strings written
	if err := h.WriteString("list/"); err != nil {
		return err
	}
	return h.WriteString(l.list.Key())
}

// NewColumnsHasher returns a hasher for an ordered column list. Order is significant.
func NewColumnsHasher(columns []string) *columnsHasher {
	return &columnsHasher{columns}
}

type columnsHasher struct {
	columns []string
}

func (c *columnsHasher) Append(h hasher) error {
	if err := h.WriteString("/"); err != nil {
		return err
	}

	for _, column := range c.columns {
		// column with a separator at the end
		if err := h.WriteString(column + ","); err != nil {
			return err
		}
	}

	return nil
}
