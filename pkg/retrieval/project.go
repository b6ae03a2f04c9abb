package retrieval

import (
	"maps"

	"github.com/openfga/listquery/pkg/storage"
)

// Row is a projected list item keyed by requested column name.
type Row map[string]any

// Project builds the row for one raw item. Every requested column must exist on the schema;
// a column that exists but has no value on the item maps to nil. A nil schema means the
// item's own fields are the schema. With no requested columns every field of the item is kept.
func Project(list storage.ListID, schema storage.FieldSet, item storage.Item, columns []string) (Row, error) {
	if len(columns) == 0 {
		return Row(maps.Clone(item)), nil
	}

	row := make(Row, len(columns))
	for _, c := range columns {
		if schema != nil {
			if !schema.Has(c) {
				return nil, storage.ProjectionError(list, c)
			}
		} else if _, ok := item[c]; !ok {
			return nil, storage.ProjectionError(list, c)
		}
		row[c] = item[c]
	}
	return row, nil
}

// projectPage projects every item of a page. The first failing item fails the whole page.
func projectPage(list storage.ListID, schema storage.FieldSet, page *storage.Page, columns []string) ([]Row, error) {
	rows := make([]Row, 0, page.Size())
	for _, item := range page.Items {
		row, err := Project(list, schema, item, columns)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
