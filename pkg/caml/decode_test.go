package caml

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfga/listquery/pkg/storage"
)

func TestParseDescriptor(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		d, err := ParseDescriptor([]byte(`
list: {title: Tasks}
columns: [ID, Title, Department]
cursor: 10
where:
  op: And
  children:
  - {op: Eq, column: Department, type: Lookup, value: 42}
  - {op: In, column: Status, type: Choice, value: [Open, Blocked]}
  - {op: IsNull, column: DueDate}
join:
  foreignList: Customer
  localColumn: CustomerName
  projectedColumns: [City]
`))
		require.NoError(t, err)
		require.Equal(t, Descriptor{
			List:    storage.ListByTitle("Tasks"),
			Columns: []string{"ID", "Title", "Department"},
			Cursor:  10,
			Where: Compound{Op: And, Children: []Where{
				Leaf{Column: "Department", Op: Eq, Type: Lookup, Value: Scalar("42")},
				Leaf{Column: "Status", Op: In, Type: Choice, Value: Values{"Open", "Blocked"}},
				Leaf{Column: "DueDate", Op: IsNull},
			}},
			Join: &Join{ForeignList: "Customer", LocalColumn: "CustomerName", ProjectedColumns: []string{"City"}},
		}, d)

		query, err := Compile(d)
		require.NoError(t, err)
		require.Contains(t, query, `<FieldRef Name="Department" LookupId="TRUE" />`)
	})

	t.Run("json", func(t *testing.T) {
		d, err := ParseDescriptor([]byte(`{"list":{"guid":"5a4c8e33-8a0d-4c55-9a1e-0d2e4b0e2f11"},"rawQuery":"<View />"}`))
		require.NoError(t, err)
		require.Equal(t, "<View />", d.RawQuery)
		require.Equal(t, storage.ListByGUID("5a4c8e33-8a0d-4c55-9a1e-0d2e4b0e2f11"), d.List)
	})

	t.Run("unknown_field", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(`{"list":{"title":"Tasks"},"columns":["ID"],"limit":3}`))
		require.ErrorIs(t, err, storage.ErrDescriptor)
	})

	t.Run("invalid_descriptor", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(`{"columns":["ID"]}`))
		require.ErrorIs(t, err, storage.ErrDescriptor)
	})

	t.Run("unsupported_value", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(`{"list":{"title":"Tasks"},"columns":["ID"],"where":{"op":"Eq","column":"A","type":"Text","value":{"a":1}}}`))
		require.ErrorIs(t, err, storage.ErrCompilation)
	})
}
