package caml

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfga/listquery/pkg/storage"
)

var valueRegexp = regexp.MustCompile(`<Value Type="[^"]*">([^<]*)</Value>`)

func numbered(n int) Values {
	values := make(Values, 0, n)
	for i := 1; i <= n; i++ {
		values = append(values, strconv.Itoa(i))
	}
	return values
}

// inBatches returns the literal values of each In clause of a compiled predicate, in order.
func inBatches(t *testing.T, predicate string) [][]string {
	t.Helper()
	var batches [][]string
	for _, clause := range strings.Split(predicate, "<In>")[1:] {
		clause = clause[:strings.Index(clause, "</In>")]
		var batch []string
		for _, m := range valueRegexp.FindAllStringSubmatch(clause, -1) {
			batch = append(batch, m[1])
		}
		batches = append(batches, batch)
	}
	return batches
}

func TestCompilePredicate(t *testing.T) {
	tests := []struct {
		name     string
		where    Where
		expected string
	}{
		{
			name:     "text_equality",
			where:    Leaf{Column: "Title", Op: Eq, Value: Scalar("Quarterly report"), Type: Text},
			expected: `<Eq><FieldRef Name="Title" /><Value Type="Text">Quarterly report</Value></Eq>`,
		},
		{
			name:     "lookup_by_id",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("42"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" LookupId="TRUE" /><Value Type="Lookup">42</Value></Eq>`,
		},
		{
			name:     "lookup_by_display_value",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("Engineering"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">Engineering</Value></Eq>`,
		},
		{
			name:     "lookup_display_value_nan",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("NaN"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">NaN</Value></Eq>`,
		},
		{
			name:     "lookup_display_value_inf",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("Inf"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">Inf</Value></Eq>`,
		},
		{
			name:     "lookup_display_value_decimal",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("1.5"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">1.5</Value></Eq>`,
		},
		{
			name:     "lookup_display_value_exponent",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("1e3"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">1e3</Value></Eq>`,
		},
		{
			name:     "lookup_display_value_digit_separator",
			where:    Leaf{Column: "Department", Op: Eq, Value: Scalar("1_000"), Type: Lookup},
			expected: `<Eq><FieldRef Name="Department" /><Value Type="Lookup">1_000</Value></Eq>`,
		},
		{
			name:     "numeric_value_on_non_lookup",
			where:    Leaf{Column: "Priority", Op: Gt, Value: Scalar("3"), Type: Number},
			expected: `<Gt><FieldRef Name="Priority" /><Value Type="Number">3</Value></Gt>`,
		},
		{
			name:     "no_value",
			where:    Leaf{Column: "DueDate", Op: IsNull},
			expected: `<IsNull><FieldRef Name="DueDate" /></IsNull>`,
		},
		{
			name:     "empty_scalar_is_no_value",
			where:    Leaf{Column: "DueDate", Op: IsNotNull, Value: Scalar("")},
			expected: `<IsNotNull><FieldRef Name="DueDate" /></IsNotNull>`,
		},
		{
			name:     "membership",
			where:    Leaf{Column: "AssignedTo", Op: Membership, Value: Scalar("CurrentUserGroups")},
			expected: `<Membership Type="CurrentUserGroups"><FieldRef Name="AssignedTo" /></Membership>`,
		},
		{
			name:     "escapes_markup",
			where:    Leaf{Column: "Title", Op: Contains, Value: Scalar(`R&D <"core">`), Type: Text},
			expected: `<Contains><FieldRef Name="Title" /><Value Type="Text">R&amp;D &lt;&#34;core&#34;&gt;</Value></Contains>`,
		},
		{
			name: "compound_keeps_order_without_flattening",
			where: AllOf(
				Leaf{Column: "A", Op: Eq, Value: Scalar("1"), Type: Text},
				AllOf(
					Leaf{Column: "B", Op: Eq, Value: Scalar("2"), Type: Text},
					Leaf{Column: "C", Op: Eq, Value: Scalar("3"), Type: Text},
				),
				Leaf{Column: "D", Op: IsNull},
			),
			expected: `<And>` +
				`<Eq><FieldRef Name="A" /><Value Type="Text">1</Value></Eq>` +
				`<And>` +
				`<Eq><FieldRef Name="B" /><Value Type="Text">2</Value></Eq>` +
				`<Eq><FieldRef Name="C" /><Value Type="Text">3</Value></Eq>` +
				`</And>` +
				`<IsNull><FieldRef Name="D" /></IsNull>` +
				`</And>`,
		},
		{
			name:     "in_with_lookup_ids",
			where:    Leaf{Column: "Project", Op: In, Value: Values{"3", "7"}, Type: Lookup},
			expected: `<In><FieldRef Name="Project" LookupId="TRUE" /><Values><Value Type="Lookup">3</Value><Value Type="Lookup">7</Value></Values></In>`,
		},
		{
			name:     "in_with_scalar",
			where:    Leaf{Column: "Status", Op: In, Value: Scalar("Open"), Type: Choice},
			expected: `<In><FieldRef Name="Status" /><Values><Value Type="Choice">Open</Value></Values></In>`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := CompilePredicate(test.where)
			require.NoError(t, err)
			require.Equal(t, test.expected, actual)
		})
	}
}

func TestCompilePredicateInBatching(t *testing.T) {
	for _, n := range []int{1, 59, 60, 61, 120, 121, 130, 600} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			values := numbered(n)
			actual, err := CompilePredicate(Leaf{Column: "ID", Op: In, Value: values, Type: Counter})
			require.NoError(t, err)

			batches := inBatches(t, actual)
			if n <= MaxInValues {
				require.Len(t, batches, 1)
				require.NotContains(t, actual, "<Or>")
			} else {
				require.Len(t, batches, (n+MaxInValues-1)/MaxInValues)
				require.True(t, strings.HasPrefix(actual, "<Or><In>"))
				require.True(t, strings.HasSuffix(actual, "</In></Or>"))
				require.Equal(t, 1, strings.Count(actual, "<Or>"))
			}

			var flattened []string
			for i, batch := range batches {
				require.LessOrEqual(t, len(batch), MaxInValues)
				if i < len(batches)-1 {
					require.Len(t, batch, MaxInValues)
				}
				flattened = append(flattened, batch...)
			}
			require.Equal(t, []string(values), flattened)
		})
	}

	t.Run("130_values_split_60_60_10", func(t *testing.T) {
		actual, err := CompilePredicate(Leaf{Column: "ID", Op: In, Value: numbered(130), Type: Counter})
		require.NoError(t, err)

		batches := inBatches(t, actual)
		require.Len(t, batches, 3)
		require.Len(t, batches[0], 60)
		require.Len(t, batches[1], 60)
		require.Len(t, batches[2], 10)
		require.Equal(t, "121", batches[2][0])
	})

	t.Run("batched_lookup_keeps_id_marker", func(t *testing.T) {
		actual, err := CompilePredicate(Leaf{Column: "Project", Op: In, Value: numbered(61), Type: Lookup})
		require.NoError(t, err)
		require.Equal(t, 2, strings.Count(actual, `<FieldRef Name="Project" LookupId="TRUE" />`))
	})
}

func TestCompilePredicateErrors(t *testing.T) {
	tests := []struct {
		name  string
		where Where
	}{
		{name: "nil", where: nil},
		{name: "nil_leaf_pointer", where: (*Leaf)(nil)},
		{name: "missing_column", where: Leaf{Op: Eq, Value: Scalar("x"), Type: Text}},
		{name: "unknown_operator", where: Leaf{Column: "Title", Op: "Like", Value: Scalar("x"), Type: Text}},
		{name: "logical_operator_on_leaf", where: Leaf{Column: "Title", Op: And, Value: Scalar("x"), Type: Text}},
		{name: "sequence_on_scalar_operator", where: Leaf{Column: "Title", Op: Eq, Value: Values{"a", "b"}, Type: Text}},
		{name: "missing_value_type", where: Leaf{Column: "Department", Op: Eq, Value: Scalar("42")}},
		{name: "compound_with_one_child", where: AllOf(Leaf{Column: "A", Op: IsNull})},
		{name: "compound_with_comparison_operator", where: Compound{Op: Eq, Children: []Where{
			Leaf{Column: "A", Op: IsNull}, Leaf{Column: "B", Op: IsNull},
		}}},
		{name: "error_in_nested_child", where: AnyOf(
			Leaf{Column: "A", Op: IsNull},
			AllOf(Leaf{Column: "B", Op: IsNull}, Leaf{Column: "", Op: IsNull}),
		)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := CompilePredicate(test.where)
			require.ErrorIs(t, err, storage.ErrCompilation)
		})
	}
}

func TestBatch(t *testing.T) {
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batch([]int{1, 2, 3, 4, 5}, 2))
	require.Equal(t, [][]int{{1, 2}}, Batch([]int{1, 2}, 2))
	require.Empty(t, Batch([]int{}, 2))

	batches := Batch([]int{1, 2, 3}, 2)
	batches[0] = append(batches[0], 9)
	require.Equal(t, []int{3}, batches[1])
}
