package fieldvalue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfga/listquery/pkg/storage"
)

func ptr(s string) *string { return &s }

func TestMapForWrite(t *testing.T) {
	tests := []struct {
		name     string
		input    ColumnValue
		expected any
	}{
		{
			name:     "url",
			input:    URL{Name: "Homepage", URL: "http://x", Description: "x"},
			expected: URLValue{URL: "http://x", Description: "x"},
		},
		{
			name:     "lookup_multi_keeps_order",
			input:    LookupIDs("Projects", 3, 7, 9),
			expected: []LookupValue{{ID: 3}, {ID: 7}, {ID: 9}},
		},
		{
			name:     "lookup_single",
			input:    LookupID("Department", 42),
			expected: LookupValue{ID: 42},
		},
		{
			name:     "lookup_without_ids_clears",
			input:    Lookup{Name: "Department"},
			expected: Clear{},
		},
		{
			name:     "user_single_identity_is_one_element_list",
			input:    User{Name: "Owner", Identities: []string{"jane@example.com"}},
			expected: []UserValue{{Identity: "jane@example.com"}},
		},
		{
			name:     "user_many_identities_in_order",
			input:    User{Name: "Reviewers", Identities: []string{"b@example.com", "a@example.com"}},
			expected: []UserValue{{Identity: "b@example.com"}, {Identity: "a@example.com"}},
		},
		{
			name:     "lookup_ids_keep_order",
			input:    Lookup{Name: "Projects", IDs: []int{3, 7, 9}},
			expected: []LookupValue{{ID: 3}, {ID: 7}, {ID: 9}},
		},
		{
			name:     "single_lookup_id",
			input:    Lookup{Name: "Department", IDs: []int{5}},
			expected: LookupValue{ID: 5},
		},
		{
			name:     "multi_lookup_with_one_id",
			input:    LookupIDs("Projects", 5),
			expected: []LookupValue{{ID: 5}},
		},
		{
			name:     "text_passes_through",
			input:    Text{Name: "Title", Value: "Quarterly report"},
			expected: "Quarterly report",
		},
		{
			name:     "number_passes_through",
			input:    Number{Name: "Budget", Value: 12.5},
			expected: 12.5,
		},
		{
			name:     "multichoice_passes_through",
			input:    MultiChoice{Name: "Tags", Values: []string{"a", "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "generic_passes_through",
			input:    Generic{Name: "Done", Value: true},
			expected: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := MapForWrite(test.input)
			require.NoError(t, err)
			require.Equal(t, test.input.Column(), actual.Name)
			require.Equal(t, test.expected, actual.Value)
		})
	}
}

func TestMapForWriteErrors(t *testing.T) {
	tests := []struct {
		name  string
		input ColumnValue
	}{
		{name: "nil", input: nil},
		{name: "no_column_name", input: Text{Value: "x"}},
		{name: "url_without_description", input: URL{Name: "Homepage", URL: "http://x"}},
		{name: "url_without_url", input: URL{Name: "Homepage", Description: "x"}},
		{name: "pointer_variant", input: &Text{Name: "Title"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := MapForWrite(test.input)
			require.ErrorIs(t, err, storage.ErrFieldMapping)
		})
	}
}

func TestFromDescriptor(t *testing.T) {
	t.Run("type_tag_is_case_insensitive", func(t *testing.T) {
		for _, tag := range []string{"Lookup", "lookup", "LOOKUP"} {
			cv, err := FromDescriptor(Descriptor{Name: "Projects", Type: tag, LookupID: []any{float64(3), float64(7), float64(9)}})
			require.NoError(t, err)

			fv, err := MapForWrite(cv)
			require.NoError(t, err)
			require.Equal(t, []LookupValue{{ID: 3}, {ID: 7}, {ID: 9}}, fv.Value)
		}
	})

	t.Run("lookup_empty_id_clears", func(t *testing.T) {
		cv, err := FromDescriptor(Descriptor{Name: "Department", Type: "Lookup", LookupID: ""})
		require.NoError(t, err)

		fv, err := MapForWrite(cv)
		require.NoError(t, err)
		require.Equal(t, Clear{}, fv.Value)
	})

	t.Run("lookup_scalar_id", func(t *testing.T) {
		for _, id := range []any{float64(5), "5", 5} {
			cv, err := FromDescriptor(Descriptor{Name: "Department", Type: "Lookup", LookupID: id})
			require.NoError(t, err)
			require.Equal(t, LookupID("Department", 5), cv)
		}
	})

	t.Run("lookup_bad_id", func(t *testing.T) {
		for _, id := range []any{"Engineering", 1.5, []any{"x"}, true} {
			_, err := FromDescriptor(Descriptor{Name: "Department", Type: "Lookup", LookupID: id})
			require.ErrorIs(t, err, storage.ErrFieldMapping)
		}
	})

	t.Run("url_round_trips", func(t *testing.T) {
		cv, err := FromDescriptor(Descriptor{Name: "Homepage", Type: "Url", URL: ptr("http://x"), Description: ptr("x")})
		require.NoError(t, err)

		fv, err := MapForWrite(cv)
		require.NoError(t, err)
		require.Equal(t, URLValue{URL: "http://x", Description: "x"}, fv.Value)
	})

	t.Run("url_without_description", func(t *testing.T) {
		_, err := FromDescriptor(Descriptor{Name: "Homepage", Type: "URL", URL: ptr("http://x")})
		require.ErrorIs(t, err, storage.ErrFieldMapping)
	})

	t.Run("user_single_identity_string", func(t *testing.T) {
		cv, err := FromDescriptor(Descriptor{Name: "Owner", Type: "user", Value: "jane@example.com"})
		require.NoError(t, err)
		require.Equal(t, User{Name: "Owner", Identities: []string{"jane@example.com"}}, cv)
	})

	t.Run("pass_through_types", func(t *testing.T) {
		for _, tag := range []string{"Text", "Note", "Number", "Currency", "Choice", "Boolean", "DateTime"} {
			cv, err := FromDescriptor(Descriptor{Name: "Column", Type: tag, Value: "raw"})
			require.NoError(t, err, tag)

			fv, err := MapForWrite(cv)
			require.NoError(t, err)
			require.Equal(t, "raw", fv.Value, tag)
		}
	})

	t.Run("multichoice", func(t *testing.T) {
		cv, err := FromDescriptor(Descriptor{Name: "Tags", Type: "MultiChoice", Value: []any{"a", "b"}})
		require.NoError(t, err)
		require.Equal(t, MultiChoice{Name: "Tags", Values: []string{"a", "b"}}, cv)
	})

	t.Run("unknown_type", func(t *testing.T) {
		_, err := FromDescriptor(Descriptor{Name: "Column", Type: "Geolocation"})
		require.ErrorIs(t, err, storage.ErrFieldMapping)
	})

	t.Run("no_name", func(t *testing.T) {
		_, err := FromDescriptor(Descriptor{Type: "Text"})
		require.ErrorIs(t, err, storage.ErrFieldMapping)
	})
}

func TestMapDescriptorsForWrite(t *testing.T) {
	values, err := MapDescriptorsForWrite([]Descriptor{
		{Name: "Title", Type: "Text", Value: "a"},
		{Name: "Department", Type: "Lookup", LookupID: float64(2)},
	})
	require.NoError(t, err)
	require.Equal(t, []storage.FieldValue{
		{Name: "Title", Value: "a"},
		{Name: "Department", Value: LookupValue{ID: 2}},
	}, values)

	_, err = MapDescriptorsForWrite([]Descriptor{
		{Name: "Title", Type: "Text", Value: "a"},
		{Name: "Homepage", Type: "Url"},
	})
	require.ErrorIs(t, err, storage.ErrFieldMapping)
}

func TestFormValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil", input: nil, expected: ""},
		{name: "clear", input: Clear{}, expected: ""},
		{name: "string", input: "abc", expected: "abc"},
		{name: "float", input: 12.5, expected: "12.5"},
		{name: "whole_float", input: float64(3), expected: "3"},
		{name: "bool", input: true, expected: "1"},
		{name: "time", input: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), expected: "2024-03-01T09:30:00Z"},
		{name: "url", input: URLValue{URL: "http://x/?a=1,2", Description: "x"}, expected: "http://x/?a=1,,2, x"},
		{name: "lookup", input: LookupValue{ID: 4}, expected: "4"},
		{name: "lookups", input: []LookupValue{{ID: 3}, {ID: 7}, {ID: 9}}, expected: "3;#;#7;#;#9;#"},
		{name: "users", input: []UserValue{{Identity: "a"}, {Identity: "b"}}, expected: `[{"Key":"a"},{"Key":"b"}]`},
		{name: "multichoice", input: []string{"a", "b"}, expected: ";#a;#b;#"},
		{name: "empty_multichoice", input: []string{}, expected: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := FormValue(test.input)
			require.NoError(t, err)
			require.Equal(t, test.expected, actual)
		})
	}
}
