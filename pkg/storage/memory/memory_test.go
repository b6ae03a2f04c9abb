package memory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfga/listquery/pkg/caml"
	"github.com/openfga/listquery/pkg/fieldvalue"
	"github.com/openfga/listquery/pkg/retrieval"
	"github.com/openfga/listquery/pkg/storage"
)

func newTasks(t *testing.T, opts ...StorageOption) (*MemoryBackend, storage.ListID) {
	t.Helper()
	ds := New(opts...)
	id, err := ds.CreateList(context.Background(), "Tasks", []storage.Field{
		{InternalName: "Title", Type: "Text"},
		{InternalName: "Project", Type: "Lookup", LookupList: "Projects"},
		{InternalName: "Modified", Type: "DateTime", ReadOnly: true},
	})
	require.NoError(t, err)
	return ds, id
}

func TestCreateList(t *testing.T) {
	ds, id := newTasks(t)
	ctx := context.Background()

	byTitle, err := ds.Fields(ctx, storage.ListByTitle("tasks"))
	require.NoError(t, err)
	byGUID, err := ds.Fields(ctx, storage.ListByGUID("{"+strings.ToUpper(id.GUID)+"}"))
	require.NoError(t, err)
	require.Equal(t, byTitle, byGUID)
	require.Equal(t, "ID", byTitle[0].InternalName)
	require.True(t, byTitle[0].ReadOnly)

	_, err = ds.CreateList(ctx, "TASKS", nil)
	require.ErrorIs(t, err, storage.ErrRemoteExecution)

	_, err = ds.Fields(ctx, storage.ListByTitle("Missing"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, err, storage.ErrRemoteExecution)
}

func TestCreateAndUpdate(t *testing.T) {
	ds, id := newTasks(t)
	ctx := context.Background()

	itemID, err := ds.Create(ctx, id, []storage.FieldValue{
		{Name: "Title", Value: "a"},
		{Name: "Project", Value: fieldvalue.LookupValue{ID: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, itemID)

	err = ds.Update(ctx, id, itemID, []storage.FieldValue{{Name: "Project", Value: fieldvalue.Clear{}}, {Name: "Title", Value: "b"}})
	require.NoError(t, err)

	page, err := ds.Execute(ctx, id, "", 0)
	require.NoError(t, err)
	require.Equal(t, []storage.Item{{"ID": 1, "Title": "b"}}, page.Items)

	t.Run("unknown_field", func(t *testing.T) {
		err := ds.Update(ctx, id, itemID, []storage.FieldValue{{Name: "Title", Value: "c"}, {Name: "Priority", Value: 1}})
		require.ErrorIs(t, err, storage.ErrRemoteExecution)
		require.EqualError(t, err, "Column 'Priority' does not exist. It may have been deleted by another user.")

		page, err := ds.Execute(ctx, id, "", 0)
		require.NoError(t, err)
		require.Equal(t, "b", page.Items[0]["Title"])
	})

	t.Run("read_only_field", func(t *testing.T) {
		_, err := ds.Create(ctx, id, []storage.FieldValue{{Name: "Modified", Value: "x"}})
		require.ErrorIs(t, err, storage.ErrRemoteExecution)
	})

	t.Run("missing_item", func(t *testing.T) {
		err := ds.Update(ctx, id, 42, nil)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestExecuteValidatesQuery(t *testing.T) {
	ds, id := newTasks(t)
	ctx := context.Background()

	query, err := caml.Compile(caml.Descriptor{
		List:    id,
		Columns: []string{"Title", "ProjectsOwner"},
		Where:   caml.Leaf{Column: "Project", Op: caml.Eq, Value: caml.Scalar("3"), Type: caml.Lookup},
		Join:    &caml.Join{ForeignList: "Projects", LocalColumn: "Project", ProjectedColumns: []string{"Owner"}},
	})
	require.NoError(t, err)
	_, err = ds.Execute(ctx, id, query, 0)
	require.NoError(t, err)

	query, err = caml.Compile(caml.Descriptor{List: id, Columns: []string{"Priority"}})
	require.NoError(t, err)
	_, err = ds.Execute(ctx, id, query, 0)
	require.ErrorIs(t, err, storage.ErrRemoteExecution)

	_, err = ds.Execute(ctx, id, "<View><Query>", 0)
	require.ErrorIs(t, err, storage.ErrRemoteExecution)
}

func TestExecutePaging(t *testing.T) {
	ds, id := newTasks(t, WithPageCap(3))
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := ds.Create(ctx, id, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		cursor      int
		expectedIDs []int
	}{
		{cursor: 0, expectedIDs: []int{1, 2, 3}},
		{cursor: 1, expectedIDs: []int{1, 2, 3}},
		{cursor: 4, expectedIDs: []int{4, 5, 6}},
		{cursor: 7, expectedIDs: []int{7}},
		{cursor: 8, expectedIDs: []int{}},
		{cursor: 100, expectedIDs: []int{}},
	}
	for _, test := range tests {
		page, err := ds.Execute(ctx, id, "", test.cursor)
		require.NoError(t, err)
		ids := []int{}
		for _, item := range page.Items {
			ids = append(ids, item["ID"].(int))
		}
		require.Equal(t, test.expectedIDs, ids, "cursor %d", test.cursor)
	}
}

func TestRetrieveAcrossPages(t *testing.T) {
	ds, id := newTasks(t)
	ctx := context.Background()
	for i := 0; i < 2*caml.PageCap+17; i++ {
		_, err := ds.Create(ctx, id, []storage.FieldValue{{Name: "Title", Value: "t"}})
		require.NoError(t, err)
	}

	r := retrieval.NewRetriever(ds, retrieval.WithSchemaResolver(ds))
	rows, err := r.Retrieve(ctx, caml.Descriptor{List: storage.ListByTitle("Tasks"), Columns: []string{"ID", "Title"}})
	require.NoError(t, err)
	require.Len(t, rows, 2*caml.PageCap+17)
	for i, row := range rows {
		require.Equal(t, i+1, row["ID"])
	}
}

func TestConcurrentWrites(t *testing.T) {
	ds, id := newTasks(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ds.Create(ctx, id, []storage.FieldValue{{Name: "Title", Value: "t"}})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := ds.Execute(ctx, id, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 50)
}
