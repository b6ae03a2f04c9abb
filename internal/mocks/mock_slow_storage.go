package mocks

import (
	"context"
	"time"

	"github.com/openfga/listquery/pkg/storage"
)

// slowListStore is a proxy to the actual store except that query executions and field reads
// are delayed by executeDelay. This allows simulating a store that times out.
type slowListStore struct {
	executeDelay time.Duration
	storage.ListStore
}

// NewMockSlowListStore returns a wrapper of a list store that adds artificial delays into the reads.
func NewMockSlowListStore(ls storage.ListStore, executeDelay time.Duration) storage.ListStore {
	return &slowListStore{
		executeDelay: executeDelay,
		ListStore:    ls,
	}
}

func (m *slowListStore) Execute(ctx context.Context, list storage.ListID, query string, cursor int) (*storage.Page, error) {
	time.Sleep(m.executeDelay)
	return m.ListStore.Execute(ctx, list, query, cursor)
}

func (m *slowListStore) Fields(ctx context.Context, list storage.ListID) ([]storage.Field, error) {
	time.Sleep(m.executeDelay)
	return m.ListStore.Fields(ctx, list)
}
