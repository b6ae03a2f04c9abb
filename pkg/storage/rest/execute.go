package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openfga/listquery/pkg/storage"
)

type camlQuery struct {
	ViewXML                    string              `json:"ViewXml"`
	ListItemCollectionPosition *collectionPosition `json:"ListItemCollectionPosition,omitempty"`
}

type collectionPosition struct {
	PagingInfo string `json:"PagingInfo"`
}

// pagingInfo returns the store's paging token for a cursor. The cursor is a 1-based position,
// so the page starting at cursor n follows the item with id n-1.
func pagingInfo(cursor int) *collectionPosition {
	if cursor <= 1 {
		return nil
	}
	return &collectionPosition{PagingInfo: fmt.Sprintf("Paged=TRUE&p_ID=%d", cursor-1)}
}

// Execute see [storage.Executor].Execute.
func (c *Client) Execute(ctx context.Context, list storage.ListID, query string, cursor int) (*storage.Page, error) {
	body := map[string]camlQuery{
		"query": {ViewXML: query, ListItemCollectionPosition: pagingInfo(cursor)},
	}

	data, err := c.do(ctx, "Execute", http.MethodPost, c.endpoint(list, "/GetItems"), body)
	if err != nil {
		return nil, err
	}

	r, err := results(data)
	if err != nil {
		return nil, err
	}

	page := &storage.Page{Items: make([]storage.Item, 0, len(r.Array()))}
	for _, entry := range r.Array() {
		item, ok := entry.Value().(map[string]any)
		if !ok {
			return nil, storage.RemoteExecutionError("invalid response from the store")
		}
		delete(item, "__metadata")
		page.Items = append(page.Items, storage.Item(item))
	}
	return page, nil
}
