package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/openfga/listquery/pkg/fieldvalue"
	"github.com/openfga/listquery/pkg/storage"
)

type formValue struct {
	FieldName  string `json:"FieldName"`
	FieldValue string `json:"FieldValue"`
}

type validateUpdateRequest struct {
	FormValues         []formValue `json:"formValues"`
	BNewDocumentUpdate bool        `json:"bNewDocumentUpdate"`
}

func formValues(values []storage.FieldValue) ([]formValue, error) {
	out := make([]formValue, 0, len(values))
	for _, v := range values {
		s, err := fieldvalue.FormValue(v.Value)
		if err != nil {
			return nil, storage.FieldMappingError(v.Name, "%v", err)
		}
		out = append(out, formValue{FieldName: v.Name, FieldValue: s})
	}
	return out, nil
}

// Create see [storage.Writer].Create.
func (c *Client) Create(ctx context.Context, list storage.ListID, values []storage.FieldValue) (int, error) {
	form, err := formValues(values)
	if err != nil {
		return 0, err
	}

	data, err := c.do(ctx, "Create", http.MethodPost, c.endpoint(list, "/AddValidateUpdateItemUsingPath"), validateUpdateRequest{FormValues: form})
	if err != nil {
		return 0, err
	}

	entries, err := validateResults(data)
	if err != nil {
		return 0, err
	}
	for _, r := range entries.Array() {
		if r.Get("FieldName").String() == "Id" {
			id, err := strconv.Atoi(r.Get("FieldValue").String())
			if err != nil {
				return 0, storage.RemoteExecutionError(fmt.Sprintf("invalid item id '%s'", r.Get("FieldValue").String()))
			}
			return id, nil
		}
	}
	return 0, storage.RemoteExecutionError("the store did not return the new item id")
}

// Update see [storage.Writer].Update.
func (c *Client) Update(ctx context.Context, list storage.ListID, id int, values []storage.FieldValue) error {
	form, err := formValues(values)
	if err != nil {
		return err
	}

	endpoint := c.endpoint(list, fmt.Sprintf("/items(%d)/ValidateUpdateListItem", id))
	data, err := c.do(ctx, "Update", http.MethodPost, endpoint, validateUpdateRequest{FormValues: form})
	if err != nil {
		return err
	}

	_, err = validateResults(data)
	return err
}

// validateResults returns the per-field results of a validate-and-update call. The store
// reports rejected values in the body of a successful response; the first one becomes the
// error.
func validateResults(data []byte) (gjson.Result, error) {
	r, err := results(data)
	if err != nil {
		return gjson.Result{}, err
	}
	for _, entry := range r.Array() {
		if entry.Get("HasException").Bool() {
			return gjson.Result{}, storage.RemoteExecutionError(entry.Get("ErrorMessage").String())
		}
	}
	return r, nil
}
