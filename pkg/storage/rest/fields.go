package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openfga/listquery/pkg/storage"
)

const backOffMaxDuration = 3 * time.Second

const fieldsQuery = "/fields?$select=InternalName,TypeAsString,LookupList,ReadOnlyField&$filter=Hidden%20eq%20false"

// Fields see [storage.SchemaResolver].Fields. Field metadata reads are retried with exponential
// backoff on transport failures, throttling and server errors.
func (c *Client) Fields(ctx context.Context, list storage.ListID) ([]storage.Field, error) {
	var data []byte

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.MaxElapsedTime = c.schemaRetryMaxElapsedTime

	err := backoff.Retry(
		func() error {
			var err error
			data, err = c.do(ctx, "Fields", http.MethodGet, c.endpoint(list, fieldsQuery), nil)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.DebugWithContext(ctx, "retrying field metadata request", zap.Stringer("list", list), zap.Error(err))
			return err
		},
		backoff.WithContext(backoffPolicy, ctx),
	)
	if err != nil {
		return nil, err
	}

	r, err := results(data)
	if err != nil {
		return nil, err
	}

	fields := make([]storage.Field, 0, len(r.Array()))
	for _, f := range r.Array() {
		fields = append(fields, storage.Field{
			InternalName: f.Get("InternalName").String(),
			Type:         f.Get("TypeAsString").String(),
			LookupList:   f.Get("LookupList").String(),
			ReadOnly:     f.Get("ReadOnlyField").Bool(),
		})
	}
	return fields, nil
}

// retryable reports whether a failed request may succeed if sent again.
func retryable(err error) bool {
	var respErr *responseError
	if !errors.As(err, &respErr) {
		return true
	}
	return respErr.code == http.StatusTooManyRequests || respErr.code >= http.StatusInternalServerError
}
