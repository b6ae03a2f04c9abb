// Package rest implements the storage interfaces against a site's REST `_api` endpoint.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/openfga/listquery/pkg/logger"
	"github.com/openfga/listquery/pkg/storage"
	"github.com/openfga/listquery/pkg/telemetry"
)

var tracer = otel.Tracer("listquery/pkg/storage/rest")

var requestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace:                       "listquery",
	Name:                            "rest_request_duration_ms",
	Help:                            "The duration (in ms) of requests to the site's REST api, by operation and status code.",
	Buckets:                         []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	NativeHistogramBucketFactor:     1.1,
	NativeHistogramMaxBucketNumber:  100,
	NativeHistogramMinResetDuration: time.Hour,
}, []string{"operation", "code"})

const (
	acceptHeader      = "application/json;odata=nometadata"
	contentTypeHeader = "application/json;odata=nometadata"

	defaultTimeout = 30 * time.Second
)

// RequestEditor is applied to every request before it is sent, typically to add credentials.
type RequestEditor func(ctx context.Context, req *http.Request) error

// ClientOption defines a function type used for configuring a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets the client used to send requests. It must already carry whatever session
// the site requires.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient.HTTPClient = c
	}
}

// WithRequestEditor adds a function applied to every outgoing request.
func WithRequestEditor(fn RequestEditor) ClientOption {
	return func(client *Client) {
		client.editors = append(client.editors, fn)
	}
}

// WithBearerToken authorises every request with the given bearer token.
func WithBearerToken(token string) ClientOption {
	return WithRequestEditor(func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// WithTimeout sets the timeout applied to each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = d
	}
}

// WithSchemaRetryMaxElapsedTime bounds how long field metadata requests are retried.
func WithSchemaRetryMaxElapsedTime(d time.Duration) ClientOption {
	return func(client *Client) {
		client.schemaRetryMaxElapsedTime = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

// Client talks to one site. It implements [storage.ListStore] and may be shared by multiple
// go-routines.
type Client struct {
	siteURL                   *url.URL
	httpClient                *retryablehttp.Client
	editors                   []RequestEditor
	timeout                   time.Duration
	schemaRetryMaxElapsedTime time.Duration
	logger                    logger.Logger
}

var _ storage.ListStore = (*Client)(nil)

// New returns a client for the site at siteURL.
func New(siteURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid site url '%s': %w", siteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid site url '%s': scheme must be http or https", siteURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	// Queries and writes are never retried: the caller owns retry policy.
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		siteURL:                   u,
		httpClient:                httpClient,
		timeout:                   defaultTimeout,
		schemaRetryMaxElapsedTime: backOffMaxDuration,
		logger:                    logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// listPath returns the api path of a list, relative to the site.
func listPath(list storage.ListID) string {
	if list.GUID != "" {
		return fmt.Sprintf("_api/web/lists(guid'%s')", strings.Trim(list.GUID, "{}"))
	}
	return fmt.Sprintf("_api/web/lists/getbytitle('%s')", url.PathEscape(strings.ReplaceAll(list.Title, "'", "''")))
}

func (c *Client) endpoint(list storage.ListID, path string) string {
	return c.siteURL.String() + "/" + listPath(list) + path
}

// responseError is a non-2xx response. Error returns the store's own message when the
// response carries one.
type responseError struct {
	code int
	err  error
}

func (e *responseError) Error() string { return e.err.Error() }
func (e *responseError) Unwrap() error { return e.err }

// do sends a request and returns the response body of a successful response. Failures
// reported by the store are returned as errors matching storage.ErrRemoteExecution whose
// message is the store's; a 404 also matches storage.ErrNotFound.
func (c *Client) do(ctx context.Context, operation, method, endpoint string, body any) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "rest."+operation)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeHeader)
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req.Request); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.TraceError(span, err)
		requestDurationHistogram.WithLabelValues(operation, "error").Observe(float64(time.Since(start).Milliseconds()))
		return nil, err
	}
	defer resp.Body.Close()

	requestDurationHistogram.WithLabelValues(operation, fmt.Sprint(resp.StatusCode)).Observe(float64(time.Since(start).Milliseconds()))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := errorMessage(data)
		if message == "" {
			message = resp.Status
		}
		c.logger.DebugWithContext(ctx, "request rejected",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)

		err := storage.RemoteExecutionError(message)
		if resp.StatusCode == http.StatusNotFound {
			err = storage.RemoteNotFoundError(message)
		}
		telemetry.TraceError(span, err)
		return nil, &responseError{code: resp.StatusCode, err: err}
	}

	return data, nil
}

// errorMessage extracts the store's message from an error response body.
func errorMessage(body []byte) string {
	for _, path := range []string{
		"error.message.value",
		`odata\.error.message.value`,
		"error.message",
		"error_description",
	} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}

// results returns the array of a collection response, in either the verbose or the
// nometadata shape.
func results(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, storage.RemoteExecutionError("invalid response from the store")
	}
	for _, path := range []string{"value", "d.results"} {
		if r := gjson.GetBytes(body, path); r.IsArray() {
			return r, nil
		}
	}
	return gjson.Result{}, storage.RemoteExecutionError("invalid response from the store")
}
