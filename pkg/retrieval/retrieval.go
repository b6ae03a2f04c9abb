// Package retrieval runs compiled list queries and aggregates the store's capped pages into
// complete result sets.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openfga/listquery/internal/keys"
	"github.com/openfga/listquery/pkg/caml"
	"github.com/openfga/listquery/pkg/encoder"
	"github.com/openfga/listquery/pkg/logger"
	"github.com/openfga/listquery/pkg/storage"
	"github.com/openfga/listquery/pkg/telemetry"
)

var tracer = otel.Tracer("listquery/pkg/retrieval")

// FirstPageCursorOffset is added to the cursor, on top of caml.PageCap, the first time a
// retrieval advances past a full page. The resulting cursor sequence is 0, 5001, 10001, ….
const FirstPageCursorOffset = 1

// ErrMaxPagesExceeded is returned when a retrieval is still receiving full pages after the
// configured maximum number of pages.
var ErrMaxPagesExceeded = errors.New("maximum number of pages exceeded")

var (
	pagesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listquery",
		Name:      "retrieval_pages_total",
		Help:      "The total number of pages requested by retrievals, by outcome.",
	}, []string{"outcome"})

	rowsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "listquery",
		Name:      "retrieval_rows",
		Help:      "The number of rows returned by completed retrievals.",
		Buckets:   []float64{0, 10, 100, 1000, 5000, 10000, 50000, 100000},
	})

	durationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "listquery",
		Name:      "retrieval_duration_ms",
		Help:      "The duration (in ms) of completed retrievals.",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
	})
)

// Retriever executes descriptors against a list store, following the store's cursor until the
// full result set has been read.
type Retriever struct {
	executor        storage.Executor
	schemaResolver  storage.SchemaResolver
	logger          logger.Logger
	tokenSerializer *encoder.CursorTokenSerializer
	maxPages        int
}

// RetrieverOption defines a function type used for configuring a Retriever.
type RetrieverOption func(*Retriever)

// WithSchemaResolver makes the retriever check requested columns against the list schema.
// Without it, the fields present on returned items are used instead.
func WithSchemaResolver(resolver storage.SchemaResolver) RetrieverOption {
	return func(r *Retriever) {
		r.schemaResolver = resolver
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = l
	}
}

// WithMaxPages bounds the number of pages a single retrieval may request. Zero, the default,
// means no bound.
func WithMaxPages(n int) RetrieverOption {
	return func(r *Retriever) {
		r.maxPages = n
	}
}

// WithTokenEncoder sets the encoder used for continuation tokens returned by ReadPage.
func WithTokenEncoder(e encoder.Encoder) RetrieverOption {
	return func(r *Retriever) {
		r.tokenSerializer = encoder.NewCursorTokenSerializer(e)
	}
}

// NewRetriever returns a Retriever that sends queries through executor.
func NewRetriever(executor storage.Executor, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		executor:        executor,
		logger:          logger.NewNoopLogger(),
		tokenSerializer: encoder.NewCursorTokenSerializer(nil),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// session is the state of one retrieval. It is never shared.
type session struct {
	id         ulid.ULID
	descriptor caml.Descriptor
	query      string
	schema     storage.FieldSet
	logger     logger.Logger

	cursor   int
	advanced bool
	pages    int
	rows     []Row
}

// Retrieve compiles the descriptor and returns every matching row, in the order the store
// returned them. Pages are requested one at a time; a page is requested again only while the
// previous one was full. Any error discards the rows gathered so far.
func (r *Retriever) Retrieve(ctx context.Context, d caml.Descriptor) ([]Row, error) {
	start := time.Now()

	s, err := r.newSession(ctx, d)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.String("list", d.List.String()),
		attribute.String("session", s.id.String()),
	))
	defer span.End()

	for {
		full, err := r.fetch(ctx, s)
		if err != nil {
			telemetry.TraceError(span, err)
			s.logger.DebugWithContext(ctx, "retrieval failed", zap.Int("pages", s.pages), zap.Error(err))
			return nil, err
		}
		if !full {
			break
		}
		if r.maxPages > 0 && s.pages >= r.maxPages {
			err := fmt.Errorf("%w: list '%s' after %d pages", ErrMaxPagesExceeded, d.List, s.pages)
			telemetry.TraceError(span, err)
			return nil, err
		}
		s.advance()
	}

	span.SetAttributes(attribute.Int("pages", s.pages), attribute.Int("rows", len(s.rows)))
	rowsHistogram.Observe(float64(len(s.rows)))
	durationHistogram.Observe(float64(time.Since(start).Milliseconds()))
	s.logger.DebugWithContext(ctx, "retrieval completed", zap.Int("pages", s.pages), zap.Int("rows", len(s.rows)))

	return s.rows, nil
}

// ReadPage returns a single page of rows and the token to pass to the next call, or an empty
// token once the last page has been read. An empty continuationToken starts at the
// descriptor's cursor.
func (r *Retriever) ReadPage(ctx context.Context, d caml.Descriptor, continuationToken string) ([]Row, string, error) {
	s, err := r.newSession(ctx, d)
	if err != nil {
		return nil, "", err
	}

	if continuationToken != "" {
		token, err := r.tokenSerializer.Deserialize(continuationToken, d.List.Key())
		if err != nil {
			return nil, "", err
		}
		s.cursor = token.Cursor
		s.advanced = token.Advanced
	}

	ctx, span := tracer.Start(ctx, "retrieval.ReadPage", trace.WithAttributes(
		attribute.String("list", d.List.String()),
		attribute.String("session", s.id.String()),
		attribute.Int("cursor", s.cursor),
	))
	defer span.End()

	full, err := r.fetch(ctx, s)
	if err != nil {
		telemetry.TraceError(span, err)
		return nil, "", err
	}
	if !full {
		return s.rows, "", nil
	}

	s.advance()
	next, err := r.tokenSerializer.Serialize(encoder.CursorToken{
		List:     d.List.Key(),
		Cursor:   s.cursor,
		Advanced: s.advanced,
	})
	if err != nil {
		return nil, "", err
	}
	return s.rows, next, nil
}

func (r *Retriever) newSession(ctx context.Context, d caml.Descriptor) (*session, error) {
	query, err := caml.Compile(d)
	if err != nil {
		return nil, err
	}

	s := &session{
		id:         ulid.Make(),
		descriptor: d,
		query:      query,
		cursor:     d.Cursor,
		rows:       []Row{},
	}
	s.logger = r.logger.With(
		zap.String("session", s.id.String()),
		zap.String("list", d.List.String()),
		zap.String("query_hash", keys.QueryFingerprint(d.List, query, d.Columns)),
	)

	if d.RawQuery != "" && len(d.Columns) > 0 {
		s.logger.DebugWithContext(ctx, "raw query replaces the compiled view; requested columns only drive projection")
	}

	if r.schemaResolver != nil {
		fields, err := r.schemaResolver.Fields(ctx, d.List)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fields of list '%s': %w", d.List, err)
		}
		s.schema = storage.NewFieldSet(fields)
		if d.Join != nil && d.RawQuery == "" {
			for _, c := range d.Join.ProjectedColumns {
				name := d.Join.ProjectedName(c)
				s.schema[name] = storage.Field{InternalName: name, Type: string(caml.Lookup), LookupList: d.Join.ForeignList, ReadOnly: true}
			}
		}
	}

	return s, nil
}

// fetch requests the page at the session's cursor and appends its projected rows. It reports
// whether the page was full, i.e. whether another page may follow.
func (r *Retriever) fetch(ctx context.Context, s *session) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.pages++
	page, err := r.executor.Execute(ctx, s.descriptor.List, s.query, s.cursor)
	if err != nil {
		pagesCounter.WithLabelValues("error").Inc()
		return false, err
	}

	rows, err := projectPage(s.descriptor.List, s.schema, page, s.descriptor.Columns)
	if err != nil {
		pagesCounter.WithLabelValues("error").Inc()
		return false, err
	}
	pagesCounter.WithLabelValues("ok").Inc()

	s.rows = append(s.rows, rows...)
	s.logger.DebugWithContext(ctx, "page fetched",
		zap.Int("cursor", s.cursor),
		zap.Int("size", page.Size()),
		zap.Int("total", len(s.rows)),
	)

	return page.Size() == caml.PageCap, nil
}

// advance moves the cursor past the page just read.
//
// TODO: the extra FirstPageCursorOffset on the first advance is kept for compatibility with the
// store's cursor handling; confirm whether the store's paging token is 1-based and remove the
// offset if it is not.
func (s *session) advance() {
	if !s.advanced && len(s.rows) == caml.PageCap {
		s.cursor += FirstPageCursorOffset
	}
	s.cursor += caml.PageCap
	s.advanced = true
}
