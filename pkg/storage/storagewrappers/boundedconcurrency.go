package storagewrappers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfga/listquery/pkg/storage"
)

var _ storage.ListStore = (*boundedConcurrencyListStore)(nil)

var (
	timeWaitingHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "listquery",
		Name:      "time_waiting_for_store_requests_ms",
		Help:      "Time (in ms) spent waiting for Execute and Fields calls to the list store",
		Buckets:   []float64{1, 10, 25, 50, 100, 1000, 5000}, // milliseconds
	}, []string{"operation"})
)

type boundedConcurrencyListStore struct {
	storage.ListStore
	limiter chan struct{}
}

// NewBoundedConcurrencyListStore returns a wrapper over a list store that makes sure that there are,
// at most, n concurrent calls to Execute and Fields. Writes are not limited.
// Consumers can then rest assured that one caller will not exhaust the site's request quota.
func NewBoundedConcurrencyListStore(wrapped storage.ListStore, n uint32) *boundedConcurrencyListStore {
	return &boundedConcurrencyListStore{
		ListStore: wrapped,
		limiter:   make(chan struct{}, n),
	}
}

// acquire waits for a free slot. It fails only if ctx is done first.
func (b *boundedConcurrencyListStore) acquire(ctx context.Context, operation string) error {
	start := time.Now()

	select {
	case b.limiter <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	timeWaiting := time.Since(start).Milliseconds()
	timeWaitingHistogram.WithLabelValues(operation).Observe(float64(timeWaiting))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int64("time_waiting", timeWaiting))
	return nil
}

func (b *boundedConcurrencyListStore) release() {
	<-b.limiter
}

// Execute see [storage.Executor].Execute.
func (b *boundedConcurrencyListStore) Execute(ctx context.Context, list storage.ListID, query string, cursor int) (*storage.Page, error) {
	if err := b.acquire(ctx, "Execute"); err != nil {
		return nil, err
	}
	defer b.release()

	return b.ListStore.Execute(ctx, list, query, cursor)
}

// Fields see [storage.SchemaResolver].Fields.
func (b *boundedConcurrencyListStore) Fields(ctx context.Context, list storage.ListID) ([]storage.Field, error) {
	if err := b.acquire(ctx, "Fields"); err != nil {
		return nil, err
	}
	defer b.release()

	return b.ListStore.Fields(ctx, list)
}
