// Package lookup expands lookup references in retrieved rows into the referenced items.
package lookup

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openfga/listquery/internal/concurrency"
	"github.com/openfga/listquery/pkg/caml"
	"github.com/openfga/listquery/pkg/logger"
	"github.com/openfga/listquery/pkg/retrieval"
	"github.com/openfga/listquery/pkg/storage"
	"github.com/openfga/listquery/pkg/telemetry"
)

var tracer = otel.Tracer("listquery/pkg/lookup")

const (
	defaultMaxConcurrency = 8
	idColumn              = "ID"
)

// Expansion describes one lookup column to expand.
type Expansion struct {
	// Column is the lookup column of the retrieved rows.
	Column string
	// ForeignList is the list the lookup column points to.
	ForeignList storage.ListID
	// Columns are the columns read from the referenced items. ID is always read.
	Columns []string
	// As is the row key the referenced items are stored under. It defaults to Column, which
	// replaces the reference with the item.
	As string
}

// Expander resolves lookup references with a bounded number of concurrent retrievals.
type Expander struct {
	retriever      *retrieval.Retriever
	maxConcurrency int
	logger         logger.Logger
}

// ExpanderOption defines a function type used for configuring an Expander.
type ExpanderOption func(*Expander)

// WithMaxConcurrency sets how many retrievals may run at once.
func WithMaxConcurrency(n int) ExpanderOption {
	return func(e *Expander) {
		e.maxConcurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ExpanderOption {
	return func(e *Expander) {
		e.logger = l
	}
}

// NewExpander returns an Expander reading referenced items through retriever.
func NewExpander(retriever *retrieval.Retriever, opts ...ExpanderOption) *Expander {
	e := &Expander{
		retriever:      retriever,
		maxConcurrency: defaultMaxConcurrency,
		logger:         logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces, or adds under x.As, the lookup references of x.Column in every row by the
// referenced rows of x.ForeignList. A single-valued reference becomes a retrieval.Row, a
// multi-valued one a []retrieval.Row, and a reference to a missing item nil. Referenced items
// are read in batches of caml.MaxInValues identifiers. Rows are modified in place and are left
// untouched on error.
func (e *Expander) Expand(ctx context.Context, rows []retrieval.Row, x Expansion) error {
	if x.Column == "" {
		return storage.DescriptorError("no lookup column to expand")
	}
	as := x.As
	if as == "" {
		as = x.Column
	}

	refs := make([][]int, len(rows))
	multi := make([]bool, len(rows))
	var ids []int
	seen := map[int]bool{}
	for i, row := range rows {
		v, ok := row[x.Column]
		if !ok || v == nil {
			continue
		}
		parsed, isMulti, err := ParseIDs(v)
		if err != nil {
			return storage.FieldMappingError(x.Column, "%v", err)
		}
		refs[i], multi[i] = parsed, isMulti
		for _, id := range parsed {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	ctx, span := tracer.Start(ctx, "lookup.Expand", trace.WithAttributes(
		attribute.String("column", x.Column),
		attribute.Int("ids", len(ids)),
	))
	defer span.End()

	items, err := e.fetch(ctx, x, ids)
	if err != nil {
		telemetry.TraceError(span, err)
		return err
	}
	e.logger.DebugWithContext(ctx, "lookup references resolved",
		zap.String("column", x.Column),
		zap.Int("ids", len(ids)),
		zap.Int("found", len(items)),
	)

	for i, row := range rows {
		if _, ok := row[x.Column]; !ok {
			continue
		}
		if multi[i] {
			expanded := make([]retrieval.Row, 0, len(refs[i]))
			for _, id := range refs[i] {
				if item, ok := items[id]; ok {
					expanded = append(expanded, item)
				}
			}
			row[as] = expanded
			continue
		}
		if len(refs[i]) == 0 {
			row[as] = nil
			continue
		}
		if item, ok := items[refs[i][0]]; ok {
			row[as] = item
		} else {
			row[as] = nil
		}
	}
	return nil
}

func (e *Expander) fetch(ctx context.Context, x Expansion, ids []int) (map[int]retrieval.Row, error) {
	columns := x.Columns
	if !slices.Contains(columns, idColumn) {
		columns = append([]string{idColumn}, columns...)
	}

	var mu sync.Mutex
	items := make(map[int]retrieval.Row, len(ids))

	pool := concurrency.NewPool(ctx, e.maxConcurrency)
	for _, batch := range caml.Batch(ids, caml.MaxInValues) {
		values := make(caml.Values, 0, len(batch))
		for _, id := range batch {
			values = append(values, strconv.Itoa(id))
		}

		pool.Go(func(ctx context.Context) error {
			rows, err := e.retriever.Retrieve(ctx, caml.Descriptor{
				List:    x.ForeignList,
				Columns: columns,
				Where:   caml.Leaf{Column: idColumn, Op: caml.In, Value: values, Type: caml.Counter},
			})
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, row := range rows {
				ids, _, err := ParseIDs(row[idColumn])
				if err != nil || len(ids) != 1 {
					return storage.FieldMappingError(idColumn, "unexpected item id %v", row[idColumn])
				}
				items[ids[0]] = row
			}
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// ParseIDs returns the item identifiers of a raw lookup value, and whether the value is
// multi-valued. It accepts numbers, numeric strings, "id;#value" strings (repeated for
// multi-valued lookups), objects carrying a LookupId and sequences of those.
func ParseIDs(v any) ([]int, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case int:
		return []int{t}, false, nil
	case int64:
		return []int{int(t)}, false, nil
	case float64:
		if t != float64(int(t)) {
			return nil, false, fmt.Errorf("lookup id %v is not an integer", t)
		}
		return []int{int(t)}, false, nil
	case string:
		return parseIDString(t)
	case map[string]any:
		id, ok := t["LookupId"]
		if !ok {
			return nil, false, fmt.Errorf("lookup value has no LookupId")
		}
		ids, _, err := ParseIDs(id)
		return ids, false, err
	case []any:
		var ids []int
		for _, e := range t {
			parsed, _, err := ParseIDs(e)
			if err != nil {
				return nil, false, err
			}
			ids = append(ids, parsed...)
		}
		return ids, true, nil
	case []int:
		return slices.Clone(t), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported lookup value %T", v)
	}
}

// parseIDString parses "7", "7;#Title" and "7;#Title;#9;#Other".
func parseIDString(s string) ([]int, bool, error) {
	if s == "" {
		return nil, false, nil
	}
	parts := strings.Split(s, ";#")
	if len(parts) == 1 {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, false, fmt.Errorf("lookup id '%s' is not an integer", s)
		}
		return []int{id}, false, nil
	}

	var ids []int
	for i := 0; i < len(parts); i += 2 {
		id, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return nil, false, fmt.Errorf("lookup id '%s' is not an integer", parts[i])
		}
		ids = append(ids, id)
	}
	return ids, len(ids) > 1, nil
}
