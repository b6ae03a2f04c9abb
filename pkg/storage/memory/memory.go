package memory

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfga/listquery/pkg/caml"
	"github.com/openfga/listquery/pkg/fieldvalue"
	"github.com/openfga/listquery/pkg/storage"
)

var tracer = otel.Tracer("listquery/pkg/storage/memory")

const (
	// Messages returned by the store for the corresponding failures.
	msgListNotFound    = "List '%s' does not exist at site with URL 'memory'."
	msgFieldNotFound   = "Column '%s' does not exist. It may have been deleted by another user."
	msgFieldReadOnly   = "Invalid data has been used to update the list item. The field you are trying to update may be read only."
	msgMalformedQuery  = "Cannot complete this action. Please try again."
	msgItemNotFound    = "Item does not exist. It may have been deleted by another user."
	msgFieldNotPresent = "One or more field types are not installed properly. Go to the list settings page to delete these fields."
)

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithPageCap sets the maximum number of items returned by a single Execute.
func WithPageCap(n int) StorageOption {
	return func(ds *MemoryBackend) { ds.pageCap = n }
}

type list struct {
	title  string
	fields []storage.Field
	items  []storage.Item
	nextID int
}

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.ListStore].
// These instances may be safely shared by multiple go-routines.
//
// Execute checks that the query is well formed and that every referenced field exists, then
// returns the list's items in insertion order, one page at a time. Predicates are not
// evaluated. The cursor is the store's 1-based position: a cursor of n > 0 starts at the
// n-th item.
type MemoryBackend struct {
	pageCap int

	// map: list guid => list
	lists map[string]*list // GUARDED_BY(mu).
	mu    sync.RWMutex
}

// Ensures that [MemoryBackend] implements the [storage.ListStore] interface.
var _ storage.ListStore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		pageCap: caml.PageCap,
		lists:   make(map[string]*list),
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// CreateList adds a list with the given title and fields and returns its identifier, a new
// GUID. The list can also be addressed by title. An ID counter field is always present.
func (s *MemoryBackend) CreateList(ctx context.Context, title string, fields []storage.Field) (storage.ListID, error) {
	_, span := tracer.Start(ctx, "memory.CreateList")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lists {
		if strings.EqualFold(l.title, title) {
			return storage.ListID{}, storage.RemoteExecutionError(fmt.Sprintf("A list, survey, discussion board, or document library with the specified title '%s' already exists in this Web site.", title))
		}
	}

	all := []storage.Field{{InternalName: "ID", Type: string(caml.Counter), ReadOnly: true}}
	for _, f := range fields {
		if f.InternalName != "ID" {
			all = append(all, f)
		}
	}

	guid := uuid.NewString()
	s.lists[guid] = &list{title: title, fields: all, nextID: 1}
	return storage.ListByGUID(guid), nil
}

// find must be called with mu held.
func (s *MemoryBackend) find(id storage.ListID) (*list, error) {
	if id.GUID != "" {
		if l, ok := s.lists[strings.ToLower(strings.Trim(id.GUID, "{}"))]; ok {
			return l, nil
		}
	} else {
		for _, l := range s.lists {
			if strings.EqualFold(l.title, id.Title) {
				return l, nil
			}
		}
	}
	return nil, storage.RemoteNotFoundError(fmt.Sprintf(msgListNotFound, id))
}

// Fields see [storage.SchemaResolver].Fields.
func (s *MemoryBackend) Fields(ctx context.Context, id storage.ListID) ([]storage.Field, error) {
	_, span := tracer.Start(ctx, "memory.Fields")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.fields), nil
}

// Execute see [storage.Executor].Execute.
func (s *MemoryBackend) Execute(ctx context.Context, id storage.ListID, query string, cursor int) (*storage.Page, error) {
	_, span := tracer.Start(ctx, "memory.Execute", trace.WithAttributes(attribute.Int("cursor", cursor)))
	defer span.End()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.find(id)
	if err != nil {
		return nil, err
	}

	refs, err := fieldRefs(query)
	if err != nil {
		return nil, storage.RemoteExecutionError(msgMalformedQuery)
	}
	schema := storage.NewFieldSet(l.fields)
	for _, r := range refs {
		if !schema.Has(r) {
			return nil, storage.RemoteExecutionError(msgFieldNotPresent)
		}
	}

	start := cursor
	if start > 0 {
		start--
	}
	start = min(start, len(l.items))
	end := min(start+s.pageCap, len(l.items))

	page := &storage.Page{Items: make([]storage.Item, 0, end-start)}
	for _, item := range l.items[start:end] {
		page.Items = append(page.Items, maps.Clone(item))
	}
	span.SetAttributes(attribute.Int("size", page.Size()))
	return page, nil
}

// Create see [storage.Writer].Create.
func (s *MemoryBackend) Create(ctx context.Context, id storage.ListID, values []storage.FieldValue) (int, error) {
	_, span := tracer.Start(ctx, "memory.Create")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.find(id)
	if err != nil {
		return 0, err
	}

	item := storage.Item{}
	if err := apply(l, item, values); err != nil {
		return 0, err
	}
	item["ID"] = l.nextID
	l.nextID++
	l.items = append(l.items, item)
	return item["ID"].(int), nil
}

// Update see [storage.Writer].Update.
func (s *MemoryBackend) Update(ctx context.Context, id storage.ListID, itemID int, values []storage.FieldValue) error {
	_, span := tracer.Start(ctx, "memory.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.find(id)
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(l.items, func(item storage.Item) bool { return item["ID"] == itemID })
	if idx < 0 {
		return storage.RemoteNotFoundError(msgItemNotFound)
	}

	updated := maps.Clone(l.items[idx])
	if err := apply(l, updated, values); err != nil {
		return err
	}
	l.items[idx] = updated
	return nil
}

// apply sets values on item. Nothing is written unless every value can be applied.
func apply(l *list, item storage.Item, values []storage.FieldValue) error {
	schema := storage.NewFieldSet(l.fields)
	for _, v := range values {
		f, ok := schema[v.Name]
		if !ok {
			return storage.RemoteExecutionError(fmt.Sprintf(msgFieldNotFound, v.Name))
		}
		if f.ReadOnly {
			return storage.RemoteExecutionError(msgFieldReadOnly)
		}
	}
	for _, v := range values {
		if _, ok := v.Value.(fieldvalue.Clear); ok {
			delete(item, v.Name)
			continue
		}
		item[v.Name] = v.Value
	}
	return nil
}

// fieldRefs returns the names of the local fields referenced by a query. References to
// foreign list fields and to projected join fields are left out.
func fieldRefs(query string) ([]string, error) {
	var refs []string
	projected := map[string]bool{}

	dec := xml.NewDecoder(strings.NewReader(query))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "FieldRef":
			if attr(el, "List") != "" {
				continue
			}
			if name := attr(el, "Name"); name != "" {
				refs = append(refs, name)
			}
		case "Field":
			projected[attr(el, "Name")] = true
		}
	}

	return slices.DeleteFunc(refs, func(r string) bool { return projected[r] }), nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
