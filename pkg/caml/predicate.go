package caml

import (
	"strconv"
	"strings"

	"github.com/openfga/listquery/pkg/storage"
)

// MaxInValues is the largest number of literal values the store accepts in one In clause.
const MaxInValues = 60

// CompilePredicate renders a where clause as a predicate fragment of the query dialect.
func CompilePredicate(w Where) (string, error) {
	var sb strings.Builder
	if err := writeWhere(&sb, w); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeWhere(sb *strings.Builder, w Where) error {
	switch node := w.(type) {
	case Leaf:
		return writeLeaf(sb, node)
	case *Leaf:
		if node == nil {
			return storage.CompilationError("nil leaf")
		}
		return writeLeaf(sb, *node)
	case Compound:
		return writeCompound(sb, node)
	case *Compound:
		if node == nil {
			return storage.CompilationError("nil compound")
		}
		return writeCompound(sb, *node)
	case nil:
		return storage.CompilationError("empty where clause")
	default:
		return storage.CompilationError("unsupported where clause %T", w)
	}
}

func writeCompound(sb *strings.Builder, c Compound) error {
	if !c.Op.IsLogical() {
		return storage.CompilationError("operator '%s' cannot combine clauses", c.Op)
	}
	if len(c.Children) < 2 {
		return storage.CompilationError("'%s' requires at least 2 clauses, got %d", c.Op, len(c.Children))
	}

	open(sb, string(c.Op))
	for _, child := range c.Children {
		if err := writeWhere(sb, child); err != nil {
			return err
		}
	}
	closeTag(sb, string(c.Op))
	return nil
}

func writeLeaf(sb *strings.Builder, l Leaf) error {
	if l.Column == "" {
		return storage.CompilationError("'%s' clause has no column", l.Op)
	}
	if !l.Op.IsComparison() {
		return storage.CompilationError("unknown operator '%s' on column '%s'", l.Op, l.Column)
	}

	hasValue := l.Value != nil && !l.Value.empty()

	if values, ok := l.Value.(Values); ok && l.Op != In && hasValue {
		return storage.CompilationError("operator '%s' on column '%s' takes a single value, got %d", l.Op, l.Column, len(values))
	}
	if hasValue && l.Type == "" && l.Op != Membership {
		return storage.CompilationError("column '%s' has a value but no value type", l.Column)
	}

	if !hasValue {
		open(sb, string(l.Op))
		fieldRef(sb, l.Column, false)
		closeTag(sb, string(l.Op))
		return nil
	}

	switch l.Op {
	case In:
		writeIn(sb, l)
	case Membership:
		sb.WriteString(`<Membership Type="`)
		sb.WriteString(escape(string(l.Value.(Scalar))))
		sb.WriteString(`">`)
		fieldRef(sb, l.Column, false)
		closeTag(sb, string(Membership))
	default:
		v := string(l.Value.(Scalar))
		open(sb, string(l.Op))
		fieldRef(sb, l.Column, l.Type.isLookup() && isNumeric(v))
		value(sb, l.Type, v)
		closeTag(sb, string(l.Op))
	}
	return nil
}

// writeIn emits one In clause, or one per batch of MaxInValues wrapped in a single Or when
// the values exceed the store's limit.
func writeIn(sb *strings.Builder, l Leaf) {
	var values []string
	switch v := l.Value.(type) {
	case Values:
		values = v
	case Scalar:
		values = []string{string(v)}
	}

	if len(values) <= MaxInValues {
		writeInBatch(sb, l, values)
		return
	}

	open(sb, string(Or))
	for _, batch := range Batch(values, MaxInValues) {
		writeInBatch(sb, l, batch)
	}
	closeTag(sb, string(Or))
}

func writeInBatch(sb *strings.Builder, l Leaf, values []string) {
	byID := l.Type.isLookup()
	for _, v := range values {
		if !isNumeric(v) {
			byID = false
			break
		}
	}

	open(sb, string(In))
	fieldRef(sb, l.Column, byID)
	open(sb, "Values")
	for _, v := range values {
		value(sb, l.Type, v)
	}
	closeTag(sb, "Values")
	closeTag(sb, string(In))
}

// Batch splits values into consecutive batches of at most size elements, in order.
func Batch[T any](values []T, size int) [][]T {
	if size <= 0 {
		return [][]T{values}
	}
	batches := make([][]T, 0, (len(values)+size-1)/size)
	for size < len(values) {
		values, batches = values[size:], append(batches, values[:size:size])
	}
	if len(values) > 0 {
		batches = append(batches, values)
	}
	return batches
}

// isNumeric reports whether s is an integer item id.
func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
