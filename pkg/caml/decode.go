package caml

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/openfga/listquery/pkg/storage"
)

// whereDocument is the serialised form of a Where. A document with Children is a Compound;
// otherwise it is a Leaf whose Value is either a string, a number or a list of those.
type whereDocument struct {
	Op       Op              `json:"op"`
	Column   string          `json:"column,omitempty"`
	Type     ValueType       `json:"type,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Children []whereDocument `json:"children,omitempty"`
}

type descriptorDocument struct {
	List     storage.ListID `json:"list"`
	Columns  []string       `json:"columns,omitempty"`
	RawQuery string         `json:"rawQuery,omitempty"`
	Where    *whereDocument `json:"where,omitempty"`
	Join     *Join          `json:"join,omitempty"`
	Cursor   int            `json:"cursor,omitempty"`
}

// ParseDescriptor decodes a descriptor from its YAML or JSON document form, e.g.
//
//	list: {title: Tasks}
//	columns: [ID, Title, Department]
//	where:
//	  op: And
//	  children:
//	  - {op: Eq, column: Department, type: Lookup, value: 42}
//	  - {op: In, column: Status, type: Choice, value: [Open, Blocked]}
func ParseDescriptor(data []byte) (Descriptor, error) {
	var doc descriptorDocument
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return Descriptor{}, storage.DescriptorError("%s", err)
	}

	d := Descriptor{
		List:     doc.List,
		Columns:  doc.Columns,
		RawQuery: doc.RawQuery,
		Join:     doc.Join,
		Cursor:   doc.Cursor,
	}
	if doc.Where != nil {
		w, err := doc.Where.toWhere()
		if err != nil {
			return Descriptor{}, err
		}
		d.Where = w
	}
	if err := Validate(d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (w whereDocument) toWhere() (Where, error) {
	if len(w.Children) > 0 || w.Op.IsLogical() {
		children := make([]Where, 0, len(w.Children))
		for _, c := range w.Children {
			child, err := c.toWhere()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return Compound{Op: w.Op, Children: children}, nil
	}

	leaf := Leaf{Column: w.Column, Op: w.Op, Type: w.Type}
	if len(w.Value) == 0 || string(w.Value) == "null" {
		return leaf, nil
	}

	var raw any
	if err := json.Unmarshal(w.Value, &raw); err != nil {
		return nil, storage.CompilationError("column '%s': %s", w.Column, err)
	}
	switch v := raw.(type) {
	case []any:
		values := make(Values, 0, len(v))
		for _, e := range v {
			s, err := literal(e)
			if err != nil {
				return nil, storage.CompilationError("column '%s': %s", w.Column, err)
			}
			values = append(values, s)
		}
		leaf.Value = values
	default:
		s, err := literal(v)
		if err != nil {
			return nil, storage.CompilationError("column '%s': %s", w.Column, err)
		}
		leaf.Value = Scalar(s)
	}
	return leaf, nil
}

func literal(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return fmt.Sprint(t), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("unsupported value %v", v)
	}
}
