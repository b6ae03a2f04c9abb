package fieldvalue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openfga/listquery/pkg/storage"
)

// Descriptor is the loosely typed form of a column update, as found in JSON or YAML documents.
//
//	{"name": "Department", "type": "lookup", "lookupId": [3, 7, 9]}
//	{"name": "Homepage", "type": "Url", "url": "https://example.com", "description": "Example"}
//	{"name": "Owner", "type": "User", "value": "i:0#.f|membership|jane@example.com"}
type Descriptor struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Value       any     `json:"value,omitempty"`
	URL         *string `json:"url,omitempty"`
	Description *string `json:"description,omitempty"`
	LookupID    any     `json:"lookupId,omitempty"`
}

// FromDescriptor converts a loosely typed column update into a ColumnValue. The type tag is
// matched case-insensitively.
func FromDescriptor(d Descriptor) (ColumnValue, error) {
	if d.Name == "" {
		return nil, storage.FieldMappingError("", "descriptor has no column name")
	}

	switch strings.ToLower(d.Type) {
	case "url":
		if d.URL == nil {
			return nil, storage.FieldMappingError(d.Name, "url value has no url")
		}
		if d.Description == nil {
			return nil, storage.FieldMappingError(d.Name, "url value has no description")
		}
		return URL{Name: d.Name, URL: *d.URL, Description: *d.Description}, nil
	case "lookup", "lookupmulti":
		ids, multi, err := lookupIDs(d.LookupID)
		if err != nil {
			return nil, storage.FieldMappingError(d.Name, "%s", err)
		}
		return Lookup{Name: d.Name, IDs: ids, Multi: multi || strings.EqualFold(d.Type, "lookupmulti")}, nil
	case "user", "usermulti":
		identities, err := stringList(d.Value)
		if err != nil {
			return nil, storage.FieldMappingError(d.Name, "%s", err)
		}
		return User{Name: d.Name, Identities: identities}, nil
	case "multichoice":
		values, err := stringList(d.Value)
		if err != nil {
			return nil, storage.FieldMappingError(d.Name, "%s", err)
		}
		return MultiChoice{Name: d.Name, Values: values}, nil
	case "text", "note":
		s, ok := d.Value.(string)
		if !ok && d.Value != nil {
			return Generic{Name: d.Name, Value: d.Value}, nil
		}
		return Text{Name: d.Name, Value: s}, nil
	case "number", "currency":
		if f, ok := d.Value.(float64); ok {
			return Number{Name: d.Name, Value: f}, nil
		}
		return Generic{Name: d.Name, Value: d.Value}, nil
	case "choice", "boolean", "datetime":
		return Generic{Name: d.Name, Value: d.Value}, nil
	default:
		return nil, storage.FieldMappingError(d.Name, "unknown column type '%s'", d.Type)
	}
}

// MapDescriptorsForWrite converts and maps every loosely typed column update.
func MapDescriptorsForWrite(descriptors []Descriptor) ([]storage.FieldValue, error) {
	values := make([]ColumnValue, 0, len(descriptors))
	for _, d := range descriptors {
		cv, err := FromDescriptor(d)
		if err != nil {
			return nil, err
		}
		values = append(values, cv)
	}
	return MapAllForWrite(values)
}

// lookupIDs accepts a single id (number or numeric string) or a sequence of ids. An empty
// string or no value yields no ids.
func lookupIDs(v any) ([]int, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case []any:
		ids := make([]int, 0, len(t))
		for _, e := range t {
			id, err := lookupID(e)
			if err != nil {
				return nil, true, err
			}
			ids = append(ids, id)
		}
		return ids, true, nil
	case []int:
		return t, true, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false, nil
		}
	}

	id, err := lookupID(v)
	if err != nil {
		return nil, false, err
	}
	return []int{id}, false, nil
}

func lookupID(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("lookup id %v is not an integer", t)
		}
		return int(t), nil
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("lookup id '%s' is not an integer", t)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported lookup id %v", v)
	}
}

// stringList accepts a single string or a sequence of strings.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		values := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported value %v", e)
			}
			values = append(values, s)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported value %v", v)
	}
}
