package fieldvalue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const multiValueSeparator = ";#"

// FormValue renders a mapped value as the text the store's form validation endpoint expects.
func FormValue(v any) (string, error) {
	switch t := v.(type) {
	case nil, Clear:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case URLValue:
		// A comma separates url and description, so commas inside the url are doubled.
		return strings.ReplaceAll(t.URL, ",", ",,") + ", " + t.Description, nil
	case LookupValue:
		return strconv.Itoa(t.ID), nil
	case []LookupValue:
		parts := make([]string, 0, len(t))
		for _, ref := range t {
			parts = append(parts, strconv.Itoa(ref.ID)+multiValueSeparator)
		}
		return strings.Join(parts, multiValueSeparator), nil
	case []UserValue:
		keys := make([]map[string]string, 0, len(t))
		for _, ref := range t {
			keys = append(keys, map[string]string{"Key": ref.Identity})
		}
		b, err := json.Marshal(keys)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case []string:
		if len(t) == 0 {
			return "", nil
		}
		return multiValueSeparator + strings.Join(t, multiValueSeparator) + multiValueSeparator, nil
	default:
		return fmt.Sprint(v), nil
	}
}
