package serialize

import (
	"fmt"
	"sort"
	"strconv"
)

type colKind int

const (
	colString colKind = iota
	colInt
	colFloat
	colBool
)

type column struct {
	name string
	kind colKind
}

// inferColumns derives an attribute schema from feature properties:
// first-occurrence order (keys sorted within each feature), numeric kinds
// promoted upward, anything mixed demoted to string.
func inferColumns(features []featureProps) []column {
	kinds := make(map[string]colKind)
	var order []string

	for _, props := range features {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			inferred := kindOf(props[k])
			if existing, ok := kinds[k]; ok {
				kinds[k] = promote(existing, inferred)
			} else {
				kinds[k] = inferred
				order = append(order, k)
			}
		}
	}

	cols := make([]column, 0, len(order))
	for _, name := range order {
		cols = append(cols, column{name: name, kind: kinds[name]})
	}
	return cols
}

type featureProps = map[string]interface{}

func kindOf(v interface{}) colKind {
	switch n := v.(type) {
	case bool:
		return colBool
	case int, int32, int64:
		return colInt
	case float64:
		// JSON decoding yields float64 for every number; keep integral
		// values as ints so DBF and SQLite schemas stay faithful.
		if n == float64(int64(n)) {
			return colInt
		}
		return colFloat
	case float32:
		return colFloat
	default:
		return colString
	}
}

func promote(a, b colKind) colKind {
	if a == b {
		return a
	}
	if (a == colInt && b == colFloat) || (a == colFloat && b == colInt) {
		return colFloat
	}
	return colString
}

// formatValue renders a property value for string-typed storage.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	}
	return 0
}

func asInt(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case int32:
		return int64(t)
	}
	return 0
}
