// Package objectfilter builds the nested maps the API accepts as object
// filters.
//
//	f := objectfilter.New().
//		Set("virtualGuests.hostname", objectfilter.BeginsWith("web")).
//		Set("virtualGuests.id", objectfilter.OrderBy(objectfilter.Descending))
//
// produces
//
//	{"virtualGuests": {"hostname": {"operation": "^= web"},
//	                   "id": {"operation": "orderBy", "options": [...]}}}
package objectfilter

import (
	"fmt"
	"strings"
)

// Sort directions for OrderBy.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// Operation is the leaf of a filter: {"operation": ..., "options": ...}.
type Operation map[string]any

func op(value any) Operation {
	return Operation{"operation": value}
}

func unary(prefix string, v any) Operation {
	return op(fmt.Sprintf("%s %v", prefix, v))
}

// Is matches equality. Numbers are sent bare, which the API compares
// numerically; everything else uses the "_=" string operator.
func Is(v any) Operation {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return op(v)
	}
	return unary("_=", v)
}

func IsNot(v any) Operation { return unary("!=", v) }
func Contains(v string) Operation { return unary("*=", v) }
func BeginsWith(v string) Operation { return unary("^=", v) }
func EndsWith(v string) Operation { return unary("$=", v) }
func GreaterThan(v any) Operation { return unary(">", v) }
func LessThan(v any) Operation { return unary("<", v) }
func GreaterOrEqual(v any) Operation { return unary(">=", v) }
func LessOrEqual(v any) Operation { return unary("<=", v) }
func IsNull() Operation { return op("is null") }
func NotNull() Operation { return op("not null") }

// In matches any of values.
func In(values ...any) Operation {
	return Operation{
		"operation": "in",
		"options":   []any{map[string]any{"name": "data", "value": append([]any{}, values...)}},
	}
}

// OrderBy sorts results on the property; direction is Ascending or Descending.
func OrderBy(direction string) Operation {
	return Operation{
		"operation": "orderBy",
		"options":   []any{map[string]any{"name": "sort", "value": []any{strings.ToUpper(direction)}}},
	}
}

// Filter is a mutable filter under construction. The zero value is not
// usable; call New.
type Filter struct {
	root map[string]any
}

func New() *Filter {
	return &Filter{root: map[string]any{}}
}

// Set attaches operation at a dotted property path. Setting a path twice
// merges the operations, later keys winning.
func (f *Filter) Set(path string, operation Operation) *Filter {
	parts := strings.Split(path, ".")
	node := f.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[p] = next
		}
		node = next
	}
	leaf, ok := node[parts[len(parts)-1]].(map[string]any)
	if !ok {
		leaf = map[string]any{}
		node[parts[len(parts)-1]] = leaf
	}
	for k, v := range operation {
		leaf[k] = v
	}
	return f
}

// Map returns a deep copy of the filter.
func (f *Filter) Map() map[string]any {
	return deepCopy(f.root).(map[string]any)
}

func (f *Filter) IsEmpty() bool {
	return len(f.root) == 0
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}
