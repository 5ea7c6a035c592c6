package protocol

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Normalize converts an arbitrary Go value into the canonical shapes the codecs
// understand: nil, bool, int, float64, string, []byte, time.Time,
// map[string]any, []any and KeyedArray.
//
// Pointers are dereferenced, named types are unwrapped, structs become maps
// keyed by their json tag (or field name), nil slices and maps become nil.
// Channels, funcs and maps with non-string keys are rejected.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, int, float64, string, []byte, time.Time:
		return x, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case KeyedArray:
		out := make(KeyedArray, len(x))
		for k, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

func normalizeValue(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt {
			return nil, fmt.Errorf("integer %d overflows int", u)
		}
		return int(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
		return normalizeSequence(rv)
	case reflect.Array:
		return normalizeSequence(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return rv.Convert(timeType).Interface(), nil
		}
		out := make(map[string]any)
		if err := normalizeStruct(rv, out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", rv.Type())
	}
}

func normalizeSequence(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		n, err := Normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// normalizeStruct follows the encoding/json field rules that matter for API
// payloads: json names, "-", omitempty and promoted fields of embedded structs.
func normalizeStruct(rv reflect.Value, out map[string]any) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)

		if field.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if err := normalizeStruct(inner, out); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() || !fv.CanInterface() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		n, err := Normalize(fv.Interface())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = n
	}
	return nil
}
