// Package mask flattens structs into ordered maps for logging, hiding fields tagged `mask:"true"`.
package mask

import (
	"fmt"
	"reflect"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const tagName = "mask"

// StructToOrdMap returns the fields of v as an ordered map.
//
// Field names come from the json tag, then the yaml tag, then the Go name;
// a "-" tag drops the field. Nested structs are flattened with dotted names.
// Non-zero fields tagged `mask:"true"` are replaced by a kind marker such as
// "***masked-string***". Byte slices are replaced by their length.
func StructToOrdMap(v any) *orderedmap.OrderedMap[string, any] {
	if v == nil {
		return nil
	}
	om := orderedmap.New[string, any]()
	flatten(om, reflect.ValueOf(v), "")
	return om
}

func flatten(om *orderedmap.OrderedMap[string, any], val reflect.Value, prefix string) {
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			om.Set(prefix, nil)
			return
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		om.Set(prefix, plain(val))
		return
	}

	typ := val.Type()
	for i := range val.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		name, skip := fieldName(field)
		if skip {
			continue
		}
		if field.Anonymous && field.Tag.Get("json") == "" {
			// embedded structs contribute their fields at the same level
			flatten(om, val.Field(i), prefix)
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		fv := val.Field(i)
		switch {
		case strings.EqualFold(field.Tag.Get(tagName), "true"):
			om.Set(name, masked(fv))
		case isStruct(fv):
			flatten(om, fv, name)
		default:
			om.Set(name, plain(fv))
		}
	}
}

func isStruct(val reflect.Value) bool {
	if val.Kind() == reflect.Pointer {
		return !val.IsNil() && val.Elem().Kind() == reflect.Struct
	}
	return val.Kind() == reflect.Struct
}

// plain returns the loggable form of a value. Byte slices are summarized
// because request payloads may carry whole file bodies.
func plain(val reflect.Value) any {
	if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8 {
		return fmt.Sprintf("<%d bytes>", val.Len())
	}
	return val.Interface()
}

func masked(val reflect.Value) any {
	switch val.Kind() { //nolint:exhaustive // remaining kinds fall through to the zero check
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		if val.IsNil() {
			return nil
		}
	}
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if val.IsZero() {
		return val.Interface()
	}

	kind := val.Kind()
	switch kind { //nolint:exhaustive // grouped by family
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "***masked-int***"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "***masked-uint***"
	case reflect.Float32, reflect.Float64:
		return "***masked-float***"
	case reflect.Slice, reflect.Array:
		return "***masked-slice***"
	default:
		return fmt.Sprintf("***masked-%s***", kind)
	}
}

// fieldName picks the json tag, then the yaml tag, then the Go field name.
func fieldName(field reflect.StructField) (string, bool) {
	for _, key := range []string{"json", "yaml"} {
		tag, ok := field.Tag.Lookup(key)
		if !ok {
			continue
		}
		if tag == "-" {
			return "", true
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name, false
		}
	}
	return field.Name, false
}
