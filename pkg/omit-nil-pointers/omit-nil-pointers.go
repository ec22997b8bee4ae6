package omitnilpointers

import (
	"log/slog"
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// OmitNilPointers drops nil values and nil pointers from fields and
// dereferences the remaining pointers.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				continue
			}
			omitted[key] = v.Elem().Interface()
		} else {
			omitted[key] = value
		}
	}

	return omitted
}

// GroupValue is OmitNilPointers rendered as a slog group with sorted keys, for
// use in LogValue methods of partial-update types.
func GroupValue(fields map[string]any) slog.Value {
	omitted := OmitNilPointers(fields)
	keys := maps.Keys(omitted)
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, omitted[key]))
	}

	return slog.GroupValue(attrs...)
}
