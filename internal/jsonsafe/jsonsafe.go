// Copyright 2025 Alshival
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jsonsafe converts arbitrary Go values into trees that
// encoding/json can always marshal.
package jsonsafe

import (
	"encoding"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"time"
)

// MaxDepth bounds recursion into nested containers. Deeper values are
// replaced by their string form.
const MaxDepth = 32

// Value returns v as a JSON-safe value: nil, bool, string, float64, int64,
// uint64, []any or map[string]any. Anything else is replaced by its string
// form. Non-finite floats become strings.
func Value(v any) any {
	return sanitize(v, 0)
}

// Map sanitizes each value of m. A nil map yields an empty, non-nil map.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitize(v, 1)
	}
	return out
}

func sanitize(v any, depth int) any {
	if depth > MaxDepth {
		return fmt.Sprintf("%T", v)
	}
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return uint64(val)
	case uint8:
		return uint64(val)
	case uint16:
		return uint64(val)
	case uint32:
		return uint64(val)
	case uint64:
		return val
	case float32:
		return finite(float64(val))
	case float64:
		return finite(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return val.String()
	case error:
		return guarded(v, val.Error)
	case slog.Value:
		return sanitizeSlogValue(val, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitize(item, depth+1)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitize(item, depth+1)
		}
		return out
	case fmt.Stringer:
		return guarded(v, val.String)
	case encoding.TextMarshaler:
		return guarded(v, func() string {
			if b, err := val.MarshalText(); err == nil {
				return string(b)
			}
			return fmt.Sprint(val)
		})
	}
	return sanitizeReflect(reflect.ValueOf(v), depth)
}

// sanitizeReflect handles container kinds not covered by the type switch.
func sanitizeReflect(rv reflect.Value, depth int) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		elem := rv.Elem()
		if elem.Kind() == reflect.Struct {
			return fmt.Sprint(elem.Interface())
		}
		return sanitize(elem.Interface(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitize(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			out[fmt.Sprint(key.Interface())] = sanitize(rv.MapIndex(key).Interface(), depth+1)
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Invalid:
		return nil
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func sanitizeSlogValue(v slog.Value, depth int) any {
	rv := v.Resolve()
	if rv.Kind() != slog.KindGroup {
		return sanitize(rv.Any(), depth)
	}
	attrs := rv.Group()
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		out[a.Key] = sanitizeSlogValue(a.Value, depth+1)
	}
	return out
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}

// guarded calls fn, recovering from panics raised by nil receivers. A nil
// pointer whose method panics becomes nil; any other panic yields the type
// name.
func guarded(v any, fn func() string) (out any) {
	defer func() {
		if r := recover(); r != nil {
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
				out = nil
				return
			}
			out = fmt.Sprintf("%T", v)
		}
	}()
	return fn()
}
