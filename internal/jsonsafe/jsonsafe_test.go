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

package jsonsafe

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"
)

type point struct{ X, Y int }

type label string

type stringer struct{ name string }

func (s *stringer) String() string { return "stringer:" + s.name }

type codeError struct{ code int }

func (e *codeError) Error() string { return fmt.Sprintf("code %d", e.code) }

type token struct{ raw string }

func (t *token) MarshalText() ([]byte, error) { return []byte(t.raw), nil }

type brokenStringer struct{}

func (brokenStringer) String() string { panic("no string form") }

// TestValueScalars verifies primitive conversions.
func TestValueScalars(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 6, time.FixedZone("X", 3600))
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "hi", "hi"},
		{"bool", true, true},
		{"int", 7, int64(7)},
		{"uint8", uint8(3), uint64(3)},
		{"float", 1.5, 1.5},
		{"nan", math.NaN(), "NaN"},
		{"inf", math.Inf(1), "+Inf"},
		{"time", ts, "2025-01-02T02:04:05.000000006Z"},
		{"duration", 2 * time.Second, "2s"},
		{"error", errors.New("boom"), "boom"},
		{"named string", label("x"), "x"},
		{"bytes", []byte("raw"), "raw"},
		{"struct", point{1, 2}, "{1 2}"},
		{"stringer", &stringer{name: "a"}, "stringer:a"},
		{"nil pointer", (*point)(nil), nil},
		{"nil pointer error", (*codeError)(nil), nil},
		{"pointer error", &codeError{code: 7}, "code 7"},
		{"nil pointer stringer", (*stringer)(nil), nil},
		{"nil pointer text marshaler", (*token)(nil), nil},
		{"text marshaler", &token{raw: "tok"}, "tok"},
		{"panicking stringer", brokenStringer{}, "jsonsafe.brokenStringer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Value(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Value(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

// TestValueContainers verifies nested containers are converted recursively.
func TestValueContainers(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"list":   []int{1, 2},
		"nested": map[int]any{1: math.Inf(-1)},
		"group":  slog.GroupValue(slog.String("k", "v"), slog.Int("n", 3)),
		"arr":    [2]string{"a", "b"},
	}
	got := Map(in)
	want := map[string]any{
		"list":   []any{int64(1), int64(2)},
		"nested": map[string]any{"1": "-Inf"},
		"group":  map[string]any{"k": "v", "n": int64(3)},
		"arr":    []any{"a", "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Map() = %#v, want %#v", got, want)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("json.Marshal(sanitized) returned %v", err)
	}
}

// TestValueCycle ensures self-referencing maps terminate.
func TestValueCycle(t *testing.T) {
	t.Parallel()

	m := map[string]any{}
	m["self"] = m
	got := Value(m)
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("json.Marshal(cyclic) returned %v", err)
	}
}

// TestMapNil returns an empty map for nil input.
func TestMapNil(t *testing.T) {
	t.Parallel()

	got := Map(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("Map(nil) = %#v, want empty map", got)
	}
}
