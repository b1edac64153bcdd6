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

package alshival

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestBuildPayload_WireShape(t *testing.T) {
	rec := Record{
		Name:      "app.db",
		Level:     Level(42),
		Message:   "query failed",
		Module:    "store",
		Function:  "(*Store).Query",
		Line:      88,
		Path:      "/src/store.go",
		Extra:     map[string]any{"rows": 3, "ratio": math.Inf(1), "ch": make(chan int)},
		Exception: "*errors.errorString: boom",
	}
	now := time.Date(2025, 1, 2, 3, 4, 5, 600, time.FixedZone("X", 3600))

	data, err := encodeJSON(buildPayload(context.Background(), rec, "res-1", now))
	if err != nil {
		t.Fatalf("encodeJSON returned %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}

	if body["resource_id"] != "res-1" || body["sdk"] != "alshival-go" || body["sdk_version"] != Version {
		t.Fatalf("envelope = %+v", body)
	}
	logs := body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("logs has %d entries, want 1", len(logs))
	}
	entry := logs[0].(map[string]any)
	if entry["level"] != "error" || entry["message"] != "query failed" || entry["logger"] != "app.db" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry["timestamp"] != "2025-01-02T02:04:05.0000006Z" {
		t.Fatalf("timestamp = %v, want UTC RFC3339", entry["timestamp"])
	}

	extra := entry["extra"].(map[string]any)
	if extra["logger"] != "app.db" || extra["module"] != "store" || extra["function"] != "(*Store).Query" {
		t.Fatalf("extra = %+v", extra)
	}
	if extra["line"] != float64(88) || extra["path"] != "/src/store.go" {
		t.Fatalf("extra = %+v", extra)
	}
	if v, ok := extra["stack_info"]; !ok || v != nil {
		t.Fatalf("stack_info = %v (present %v), want null", v, ok)
	}
	if extra["exception"] != "*errors.errorString: boom" {
		t.Fatalf("exception = %v", extra["exception"])
	}
	user := extra["extra"].(map[string]any)
	if user["rows"] != float64(3) || user["ratio"] != "+Inf" {
		t.Fatalf("user extra = %+v", user)
	}
	if _, ok := user["ch"].(string); !ok {
		t.Fatalf("unserializable value = %#v, want string form", user["ch"])
	}
}

func TestBuildPayload_EmptyExtraIsObject(t *testing.T) {
	data, err := encodeJSON(buildPayload(context.Background(), Record{Level: LevelInfo}, "r", testNow))
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Logs []struct {
			Extra struct {
				Extra     map[string]any `json:"extra"`
				Exception *string        `json:"exception"`
			} `json:"extra"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Logs[0].Extra.Extra == nil {
		t.Fatalf("user extra decoded as null, want {}")
	}
	if body.Logs[0].Extra.Exception != nil {
		t.Fatalf("exception = %q, want null", *body.Logs[0].Extra.Exception)
	}
}

func TestBuildPayload_TraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	p := buildPayload(ctx, Record{Level: LevelInfo}, "r", testNow)
	extra := p.Logs[0].Extra.Extra
	if extra["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" || extra["span_id"] != "00f067aa0ba902b7" {
		t.Fatalf("trace fields = %+v", extra)
	}

	p = buildPayload(ctx, Record{Level: LevelInfo, Extra: map[string]any{"trace_id": "mine"}}, "r", testNow)
	if got := p.Logs[0].Extra.Extra["trace_id"]; got != "mine" {
		t.Fatalf("trace_id = %v, want caller value kept", got)
	}
}

func TestForwardHeaders(t *testing.T) {
	h := forwardHeaders(Config{APIKey: "k"})
	if _, ok := h["x-user-username"]; ok {
		t.Fatalf("username header present without a username: %+v", h)
	}
	if h["x-api-key"] != "k" || h["User-Agent"] != "alshival-go/"+Version {
		t.Fatalf("headers = %+v", h)
	}
}
