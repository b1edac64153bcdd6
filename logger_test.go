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
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// captureHandler records every record it is handed.
type captureHandler struct {
	mu   sync.Mutex
	recs []Record
	ctxs []context.Context
}

func (h *captureHandler) Handle(ctx context.Context, rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	h.ctxs = append(h.ctxs, ctx)
}

func (h *captureHandler) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), h.recs...)
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, Record) { panic("handler failure") }

func TestClientLogger_SameInstancePerName(t *testing.T) {
	c, _ := newTestClient(t, MapEnvironment{})
	a := c.Logger("svc")
	if b := c.Logger(" svc "); a != b {
		t.Fatalf("Logger returned distinct instances for the same name")
	}
	if root := c.Logger(""); root.Name() != DefaultLoggerName {
		t.Fatalf("root logger name = %q, want %q", root.Name(), DefaultLoggerName)
	}
	if n := len(a.Handlers()); n != 1 {
		t.Fatalf("new logger has %d handlers, want the default cloud handler", n)
	}
	if _, ok := a.Handlers()[0].(*CloudHandler); !ok {
		t.Fatalf("default handler is %T, want *CloudHandler", a.Handlers()[0])
	}
}

func TestLogger_LevelMethods(t *testing.T) {
	c, _ := newTestClient(t, MapEnvironment{})
	l := c.Logger("levels", WithoutConsole())
	capture := &captureHandler{}
	l.AddHandler(capture)

	l.Debug("d")
	l.Info("i")
	l.Warning("w")
	l.Error("e")
	l.Alert("a")
	l.Critical("c")
	l.Log(context.Background(), Level(42), "custom")

	want := []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelAlert, LevelCritical, Level(42)}
	recs := capture.Records()
	if len(recs) != len(want) {
		t.Fatalf("handled %d records, want %d", len(recs), len(want))
	}
	for i, rec := range recs {
		if rec.Level != want[i] || rec.Name != "levels" {
			t.Fatalf("record %d = level %v name %q", i, rec.Level, rec.Name)
		}
		if !rec.Time.Equal(testNow) {
			t.Fatalf("record %d time = %v, want client clock", i, rec.Time)
		}
	}
}

func TestLogger_Floor(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	l := c.Logger("floor", WithoutConsole(), WithLoggerLevel(LevelWarning))
	capture := &captureHandler{}
	l.AddHandler(capture)

	l.Info("dropped before handlers")
	l.Error("kept")

	if n := len(capture.Records()); n != 1 {
		t.Fatalf("handled %d records, want 1", n)
	}
	if n := len(sender.Requests()); n != 1 {
		t.Fatalf("sent %d requests, want 1", n)
	}
	if l.Enabled(LevelInfo) || !l.Enabled(LevelWarning) {
		t.Fatalf("Enabled does not follow the floor")
	}

	l.SetLevel(LevelNotSet)
	if !l.Enabled(LevelDebug) {
		t.Fatalf("SetLevel(NOTSET) should enable everything")
	}
}

func TestLogger_FormatsOnlyWithOperands(t *testing.T) {
	c, _ := newTestClient(t, MapEnvironment{})
	l := c.Logger("fmt", WithoutConsole())
	capture := &captureHandler{}
	l.AddHandler(capture)

	l.Info("100%% literal")
	l.Info("user %s has %d items", "sam", 3)
	l.Info("with options %s", "x", CallOptions{ResourceID: "r"})

	recs := capture.Records()
	if recs[0].Message != "100%% literal" {
		t.Fatalf("message = %q, want untouched without operands", recs[0].Message)
	}
	if recs[1].Message != "user sam has 3 items" {
		t.Fatalf("message = %q", recs[1].Message)
	}
	if recs[2].Message != "with options x" || recs[2].ResourceID != "r" {
		t.Fatalf("record = %+v", recs[2])
	}
}

func TestLogger_CallOptions(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	l := c.Logger("opts", WithoutConsole())

	extra := map[string]any{"order": 7}
	l.Error("checkout failed", &CallOptions{
		ResourceID: "billing",
		Extra:      extra,
		Err:        errors.New("card declined"),
		StackInfo:  true,
	})
	extra["order"] = 8

	reqs := sender.Requests()
	if len(reqs) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs))
	}
	if !strings.HasSuffix(reqs[0].URL, "/resources/billing/logs/") {
		t.Fatalf("URL = %q", reqs[0].URL)
	}
	body := decodePayload(t, reqs[0])
	entry := body["logs"].([]any)[0].(map[string]any)["extra"].(map[string]any)
	if got := entry["extra"].(map[string]any)["order"]; got != float64(7) {
		t.Fatalf("order = %v, want the value at call time", got)
	}
	if exc, _ := entry["exception"].(string); !strings.HasPrefix(exc, "*errors.errorString: card declined") {
		t.Fatalf("exception = %v", entry["exception"])
	}
	stack, _ := entry["stack_info"].(string)
	if !strings.Contains(stack, "TestLogger_CallOptions") {
		t.Fatalf("stack_info does not include the call site:\n%s", stack)
	}
	if strings.Contains(stack, "(*Logger).emit") {
		t.Fatalf("stack_info includes library frames:\n%s", stack)
	}
	if entry["function"] != "TestLogger_CallOptions" || entry["module"] != "logger_test" {
		t.Fatalf("call site = %v/%v", entry["module"], entry["function"])
	}
}

// lookupError dereferences its receiver, so a nil *lookupError panics in
// Error.
type lookupError struct{ key string }

func (e *lookupError) Error() string { return "missing " + e.key }

func TestLogger_NilPointerErrorsStillForward(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	l := c.Logger("nil-errors", WithoutConsole())

	var typed *lookupError
	l.Error("lookup failed", CallOptions{
		Extra: map[string]any{"err": typed, "key": "user:1"},
		Err:   typed,
	})

	reqs := sender.Requests()
	if len(reqs) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs))
	}
	entry := decodePayload(t, reqs[0])["logs"].([]any)[0].(map[string]any)["extra"].(map[string]any)
	user := entry["extra"].(map[string]any)
	if v, ok := user["err"]; !ok || v != nil || user["key"] != "user:1" {
		t.Fatalf("extra = %#v, want err null and key kept", user)
	}
	if exc, _ := entry["exception"].(string); exc != "*alshival.lookupError: <nil>" {
		t.Fatalf("exception = %q", exc)
	}
}

func TestLogger_CallSite(t *testing.T) {
	c, _ := newTestClient(t, MapEnvironment{})
	l := c.Logger("site", WithoutConsole())
	capture := &captureHandler{}
	l.AddHandler(capture)

	_, file, line, _ := runtime.Caller(0)
	l.Info("here")

	rec := capture.Records()[0]
	if rec.Path != file || rec.Line != line+1 {
		t.Fatalf("call site = %s:%d, want %s:%d", rec.Path, rec.Line, file, line+1)
	}
	if rec.Function != "TestLogger_CallSite" || rec.Module != "logger_test" {
		t.Fatalf("function=%q module=%q", rec.Function, rec.Module)
	}
	if rec.StackInfo != "" {
		t.Fatalf("stack captured without StackInfo")
	}
}

func TestLogger_Exception(t *testing.T) {
	c, _ := newTestClient(t, MapEnvironment{})
	l := c.Logger("exc", WithoutConsole())
	capture := &captureHandler{}
	l.AddHandler(capture)

	l.Exception(errors.New("explicit"), "failed %d", 1)
	l.Exception(nil, "from options", CallOptions{Err: errors.New("opt err")})
	l.Exception(nil, "synthesized")

	recs := capture.Records()
	want := []string{
		"*errors.errorString: explicit",
		"*errors.errorString: opt err",
		"*errors.errorString: synthesized",
	}
	for i, rec := range recs {
		if rec.Level != LevelError {
			t.Fatalf("record %d level = %v, want ERROR", i, rec.Level)
		}
		if rec.Exception != want[i] {
			t.Fatalf("record %d exception = %q, want %q", i, rec.Exception, want[i])
		}
	}
	if recs[0].Message != "failed 1" {
		t.Fatalf("message = %q", recs[0].Message)
	}
}

func TestLogger_HandlerPanicIsContained(t *testing.T) {
	var diag bytes.Buffer
	c, _ := newTestClient(t, MapEnvironment{"ALSHIVAL_DEBUG": "true"}, WithDebugWriter(&diag))
	l := c.Logger("panics", WithoutConsole())
	capture := &captureHandler{}
	l.AddHandler(panicHandler{})
	l.AddHandler(capture)

	l.Warning("still delivered")

	if n := len(capture.Records()); n != 1 {
		t.Fatalf("handled %d records after a panicking handler, want 1", n)
	}
	if !strings.Contains(diag.String(), "handler panicked") {
		t.Fatalf("diagnostics = %s", diag.String())
	}
}

func TestLogger_Console(t *testing.T) {
	c, sender := newTestClient(t, MapEnvironment{})
	var out bytes.Buffer
	l := c.Logger("console", WithConsole(&out))

	l.Alert("pager", CallOptions{Extra: map[string]any{"b": 2, "a": 1}})

	line := out.String()
	for _, want := range []string{"level=ALERT", "msg=pager", "logger=console", "a=1 b=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("console output missing %q:\n%s", want, line)
		}
	}
	if n := len(sender.Requests()); n != 0 {
		t.Fatalf("console logging sent %d requests without credentials", n)
	}

	out.Reset()
	c.Logger("console", WithoutConsole())
	l.Info("silent")
	if out.Len() != 0 {
		t.Fatalf("console still written after WithoutConsole: %s", out.String())
	}
}

func TestLogger_TraceContextForwarded(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	l := c.Logger("traced", WithoutConsole())

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	l.Log(ctx, LevelInfo, "inside span")

	body := decodePayload(t, sender.Requests()[0])
	user := body["logs"].([]any)[0].(map[string]any)["extra"].(map[string]any)["extra"].(map[string]any)
	if user["trace_id"] != traceID.String() || user["span_id"] != spanID.String() {
		t.Fatalf("user extra = %+v", user)
	}
}
