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
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogHandler_Enabled(t *testing.T) {
	c, _ := newTestClient(t, forwardingEnv())
	h := c.NewCloudHandler().Slog()
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("DEBUG enabled under the INFO cloud level")
	}
	if !h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("INFO disabled under the INFO cloud level")
	}
	if h.Enabled(withEmitting(ctx), slog.LevelError) {
		t.Fatalf("handler enabled under an emitting context")
	}

	override := c.NewCloudHandler(WithHandlerCloudLevel(LevelDebug)).Slog()
	if !override.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("override level not applied")
	}

	if err := c.Configure(Patch{CloudLevel: String("NONE")}); err != nil {
		t.Fatal(err)
	}
	if override.Enabled(ctx, slog.LevelError) {
		t.Fatalf("handler enabled while the cloud level is disabled")
	}
}

func TestSlogHandler_ForwardsAttributes(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	logger := slog.New(c.NewCloudHandler().Slog()).
		With("service", "checkout").
		WithGroup("req").
		With(slog.String("id", "r-1"))

	logger.Error("payment failed",
		slog.Int("status", 502),
		slog.Group("upstream", slog.String("host", "pay.test")),
		slog.Any("err", errors.New("bad gateway")),
	)

	reqs := sender.Requests()
	if len(reqs) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs))
	}
	entry := decodePayload(t, reqs[0])["logs"].([]any)[0].(map[string]any)
	if entry["level"] != "error" || entry["message"] != "payment failed" || entry["logger"] != "slog" {
		t.Fatalf("entry = %+v", entry)
	}
	meta := entry["extra"].(map[string]any)
	if meta["function"] != "TestSlogHandler_ForwardsAttributes" {
		t.Fatalf("function = %v", meta["function"])
	}
	if exc, _ := meta["exception"].(string); !strings.Contains(exc, "bad gateway") {
		t.Fatalf("exception = %v", meta["exception"])
	}
	user := meta["extra"].(map[string]any)
	if user["service"] != "checkout" {
		t.Fatalf("user extra = %+v", user)
	}
	req := user["req"].(map[string]any)
	if req["id"] != "r-1" || req["status"] != float64(502) || req["err"] != "bad gateway" {
		t.Fatalf("req group = %+v", req)
	}
	if up := req["upstream"].(map[string]any); up["host"] != "pay.test" {
		t.Fatalf("upstream group = %+v", up)
	}
}

func TestSlogHandler_ReservedKeys(t *testing.T) {
	c, sender := newTestClient(t, forwardingEnv())
	logger := slog.New(c.NewCloudHandler().Slog())

	logger.Warn("routed", "resource_id", "alt", "logger", "jobs")

	reqs := sender.Requests()
	if len(reqs) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs))
	}
	if !strings.HasSuffix(reqs[0].URL, "/resources/alt/logs/") {
		t.Fatalf("URL = %q", reqs[0].URL)
	}
	entry := decodePayload(t, reqs[0])["logs"].([]any)[0].(map[string]any)
	if entry["logger"] != "jobs" {
		t.Fatalf("logger = %v, want jobs", entry["logger"])
	}
	user := entry["extra"].(map[string]any)["extra"].(map[string]any)
	if _, ok := user["resource_id"]; ok {
		t.Fatalf("resource_id leaked into extra: %+v", user)
	}
}

// TestSlogHandler_DiagnosticLoggerDoesNotLoop checks that routing the
// client's own diagnostics into a cloud handler never forwards them.
func TestSlogHandler_DiagnosticLoggerDoesNotLoop(t *testing.T) {
	var handler slog.Handler
	diag := slog.New(slogHandlerFunc(func(ctx context.Context, r slog.Record) error {
		if handler == nil {
			return nil
		}
		return handler.Handle(ctx, r)
	}))
	env := forwardingEnv()
	env["ALSHIVAL_RESOURCE"] = ""
	c, sender := newTestClient(t, env, WithInternalLogger(diag))
	handler = c.NewCloudHandler(WithHandlerResourceID("diag"), WithHandlerCloudLevel(LevelDebug)).Slog()

	// Missing resource produces a diagnostic routed back into handler.
	c.NewCloudHandler().Handle(context.Background(), Record{Level: LevelError})
	if n := len(sender.Requests()); n != 0 {
		t.Fatalf("diagnostic was forwarded %d times", n)
	}
}

// slogHandlerFunc adapts a function to slog.Handler for tests.
type slogHandlerFunc func(context.Context, slog.Record) error

func (f slogHandlerFunc) Enabled(context.Context, slog.Level) bool { return true }
func (f slogHandlerFunc) Handle(ctx context.Context, r slog.Record) error { return f(ctx, r) }
func (f slogHandlerFunc) WithAttrs([]slog.Attr) slog.Handler { return f }
func (f slogHandlerFunc) WithGroup(string) slog.Handler { return f }
