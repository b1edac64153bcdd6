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
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/alshival/alshival-go/internal/jsonsafe"
)

const (
	headerContentType = "Content-Type"
	headerUserAgent   = "User-Agent"
	headerAPIKey      = "x-api-key"
	headerUsername    = "x-user-username"

	extraTraceID = "trace_id"
	extraSpanID  = "span_id"
)

// Record is a single emitted log event. Records are built per call and are
// not modified after they are handed to handlers.
type Record struct {
	// Name is the name of the emitting logger.
	Name     string
	Level    Level
	Message  string
	Module   string
	Function string
	Line     int
	Path     string
	Extra    map[string]any
	// StackInfo is a formatted stack captured at the call site, if requested.
	StackInfo string
	// Exception is the formatted error attached to the record, if any.
	Exception string
	// ResourceID overrides the configured destination for this record only.
	ResourceID string
	Time       time.Time
}

// logPayload is the request body accepted by the collector.
type logPayload struct {
	ResourceID string     `json:"resource_id"`
	SDK        string     `json:"sdk"`
	SDKVersion string     `json:"sdk_version"`
	Logs       []logEntry `json:"logs"`
}

type logEntry struct {
	Level     string     `json:"level"`
	Message   string     `json:"message"`
	Logger    string     `json:"logger"`
	Timestamp string     `json:"timestamp"`
	Extra     entryExtra `json:"extra"`
}

type entryExtra struct {
	Logger    string         `json:"logger"`
	Module    string         `json:"module"`
	Function  string         `json:"function"`
	Line      int            `json:"line"`
	Path      string         `json:"path"`
	Extra     map[string]any `json:"extra"`
	StackInfo *string        `json:"stack_info"`
	Exception *string        `json:"exception"`
}

// buildPayload shapes rec for delivery to resourceID. now is the generation
// timestamp. Trace identifiers from ctx are added to the user extra unless
// the caller already supplied them.
func buildPayload(ctx context.Context, rec Record, resourceID string, now time.Time) logPayload {
	extra := jsonsafe.Map(rec.Extra)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if _, ok := extra[extraTraceID]; !ok {
			extra[extraTraceID] = sc.TraceID().String()
		}
		if _, ok := extra[extraSpanID]; !ok {
			extra[extraSpanID] = sc.SpanID().String()
		}
	}

	return logPayload{
		ResourceID: resourceID,
		SDK:        SDKName,
		SDKVersion: Version,
		Logs: []logEntry{{
			Level:     strings.ToLower(rec.Level.String()),
			Message:   rec.Message,
			Logger:    rec.Name,
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Extra: entryExtra{
				Logger:    rec.Name,
				Module:    rec.Module,
				Function:  rec.Function,
				Line:      rec.Line,
				Path:      rec.Path,
				Extra:     extra,
				StackInfo: optionalString(rec.StackInfo),
				Exception: optionalString(rec.Exception),
			},
		}},
	}
}

// forwardHeaders returns the request headers for cfg. The identity header is
// omitted when no username is configured.
func forwardHeaders(cfg Config) map[string]string {
	headers := map[string]string{
		headerContentType: "application/json",
		headerUserAgent:   UserAgent,
	}
	if cfg.APIKey != "" {
		headers[headerAPIKey] = cfg.APIKey
	}
	if cfg.Username != "" {
		headers[headerUsername] = cfg.Username
	}
	return headers
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
