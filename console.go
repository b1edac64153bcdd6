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
	"io"
	"log/slog"
	"slices"
)

// consoleHandler renders records locally with a slog text handler. It never
// forwards.
type consoleHandler struct {
	handler slog.Handler
}

func newConsoleHandler(w io.Writer) *consoleHandler {
	return &consoleHandler{
		handler: slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.LevelKey {
					if lvl, ok := a.Value.Any().(slog.Level); ok {
						return slog.String(slog.LevelKey, levelFromSlog(lvl).String())
					}
				}
				return a
			},
		}),
	}
}

// Handle writes rec. Write errors are ignored.
func (h *consoleHandler) Handle(ctx context.Context, rec Record) {
	r := slog.NewRecord(rec.Time, rec.Level.Slog(), rec.Message, 0)
	r.AddAttrs(slog.String("logger", rec.Name))
	keys := make([]string, 0, len(rec.Extra))
	for k := range rec.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		r.AddAttrs(slog.Any(k, rec.Extra[k]))
	}
	if rec.Exception != "" {
		r.AddAttrs(slog.String("exception", rec.Exception))
	}
	if rec.StackInfo != "" {
		r.AddAttrs(slog.String("stack_info", rec.StackInfo))
	}
	_ = h.handler.Handle(ctx, r)
}
