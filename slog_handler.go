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
	"log/slog"
	"runtime"
)

const (
	// slogResourceIDKey is the attribute that selects a per-record
	// destination when logging through the slog adapter.
	slogResourceIDKey = "resource_id"
	// slogLoggerKey names the logger reported for slog records.
	slogLoggerKey = "logger"

	defaultSlogLoggerName = "slog"
)

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// slogHandler adapts a CloudHandler to log/slog.
type slogHandler struct {
	cloud        *CloudHandler
	groupedAttrs []groupedAttr
	groups       []string
}

var _ slog.Handler = (*slogHandler)(nil)

// Slog returns a log/slog handler that forwards through h. Attributes become
// the record's extra map, a top-level "resource_id" attribute overrides the
// destination, a top-level "logger" attribute names the logger, and the first
// error-valued attribute becomes the record's exception.
func (h *CloudHandler) Slog() slog.Handler {
	return &slogHandler{cloud: h}
}

// Enabled applies the configuration-level gates so callers skip building
// records that would be dropped.
func (s *slogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if isEmitting(ctx) || s.cloud == nil || s.cloud.client == nil {
		return false
	}
	cfg := s.cloud.client.Config()
	if !cfg.Enabled || !cfg.CloudLevel.Enabled() {
		return false
	}
	minimum := cfg.CloudLevel.Level()
	if override, ok := s.cloud.CloudLevel(); ok {
		minimum = override
	}
	return levelFromSlog(level) >= minimum
}

// Handle converts r into a Record and hands it to the cloud handler. It
// always returns nil.
func (s *slogHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := Record{
		Name:    defaultSlogLoggerName,
		Level:   levelFromSlog(r.Level),
		Message: r.Message,
		Time:    r.Time,
		Extra:   make(map[string]any, len(s.groupedAttrs)+r.NumAttrs()),
	}
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		rec.Module = frameModule(frame)
		rec.Function = frameFunction(frame)
		rec.Line = frame.Line
		rec.Path = frame.File
	}

	var firstErr error
	walk := func(groups []string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if len(groups) == 0 {
			switch a.Key {
			case slogResourceIDKey:
				if a.Value.Kind() == slog.KindString {
					rec.ResourceID = a.Value.String()
					return
				}
			case slogLoggerKey:
				if a.Value.Kind() == slog.KindString {
					rec.Name = a.Value.String()
					return
				}
			}
		}
		if a.Value.Kind() == slog.KindAny {
			if err, ok := a.Value.Any().(error); ok && firstErr == nil {
				firstErr = err
			}
		}
		target := rec.Extra
		for _, g := range groups {
			target = ensureGroupMap(target, g)
		}
		if a.Value.Kind() == slog.KindGroup {
			if a.Key == "" {
				for _, ga := range a.Value.Group() {
					target[ga.Key] = ga.Value
				}
				return
			}
			group := ensureGroupMap(target, a.Key)
			for _, ga := range a.Value.Group() {
				group[ga.Key] = ga.Value
			}
			return
		}
		target[a.Key] = a.Value
	}

	for _, ga := range s.groupedAttrs {
		walk(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		walk(s.groups, a)
		return true
	})

	if firstErr != nil {
		rec.Exception = formatException(firstErr)
	}
	s.cloud.Handle(ctx, rec)
	return nil
}

// WithAttrs returns a handler that includes attrs on every record.
func (s *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	grouped := append([]groupedAttr(nil), s.groupedAttrs...)
	for _, a := range attrs {
		grouped = append(grouped, groupedAttr{
			groups: append([]string(nil), s.groups...),
			attr:   a,
		})
	}
	return &slogHandler{cloud: s.cloud, groupedAttrs: grouped, groups: s.groups}
}

// WithGroup nests subsequent attributes under name.
func (s *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	groups := append(append([]string(nil), s.groups...), name)
	return &slogHandler{cloud: s.cloud, groupedAttrs: s.groupedAttrs, groups: groups}
}

// ensureGroupMap returns the nested map stored under key, creating it when
// absent or when a scalar occupies the key.
func ensureGroupMap(parent map[string]any, key string) map[string]any {
	if existing, ok := parent[key].(map[string]any); ok {
		return existing
	}
	child := make(map[string]any, 4)
	parent[key] = child
	return child
}
