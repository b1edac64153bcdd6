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

import "context"

type contextKey int

const (
	loggerContextKey contextKey = iota
	emittingContextKey
)

// ContextWithLogger returns a child context that stores logger so code
// further down the call chain can retrieve it with FromContext.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext retrieves a logger stored by ContextWithLogger. When none is
// present the default client's root logger is returned.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok && logger != nil {
			return logger
		}
	}
	return GetLogger("")
}

// withEmitting marks ctx as belonging to the library's own emit path. Cloud
// handlers ignore records logged under a marked context, so diagnostics
// written while forwarding never loop back into the collector.
func withEmitting(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if isEmitting(ctx) {
		return ctx
	}
	return context.WithValue(ctx, emittingContextKey, true)
}

func isEmitting(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marked, _ := ctx.Value(emittingContextKey).(bool)
	return marked
}
