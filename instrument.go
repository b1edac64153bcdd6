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
	"fmt"
	"log/slog"
	"reflect"
)

// Capability interfaces recognised on attached targets. *slog.Logger
// satisfies all but Warning and Critical.
type (
	debugLogger    interface{ Debug(msg string, args ...any) }
	infoLogger     interface{ Info(msg string, args ...any) }
	warnLogger     interface{ Warn(msg string, args ...any) }
	warningLogger  interface{ Warning(msg string, args ...any) }
	errorLogger    interface{ Error(msg string, args ...any) }
	criticalLogger interface{ Critical(msg string, args ...any) }
	levelLogger    interface {
		Log(ctx context.Context, level slog.Level, msg string, args ...any)
	}
)

// Instrumented decorates a foreign logger. Each method first calls the
// target's method of the same name, when the target has one, and then
// forwards a record built from the call through the owning Logger's
// handlers. The record is forwarded even if the target panics, and the panic
// is re-raised afterwards. Failures while building or forwarding the record
// are discarded.
//
// Arguments are interpreted the way log/slog does: alternating keys and
// values, or slog.Attr values, which become the record's extra map.
type Instrumented struct {
	logger *Logger
	target any
}

// Attach returns a decorator around target that mirrors its calls to l.
// Attaching the same target again returns the existing decorator, and
// attaching a decorator returns it unchanged. Targets of incomparable types
// get a fresh decorator on every call.
func (l *Logger) Attach(target any) (in *Instrumented) {
	if existing, ok := target.(*Instrumented); ok && existing != nil {
		return existing
	}
	fresh := &Instrumented{logger: l, target: target}
	if target == nil || !reflect.TypeOf(target).Comparable() {
		return fresh
	}

	l.attachMu.Lock()
	defer l.attachMu.Unlock()
	defer func() {
		// Comparable static types can still hold incomparable values.
		if recover() != nil {
			in = fresh
		}
	}()
	if existing, ok := l.attached[target]; ok {
		return existing
	}
	if l.attached == nil {
		l.attached = make(map[any]*Instrumented)
	}
	l.attached[target] = fresh
	return fresh
}

// Target returns the decorated logger.
func (in *Instrumented) Target() any { return in.target }

// Debug calls the target's Debug and forwards at LevelDebug.
func (in *Instrumented) Debug(msg string, args ...any) {
	in.call(context.Background(), LevelDebug, msg, args, func() {
		if t, ok := in.target.(debugLogger); ok {
			t.Debug(msg, args...)
		}
	})
}

// Info calls the target's Info and forwards at LevelInfo.
func (in *Instrumented) Info(msg string, args ...any) {
	in.call(context.Background(), LevelInfo, msg, args, func() {
		if t, ok := in.target.(infoLogger); ok {
			t.Info(msg, args...)
		}
	})
}

// Warn calls the target's Warn and forwards at LevelWarning.
func (in *Instrumented) Warn(msg string, args ...any) {
	in.call(context.Background(), LevelWarning, msg, args, func() {
		if t, ok := in.target.(warnLogger); ok {
			t.Warn(msg, args...)
		}
	})
}

// Warning calls the target's Warning and forwards at LevelWarning.
func (in *Instrumented) Warning(msg string, args ...any) {
	in.call(context.Background(), LevelWarning, msg, args, func() {
		if t, ok := in.target.(warningLogger); ok {
			t.Warning(msg, args...)
		}
	})
}

// Error calls the target's Error and forwards at LevelError.
func (in *Instrumented) Error(msg string, args ...any) {
	in.call(context.Background(), LevelError, msg, args, func() {
		if t, ok := in.target.(errorLogger); ok {
			t.Error(msg, args...)
		}
	})
}

// Critical calls the target's Critical and forwards at LevelCritical.
func (in *Instrumented) Critical(msg string, args ...any) {
	in.call(context.Background(), LevelCritical, msg, args, func() {
		if t, ok := in.target.(criticalLogger); ok {
			t.Critical(msg, args...)
		}
	})
}

// Log calls the target's Log and forwards at the matching level.
func (in *Instrumented) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	in.call(ctx, levelFromSlog(level), msg, args, func() {
		if t, ok := in.target.(levelLogger); ok {
			t.Log(ctx, level, msg, args...)
		}
	})
}

// call runs original and then forwards, whether or not original panicked.
func (in *Instrumented) call(ctx context.Context, level Level, msg string, args []any, original func()) {
	defer func() {
		r := recover()
		in.forward(ctx, level, msg, args)
		if r != nil {
			panic(r)
		}
	}()
	original()
}

// forward builds and dispatches the mirrored record, discarding failures.
func (in *Instrumented) forward(ctx context.Context, level Level, msg string, args []any) {
	l := in.logger
	if l == nil || !l.Enabled(level) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logDiagnostic(l.client.diagnostics(), slog.LevelWarn, "failed to mirror attached logger call", slog.String("logger", l.name), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	opts, rest := splitCallOptions(args)
	rec := l.newRecord(level, msg, opts)
	if extra := attrsToExtra(rest); len(extra) > 0 {
		if rec.Extra == nil {
			rec.Extra = extra
		} else {
			for k, v := range extra {
				if _, ok := rec.Extra[k]; !ok {
					rec.Extra[k] = v
				}
			}
		}
	}
	if opts.Err != nil {
		rec.Exception = formatException(opts.Err)
	}
	l.dispatch(ctx, rec, false)
}

// attrsToExtra interprets args with slog's key-value rules.
func attrsToExtra(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	var r slog.Record
	r.Add(args...)
	extra := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		extra[a.Key] = a.Value
		return true
	})
	return extra
}
