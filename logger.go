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
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
)

// CallOptions carries per-call settings. Pass it, by value or pointer, as
// the last argument of a logging call; it is not used for formatting.
type CallOptions struct {
	// ResourceID forwards this record to a different resource.
	ResourceID string
	// Extra is attached to the record's extra map.
	Extra map[string]any
	// Err is recorded as the record's exception.
	Err error
	// StackInfo captures the call-site stack.
	StackInfo bool
}

type loggerSettings struct {
	level     *Level
	console   io.Writer
	noConsole bool
	cloud     [][]HandlerOption
}

// LoggerOption configures a logger returned by Client.Logger. Options apply
// on every call, so a later call can adjust an existing logger.
type LoggerOption func(*loggerSettings)

// WithLoggerLevel sets the logger's own floor.
func WithLoggerLevel(level Level) LoggerOption {
	return func(s *loggerSettings) {
		s.level = &level
	}
}

// WithConsole writes records locally to w.
func WithConsole(w io.Writer) LoggerOption {
	return func(s *loggerSettings) {
		s.console = w
		s.noConsole = false
	}
}

// WithoutConsole disables local output.
func WithoutConsole() LoggerOption {
	return func(s *loggerSettings) {
		s.console = nil
		s.noConsole = true
	}
}

// WithCloudHandler attaches a cloud handler built with opts. Handlers bound
// to the same resource id are merged rather than duplicated.
func WithCloudHandler(opts ...HandlerOption) LoggerOption {
	return func(s *loggerSettings) {
		s.cloud = append(s.cloud, opts)
	}
}

// Logger is a named source of records. Every logger starts with a cloud
// handler that follows the client configuration and, unless disabled, a
// console handler.
type Logger struct {
	client *Client
	name   string
	floor  atomic.Int64

	mu       sync.RWMutex
	console  Handler
	handlers []Handler

	attachMu sync.Mutex
	attached map[any]*Instrumented
}

// Logger returns the logger registered under name, creating it on first use.
// An empty name selects DefaultLoggerName.
func (c *Client) Logger(name string, opts ...LoggerOption) *Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLoggerName
	}
	var s loggerSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	c.loggersMu.Lock()
	l, ok := c.loggers[name]
	if !ok {
		l = &Logger{client: c, name: name}
		l.floor.Store(int64(LevelNotSet))
		if !s.noConsole {
			out := c.consoleOut
			if s.console != nil {
				out = s.console
			}
			l.console = newConsoleHandler(out)
		}
		l.handlers = []Handler{c.NewCloudHandler()}
		c.loggers[name] = l
	} else {
		switch {
		case s.noConsole:
			l.setConsole(nil)
		case s.console != nil:
			l.setConsole(newConsoleHandler(s.console))
		}
	}
	c.loggersMu.Unlock()

	if s.level != nil {
		l.SetLevel(*s.level)
	}
	for _, hopts := range s.cloud {
		l.AddHandler(c.NewCloudHandler(hopts...))
	}
	return l
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.name }

// SetLevel sets the floor below which records are discarded before any
// handler sees them.
func (l *Logger) SetLevel(level Level) { l.floor.Store(int64(level)) }

// Level returns the logger floor.
func (l *Logger) Level() Level { return Level(l.floor.Load()) }

// Enabled reports whether a record at level passes the logger floor.
func (l *Logger) Enabled(level Level) bool { return level >= l.Level() }

func (l *Logger) setConsole(h Handler) {
	l.mu.Lock()
	l.console = h
	l.mu.Unlock()
}

// AddHandler attaches h. A cloud handler whose bound resource id matches an
// attached cloud handler is merged into it: the existing handler stays and
// takes over the new override level, if any.
func (l *Logger) AddHandler(h Handler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cloud, ok := h.(*CloudHandler); ok {
		for _, existing := range l.handlers {
			prev, ok := existing.(*CloudHandler)
			if !ok || prev.ResourceID() != cloud.ResourceID() {
				continue
			}
			if level, set := cloud.CloudLevel(); set && prev != cloud {
				prev.setOverride(level)
			}
			return
		}
	}
	for _, existing := range l.handlers {
		if existing == h {
			return
		}
	}
	l.handlers = append(l.handlers, h)
}

// Handlers returns the attached handlers, excluding the console handler.
func (l *Logger) Handlers() []Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Handler(nil), l.handlers...)
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(context.Background(), LevelDebug, msg, args)
}

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) {
	l.log(context.Background(), LevelInfo, msg, args)
}

// Warning logs at LevelWarning.
func (l *Logger) Warning(msg string, args ...any) {
	l.log(context.Background(), LevelWarning, msg, args)
}

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) {
	l.log(context.Background(), LevelError, msg, args)
}

// Alert logs at LevelAlert.
func (l *Logger) Alert(msg string, args ...any) {
	l.log(context.Background(), LevelAlert, msg, args)
}

// Critical logs at LevelCritical.
func (l *Logger) Critical(msg string, args ...any) {
	l.log(context.Background(), LevelCritical, msg, args)
}

// Log logs at an arbitrary level. Trace identifiers in ctx are forwarded.
func (l *Logger) Log(ctx context.Context, level Level, msg string, args ...any) {
	l.log(ctx, level, msg, args)
}

// Exception logs at LevelError with an exception attached. The error is err
// when non-nil, else CallOptions.Err, else an error built from the message.
func (l *Logger) Exception(err error, msg string, args ...any) {
	opts, fmtArgs := splitCallOptions(args)
	if err != nil {
		opts.Err = err
	}
	l.emit(context.Background(), LevelError, msg, fmtArgs, opts, true)
}

func (l *Logger) log(ctx context.Context, level Level, msg string, args []any) {
	opts, fmtArgs := splitCallOptions(args)
	l.emit(ctx, level, msg, fmtArgs, opts, false)
}

func (l *Logger) emit(ctx context.Context, level Level, msg string, fmtArgs []any, opts CallOptions, exception bool) {
	if l == nil || !l.Enabled(level) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rec := l.newRecord(level, formatMessage(msg, fmtArgs), opts)
	err := opts.Err
	if exception && err == nil {
		err = errors.New(rec.Message)
	}
	if err != nil {
		rec.Exception = formatException(err)
	}
	l.dispatch(ctx, rec, true)
}

// newRecord builds a record stamped with the first caller outside this
// library.
func (l *Logger) newRecord(level Level, msg string, opts CallOptions) Record {
	var stack string
	frame := callerFrame()
	if opts.StackInfo {
		stack, frame = captureStack()
	}
	return Record{
		Name:       l.name,
		Level:      level,
		Message:    msg,
		Module:     frameModule(frame),
		Function:   frameFunction(frame),
		Line:       frame.Line,
		Path:       frame.File,
		Extra:      maps.Clone(opts.Extra),
		StackInfo:  stack,
		ResourceID: strings.TrimSpace(opts.ResourceID),
		Time:       l.client.now(),
	}
}

// dispatch hands rec to each handler. A failing handler does not prevent
// the others from running.
func (l *Logger) dispatch(ctx context.Context, rec Record, withConsole bool) {
	l.mu.RLock()
	console := l.console
	handlers := l.handlers
	l.mu.RUnlock()

	if withConsole && console != nil {
		l.safeHandle(ctx, console, rec)
	}
	for _, h := range handlers {
		l.safeHandle(ctx, h, rec)
	}
}

func (l *Logger) safeHandle(ctx context.Context, h Handler, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			logDiagnostic(l.client.diagnostics(), slog.LevelWarn, "handler panicked", slog.String("logger", l.name), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	h.Handle(ctx, rec)
}

// splitCallOptions separates a trailing CallOptions from format operands.
func splitCallOptions(args []any) (CallOptions, []any) {
	if len(args) == 0 {
		return CallOptions{}, args
	}
	switch last := args[len(args)-1].(type) {
	case CallOptions:
		return last, args[:len(args)-1]
	case *CallOptions:
		if last == nil {
			return CallOptions{}, args[:len(args)-1]
		}
		return *last, args[:len(args)-1]
	}
	return CallOptions{}, args
}

func formatMessage(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
