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

package alshivalasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize    = 256
	defaultFlushTimeout = 10 * time.Second

	envAsyncQueueSize    = "ALSHIVAL_ASYNC_QUEUE_SIZE"
	envAsyncDropMode     = "ALSHIVAL_ASYNC_DROP_MODE"
	envAsyncWorkers      = "ALSHIVAL_ASYNC_WORKERS"
	envAsyncFlushTimeout = "ALSHIVAL_ASYNC_FLUSH_TIMEOUT"
	envAsyncSynchronous  = "ALSHIVAL_ASYNC_SYNCHRONOUS"
)

// DropMode controls how Submit behaves when the queue is full.
type DropMode int

const (
	// DropModeDropNewest drops the incoming job when the queue is full.
	DropModeDropNewest DropMode = iota
	// DropModeDropOldest drops the oldest queued job when the queue is full.
	DropModeDropOldest
	// DropModeBlock blocks the caller when the queue is full.
	DropModeBlock
)

// ErrFlushTimeout indicates Close returned before the queue was fully drained.
var ErrFlushTimeout = errors.New("alshivalasync: flush timeout")

// Job is a unit of deferred work. The context passed to Submit is handed
// back with its cancellation detached.
type Job func(ctx context.Context)

// DropHandler observes jobs that were discarded.
type DropHandler func(ctx context.Context)

// Config controls dispatcher behaviour.
type Config struct {
	QueueSize    int
	WorkerCount  int
	DropMode     DropMode
	OnDrop       DropHandler
	ErrorWriter  io.Writer
	FlushTimeout time.Duration
	// Synchronous runs every job inline on the submitting goroutine.
	Synchronous bool
}

// Option customizes dispatcher configuration.
type Option func(*Config)

// WithQueueSize adjusts the queue capacity. Zero yields an unbuffered queue.
func WithQueueSize(size int) Option {
	return func(cfg *Config) {
		cfg.QueueSize = size
	}
}

// WithWorkerCount configures the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(cfg *Config) {
		cfg.WorkerCount = count
	}
}

// WithDropMode sets the queue overflow strategy.
func WithDropMode(mode DropMode) Option {
	return func(cfg *Config) {
		cfg.DropMode = mode
	}
}

// WithOnDrop registers a callback invoked when a job is dropped.
func WithOnDrop(fn DropHandler) Option {
	return func(cfg *Config) {
		cfg.OnDrop = fn
	}
}

// WithErrorWriter directs recovered worker panics to w. Use nil to silence
// them.
func WithErrorWriter(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.ErrorWriter = w
	}
}

// WithFlushTimeout limits how long Close waits for workers to finish.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.FlushTimeout = timeout
	}
}

// Synchronous makes Submit run jobs inline. Useful for short-lived commands
// and tests that need delivery before returning.
func Synchronous() Option {
	return func(cfg *Config) {
		cfg.Synchronous = true
	}
}

// WithEnv overlays configuration from environment variables.
func WithEnv() Option {
	return func(cfg *Config) {
		applyEnv(cfg)
	}
}

// Dispatcher runs submitted jobs on background workers.
type Dispatcher struct {
	cfg       Config
	queue     chan queuedJob
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	submitMu  sync.RWMutex
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// New returns a started dispatcher.
func New(opts ...Option) *Dispatcher {
	cfg := buildConfig(opts)
	d := &Dispatcher{cfg: cfg}
	if cfg.Synchronous {
		return d
	}

	d.queue = make(chan queuedJob, cfg.QueueSize)
	d.wg.Add(cfg.WorkerCount)
	for range cfg.WorkerCount {
		go func() {
			defer d.wg.Done()
			for item := range d.queue {
				d.run(item)
			}
		}()
	}
	return d
}

// run executes a job, recovering from panics.
func (d *Dispatcher) run(item queuedJob) {
	defer func() {
		if r := recover(); r != nil {
			d.logError("alshivalasync: recovered panic from job: %v\n", r)
		}
	}()
	item.job(item.ctx)
}

func (d *Dispatcher) logError(format string, args ...any) {
	if d.cfg.ErrorWriter == nil {
		return
	}
	_, _ = fmt.Fprintf(d.cfg.ErrorWriter, format, args...)
}

// Submit hands job to the dispatcher and reports whether it was accepted.
// It never blocks unless the drop mode is DropModeBlock. Jobs submitted
// after Close are dropped.
func (d *Dispatcher) Submit(ctx context.Context, job Job) bool {
	if job == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	d.submitMu.RLock()
	defer d.submitMu.RUnlock()

	if d.closed.Load() {
		d.drop(ctx)
		return false
	}
	item := queuedJob{ctx: ctx, job: job}
	if d.cfg.Synchronous {
		d.run(item)
		return true
	}
	return d.enqueue(item)
}

// Inline reports whether jobs run on the submitting goroutine.
func (d *Dispatcher) Inline() bool { return d.cfg.Synchronous }

func (d *Dispatcher) drop(ctx context.Context) {
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(ctx)
	}
}

// enqueue routes a job into the queue respecting drop policies.
func (d *Dispatcher) enqueue(item queuedJob) bool {
	switch d.cfg.DropMode {
	case DropModeBlock:
		d.queue <- item
		return true
	case DropModeDropOldest:
		select {
		case d.queue <- item:
			return true
		default:
		}
		select {
		case dropped := <-d.queue:
			d.drop(dropped.ctx)
		default:
		}
		select {
		case d.queue <- item:
			return true
		default:
			d.drop(item.ctx)
			return false
		}
	default:
		select {
		case d.queue <- item:
			return true
		default:
			d.drop(item.ctx)
			return false
		}
	}
}

// Close stops accepting jobs and waits for queued jobs to finish, up to the
// flush timeout. It is safe to call more than once.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		d.submitMu.Lock()
		d.closed.Store(true)
		if d.queue != nil {
			close(d.queue)
		}
		d.submitMu.Unlock()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		if d.cfg.FlushTimeout > 0 {
			select {
			case <-done:
			case <-time.After(d.cfg.FlushTimeout):
				d.closeErr = ErrFlushTimeout
			}
		} else {
			<-done
		}
	})
	return d.closeErr
}

// buildConfig applies options with defaults and clamps invalid values.
func buildConfig(opts []Option) Config {
	cfg := Config{
		QueueSize:    defaultQueueSize,
		WorkerCount:  1,
		DropMode:     DropModeDropNewest,
		ErrorWriter:  os.Stderr,
		FlushTimeout: defaultFlushTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg
}

// applyEnv overlays configuration from environment variables.
func applyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(envAsyncQueueSize)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			cfg.QueueSize = size
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncWorkers)); raw != "" {
		if workers, err := strconv.Atoi(raw); err == nil {
			cfg.WorkerCount = workers
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncDropMode)); raw != "" {
		switch strings.ToLower(raw) {
		case "block":
			cfg.DropMode = DropModeBlock
		case "drop_newest", "drop-newest":
			cfg.DropMode = DropModeDropNewest
		case "drop_oldest", "drop-oldest":
			cfg.DropMode = DropModeDropOldest
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncFlushTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.FlushTimeout = d
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncSynchronous)); raw != "" {
		if inline, ok := parseAsyncBool(raw); ok {
			cfg.Synchronous = inline
		}
	}
}

// parseAsyncBool accepts yes/on/1/true and no/off/0/false tokens.
func parseAsyncBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
