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
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alshival/alshival-go/alshivalasync"
	"github.com/alshival/alshival-go/alshivalhttp"
)

// DefaultLoggerName is used when a logger is requested with an empty name.
const DefaultLoggerName = "alshival"

// ConfigureHook observes every successful Configure call. Returned errors
// and panics are reported as diagnostics and otherwise ignored.
type ConfigureHook func(Config) error

// Client owns one configuration store together with the loggers, transport
// and dispatch queue that read it. Methods are safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	cfg     Config
	mcpTool MCPTool
	hooks   []ConfigureHook

	diagWriter  *switchableWriter
	diagLogger  *slog.Logger
	debugWriter io.Writer
	consoleOut  io.Writer
	sender      alshivalhttp.Sender
	dispatcher  *alshivalasync.Dispatcher
	metrics     *Metrics
	clock       func() time.Time
	loggersMu   sync.Mutex
	loggers     map[string]*Logger
	closeOnce   sync.Once
	closeErr    error
}

type clientOptions struct {
	env            Environment
	internalLogger *slog.Logger
	sender         alshivalhttp.Sender
	dispatchOpts   []alshivalasync.Option
	metrics        *Metrics
	clock          func() time.Time
	debugWriter    io.Writer
	consoleWriter  io.Writer
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithEnvironment sets the variables the initial configuration is read
// from. The process environment layered over dotenv files is used when
// unset.
func WithEnvironment(env Environment) ClientOption {
	return func(o *clientOptions) {
		o.env = env
	}
}

// WithInternalLogger routes the client's own diagnostics to logger
// regardless of the debug flag.
func WithInternalLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.internalLogger = logger
	}
}

// WithSender replaces the HTTP transport.
func WithSender(sender alshivalhttp.Sender) ClientOption {
	return func(o *clientOptions) {
		o.sender = sender
	}
}

// WithDispatcherOptions tunes the background queue that delivers forwards.
func WithDispatcherOptions(opts ...alshivalasync.Option) ClientOption {
	return func(o *clientOptions) {
		o.dispatchOpts = append(o.dispatchOpts, opts...)
	}
}

// WithMetrics records forwarding outcomes in m.
func WithMetrics(m *Metrics) ClientOption {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithClock overrides the time source used for payload timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		o.clock = now
	}
}

// WithDebugWriter sets where diagnostics are written while debug mode is on.
// Defaults to os.Stderr.
func WithDebugWriter(w io.Writer) ClientOption {
	return func(o *clientOptions) {
		o.debugWriter = w
	}
}

// WithConsoleWriter sets the default destination of the console handler
// attached to new loggers. Defaults to os.Stderr.
func WithConsoleWriter(w io.Writer) ClientOption {
	return func(o *clientOptions) {
		o.consoleWriter = w
	}
}

// NewClient builds a client whose configuration starts from the environment.
func NewClient(opts ...ClientOption) *Client {
	var o clientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.env == nil {
		o.env = DefaultEnvironment()
	}
	if o.debugWriter == nil {
		o.debugWriter = os.Stderr
	}
	if o.consoleWriter == nil {
		o.consoleWriter = os.Stderr
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.sender == nil {
		o.sender = alshivalhttp.NewSender()
	}

	c := &Client{
		diagWriter:  newSwitchableWriter(nil),
		debugWriter: o.debugWriter,
		consoleOut:  o.consoleWriter,
		sender:      o.sender,
		metrics:     o.metrics,
		clock:       o.clock,
		loggers:     make(map[string]*Logger),
	}
	if o.internalLogger != nil {
		c.diagLogger = o.internalLogger
	} else {
		c.diagLogger = slog.New(slog.NewTextHandler(c.diagWriter, &slog.HandlerOptions{Level: slog.LevelDebug})).
			With(slog.String("component", DefaultLoggerName))
	}

	// Environment warnings are only visible when debug is on, so the flag is
	// read before the rest of the environment.
	if raw, ok := o.env.LookupEnv(envDebug); ok {
		c.refreshDebugConsole(Config{Debug: parseBoolEnv(strings.TrimSpace(raw), false, nil)})
	}
	c.cfg = ConfigFromEnvironment(o.env, c.diagLogger)
	c.refreshDebugConsole(c.cfg)
	c.mcpTool = BuildMCPTool(c.cfg)

	dispatchOpts := []alshivalasync.Option{
		alshivalasync.WithEnv(),
		alshivalasync.WithErrorWriter(c.diagWriter),
		alshivalasync.WithOnDrop(func(context.Context) {
			c.metrics.incDropped(DropQueueFull)
		}),
	}
	c.dispatcher = alshivalasync.New(append(dispatchOpts, o.dispatchOpts...)...)
	return c
}

// Config returns a snapshot of the current configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.clone()
}

// MCPTool returns the MCP descriptor for the current configuration.
func (c *Client) MCPTool() MCPTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mcpTool.clone()
}

// OnConfigure registers hook to run after every successful Configure call.
func (c *Client) OnConfigure(hook ConfigureHook) {
	if hook == nil {
		return
	}
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Configure merges p into the configuration. Only supplied fields change.
// An invalid cloud level or timeout is reported before anything is written,
// leaving the configuration untouched.
func (c *Client) Configure(p Patch) error {
	var cloud Threshold
	if p.CloudLevel != nil {
		t, err := CoerceCloudLevel(*p.CloudLevel)
		if err != nil {
			return err
		}
		cloud = t
	}
	if p.TimeoutSeconds != nil {
		if _, err := floatValue(*p.TimeoutSeconds); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPatch, keyTimeoutSeconds.canonical, err)
		}
	}

	c.mu.Lock()
	next := c.cfg.clone()
	applyPatch(&next, p, cloud)
	c.cfg = next
	// Derived state must match c.cfg; refresh it before unlocking.
	c.refreshDebugConsole(next)
	c.mcpTool = BuildMCPTool(next)
	hooks := append([]ConfigureHook(nil), c.hooks...)
	c.mu.Unlock()

	c.runRefreshHooks(next.clone(), hooks)
	return nil
}

// ConfigureMap converts m with PatchFromMap and applies it.
func (c *Client) ConfigureMap(m map[string]any) error {
	p, err := PatchFromMap(m)
	if err != nil {
		return err
	}
	return c.Configure(p)
}

// applyPatch merges p into cfg. Explicit owner and id are applied first; a
// parsed resource then replaces them and fills base URL and prefix unless
// those were supplied in the same patch. A resource that does not parse
// clears owner and id.
func applyPatch(cfg *Config, p Patch, cloud Threshold) {
	if p.Username != nil {
		cfg.Username = strings.TrimSpace(*p.Username)
	}
	if p.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*p.APIKey)
	}
	if p.ResourceOwnerUsername != nil {
		cfg.ResourceOwnerUsername = strings.TrimSpace(*p.ResourceOwnerUsername)
	}
	if p.ResourceID != nil {
		cfg.ResourceID = strings.TrimSpace(*p.ResourceID)
	}

	if p.Resource != nil {
		if ref, ok := ParseResourceReference(*p.Resource); ok {
			cfg.ResourceOwnerUsername = ref.ResourceOwnerUsername
			cfg.ResourceID = ref.ResourceID
			if p.BaseURL == nil {
				cfg.BaseURL = ref.BaseURL
			}
			if p.PortalPrefix == nil && !p.DerivePortalPrefix {
				cfg.PortalPrefix = stringPtr(ref.PortalPrefix)
			}
		} else {
			cfg.ResourceOwnerUsername = ""
			cfg.ResourceID = ""
		}
	}

	if p.BaseURL != nil {
		base := normalizeBaseURL(*p.BaseURL)
		if base == "" {
			base = DefaultBaseURL
		}
		cfg.BaseURL = base
	}
	switch {
	case p.PortalPrefix != nil:
		cfg.PortalPrefix = stringPtr(normalizePortalPrefix(*p.PortalPrefix))
	case p.DerivePortalPrefix:
		cfg.PortalPrefix = nil
	}

	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.VerifySSL != nil {
		cfg.VerifySSL = *p.VerifySSL
	}
	if p.TimeoutSeconds != nil {
		cfg.Timeout = secondsToDuration(*p.TimeoutSeconds)
	}
	if p.Debug != nil {
		cfg.Debug = *p.Debug
	}

	switch {
	case p.CloudLevel != nil:
		cfg.CloudLevel = cloud
	case p.Debug != nil && *p.Debug && cfg.CloudLevel.Enabled():
		cfg.CloudLevel = AtLevel(LevelDebug)
	}

	if p.MCPURL != nil {
		cfg.MCP.ServerURL = strings.TrimSpace(*p.MCPURL)
	}
	if p.MCPLabel != nil {
		cfg.MCP.ServerLabel = strings.TrimSpace(*p.MCPLabel)
	}
	if p.MCPAPIKeyHeader != nil {
		cfg.MCP.APIKeyHeader = strings.TrimSpace(*p.MCPAPIKeyHeader)
	}
	if p.MCPUsernameHeader != nil {
		cfg.MCP.UsernameHeader = strings.TrimSpace(*p.MCPUsernameHeader)
	}
	if p.MCPRequireApproval != nil {
		cfg.MCP.RequireApproval = strings.TrimSpace(*p.MCPRequireApproval)
	}
}

// runRefreshHooks runs the OnConfigure hooks with cfg. Hook failures never
// fail the Configure call that triggered them.
func (c *Client) runRefreshHooks(cfg Config, hooks []ConfigureHook) {
	for _, hook := range hooks {
		c.guardHook("configure hook", func() error { return hook(cfg) })
	}
}

func (c *Client) guardHook(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logDiagnostic(c.diagnostics(), slog.LevelWarn, "refresh hook panicked", slog.String("hook", name), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := fn(); err != nil {
		logDiagnostic(c.diagnostics(), slog.LevelWarn, "refresh hook failed", slog.String("hook", name), slog.Any("error", err))
	}
}

// refreshDebugConsole shows diagnostics while debug mode is on.
func (c *Client) refreshDebugConsole(cfg Config) {
	if cfg.Debug {
		c.diagWriter.set(c.debugWriter)
		return
	}
	c.diagWriter.set(nil)
}

// diagnostics returns the logger used for the client's own messages.
func (c *Client) diagnostics() *slog.Logger {
	return c.diagLogger
}

func (c *Client) now() time.Time {
	return c.clock()
}

// deliver sends req and records the outcome. Failures are diagnostics only.
func (c *Client) deliver(ctx context.Context, req alshivalhttp.Request) {
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		c.metrics.incForwarded(outcomeFailed)
		logDiagnostic(c.diagnostics(), slog.LevelWarn, "failed to forward log record", slog.String("url", req.URL), slog.Any("error", err))
		return
	}
	if !resp.OK() {
		c.metrics.incForwarded(outcomeRejected)
		logDiagnostic(c.diagnostics(), slog.LevelWarn, "collector rejected log record", slog.String("url", req.URL), slog.Int("status", resp.StatusCode))
		return
	}
	c.metrics.incForwarded(outcomeDelivered)
}

// Close stops the dispatch queue after delivering what is already queued,
// bounded by the dispatcher's flush timeout. Records logged afterwards are
// dropped.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.dispatcher.Close()
	})
	return c.closeErr
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, creating it from the environment
// on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = NewClient()
	}
	return defaultClient
}

// SetDefault replaces the process-wide client and returns the previous one,
// which may be nil.
func SetDefault(c *Client) *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClient
	defaultClient = c
	return prev
}

// Configure applies p to the default client.
func Configure(p Patch) error { return Default().Configure(p) }

// ConfigureMap applies m to the default client.
func ConfigureMap(m map[string]any) error { return Default().ConfigureMap(m) }

// GetLogger returns the named logger of the default client.
func GetLogger(name string, opts ...LoggerOption) *Logger {
	return Default().Logger(name, opts...)
}

// CurrentMCPTool returns the MCP descriptor of the default client.
func CurrentMCPTool() MCPTool { return Default().MCPTool() }
