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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alshival/alshival-go/alshivalhttp"
)

// DropReason explains why a record was not forwarded.
type DropReason string

// Drop reasons, in the order the forwarding conditions are evaluated.
const (
	DropDisabled           DropReason = "disabled"
	DropCloudLevelDisabled DropReason = "cloud_level_disabled"
	DropBelowLevel         DropReason = "below_level"
	DropMissingAPIKey      DropReason = "missing_api_key"
	DropMissingUsername    DropReason = "missing_username"
	DropMissingResource    DropReason = "missing_resource"

	// DropQueueFull is recorded when an approved forward is discarded by the
	// dispatcher because its queue is full or closed.
	DropQueueFull DropReason = "queue_full"
)

// Decision is the outcome of evaluating a record against a configuration.
type Decision struct {
	Forward    bool
	ResourceID string
	Reason     DropReason
}

// Handler receives every record that passes a logger's own level floor.
type Handler interface {
	Handle(ctx context.Context, rec Record)
}

// HandlerOption configures a CloudHandler.
type HandlerOption func(*CloudHandler)

// WithHandlerResourceID binds the handler to a fixed destination that takes
// priority over per-call and configured resource ids.
func WithHandlerResourceID(resourceID string) HandlerOption {
	return func(h *CloudHandler) {
		h.resourceID = strings.TrimSpace(resourceID)
	}
}

// WithHandlerCloudLevel sets a minimum level that replaces the configured
// cloud level for this handler. The configured level still decides whether
// forwarding is disabled altogether.
func WithHandlerCloudLevel(level Level) HandlerOption {
	return func(h *CloudHandler) {
		h.override = level
		h.hasOverride = true
	}
}

// CloudHandler forwards qualifying records to the collector. It reads the
// client configuration on every record, so Configure takes effect
// immediately. Handle never blocks on the network and never panics.
type CloudHandler struct {
	client     *Client
	resourceID string

	mu          sync.RWMutex
	override    Level
	hasOverride bool

	// busy is set while a record is delivered inline.
	busy atomic.Bool
}

var _ Handler = (*CloudHandler)(nil)

// NewCloudHandler returns a handler that forwards through client.
func (c *Client) NewCloudHandler(opts ...HandlerOption) *CloudHandler {
	h := &CloudHandler{client: c}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// ResourceID returns the bound destination, or "" when the handler follows
// per-call and configured resource ids.
func (h *CloudHandler) ResourceID() string { return h.resourceID }

// CloudLevel returns the handler override and whether one is set.
func (h *CloudHandler) CloudLevel() (Level, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.override, h.hasOverride
}

// setOverride replaces the override level.
func (h *CloudHandler) setOverride(level Level) {
	h.mu.Lock()
	h.override = level
	h.hasOverride = true
	h.mu.Unlock()
}

// Decide evaluates the forwarding conditions for rec under cfg. All must
// hold: forwarding enabled, cloud level not disabled, record level at or
// above the effective minimum, API key and username present, and a resource
// id resolved from the handler, the record, or cfg, in that order.
func (h *CloudHandler) Decide(cfg Config, rec Record) Decision {
	if !cfg.Enabled {
		return Decision{Reason: DropDisabled}
	}
	if !cfg.CloudLevel.Enabled() {
		return Decision{Reason: DropCloudLevelDisabled}
	}
	minimum := cfg.CloudLevel.Level()
	if override, ok := h.CloudLevel(); ok {
		minimum = override
	}
	if rec.Level < minimum {
		return Decision{Reason: DropBelowLevel}
	}
	if cfg.APIKey == "" {
		return Decision{Reason: DropMissingAPIKey}
	}
	if cfg.Username == "" {
		return Decision{Reason: DropMissingUsername}
	}
	resourceID := firstNonEmpty(h.resourceID, rec.ResourceID, cfg.ResourceID)
	if resourceID == "" {
		return Decision{Reason: DropMissingResource}
	}
	return Decision{Forward: true, ResourceID: resourceID}
}

// Handle decides whether to forward rec and, if so, queues the request.
// Records handled under the library's own emit context are ignored. When the
// dispatcher runs jobs inline the handler is non-reentrant: a record that
// arrives while it is already emitting, for example one logged by the
// Sender, is a no-op.
func (h *CloudHandler) Handle(ctx context.Context, rec Record) {
	if h == nil || h.client == nil || isEmitting(ctx) {
		return
	}
	c := h.client
	if c.dispatcher.Inline() {
		if !h.busy.CompareAndSwap(false, true) {
			return
		}
		defer h.busy.Store(false)
	}
	ctx = withEmitting(ctx)
	defer func() {
		if r := recover(); r != nil {
			logDiagnostic(c.diagnostics(), slog.LevelError, "recovered panic while forwarding record", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	cfg := c.Config()
	decision := h.Decide(cfg, rec)
	if !decision.Forward {
		c.metrics.incDropped(decision.Reason)
		if decision.Reason == DropMissingResource {
			logDiagnostic(c.diagnostics(), slog.LevelWarn, "no resource id configured; record not forwarded", slog.String("logger", rec.Name))
		}
		return
	}

	body, err := encodeJSON(buildPayload(ctx, rec, decision.ResourceID, c.now()))
	if err != nil {
		c.metrics.incForwarded(outcomeFailed)
		logDiagnostic(c.diagnostics(), slog.LevelWarn, "failed to encode log payload", slog.Any("error", err))
		return
	}

	req := alshivalhttp.Request{
		URL:       cfg.LogsEndpoint(decision.ResourceID),
		Body:      body,
		Headers:   forwardHeaders(cfg),
		Timeout:   cfg.Timeout,
		VerifyTLS: cfg.VerifySSL,
	}
	c.dispatcher.Submit(ctx, func(jobCtx context.Context) {
		c.deliver(jobCtx, req)
	})
}
