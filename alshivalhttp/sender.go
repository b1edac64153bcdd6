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

package alshivalhttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxIdleConnsPerHost = 4
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second

	// maxDrainBytes bounds how much of a response body is read before the
	// connection is returned to the pool.
	maxDrainBytes = 64 << 10
)

// Request is a single JSON POST to the collector.
type Request struct {
	URL       string
	Body      []byte
	Headers   map[string]string
	Timeout   time.Duration
	VerifyTLS bool
}

// Response carries the status of a completed request. Error statuses are
// ordinary responses, not errors.
type Response struct {
	StatusCode int
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Sender posts JSON payloads. Implementations return an error only for
// connection-level failures and timeouts.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) (Response, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

type config struct {
	base           http.RoundTripper
	tracerProvider trace.TracerProvider
	instrument     bool
}

// Option customizes the HTTP sender.
type Option func(*config)

// WithBaseTransport replaces the transport used for TLS-verifying requests.
// Requests with VerifyTLS disabled always use a dedicated transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.base = rt
	}
}

// WithTracerProvider sets the provider used for client spans. The global
// provider is used when unset.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// WithoutInstrumentation disables OpenTelemetry client instrumentation.
func WithoutInstrumentation() Option {
	return func(c *config) {
		c.instrument = false
	}
}

// HTTPSender is the default Sender backed by net/http.
type HTTPSender struct {
	verified *http.Client
	insecure *http.Client
}

var _ Sender = (*HTTPSender)(nil)

// NewSender returns an HTTPSender. Both of its clients are wrapped with
// otelhttp so forwards appear as client spans and carry trace context.
func NewSender(opts ...Option) *HTTPSender {
	cfg := config{instrument: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	verified := cfg.base
	if verified == nil {
		verified = newTransport(false)
	}
	insecure := http.RoundTripper(newTransport(true))

	if cfg.instrument {
		var otelOpts []otelhttp.Option
		if cfg.tracerProvider != nil {
			otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
		}
		otelOpts = append(otelOpts, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "alshival.forward " + r.Method
		}))
		verified = otelhttp.NewTransport(verified, otelOpts...)
		insecure = otelhttp.NewTransport(insecure, otelOpts...)
	}

	return &HTTPSender{
		verified: &http.Client{Transport: verified},
		insecure: &http.Client{Transport: insecure},
	}
}

func newTransport(skipVerify bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	t.IdleConnTimeout = idleConnTimeout
	t.TLSHandshakeTimeout = tlsHandshakeTimeout
	if skipVerify {
		// #nosec G402 -- verification is disabled only on explicit operator request.
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
	}
	return t
}

// Send posts req.Body to req.URL with req.Headers, bounded by req.Timeout.
func (s *HTTPSender) Send(ctx context.Context, req Request) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := s.verified
	if !req.VerifyTLS {
		client = s.insecure
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("post %s: %w", httpReq.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return Response{StatusCode: resp.StatusCode}, nil
}
