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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestSendPostsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	type captured struct {
		method, contentType, apiKey string
		body                        string
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			apiKey:      r.Header.Get("x-api-key"),
			body:        string(body),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSender(WithTracerProvider(noop.NewTracerProvider()))
	resp, err := s.Send(context.Background(), Request{
		URL:       srv.URL + "/u/o/resources/r/logs/",
		Body:      []byte(`{"ok":true}`),
		Headers:   map[string]string{"x-api-key": "k"},
		Timeout:   time.Second,
		VerifyTLS: true,
	})
	if err != nil {
		t.Fatalf("Send returned %v", err)
	}
	if resp.StatusCode != http.StatusCreated || !resp.OK() {
		t.Fatalf("response = %+v, want 201", resp)
	}
	c := <-got
	if c.method != http.MethodPost || c.contentType != "application/json" || c.apiKey != "k" || c.body != `{"ok":true}` {
		t.Fatalf("server saw %+v", c)
	}
}

func TestSendReturnsErrorStatusAsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := NewSender(WithoutInstrumentation()).Send(context.Background(), Request{URL: srv.URL, VerifyTLS: true})
	if err != nil {
		t.Fatalf("Send returned %v, want a response", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || resp.OK() {
		t.Fatalf("response = %+v, want 500", resp)
	}
}

func TestSendTimeoutIsError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewSender(WithoutInstrumentation()).Send(context.Background(), Request{
		URL:       srv.URL,
		Timeout:   50 * time.Millisecond,
		VerifyTLS: true,
	})
	if err == nil {
		t.Fatalf("Send returned nil error after the timeout")
	}
}

func TestSendConnectionFailureIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewSender().Send(context.Background(), Request{URL: url, Timeout: time.Second, VerifyTLS: true}); err == nil {
		t.Fatalf("Send to a closed server returned nil error")
	}
}

func TestSendVerifyTLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSender(WithoutInstrumentation())
	if _, err := s.Send(context.Background(), Request{URL: srv.URL, Timeout: time.Second, VerifyTLS: true}); err == nil {
		t.Fatalf("self-signed certificate accepted with verification on")
	}
	resp, err := s.Send(context.Background(), Request{URL: srv.URL, Timeout: time.Second, VerifyTLS: false})
	if err != nil {
		t.Fatalf("Send with verification off returned %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
}

func TestWithBaseTransport(t *testing.T) {
	t.Parallel()

	var called bool
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})
	resp, err := NewSender(WithBaseTransport(rt)).Send(context.Background(), Request{URL: "https://collector.test/", VerifyTLS: true})
	if err != nil {
		t.Fatalf("Send returned %v", err)
	}
	if !called || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("called=%v status=%d", called, resp.StatusCode)
	}
}

func TestSenderFunc(t *testing.T) {
	t.Parallel()

	var s Sender = SenderFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{StatusCode: len(req.Body)}, nil
	})
	resp, _ := s.Send(context.Background(), Request{Body: []byte("abc")})
	if resp.StatusCode != 3 {
		t.Fatalf("SenderFunc not invoked: %+v", resp)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
