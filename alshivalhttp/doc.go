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

// Package alshivalhttp is the transport boundary used to deliver log
// payloads to the collector. A [Sender] posts a JSON body with headers and a
// timeout and reports the HTTP status; non-2xx statuses are ordinary
// responses and only connection failures or timeouts are returned as errors.
//
// [NewSender] builds the default implementation on net/http with
// OpenTelemetry client instrumentation. Supply a [SenderFunc] to route
// payloads elsewhere, for example in tests:
//
//	client := alshival.NewClient(alshival.WithSender(
//		alshivalhttp.SenderFunc(func(ctx context.Context, req alshivalhttp.Request) (alshivalhttp.Response, error) {
//			return alshivalhttp.Response{StatusCode: 202}, nil
//		}),
//	))
package alshivalhttp
