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

// Package alshival is a client-side logging facade that writes records
// locally and forwards qualifying ones to an Alshival resource over HTTP.
// Forwarding is fire-and-forget: network and configuration problems never
// surface to the logging caller.
//
// A [Client] holds the configuration, starting from ALSHIVAL_* environment
// variables (optionally loaded from a .env file) and updated by
// [Client.Configure]. A record is forwarded only when forwarding is enabled,
// the cloud level is not disabled, the record level reaches the cloud level
// (or the handler's own override), an API key and username are configured,
// and a resource id is known.
//
// The destination can be given as a single resource URL:
//
//	https://alshival.ai/DevTools/u/<owner>/resources/<id>/
//
// # Quick Start
//
//	_ = alshival.Configure(alshival.Patch{
//	    Username: alshival.String("sam"),
//	    APIKey:   alshival.String(os.Getenv("ALSHIVAL_API_KEY")),
//	    Resource: alshival.String("https://alshival.ai/DevTools/u/sam/resources/abc123/"),
//	})
//	defer alshival.Default().Close() // delivers queued records
//
//	log := alshival.GetLogger("billing")
//	log.Info("charged %d accounts", n)
//	log.Error("charge failed", alshival.CallOptions{
//	    ResourceID: "payments",
//	    Extra:      map[string]any{"account": id},
//	})
//
// Existing loggers can be mirrored with [Logger.Attach], and any
// [log/slog] logger can forward through [CloudHandler.Slog].
//
// # Subpackages
//
//   - [github.com/alshival/alshival-go/alshivalhttp] is the HTTP transport.
//   - [github.com/alshival/alshival-go/alshivalasync] is the background
//     queue that delivers forwards.
package alshival
