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

// Package alshivalasync runs fire-and-forget work, such as forwarding log
// records to the collector, on a bounded queue drained by background
// workers. Callers never wait on the network: by default a full queue drops
// the newest job instead of blocking.
//
// Basic usage:
//
//	d := alshivalasync.New(
//		alshivalasync.WithQueueSize(1024),
//		alshivalasync.WithDropMode(alshivalasync.DropModeDropOldest),
//	)
//	defer d.Close() // drains queued jobs up to the flush timeout
//
//	d.Submit(ctx, func(ctx context.Context) { send(ctx) })
//
// The following environment variables are recognized when [WithEnv] is
// supplied:
//   - ALSHIVAL_ASYNC_QUEUE_SIZE: channel capacity (0 makes the queue unbuffered)
//   - ALSHIVAL_ASYNC_DROP_MODE: block | drop_newest | drop_oldest
//   - ALSHIVAL_ASYNC_WORKERS: number of worker goroutines
//   - ALSHIVAL_ASYNC_FLUSH_TIMEOUT: duration string used by Close
//   - ALSHIVAL_ASYNC_SYNCHRONOUS: run jobs inline on the caller
package alshivalasync
