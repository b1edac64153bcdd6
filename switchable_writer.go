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
	"fmt"
	"io"
	"sync"
)

// switchableWriter is an io.Writer whose destination can be swapped while
// handlers hold on to it. The client routes its diagnostics through one so
// toggling debug mode does not rebuild the diagnostic logger.
type switchableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// newSwitchableWriter returns a writer directed at w, or io.Discard when w
// is nil.
func newSwitchableWriter(w io.Writer) *switchableWriter {
	if w == nil {
		w = io.Discard
	}
	return &switchableWriter{w: w}
}

// Write directs p to the current destination.
func (sw *switchableWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	n, err := sw.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write via switchable writer: %w", err)
	}
	return n, nil
}

// set replaces the destination. A nil w discards subsequent writes.
func (sw *switchableWriter) set(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	sw.mu.Lock()
	sw.w = w
	sw.mu.Unlock()
}

// current returns the destination writes are sent to.
func (sw *switchableWriter) current() io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w
}
