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
	"bytes"
	"encoding/json"
	"sync"
)

type jsonEncoderOption func(*json.Encoder)

// Messages routinely contain <, > and & which the collector stores verbatim.
var jsonEncoderOptions = []jsonEncoderOption{
	func(enc *json.Encoder) { enc.SetEscapeHTML(false) },
}

var encodeBufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// encodeJSON marshals payload into a fresh byte slice without the trailing
// newline json.Encoder appends.
func encodeJSON(payload any) ([]byte, error) {
	buf := encodeBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer encodeBufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	for _, opt := range jsonEncoderOptions {
		opt(enc)
	}
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
