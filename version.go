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

import "fmt"

// SDKName identifies this library in forwarded payloads.
const SDKName = "alshival-go"

// Version is the current version of the SDK, reported as sdk_version in
// forwarded payloads. It can be overridden at build time via -ldflags.
var Version = "v0.3.0"

// UserAgent is sent with every forward request.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("%s/%s", SDKName, Version)
}

// GetVersion returns the current library version string.
func GetVersion() string { return Version }
