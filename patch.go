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
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPatch reports a configuration patch value of the wrong type.
var ErrInvalidPatch = errors.New("alshival: invalid configuration patch")

// Patch is a partial configuration update for Client.Configure. Nil fields
// are left untouched.
type Patch struct {
	Username              *string `json:"username,omitempty" yaml:"username,omitempty"`
	ResourceOwnerUsername *string `json:"resourceOwnerUsername,omitempty" yaml:"resourceOwnerUsername,omitempty"`
	APIKey                *string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL               *string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	PortalPrefix          *string `json:"portalPrefix,omitempty" yaml:"portalPrefix,omitempty"`
	ResourceID            *string `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
	// Resource is a resource URL; see ParseResourceReference.
	Resource       *string  `json:"resource,omitempty" yaml:"resource,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	CloudLevel     *string  `json:"cloudLevel,omitempty" yaml:"cloudLevel,omitempty"`
	TimeoutSeconds *float64 `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	VerifySSL      *bool    `json:"verifySsl,omitempty" yaml:"verifySsl,omitempty"`
	Debug          *bool    `json:"debug,omitempty" yaml:"debug,omitempty"`

	MCPURL             *string `json:"mcpUrl,omitempty" yaml:"mcpUrl,omitempty"`
	MCPLabel           *string `json:"mcpLabel,omitempty" yaml:"mcpLabel,omitempty"`
	MCPAPIKeyHeader    *string `json:"mcpApiKeyHeader,omitempty" yaml:"mcpApiKeyHeader,omitempty"`
	MCPUsernameHeader  *string `json:"mcpUsernameHeader,omitempty" yaml:"mcpUsernameHeader,omitempty"`
	MCPRequireApproval *string `json:"mcpRequireApproval,omitempty" yaml:"mcpRequireApproval,omitempty"`

	// DerivePortalPrefix resets the prefix so it is derived from the base
	// URL. An explicit PortalPrefix in the same patch takes precedence.
	DerivePortalPrefix bool `json:"-" yaml:"-"`
}

// String returns a pointer to v for building Patch literals.
func String(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// patchKey pairs a canonical key with its snake_case synonym.
type patchKey struct {
	canonical string
	alternate string
}

var (
	keyUsername           = patchKey{"username", ""}
	keyOwner              = patchKey{"resourceOwnerUsername", "resource_owner_username"}
	keyAPIKey             = patchKey{"apiKey", "api_key"}
	keyBaseURL            = patchKey{"baseUrl", "base_url"}
	keyPortalPrefix       = patchKey{"portalPrefix", "portal_prefix"}
	keyResourceID         = patchKey{"resourceId", "resource_id"}
	keyResource           = patchKey{"resource", ""}
	keyEnabled            = patchKey{"enabled", ""}
	keyCloudLevel         = patchKey{"cloudLevel", "cloud_level"}
	keyTimeoutSeconds     = patchKey{"timeoutSeconds", "timeout_seconds"}
	keyVerifySSL          = patchKey{"verifySsl", "verify_ssl"}
	keyDebug              = patchKey{"debug", ""}
	keyMCPURL             = patchKey{"mcpUrl", "mcp_url"}
	keyMCPLabel           = patchKey{"mcpLabel", "mcp_label"}
	keyMCPAPIKeyHeader    = patchKey{"mcpApiKeyHeader", "mcp_api_key_header"}
	keyMCPUsernameHeader  = patchKey{"mcpUsernameHeader", "mcp_username_header"}
	keyMCPRequireApproval = patchKey{"mcpRequireApproval", "mcp_require_approval"}
)

// lookup returns the value under the canonical key, else the synonym.
func (k patchKey) lookup(m map[string]any) (any, bool) {
	if v, ok := m[k.canonical]; ok {
		return v, true
	}
	if k.alternate != "" {
		if v, ok := m[k.alternate]; ok {
			return v, true
		}
	}
	return nil, false
}

// PatchFromMap converts a loosely typed map, such as decoded JSON or YAML,
// into a Patch. Keys may use camelCase or snake_case; when both spellings
// are present the camelCase value wins. A nil portalPrefix requests a
// derived prefix; other nil values leave the field untouched.
func PatchFromMap(m map[string]any) (Patch, error) {
	var p Patch
	var err error
	strField := func(k patchKey) *string {
		v, ok := k.lookup(m)
		if !ok || v == nil || err != nil {
			return nil
		}
		s, convErr := stringValue(v)
		if convErr != nil {
			err = fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k.canonical, convErr)
			return nil
		}
		return &s
	}
	boolField := func(k patchKey) *bool {
		v, ok := k.lookup(m)
		if !ok || v == nil || err != nil {
			return nil
		}
		b, convErr := boolValue(v)
		if convErr != nil {
			err = fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k.canonical, convErr)
			return nil
		}
		return &b
	}

	p.Username = strField(keyUsername)
	p.ResourceOwnerUsername = strField(keyOwner)
	p.APIKey = strField(keyAPIKey)
	p.BaseURL = strField(keyBaseURL)
	if v, ok := keyPortalPrefix.lookup(m); ok && v == nil {
		p.DerivePortalPrefix = true
	} else {
		p.PortalPrefix = strField(keyPortalPrefix)
	}
	p.ResourceID = strField(keyResourceID)
	p.Resource = strField(keyResource)
	p.Enabled = boolField(keyEnabled)
	p.VerifySSL = boolField(keyVerifySSL)
	p.Debug = boolField(keyDebug)
	p.MCPURL = strField(keyMCPURL)
	p.MCPLabel = strField(keyMCPLabel)
	p.MCPAPIKeyHeader = strField(keyMCPAPIKeyHeader)
	p.MCPUsernameHeader = strField(keyMCPUsernameHeader)
	p.MCPRequireApproval = strField(keyMCPRequireApproval)

	if v, ok := keyCloudLevel.lookup(m); ok && v != nil && err == nil {
		s, isString := v.(string)
		if !isString {
			// Cloud levels are names only; reject numbers and booleans the
			// same way CoerceCloudLevel does.
			_, cerr := CoerceCloudLevel(v)
			return Patch{}, cerr
		}
		p.CloudLevel = &s
	}

	if v, ok := keyTimeoutSeconds.lookup(m); ok && v != nil && err == nil {
		secs, convErr := floatValue(v)
		if convErr != nil {
			err = fmt.Errorf("%w: %s: %v", ErrInvalidPatch, keyTimeoutSeconds.canonical, convErr)
		} else {
			p.TimeoutSeconds = &secs
		}
	}

	if err != nil {
		return Patch{}, err
	}
	return p, nil
}

// LoadPatchFile reads a YAML or JSON document of configuration keys.
func LoadPatchFile(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf("alshival: read config %q: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("alshival: decode config %q: %w", path, err)
	}
	return PatchFromMap(raw)
}

func stringValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func boolValue(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(val))
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func floatValue(v any) (float64, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("timeout must be a positive number, got %v", f)
	}
	return f, nil
}
