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
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the collector used when no base URL is configured.
	DefaultBaseURL = "https://alshival.ai"

	// DefaultTimeout bounds a single forward request.
	DefaultTimeout = 5 * time.Second

	// hostedPortalPrefix is implied for the first-party hosted domain.
	hostedPortalPrefix = "/DevTools"
)

var hostedPortalHosts = map[string]struct{}{
	"alshival.ai":     {},
	"www.alshival.ai": {},
}

// Config is a snapshot of the client configuration. Empty strings stand for
// unset values. PortalPrefix is nil when the prefix should be derived from
// BaseURL at read time.
type Config struct {
	Username              string
	ResourceOwnerUsername string
	APIKey                string
	BaseURL               string
	PortalPrefix          *string
	ResourceID            string
	Enabled               bool
	CloudLevel            Threshold
	Timeout               time.Duration
	VerifySSL             bool
	Debug                 bool
	MCP                   MCPSettings
}

// MCPSettings controls the MCP tool descriptor kept in sync with the
// configuration.
type MCPSettings struct {
	// ServerURL overrides the derived "{base}{prefix}/mcp/" endpoint.
	ServerURL       string
	ServerLabel     string
	APIKeyHeader    string
	UsernameHeader  string
	RequireApproval string
}

// defaultConfig returns the configuration used before the environment is
// consulted.
func defaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Enabled:    true,
		CloudLevel: AtLevel(LevelInfo),
		Timeout:    DefaultTimeout,
		VerifySSL:  true,
		MCP:        defaultMCPSettings(),
	}
}

// clone returns a copy that shares no pointers with c.
func (c Config) clone() Config {
	if c.PortalPrefix != nil {
		p := *c.PortalPrefix
		c.PortalPrefix = &p
	}
	return c
}

// ResolvedPortalPrefix returns the path prefix placed in front of resource
// endpoints. An explicit prefix is returned verbatim, including "". Otherwise
// the path of BaseURL is used, and failing that the hosted domain implies
// "/DevTools" while every other host gets "".
func (c Config) ResolvedPortalPrefix() string {
	if c.PortalPrefix != nil {
		return *c.PortalPrefix
	}
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return ""
	}
	if prefix := joinPrefix(pathSegments(u.EscapedPath())); prefix != "" {
		return prefix
	}
	if _, ok := hostedPortalHosts[strings.ToLower(u.Hostname())]; ok {
		return hostedPortalPrefix
	}
	return ""
}

// origin returns scheme and host of BaseURL without any path.
func (c Config) origin() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}

// owner returns the username that owns the destination resource.
func (c Config) owner() string {
	if c.ResourceOwnerUsername != "" {
		return c.ResourceOwnerUsername
	}
	return c.Username
}

// LogsEndpoint returns the collector URL for resourceID.
func (c Config) LogsEndpoint(resourceID string) string {
	return c.origin() + c.ResolvedPortalPrefix() +
		"/u/" + url.PathEscape(c.owner()) +
		"/resources/" + url.PathEscape(resourceID) + "/logs/"
}

// Redacted returns a copy safe for display, with the API key masked.
func (c Config) Redacted() Config {
	out := c.clone()
	if out.APIKey != "" {
		out.APIKey = redactSecret(out.APIKey)
	}
	return out
}

func redactSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// normalizeBaseURL trims whitespace and trailing slashes.
func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// stringPtr returns a pointer to s.
func stringPtr(s string) *string { return &s }
