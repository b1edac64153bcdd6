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
	"maps"
	"strings"
)

const (
	defaultMCPLabel           = "alshival-mcp"
	defaultMCPAPIKeyHeader    = "x-api-key"
	defaultMCPUsernameHeader  = "x-user-username"
	defaultMCPRequireApproval = "never"
)

// MCPTool is a remote MCP tool descriptor in the shape accepted by
// tool-calling model APIs.
type MCPTool struct {
	Type            string            `json:"type" yaml:"type"`
	ServerLabel     string            `json:"server_label" yaml:"server_label"`
	ServerURL       string            `json:"server_url" yaml:"server_url"`
	RequireApproval string            `json:"require_approval" yaml:"require_approval"`
	Headers         map[string]string `json:"headers" yaml:"headers"`
}

func defaultMCPSettings() MCPSettings {
	return MCPSettings{
		ServerLabel:     defaultMCPLabel,
		APIKeyHeader:    defaultMCPAPIKeyHeader,
		UsernameHeader:  defaultMCPUsernameHeader,
		RequireApproval: defaultMCPRequireApproval,
	}
}

// BuildMCPTool derives the MCP descriptor for cfg. Credential headers are
// omitted when their value is empty.
func BuildMCPTool(cfg Config) MCPTool {
	settings := cfg.MCP
	defaults := defaultMCPSettings()
	label := firstNonEmpty(settings.ServerLabel, defaults.ServerLabel)
	apiKeyHeader := firstNonEmpty(settings.APIKeyHeader, defaults.APIKeyHeader)
	usernameHeader := firstNonEmpty(settings.UsernameHeader, defaults.UsernameHeader)
	approval := firstNonEmpty(settings.RequireApproval, defaults.RequireApproval)

	serverURL := strings.TrimSpace(settings.ServerURL)
	if serverURL == "" {
		serverURL = cfg.origin() + cfg.ResolvedPortalPrefix() + "/mcp/"
	}

	headers := make(map[string]string, 2)
	if cfg.APIKey != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}
	if cfg.Username != "" {
		headers[usernameHeader] = cfg.Username
	}

	return MCPTool{
		Type:            "mcp",
		ServerLabel:     label,
		ServerURL:       serverURL,
		RequireApproval: approval,
		Headers:         headers,
	}
}

// clone returns a copy whose header map is not shared.
func (t MCPTool) clone() MCPTool {
	t.Headers = maps.Clone(t.Headers)
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
