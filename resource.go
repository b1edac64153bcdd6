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
)

// ResourceReference identifies a remote log destination parsed from a
// resource URL of the form
//
//	https://host[/Prefix...]/u/<owner>/resources/<id>[/logs]/
type ResourceReference struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	PortalPrefix          string `json:"portal_prefix" yaml:"portal_prefix"`
	ResourceOwnerUsername string `json:"resource_owner_username" yaml:"resource_owner_username"`
	ResourceID            string `json:"resource_id" yaml:"resource_id"`
}

// ParseResourceReference extracts a ResourceReference from raw. The second
// result is false when raw is not a URL or its path does not follow the
// resource convention; that outcome is not an error.
func ParseResourceReference(raw string) (ResourceReference, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ResourceReference{}, false
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ResourceReference{}, false
	}

	segments := pathSegments(u.EscapedPath())
	if n := len(segments); n > 0 && strings.EqualFold(segments[n-1], "logs") {
		segments = segments[:n-1]
	}

	for i := 0; i+3 < len(segments); i++ {
		if segments[i] != "u" || segments[i+2] != "resources" {
			continue
		}
		owner := decodeSegment(segments[i+1])
		id := decodeSegment(segments[i+3])
		if owner == "" || id == "" {
			return ResourceReference{}, false
		}
		return ResourceReference{
			BaseURL:               strings.TrimRight(u.Scheme+"://"+u.Host, "/"),
			PortalPrefix:          joinPrefix(segments[:i]),
			ResourceOwnerUsername: owner,
			ResourceID:            id,
		}, true
	}
	return ResourceReference{}, false
}

// URL returns the canonical resource URL for the reference.
func (r ResourceReference) URL() string {
	return r.BaseURL + r.PortalPrefix + "/u/" + url.PathEscape(r.ResourceOwnerUsername) +
		"/resources/" + url.PathEscape(r.ResourceID) + "/"
}

// LogsURL returns the collector endpoint for the reference.
func (r ResourceReference) LogsURL() string {
	return r.URL() + "logs/"
}

// pathSegments splits p on "/" and drops empty segments.
func pathSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decodeSegment percent-decodes and trims a path segment, keeping the raw
// text when it is not valid escaping.
func decodeSegment(seg string) string {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		decoded = seg
	}
	return strings.TrimSpace(decoded)
}

// joinPrefix renders segments as "" or "/A/B".
func joinPrefix(segments []string) string {
	prefix := "/" + strings.Join(segments, "/")
	if prefix == "/" {
		return ""
	}
	return prefix
}

// normalizePortalPrefix cleans an explicitly supplied prefix into "" or
// "/A/B" form.
func normalizePortalPrefix(raw string) string {
	return joinPrefix(pathSegments(strings.TrimSpace(raw)))
}
