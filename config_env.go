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
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envResource              = "ALSHIVAL_RESOURCE"
	envUsername              = "ALSHIVAL_USERNAME"
	envResourceOwnerUsername = "ALSHIVAL_RESOURCE_OWNER_USERNAME"
	envAPIKey                = "ALSHIVAL_API_KEY"
	envBaseURL               = "ALSHIVAL_BASE_URL"
	envPortalPrefix          = "ALSHIVAL_PORTAL_PREFIX"
	envResourceID            = "ALSHIVAL_RESOURCE_ID"
	envEnabled               = "ALSHIVAL_ENABLED"
	envCloudLevel            = "ALSHIVAL_CLOUD_LEVEL"
	envDebug                 = "ALSHIVAL_DEBUG"
	envTimeoutSeconds        = "ALSHIVAL_TIMEOUT_SECONDS"
	envVerifySSL             = "ALSHIVAL_VERIFY_SSL"
	envMCPURL                = "ALSHIVAL_MCP_URL"
	envMCPLabel              = "ALSHIVAL_MCP_LABEL"
	envMCPAPIKeyHeader       = "ALSHIVAL_MCP_API_KEY_HEADER"
	envMCPUsernameHeader     = "ALSHIVAL_MCP_USERNAME_HEADER"
	envMCPRequireApproval    = "ALSHIVAL_MCP_REQUIRE_APPROVAL"

	// EnvFile names a dotenv file consulted by DefaultEnvironment instead
	// of ".env".
	EnvFile = "ALSHIVAL_ENV_FILE"
)

// Environment supplies configuration variables.
type Environment interface {
	LookupEnv(key string) (string, bool)
}

// OSEnvironment reads the process environment.
type OSEnvironment struct{}

// LookupEnv implements Environment.
func (OSEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnvironment serves variables from a map.
type MapEnvironment map[string]string

// LookupEnv implements Environment.
func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// layeredEnvironment consults each layer in order and returns the first hit.
type layeredEnvironment []Environment

func (l layeredEnvironment) LookupEnv(key string) (string, bool) {
	for _, env := range l {
		if env == nil {
			continue
		}
		if v, ok := env.LookupEnv(key); ok {
			return v, true
		}
	}
	return "", false
}

// DotEnvEnvironment layers the variables from the given dotenv files beneath
// the process environment, so real variables always win. Later files take
// precedence over earlier ones. Every named file must exist and parse.
func DotEnvEnvironment(paths ...string) (Environment, error) {
	return loadDotEnv(paths, true)
}

// DefaultEnvironment returns the process environment layered over
// ALSHIVAL_ENV_FILE when set, or over ".env" and ".env.local" in the working
// directory when they exist. An unreadable file falls back to the bare
// process environment.
func DefaultEnvironment() Environment {
	paths, required := []string{".env", ".env.local"}, false
	if file := strings.TrimSpace(os.Getenv(EnvFile)); file != "" {
		paths, required = []string{file}, true
	}
	env, err := loadDotEnv(paths, required)
	if err != nil {
		return OSEnvironment{}
	}
	return env
}

// loadDotEnv reads paths in order. Missing files are errors only when
// required is set.
func loadDotEnv(paths []string, required bool) (Environment, error) {
	merged := MapEnvironment{}
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			if !required && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return layeredEnvironment{OSEnvironment{}, merged}, nil
}

// ConfigFromEnvironment builds the initial configuration from env. It never
// fails: invalid values are reported to logger and replaced by defaults.
func ConfigFromEnvironment(env Environment, logger *slog.Logger) Config {
	if env == nil {
		env = OSEnvironment{}
	}
	lookup := func(key string) string {
		v, _ := env.LookupEnv(key)
		return strings.TrimSpace(v)
	}

	cfg := defaultConfig()
	cfg.Username = lookup(envUsername)
	cfg.APIKey = lookup(envAPIKey)
	cfg.ResourceOwnerUsername = lookup(envResourceOwnerUsername)
	cfg.ResourceID = lookup(envResourceID)

	explicitBase := lookup(envBaseURL)
	if explicitBase != "" {
		cfg.BaseURL = normalizeBaseURL(explicitBase)
	}
	if raw, ok := env.LookupEnv(envPortalPrefix); ok {
		cfg.PortalPrefix = stringPtr(normalizePortalPrefix(raw))
	}

	if raw := lookup(envResource); raw != "" {
		if ref, ok := ParseResourceReference(raw); ok {
			cfg.ResourceOwnerUsername = ref.ResourceOwnerUsername
			cfg.ResourceID = ref.ResourceID
			if explicitBase == "" {
				cfg.BaseURL = ref.BaseURL
				if cfg.PortalPrefix == nil {
					cfg.PortalPrefix = stringPtr(ref.PortalPrefix)
				}
			}
		} else {
			logDiagnostic(logger, slog.LevelWarn, "ignoring unparseable resource URL", slog.String("variable", envResource), slog.String("value", raw))
		}
	}

	cfg.Enabled = parseBoolEnv(lookup(envEnabled), cfg.Enabled, logger)
	cfg.Debug = parseBoolEnv(lookup(envDebug), cfg.Debug, logger)
	cfg.VerifySSL = parseBoolEnv(lookup(envVerifySSL), cfg.VerifySSL, logger)
	cfg.Timeout = parseSecondsEnv(lookup(envTimeoutSeconds), cfg.Timeout, logger)

	cloudDefault := AtLevel(LevelInfo)
	if cfg.Debug {
		cloudDefault = AtLevel(LevelDebug)
	}
	cfg.CloudLevel = parseCloudLevelEnv(lookup(envCloudLevel), cloudDefault, logger)

	cfg.MCP.ServerURL = lookup(envMCPURL)
	if v := lookup(envMCPLabel); v != "" {
		cfg.MCP.ServerLabel = v
	}
	if v := lookup(envMCPAPIKeyHeader); v != "" {
		cfg.MCP.APIKeyHeader = v
	}
	if v := lookup(envMCPUsernameHeader); v != "" {
		cfg.MCP.UsernameHeader = v
	}
	if v := lookup(envMCPRequireApproval); v != "" {
		cfg.MCP.RequireApproval = v
	}

	return cfg
}

// parseBoolEnv interprets truthy environment variable values, retaining the
// current value on failure.
func parseBoolEnv(value string, current bool, logger *slog.Logger) bool {
	if value == "" {
		return current
	}
	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid boolean environment variable", slog.String("value", value), slog.Any("error", err))
		return current
	}
	return b
}

// parseSecondsEnv parses a positive number of seconds.
func parseSecondsEnv(value string, current time.Duration, logger *slog.Logger) time.Duration {
	if value == "" {
		return current
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		logDiagnostic(logger, slog.LevelWarn, "invalid timeout environment variable", slog.String("value", value))
		return current
	}
	return secondsToDuration(secs)
}

// parseCloudLevelEnv coerces a cloud level, falling back to current.
func parseCloudLevelEnv(value string, current Threshold, logger *slog.Logger) Threshold {
	if value == "" {
		return current
	}
	t, err := CoerceCloudLevel(value)
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid cloud level environment variable", slog.String("value", value), slog.Any("error", err))
		return current
	}
	return t
}

// LevelFromEnv reads a local-vocabulary level from the process environment,
// returning def when the variable is unset or invalid.
func LevelFromEnv(key string, def Threshold) Threshold {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	t, err := CoerceLevel(raw)
	if err != nil {
		return def
	}
	return t
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers. The context is marked so cloud handlers reached through the
// diagnostic logger do not forward the message.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(withEmitting(context.Background()), level, msg, attrs...)
}
