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
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Level represents the severity of a log record on the numeric scale shared
// by the local and cloud vocabularies. Higher values are more severe.
type Level int

// Canonical levels. Values between constants are valid custom levels and
// report the name of the nearest lower constant.
const (
	LevelNotSet   Level = 0
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelAlert    Level = 45
	LevelCritical Level = 50
)

// ErrInvalidLevel reports a level token outside the accepted vocabulary.
var ErrInvalidLevel = errors.New("alshival: invalid level")

// namedLevels is ordered from most to least severe for threshold lookups.
var namedLevels = []struct {
	level Level
	name  string
}{
	{LevelCritical, "CRITICAL"},
	{LevelAlert, "ALERT"},
	{LevelError, "ERROR"},
	{LevelWarning, "WARNING"},
	{LevelInfo, "INFO"},
	{LevelDebug, "DEBUG"},
	{LevelNotSet, "NOTSET"},
}

var localLevelAliases = map[string]Level{
	"NOTSET":   LevelNotSet,
	"DEBUG":    LevelDebug,
	"INFO":     LevelInfo,
	"WARNING":  LevelWarning,
	"WARN":     LevelWarning,
	"ERROR":    LevelError,
	"ALERT":    LevelAlert,
	"ALERTS":   LevelAlert,
	"CRITICAL": LevelCritical,
	"FATAL":    LevelCritical,
}

var cloudLevels = map[string]Level{
	"ALERT":   LevelAlert,
	"ERROR":   LevelError,
	"WARNING": LevelWarning,
	"INFO":    LevelInfo,
	"DEBUG":   LevelDebug,
}

var disableTokens = map[string]struct{}{
	"NONE":     {},
	"NULL":     {},
	"FALSE":    {},
	"OFF":      {},
	"DISABLE":  {},
	"DISABLED": {},
}

// cloudDisableToken is the only disable token the cloud vocabulary accepts.
const cloudDisableToken = "NONE"

// String returns the canonical name of the level. Unnamed levels report the
// highest named threshold that does not exceed them, so a custom level 42
// prints as "ERROR".
func (l Level) String() string {
	for _, nl := range namedLevels {
		if l == nl.level {
			return nl.name
		}
	}
	for _, nl := range namedLevels {
		if l >= nl.level {
			return nl.name
		}
	}
	return "NOTSET"
}

// Slog maps the level onto the closest log/slog level for local display.
func (l Level) Slog() slog.Level {
	switch {
	case l < LevelInfo:
		return slog.LevelDebug
	case l < LevelWarning:
		return slog.LevelInfo
	case l < LevelError:
		return slog.LevelWarn
	case l < LevelAlert:
		return slog.LevelError
	case l < LevelCritical:
		return slog.LevelError + 2
	default:
		return slog.LevelError + 4
	}
}

// levelFromSlog is the inverse of Level.Slog for records arriving through the
// slog adapter.
func levelFromSlog(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return LevelDebug
	case level < slog.LevelWarn:
		return LevelInfo
	case level < slog.LevelError:
		return LevelWarning
	case level < slog.LevelError+2:
		return LevelError
	case level < slog.LevelError+4:
		return LevelAlert
	default:
		return LevelCritical
	}
}

// LevelNameFromNo returns the name reported for the numeric level n.
func LevelNameFromNo(n int) string { return Level(n).String() }

// Threshold is a minimum level that may also be disabled. The zero value is
// disabled.
type Threshold struct {
	level   Level
	enabled bool
}

// Disabled returns a threshold that never allows a record.
func Disabled() Threshold { return Threshold{} }

// AtLevel returns an enabled threshold at l.
func AtLevel(l Level) Threshold { return Threshold{level: l, enabled: true} }

// Enabled reports whether the threshold is a numeric level.
func (t Threshold) Enabled() bool { return t.enabled }

// Level returns the numeric level. It is meaningless when the threshold is
// disabled.
func (t Threshold) Level() Level { return t.level }

// Allows reports whether a record at l passes the threshold.
func (t Threshold) Allows(l Level) bool { return t.enabled && l >= t.level }

// String returns the level name, or "NONE" when disabled.
func (t Threshold) String() string {
	if !t.enabled {
		return cloudDisableToken
	}
	return t.level.String()
}

// CoerceLevel converts a level in the local vocabulary. It accepts nil and
// false (disabled), Go integer and float kinds (truncated), Level, Threshold,
// and strings holding a level name, an alias, a disable token or an integer.
// Boolean true is always rejected.
func CoerceLevel(v any) (Threshold, error) {
	switch val := v.(type) {
	case nil:
		return Disabled(), nil
	case Threshold:
		return val, nil
	case Level:
		return AtLevel(val), nil
	case bool:
		if val {
			return Threshold{}, fmt.Errorf("%w: true is not a level", ErrInvalidLevel)
		}
		return Disabled(), nil
	case int:
		return AtLevel(Level(val)), nil
	case int8:
		return AtLevel(Level(val)), nil
	case int16:
		return AtLevel(Level(val)), nil
	case int32:
		return AtLevel(Level(val)), nil
	case int64:
		return coerceSignedLevel(val)
	case uint:
		return coerceUnsignedLevel(uint64(val))
	case uint8:
		return AtLevel(Level(val)), nil
	case uint16:
		return AtLevel(Level(val)), nil
	case uint32:
		return coerceUnsignedLevel(uint64(val))
	case uint64:
		return coerceUnsignedLevel(val)
	case float32:
		return coerceFloatLevel(float64(val))
	case float64:
		return coerceFloatLevel(val)
	case string:
		return coerceLevelString(val)
	default:
		return Threshold{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidLevel, v)
	}
}

// coerceSignedLevel rejects values that do not fit in a Level.
func coerceSignedLevel(n int64) (Threshold, error) {
	if n < math.MinInt || n > math.MaxInt {
		return Threshold{}, fmt.Errorf("%w: %d out of range", ErrInvalidLevel, n)
	}
	return AtLevel(Level(n)), nil
}

func coerceUnsignedLevel(n uint64) (Threshold, error) {
	if n > math.MaxInt {
		return Threshold{}, fmt.Errorf("%w: %d out of range", ErrInvalidLevel, n)
	}
	return AtLevel(Level(n)), nil
}

func coerceFloatLevel(f float64) (Threshold, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Threshold{}, fmt.Errorf("%w: %v", ErrInvalidLevel, f)
	}
	f = math.Trunc(f)
	if f < math.MinInt || f >= -math.MinInt {
		return Threshold{}, fmt.Errorf("%w: %v out of range", ErrInvalidLevel, f)
	}
	return AtLevel(Level(f)), nil
}

func coerceLevelString(raw string) (Threshold, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := disableTokens[token]; ok {
		return Disabled(), nil
	}
	if lvl, ok := localLevelAliases[token]; ok {
		return AtLevel(lvl), nil
	}
	if n, err := strconv.Atoi(token); err == nil {
		return AtLevel(Level(n)), nil
	}
	return Threshold{}, fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
}

// CoerceCloudLevel converts a level in the cloud vocabulary. Only the names
// ALERT, ERROR, WARNING, INFO and DEBUG are accepted, plus NONE to disable
// forwarding. Values that are not strings are rejected, integers included.
func CoerceCloudLevel(v any) (Threshold, error) {
	raw, ok := v.(string)
	if !ok {
		return Threshold{}, fmt.Errorf("%w: cloud level must be a name, got %T", ErrInvalidLevel, v)
	}
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == cloudDisableToken {
		return Disabled(), nil
	}
	if lvl, ok := cloudLevels[token]; ok {
		return AtLevel(lvl), nil
	}
	return Threshold{}, fmt.Errorf("%w: %q is not a cloud level", ErrInvalidLevel, raw)
}
