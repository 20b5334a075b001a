// Copyright 2025 Tom Barlow
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

package bridge

import (
	"fmt"
	"strings"
)

// Level is the severity of a span or event.
// Levels are totally ordered: TRACE < DEBUG < INFO < WARN < ERROR.
type Level uint8

const (
	// LevelTrace is the most verbose level.
	LevelTrace Level = iota
	// LevelDebug is for diagnostic detail.
	LevelDebug
	// LevelInfo is for routine operation.
	LevelInfo
	// LevelWarn is for unexpected but handled conditions.
	LevelWarn
	// LevelError is for failures.
	LevelError
)

// Levels lists every level in ascending order.
var Levels = [...]Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError}

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", uint8(l))
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	return l <= LevelError
}

// Enabled reports whether l is at or above min.
func (l Level) Enabled(min Level) bool {
	return l >= min
}

// ParseLevel parses a level name. Matching is case insensitive and accepts
// "warning" as an alias for WARN.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid level %d", uint8(l))
	}
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
