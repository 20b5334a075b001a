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

// Package redact masks sensitive values in guest fields before they reach a
// tracing backend.
package redact

import (
	"regexp"
	"strings"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// redacted replaces masked values.
const redacted = "[REDACTED]"

// RedactionMode determines the level of redaction applied to fields.
type RedactionMode string

const (
	// ModeNone disables redaction (not recommended for production).
	ModeNone RedactionMode = "none"

	// ModeStandard applies pattern-based redaction for common secrets.
	ModeStandard RedactionMode = "standard"

	// ModeStrict redacts all attribute values (only keys preserved).
	ModeStrict RedactionMode = "strict"
)

// ParseMode converts a configuration string to a mode. Unknown values fall
// back to ModeStandard.
func ParseMode(s string) RedactionMode {
	switch RedactionMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNone:
		return ModeNone
	case ModeStrict:
		return ModeStrict
	default:
		return ModeStandard
	}
}

// Pattern defines a redaction pattern with a name and regular expression.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// StandardPatterns returns the default set of redaction patterns.
func StandardPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "api_key",
			Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=[REDACTED]",
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_\-\.]{20,})`),
			Replacement: "$1[REDACTED]",
		},
		{
			Name:        "password",
			Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["\s:=]+([^\s"]+)`),
			Replacement: "$1=[REDACTED]",
		},
		{
			Name:        "aws_key",
			Regex:       regexp.MustCompile(`(AKIA[0-9A-Z]{16})`),
			Replacement: "[REDACTED-AWS-KEY]",
		},
		{
			Name:        "private_key",
			Regex:       regexp.MustCompile(`(?s)(-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----).*?(-----END (RSA |EC |DSA )?PRIVATE KEY-----)`),
			Replacement: "$1[REDACTED]$3",
		},
		{
			Name:        "email",
			Regex:       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			Replacement: "[REDACTED-EMAIL]",
		},
		{
			Name:        "ssn",
			Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Replacement: "[REDACTED-SSN]",
		},
		{
			Name:        "credit_card",
			Regex:       regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
			Replacement: "[REDACTED-CC]",
		},
		{
			Name:        "jwt",
			Regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Replacement: "[REDACTED-JWT]",
		},
		{
			Name:        "generic_secret",
			Regex:       regexp.MustCompile(`(?i)(secret|token)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=[REDACTED]",
		},
	}
}

// Redactor applies redaction rules to field values. A nil Redactor passes
// fields through unchanged.
type Redactor struct {
	mode     RedactionMode
	patterns []Pattern
}

// NewRedactor creates a new redactor with the specified mode.
func NewRedactor(mode RedactionMode) *Redactor {
	return &Redactor{
		mode:     mode,
		patterns: StandardPatterns(),
	}
}

// NewRedactorWithPatterns creates a redactor with custom patterns.
func NewRedactorWithPatterns(mode RedactionMode, patterns []Pattern) *Redactor {
	return &Redactor{
		mode:     mode,
		patterns: patterns,
	}
}

// RedactString applies redaction patterns to a string value.
func (r *Redactor) RedactString(s string) string {
	if r == nil || r.mode == ModeNone {
		return s
	}

	if r.mode == ModeStrict {
		return redacted
	}

	// Apply pattern-based redaction
	result := s
	for _, pattern := range r.patterns {
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// RedactFields returns fields with sensitive values masked. When remapped is
// set the reserved override keys are kept as is so consumers can still
// resolve span names; otherwise they are ordinary fields. Only string and
// debug values are pattern redacted; strict mode masks every value.
func (r *Redactor) RedactFields(fields bridge.FieldSet, remapped bool) bridge.FieldSet {
	if r == nil || r.mode == ModeNone || fields.Len() == 0 {
		return fields
	}

	out := make([]bridge.Field, 0, fields.Len())
	for _, f := range fields.All() {
		v, ok := f.Value()
		switch {
		case !ok || (remapped && bridge.IsReservedKey(f.Name)):
			out = append(out, f)
		case r.shouldRedactKey(f.Name) || r.mode == ModeStrict:
			out = append(out, bridge.F(f.Name, bridge.Str(redacted)))
		case v.Kind() == bridge.KindStr:
			out = append(out, bridge.F(f.Name, bridge.Str(r.RedactString(v.AsString()))))
		case v.Kind() == bridge.KindDebug:
			out = append(out, bridge.F(f.Name, bridge.DebugStr(r.RedactString(v.AsString()))))
		default:
			out = append(out, f)
		}
	}
	return bridge.NewFieldSet(out...)
}

// shouldRedactKey checks if a field name indicates sensitive data.
func (r *Redactor) shouldRedactKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitiveKeys := []string{
		"password", "passwd", "pwd",
		"secret", "token",
		"api_key", "apikey",
		"private_key", "private",
		"authorization", "auth",
		"cookie", "session",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}
