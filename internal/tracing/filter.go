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

package tracing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// Directive sets the minimum level for targets starting with Target.
type Directive struct {
	Target string
	Level  bridge.Level
}

// Filter decides which spans and events a subscriber records. The longest
// matching directive wins; targets with no match use Default.
type Filter struct {
	Default    bridge.Level
	Directives []Directive
}

// AllowAll returns a filter that accepts every level and target.
func AllowAll() Filter {
	return Filter{Default: bridge.LevelTrace}
}

// ParseFilter parses a comma separated directive list. A bare level sets the
// default; "target=level" adds a directive. An empty string allows everything.
//
//	ParseFilter("warn,runtime=debug,runtime::vm=trace")
func ParseFilter(s string) (Filter, error) {
	f := AllowAll()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		target, levelText, hasTarget := strings.Cut(part, "=")
		if !hasTarget {
			lvl, err := bridge.ParseLevel(part)
			if err != nil {
				return Filter{}, fmt.Errorf("invalid filter directive %q: %w", part, err)
			}
			f.Default = lvl
			continue
		}

		target = strings.TrimSpace(target)
		if target == "" {
			return Filter{}, fmt.Errorf("invalid filter directive %q: empty target", part)
		}
		lvl, err := bridge.ParseLevel(levelText)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid filter directive %q: %w", part, err)
		}
		f.Directives = append(f.Directives, Directive{Target: target, Level: lvl})
	}

	// Longest target first so the first match is the most specific.
	sort.SliceStable(f.Directives, func(i, j int) bool {
		return len(f.Directives[i].Target) > len(f.Directives[j].Target)
	})
	return f, nil
}

// Enabled reports whether meta passes the filter. Remapped metadata carries
// its real target in fields that are not known yet, so it passes when any
// directive or the default admits its level; AllowsSpan and AllowsEvent make
// the final decision.
func (f Filter) Enabled(meta *bridge.Metadata) bool {
	if !meta.IsRemapped() {
		return meta.Level.Enabled(f.LevelFor(meta.Target))
	}
	if meta.Level.Enabled(f.Default) {
		return true
	}
	for _, d := range f.Directives {
		if meta.Level.Enabled(d.Level) {
			return true
		}
	}
	return false
}

// AllowsSpan reports whether a new span passes the filter. Remapped spans
// are matched against the target carried in their reserved fields.
func (f Filter) AllowsSpan(attrs *bridge.Attributes) bool {
	_, target := bridge.Resolve(&attrs.Metadata, attrs.Values)
	return attrs.Metadata.Level.Enabled(f.LevelFor(target))
}

// AllowsEvent is AllowsSpan for events.
func (f Filter) AllowsEvent(ev *bridge.Event) bool {
	_, target := bridge.Resolve(&ev.Metadata, ev.Values)
	return ev.Metadata.Level.Enabled(f.LevelFor(target))
}

// LevelFor returns the minimum level that applies to target.
func (f Filter) LevelFor(target string) bridge.Level {
	for _, d := range f.Directives {
		if strings.HasPrefix(target, d.Target) {
			return d.Level
		}
	}
	return f.Default
}

// String renders the filter in ParseFilter syntax.
func (f Filter) String() string {
	parts := []string{strings.ToLower(f.Default.String())}
	for _, d := range f.Directives {
		parts = append(parts, d.Target+"="+strings.ToLower(d.Level.String()))
	}
	return strings.Join(parts, ",")
}
