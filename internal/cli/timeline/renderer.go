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

// Package timeline renders stored guest traces as ASCII timelines.
package timeline

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tombee/tracebridge/internal/tracing/storage"
)

const (
	// MinTerminalWidth is the minimum supported terminal width
	MinTerminalWidth = 80
	// DefaultWidth is used when the terminal size cannot be read
	DefaultWidth = 100
	// DefaultBarWidth is the default width for duration bars
	DefaultBarWidth = 40
	// StatusIconOK marks spans that did not fail
	StatusIconOK = "✓"
	// StatusIconError marks spans with error status
	StatusIconError = "✗"
)

// Row is one span positioned on the timeline.
type Row struct {
	Name      string
	Level     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Status    storage.StatusCode
	Depth     int  // Indentation level for hierarchy
	IsParent  bool // Whether this span has children
}

// Renderer renders ASCII timelines from stored spans.
type Renderer struct {
	Width    int
	BarWidth int
}

// NewRenderer creates a renderer sized to the terminal on stdout.
func NewRenderer() (*Renderer, error) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = DefaultWidth
	}
	return NewRendererWidth(width)
}

// NewRendererWidth creates a renderer for a fixed width.
func NewRendererWidth(width int) (*Renderer, error) {
	if width < MinTerminalWidth {
		return nil, fmt.Errorf("terminal width %d is too narrow (minimum %d columns)", width, MinTerminalWidth)
	}

	// "│ name(20) bar  duration(6)  status  level(5) │"
	barWidth := width - 46
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < DefaultBarWidth {
		barWidth = DefaultBarWidth
	}

	return &Renderer{
		Width:    width,
		BarWidth: barWidth,
	}, nil
}

// Render generates a timeline for the spans of one trace.
func (r *Renderer) Render(traceID string, spans []*storage.Span) (string, error) {
	if len(spans) == 0 {
		return "", fmt.Errorf("no spans to render")
	}

	rows := Rows(spans)
	if len(rows) == 0 {
		return "", fmt.Errorf("no valid spans to render")
	}

	minTime, maxTime := bounds(rows)
	totalDuration := maxTime.Sub(minTime)

	var sb strings.Builder

	border := strings.Repeat("─", r.Width-2)
	sb.WriteString("┌" + border + "┐\n")
	fmt.Fprintf(&sb, "│ Trace: %-*s Total: %6s │\n",
		r.Width-26,
		truncate(traceID, r.Width-26),
		formatDuration(totalDuration))
	sb.WriteString("├" + border + "┤\n")

	errors := 0
	for _, row := range rows {
		sb.WriteString(r.renderRow(row, minTime, totalDuration))
		if row.Status == storage.StatusError {
			errors++
		}
	}

	sb.WriteString("└" + border + "┘\n")

	if errors > 0 {
		fmt.Fprintf(&sb, "\n%d span(s) ended with an error\n", errors)
	}

	return sb.String(), nil
}

// Rows orders spans depth first by start time. Spans whose parent is not in
// the set are treated as roots, so traces continued from a remote parent
// still render.
func Rows(spans []*storage.Span) []Row {
	present := make(map[string]bool, len(spans))
	for _, s := range spans {
		present[s.SpanID] = true
	}

	children := make(map[string][]*storage.Span)
	var roots []*storage.Span
	for _, s := range spans {
		if s.ParentID == "" || !present[s.ParentID] {
			roots = append(roots, s)
			continue
		}
		children[s.ParentID] = append(children[s.ParentID], s)
	}

	byStart := func(list []*storage.Span) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].StartTime.Before(list[j].StartTime)
		})
	}
	byStart(roots)
	for _, list := range children {
		byStart(list)
	}

	var rows []Row
	var walk func(s *storage.Span, depth int)
	walk = func(s *storage.Span, depth int) {
		rows = append(rows, Row{
			Name:      s.Name,
			Level:     s.Level,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Duration:  s.Duration(),
			Status:    s.Status,
			Depth:     depth,
			IsParent:  len(children[s.SpanID]) > 0,
		})
		for _, child := range children[s.SpanID] {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return rows
}

// bounds finds the earliest start and latest end time across all rows.
func bounds(rows []Row) (time.Time, time.Time) {
	minTime := rows[0].StartTime
	maxTime := rows[0].EndTime

	for _, row := range rows {
		if row.StartTime.Before(minTime) {
			minTime = row.StartTime
		}
		if row.EndTime.After(maxTime) {
			maxTime = row.EndTime
		}
	}

	return minTime, maxTime
}

// renderRow generates a timeline line for a single span.
func (r *Renderer) renderRow(row Row, minTime time.Time, totalDuration time.Duration) string {
	startPos, barLength := 0, r.BarWidth
	if totalDuration > 0 {
		startPos = int(float64(row.StartTime.Sub(minTime)) / float64(totalDuration) * float64(r.BarWidth))
		barLength = int(float64(row.Duration) / float64(totalDuration) * float64(r.BarWidth))
	}
	if startPos >= r.BarWidth {
		startPos = r.BarWidth - 1
	}
	if barLength < 1 {
		barLength = 1
	}
	if startPos+barLength > r.BarWidth {
		barLength = r.BarWidth - startPos
	}

	bar := make([]rune, r.BarWidth)
	for i := range bar {
		if i >= startPos && i < startPos+barLength {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}

	statusIcon := StatusIconOK
	if row.Status == storage.StatusError {
		statusIcon = StatusIconError
	}

	indent := strings.Repeat("  ", row.Depth)
	prefix := ""
	if row.Depth > 0 {
		if row.IsParent {
			prefix = "├─ "
		} else {
			prefix = "└─ "
		}
	}

	nameWidth := 20 - len(indent) - len(prefix)
	if nameWidth < 10 {
		nameWidth = 10
	}

	return fmt.Sprintf("│ %s%s%-*s %s  %6s  %s  %-5s │\n",
		indent,
		prefix,
		nameWidth,
		truncate(row.Name, nameWidth),
		string(bar),
		formatDuration(row.Duration),
		statusIcon,
		row.Level,
	)
}

// truncate shortens a string to maxLen with ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
