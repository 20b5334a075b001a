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

package shared

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tombee/tracebridge/pkg/bridge"
)

var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// StatusInfo styles informational text
	StatusInfo = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // blue

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Bold styles emphasized text
	Bold = lipgloss.NewStyle().Bold(true)

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

// Status symbols
const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
	SymbolInfo  = "•"
)

// colorMode is 0 until first use, then 1 (off) or 2 (on).
var colorMode atomic.Int32

// ColorEnabled reports whether w is a terminal that accepts colour.
// NO_COLOR and TERM=dumb turn colour off.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "" || t == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func colorOn() bool {
	mode := colorMode.Load()
	if mode == 0 {
		mode = 1
		if ColorEnabled(os.Stdout) {
			mode = 2
		}
		colorMode.Store(mode)
	}
	return mode == 2
}

// SetColorForTest forces colour on or off.
func SetColorForTest(on bool) {
	if on {
		colorMode.Store(2)
	} else {
		colorMode.Store(1)
	}
}

// Paint renders text with style when colour is enabled.
func Paint(style lipgloss.Style, text string) string {
	if !colorOn() {
		return text
	}
	return style.Render(text)
}

// RenderOK renders a success line.
func RenderOK(msg string) string {
	return Paint(StatusOK, SymbolOK) + " " + msg
}

// RenderWarn renders a warning line.
func RenderWarn(msg string) string {
	return Paint(StatusWarn, SymbolWarn) + " " + msg
}

// RenderError renders a failure line.
func RenderError(msg string) string {
	return Paint(StatusError, SymbolError) + " " + msg
}

// RenderLabel renders secondary text.
func RenderLabel(label string) string {
	return Paint(Muted, label)
}

// RenderLevel renders a level name in the colour of its severity.
func RenderLevel(level bridge.Level) string {
	switch level {
	case bridge.LevelError:
		return Paint(StatusError, level.String())
	case bridge.LevelWarn:
		return Paint(StatusWarn, level.String())
	case bridge.LevelInfo:
		return Paint(StatusInfo, level.String())
	default:
		return Paint(Muted, level.String())
	}
}
