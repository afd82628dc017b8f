// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/ui/styles"
)

// =============================================================================
// RUN STATUS LINE
// =============================================================================

// RunLine renders the live status line for a generation run. An empty RunID
// means no run is active and nothing is rendered.
//
// Layout: <spinner> <primary> · <secondary> (<elapsed>) [reconnecting]
type RunLine struct {
	theme *styles.Theme
}

// NewRunLine creates a run status line renderer.
func NewRunLine(theme *styles.Theme) RunLine {
	return RunLine{theme: theme}
}

// Render draws the status line for the given run state.
// spinnerFrame is the current spinner glyph; reconnecting adds the fallback
// poll indicator shown while the event feed is down.
func (r RunLine) Render(state model.RunState, spinnerFrame string, reconnecting bool) string {
	if state.RunID == "" {
		return ""
	}

	var b strings.Builder

	primaryStyle := r.theme.RunPrimary
	switch state.Status {
	case model.RunStopping:
		primaryStyle = r.theme.RunStopping
	case model.RunFailed:
		primaryStyle = r.theme.RunFailed
	}

	if spinnerFrame != "" && !state.Status.Terminal() {
		b.WriteString(r.theme.Spinner.Render(spinnerFrame))
		b.WriteString(" ")
	}

	primary := state.PrimaryText
	if primary == "" {
		primary = string(state.Status)
	}
	b.WriteString(primaryStyle.Render(primary))

	if state.SecondaryText != "" {
		b.WriteString(r.theme.RunSecondary.Render(" · " + state.SecondaryText))
	}

	if !state.StartedAt.IsZero() && !state.Status.Terminal() {
		elapsed := time.Since(state.StartedAt).Round(time.Second)
		b.WriteString(r.theme.RunSecondary.Render(fmt.Sprintf(" (%s)", elapsed)))
	}

	if reconnecting {
		b.WriteString(" ")
		b.WriteString(r.theme.Reconnecting.Render("[reconnecting]"))
	}

	return b.String()
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar renders the bottom status bar: conversation title, pending send
// count, and the shortcut strip.
type StatusBar struct {
	theme *styles.Theme
}

// NewStatusBar creates a status bar renderer.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{theme: theme}
}

// Shortcut is one key/description pair in the shortcut strip.
type Shortcut struct {
	Key  string
	Desc string
}

// Render draws the status bar at the given width.
func (s StatusBar) Render(width int, title string, pendingSends int, shortcuts []Shortcut) string {
	var left strings.Builder
	left.WriteString(title)
	if pendingSends > 0 {
		left.WriteString(s.theme.PendingMarker.Render(fmt.Sprintf("  (%d sending...)", pendingSends)))
	}

	var right strings.Builder
	for i, sc := range shortcuts {
		if i > 0 {
			right.WriteString("  ")
		}
		right.WriteString(s.theme.ShortcutKey.Render(sc.Key))
		right.WriteString(s.theme.ShortcutDesc.Render(" " + sc.Desc))
	}

	bar := left.String()
	rightStr := right.String()
	gap := width - visibleWidth(bar) - visibleWidth(rightStr) - 2
	if gap > 0 {
		bar += strings.Repeat(" ", gap) + rightStr
	}

	return s.theme.StatusBar.Width(width).Render(bar)
}
