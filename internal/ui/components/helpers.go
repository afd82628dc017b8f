// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// visibleWidth returns the rendered cell width of s, ignoring ANSI sequences.
func visibleWidth(s string) int {
	return lipgloss.Width(s)
}

// Truncate shortens s to at most max display cells, appending "..." when the
// text was cut. Width-aware so CJK and other wide runes count as two cells.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	if max <= 3 {
		return runewidth.Truncate(s, max, "")
	}
	return runewidth.Truncate(s, max, "...")
}
