// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/scribe-tui/internal/report"
	"github.com/jeranaias/scribe-tui/internal/ui/styles"
)

// ReportPane renders a parsed report as a bordered side/overlay pane.
// Citation markers keep their per-item numbering from the source text.
type ReportPane struct {
	theme *styles.Theme
}

// NewReportPane creates a report pane renderer.
func NewReportPane(theme *styles.Theme) ReportPane {
	return ReportPane{theme: theme}
}

// Render draws the report at the given width. Empty reports render a muted
// placeholder so the pane toggle always gives visual feedback.
func (p ReportPane) Render(rep *report.Report, width int) string {
	inner := width - 6
	if inner < 24 {
		inner = 24
	}

	if rep == nil || rep.IsEmpty() {
		placeholder := p.theme.ConvMeta.Render("No report yet. Completed runs appear here.")
		return p.theme.ReportPane.Width(inner).Render(placeholder)
	}

	var b strings.Builder
	if rep.Title != "" {
		b.WriteString(p.theme.ReportTitle.Render(rep.Title))
		b.WriteString("\n\n")
	}

	for i, sec := range rep.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.theme.ReportHeading.Render(sec.Heading))
		b.WriteString("\n")
		for _, item := range sec.Content {
			line := item.Text + p.citationSuffix(item.Citations)
			if item.IsBullet {
				b.WriteString(p.theme.ReportBullet.Render("- " + line))
			} else {
				b.WriteString(p.theme.ReportText.Render(line))
			}
			b.WriteString("\n")
		}
	}

	return p.theme.ReportPane.Width(inner).Render(strings.TrimRight(b.String(), "\n"))
}

// citationSuffix renders citation markers as " [1][2]" after the item text.
func (p ReportPane) citationSuffix(citations []int) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(" ")
	for _, n := range citations {
		b.WriteString(p.theme.Citation.Render(fmt.Sprintf("[%d]", n)))
	}
	return b.String()
}
