// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/scribe-tui/internal/report"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports reports to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a report to Markdown format.
func (e *MarkdownExporter) Export(rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("report is nil")
	}
	if rep.IsEmpty() {
		return nil, fmt.Errorf("report has no sections")
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(rep.Title)))
		sb.WriteString(fmt.Sprintf("sections: %d\n", len(rep.Sections)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: scribe-tui\n")
		sb.WriteString("---\n\n")
	}

	if rep.Title != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(rep.Title)))
	}

	for i, sec := range rep.Sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdown(sec.Heading)))

		lastBullet := false
		for _, item := range sec.Content {
			line := renderItemText(item)
			if item.IsBullet {
				sb.WriteString("- ")
				sb.WriteString(line)
				sb.WriteString("\n")
				lastBullet = true
			} else {
				if lastBullet {
					sb.WriteString("\n")
				}
				sb.WriteString(line)
				sb.WriteString("\n\n")
				lastBullet = false
			}
		}
		if lastBullet {
			sb.WriteString("\n")
		}

		if i < len(rep.Sections)-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from scribe on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// renderItemText renders one content item with its citation markers restored
// after the visible text. Citation numbers pass through unchanged; no global
// renumbering happens at export time.
func renderItemText(item report.ContentItem) string {
	text := strings.TrimSpace(item.Text)
	if len(item.Citations) == 0 {
		return text
	}
	marks := make([]string, len(item.Citations))
	for i, n := range item.Citations {
		marks[i] = fmt.Sprintf("[%d]", n)
	}
	if text == "" {
		return strings.Join(marks, "")
	}
	return text + " " + strings.Join(marks, "")
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
