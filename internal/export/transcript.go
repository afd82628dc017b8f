// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/scribe-tui/internal/model"
)

// =============================================================================
// TRANSCRIPT EXPORT
// =============================================================================

// ExportTranscript writes a conversation transcript to a Markdown file and
// returns the output path. Optimistic messages that never committed are
// skipped; action messages render as a short marker instead of raw payload.
func ExportTranscript(conv model.Conversation, messages []model.Message, opts *Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("conversation has no messages")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	var sb strings.Builder

	if opts.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.GetTitle())))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: scribe-tui\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(conv.GetTitle())))

	for _, msg := range messages {
		if msg.Optimistic {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
			roleLabel(msg.Role), msg.CreatedAt.Format("15:04:05")))
		sb.WriteString(renderTranscriptBody(msg))
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from scribe on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("conversation_%s_%s.md", sanitizeFilename(conv.GetTitle()), timestamp)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// roleLabel returns a formatted label for the message role.
func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "[User]"
	case model.RoleAssistant:
		return "[Assistant]"
	case model.RoleSystem:
		return "[System]"
	default:
		return "[Unknown]"
	}
}

// renderTranscriptBody renders the message body for the transcript.
func renderTranscriptBody(msg model.Message) string {
	switch msg.Kind {
	case model.KindAction, model.KindRunStarted:
		return "*Started a report run.*"
	case model.KindError:
		return fmt.Sprintf("**Error**: %s", strings.TrimSpace(msg.Text))
	default:
		return strings.TrimSpace(msg.Text)
	}
}
