// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/ui/components"
)

// sidebarWidth is the fixed width of the conversation list pane on wide
// layouts.
const sidebarWidth = 28

// View renders the full chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	content := m.viewport.View()
	if m.showReport {
		content = m.repPane.Render(m.report, m.viewport.Width)
	}
	if m.sidebarVisible() {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), content)
	}
	b.WriteString(content)
	b.WriteString("\n")

	if line := m.runLine.Render(m.runState, m.spin.View(), m.reconnecting); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.banner.IsSet() {
		b.WriteString(m.banner.Render(m.width))
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return m.theme.App.Render(b.String())
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("scribe")
	subtitle := m.theme.HeaderSubtitle.Render(m.conversation.GetTitle())
	return m.theme.Header.Width(m.width).Render(title + "  " + subtitle)
}

func (m Model) renderStatusBar() string {
	shortcuts := []components.Shortcut{
		{Key: "enter", Desc: "send"},
		{Key: "ctrl+o", Desc: "report"},
	}
	if m.runActive && !m.runState.Status.Terminal() {
		shortcuts = append(shortcuts, components.Shortcut{Key: "esc", Desc: "cancel"})
	}
	if m.runState.Err != "" {
		shortcuts = append(shortcuts, components.Shortcut{Key: "ctrl+r", Desc: "retry"})
	}
	if m.report != nil && !m.report.IsEmpty() {
		shortcuts = append(shortcuts, components.Shortcut{Key: "ctrl+e", Desc: "export"})
		shortcuts = append(shortcuts, components.Shortcut{Key: "ctrl+x", Desc: "clear"})
	}
	return m.statBar.Render(m.width, m.conversation.GetTitle(), m.coord.PendingSends(), shortcuts)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.ConvMeta.Render("Conversations"))
	b.WriteString("\n")
	for _, conv := range m.conversations {
		style := m.theme.ConvItem
		if conv.ID == m.conversation.ID {
			style = m.theme.ConvItemSelected
		}
		b.WriteString(style.Render(components.Truncate(conv.GetTitle(), sidebarWidth-4)))
		b.WriteString("\n")
	}
	return m.theme.ConvList.Width(sidebarWidth - 2).Height(m.viewport.Height).Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderMessages builds the viewport content from the current snapshot.
func (m Model) renderMessages() string {
	messages := model.Flatten(m.snapshot)
	if len(messages) == 0 {
		return m.theme.ConvMeta.Render("No messages yet. Ask for a report to get started.")
	}

	var b strings.Builder
	if m.moreHistory {
		b.WriteString(m.theme.ConvMeta.Render("-- older messages available (ctrl+u) --"))
		b.WriteString("\n\n")
	}
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage draws one message with its role label, timestamp, and body.
func (m Model) renderMessage(msg model.Message) string {
	label := msg.Role.DisplayName()
	ts := m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04:05"))

	var header string
	var body string
	switch {
	case msg.Kind == model.KindAction, msg.Kind == model.KindRunStarted:
		return m.theme.SystemNotice.Render("Started a report run.")

	case msg.Kind == model.KindError:
		header = m.theme.ErrorTitle.Render(label) + " " + ts
		body = m.theme.ErrorMessage.Render(msg.Text)

	case msg.Role == model.RoleUser:
		header = m.theme.InputPrompt.Render(label) + " " + ts
		if msg.Optimistic {
			header += " " + m.theme.PendingMarker.Render("(sending...)")
		}
		body = m.theme.UserBubble.Render(msg.Text)

	default:
		header = m.theme.HeaderTitle.Render(label) + " " + ts
		body = m.theme.AssistantBubble.Render(m.renderBody(msg.Text))
	}

	return header + "\n" + body
}

// renderBody applies glamour markdown rendering to assistant text when
// enabled, falling back to the raw text on any failure.
func (m Model) renderBody(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}
