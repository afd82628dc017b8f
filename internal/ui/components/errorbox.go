// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/scribe-tui/internal/ui/styles"
)

// ErrorBanner is a dismissible error display shown above the input area.
type ErrorBanner struct {
	theme *styles.Theme

	Title   string
	Message string
	// CanRetry adds the retry hint to the footer. Sends that rolled back keep
	// their draft, so retry is usually just Enter again.
	CanRetry bool
}

// NewErrorBanner creates an error banner renderer.
func NewErrorBanner(theme *styles.Theme) ErrorBanner {
	return ErrorBanner{theme: theme}
}

// With returns a copy of the banner populated with the given error.
func (e ErrorBanner) With(title, message string, canRetry bool) ErrorBanner {
	e.Title = title
	e.Message = message
	e.CanRetry = canRetry
	return e
}

// IsSet reports whether the banner has an error to show.
func (e ErrorBanner) IsSet() bool {
	return e.Message != ""
}

// Render draws the banner at the given width. Empty banners render nothing.
func (e ErrorBanner) Render(width int) string {
	if !e.IsSet() {
		return ""
	}

	var b strings.Builder
	title := e.Title
	if title == "" {
		title = "Error"
	}
	b.WriteString(e.theme.ErrorTitle.Render(styles.StatusIndicators.Error + " " + title))
	b.WriteString("\n")
	b.WriteString(e.theme.ErrorMessage.Render(e.Message))

	hint := "esc dismiss"
	if e.CanRetry {
		hint = "enter retry · esc dismiss"
	}
	b.WriteString("\n")
	b.WriteString(e.theme.ErrorTip.Render(hint))

	inner := width - 6
	if inner < 20 {
		inner = 20
	}
	return e.theme.ErrorBox.Width(inner).Render(b.String())
}
