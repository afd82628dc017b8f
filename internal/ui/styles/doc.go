// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the scribe TUI.
//
// All colors are Lip Gloss AdaptiveColor pairs so the same palette works on
// light and dark terminals. The Theme struct bundles every style the views
// need; construct one with NewTheme at startup and pass it down. The theme
// preference from config ("dark", "light", "auto") is applied here and
// nowhere else: "auto" defers to the terminal's detected background, a forced
// preference overrides detection for the whole process.
package styles
