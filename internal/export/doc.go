// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes reports and conversation transcripts to files.
//
// # Supported Formats
//
//   - Markdown: Human-readable with headings, bullets, and citations
//   - JSON: Machine-readable, faithful to the stored report structure
//
// # Usage
//
// Export a report:
//
//	path, err := export.ExportMarkdown(rep, nil)
//
// Exporters share one Options struct controlling output directory, metadata
// headers, and whether the file opens in the default application afterwards.
package export
