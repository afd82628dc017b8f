// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/scribe-tui/internal/report"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports reports to JSON format.
// NOTE: JSON exports are always the complete report structure so the output
// can be re-imported or diffed against the local report store.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a report to JSON format.
func (e *JSONExporter) Export(rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("report is nil")
	}
	return json.MarshalIndent(rep, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
