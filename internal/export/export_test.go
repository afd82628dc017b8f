// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
)

func sampleReport() *report.Report {
	rep := report.New("Market Overview")
	rep.Append([]report.Section{
		{
			ID:      "sec-1",
			Heading: "Findings",
			Content: []report.ContentItem{
				{Text: "Demand grew sharply.", Citations: []int{1, 2}},
				{Text: "Supply stayed flat", IsBullet: true, Citations: []int{3}},
			},
		},
		{
			ID:      "sec-2",
			Heading: "References",
			Content: []report.ContentItem{
				{Text: "[1] Industry survey", IsBullet: true},
			},
		},
	})
	return rep
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestMarkdownExport_Content(t *testing.T) {
	out, err := NewMarkdownExporter(DefaultOptions()).Export(sampleReport())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"# Market Overview",
		"## Findings",
		"Demand grew sharply. [1][2]",
		"- Supply stayed flat [3]",
		"## References",
		"- [1] Industry survey",
		"title: Market Overview",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestMarkdownExport_NoMetadata(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeMetadata = false
	out, err := NewMarkdownExporter(opts).Export(sampleReport())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), "---\ntitle:") {
		t.Error("frontmatter present despite IncludeMetadata=false")
	}
}

func TestMarkdownExport_EmptyReportRejected(t *testing.T) {
	if _, err := NewMarkdownExporter(nil).Export(report.New("Empty")); err == nil {
		t.Error("expected error for empty report")
	}
	if _, err := NewMarkdownExporter(nil).Export(nil); err == nil {
		t.Error("expected error for nil report")
	}
}

// =============================================================================
// JSON
// =============================================================================

func TestJSONExport_Roundtrip(t *testing.T) {
	rep := sampleReport()
	out, err := NewJSONExporter(nil).Export(rep)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var decoded report.Report
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("exported JSON does not decode: %v", err)
	}
	if decoded.Title != rep.Title || len(decoded.Sections) != len(rep.Sections) {
		t.Errorf("roundtrip lost structure: %+v", decoded)
	}
	if decoded.Sections[0].Content[0].Citations[1] != 2 {
		t.Error("citations lost in roundtrip")
	}
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

func TestExportToFile_WritesFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()
	opts.OpenAfterExport = false

	path, err := ExportMarkdown(sampleReport(), opts)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	if filepath.Ext(path) != ".md" {
		t.Errorf("unexpected extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output file unreadable: %v", err)
	}
	if !strings.Contains(string(data), "Market Overview") {
		t.Error("output file missing report content")
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	if _, err := Export(sampleReport(), "docx", nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Market Overview":   "Market_Overview",
		"a/b\\c:d":          "a-b-c-d",
		"":                  "report",
		"report<>?*\"|name": "report------name",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func TestExportTranscript(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()

	conv := model.Conversation{ID: "conv-1", Title: "Quarterly research"}
	messages := []model.Message{
		{ID: "m1", Role: model.RoleUser, Kind: model.KindChat, Text: "Summarize Q2", CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "m2", Role: model.RoleAssistant, Kind: model.KindRunStarted, CreatedAt: time.Date(2025, 6, 1, 10, 0, 1, 0, time.UTC)},
		{ID: "local_x", Role: model.RoleUser, Kind: model.KindChat, Text: "uncommitted", Optimistic: true, CreatedAt: time.Date(2025, 6, 1, 10, 0, 2, 0, time.UTC)},
	}

	path, err := ExportTranscript(conv, messages, opts)
	if err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "# Quarterly research") {
		t.Error("title missing")
	}
	if !strings.Contains(s, "[User]") || !strings.Contains(s, "Summarize Q2") {
		t.Error("user message missing")
	}
	if !strings.Contains(s, "*Started a report run.*") {
		t.Error("run marker missing")
	}
	if strings.Contains(s, "uncommitted") {
		t.Error("optimistic message must be skipped")
	}
}

func TestExportTranscript_EmptyRejected(t *testing.T) {
	if _, err := ExportTranscript(model.Conversation{}, nil, nil); err == nil {
		t.Error("expected error for empty transcript")
	}
}
