// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

// =============================================================================
// REPORT TYPES
// =============================================================================

// ContentItem is one paragraph or bullet inside a section. Citations are the
// footnote numbers referenced by the item, unique, in first-occurrence order,
// and passed through unchanged (no cross-item renumbering).
type ContentItem struct {
	Text      string `json:"text"`
	Citations []int  `json:"citations,omitempty"`
	IsBullet  bool   `json:"is_bullet"`
}

// Section is a titled group of content items. A section with an empty content
// list is never persisted in a final report.
type Section struct {
	ID      string        `json:"id"`
	Heading string        `json:"heading"`
	Content []ContentItem `json:"content"`
}

// Report is the structured, editable output accumulated across runs. It is
// owned by the conversation it belongs to and is the only entity persisted
// beyond the in-memory session.
type Report struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// New creates an empty report with the given title.
func New(title string) *Report {
	return &Report{
		Title:    title,
		Sections: make([]Section, 0),
	}
}

// Append adds parsed sections to the report, skipping empty ones.
func (r *Report) Append(sections []Section) {
	for _, s := range sections {
		if len(s.Content) == 0 {
			continue
		}
		r.Sections = append(r.Sections, s)
	}
}

// Clear drops all accumulated sections, keeping the title.
func (r *Report) Clear() {
	r.Sections = r.Sections[:0]
}

// IsEmpty reports whether the report has no sections.
func (r *Report) IsEmpty() bool {
	return r == nil || len(r.Sections) == 0
}

// wellFormed is the basic shape check applied to persisted reports. Anything
// that fails it is treated as absent rather than as an error.
func (r *Report) wellFormed() bool {
	if r == nil || r.Sections == nil {
		return false
	}
	for _, s := range r.Sections {
		if s.Content == nil {
			return false
		}
	}
	return true
}
