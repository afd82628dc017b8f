// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SECTION STRUCTURE TESTS
// =============================================================================

func TestParse_HeadingAndReferences(t *testing.T) {
	input := "## Intro\nHello [1] world.\n\n## References\n[^1]: Some Source"

	sections := Parse(input)
	require.Len(t, sections, 2)

	intro := sections[0]
	assert.Equal(t, "Intro", intro.Heading)
	require.Len(t, intro.Content, 1)
	assert.Equal(t, "Hello world.", intro.Content[0].Text)
	assert.Equal(t, []int{1}, intro.Content[0].Citations)
	assert.False(t, intro.Content[0].IsBullet)

	refs := sections[1]
	assert.Equal(t, "References", refs.Heading)
	require.Len(t, refs.Content, 1)
	assert.Equal(t, "[1] Some Source", refs.Content[0].Text)
	assert.True(t, refs.Content[0].IsBullet)
}

func TestParse_NumberedListWithoutHeadingUsesDefaultSection(t *testing.T) {
	sections := Parse("1. First\n2. Second")
	require.Len(t, sections, 1)

	sec := sections[0]
	assert.Equal(t, "Live Report", sec.Heading)
	require.Len(t, sec.Content, 2)
	assert.Equal(t, "First", sec.Content[0].Text)
	assert.Equal(t, "Second", sec.Content[1].Text)
	assert.True(t, sec.Content[0].IsBullet)
	assert.True(t, sec.Content[1].IsBullet)
}

func TestParse_BareTitleLineIgnored(t *testing.T) {
	sections := Parse("# Report Title\n\n## Body\ntext")
	require.Len(t, sections, 1)
	assert.Equal(t, "Body", sections[0].Heading)
}

func TestParse_HorizontalRuleOpensReferences(t *testing.T) {
	sections := Parse("## Body\ntext\n\n---\n[^2]: A source")
	require.Len(t, sections, 2)
	assert.Equal(t, "References", sections[1].Heading)
	assert.Equal(t, "[2] A source", sections[1].Content[0].Text)
}

func TestParse_ReferencesHeadingSpellings(t *testing.T) {
	for _, heading := range []string{"References", "references:", "Bibliography", "**Sources**", "Works Cited"} {
		sections := Parse("## Body\ntext\n\n" + heading + "\n[^1]: src")
		require.Len(t, sections, 2, "heading %q", heading)
		assert.Equal(t, "References", sections[1].Heading, "heading %q", heading)
	}
}

func TestParse_EmptySectionsDropped(t *testing.T) {
	sections := Parse("## Empty One\n\n## Full\ncontent here\n\n## Empty Two")
	require.Len(t, sections, 1)
	assert.Equal(t, "Full", sections[0].Heading)
}

func TestParse_BlankLineSplitsParagraphs(t *testing.T) {
	sections := Parse("## Body\nfirst line\nsecond line\n\nnext paragraph")
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Content, 2)
	assert.Equal(t, "first line second line", sections[0].Content[0].Text)
	assert.Equal(t, "next paragraph", sections[0].Content[1].Text)
}

// =============================================================================
// FOOTNOTE TESTS
// =============================================================================

func TestParse_FootnoteContinuationJoinsWithSpace(t *testing.T) {
	input := "## References\n[^3]: First part,\n    second part,\n\tthird part"

	sections := Parse(input)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Content, 1)
	assert.Equal(t, "[3] First part, second part, third part", sections[0].Content[0].Text)
}

func TestParse_FootnoteWithoutReferencesHeadingCreatesSection(t *testing.T) {
	sections := Parse("[^1]: Orphan source")
	require.Len(t, sections, 1)
	assert.Equal(t, "References", sections[0].Heading)
}

func TestParse_FootnotesFromSeparateBlocksCollectTogether(t *testing.T) {
	input := "## References\n[^1]: one\n\n## Body\ntext\n\n## References\n[^2]: two"

	sections := Parse(input)
	require.Len(t, sections, 2)
	var refs *Section
	for i := range sections {
		if sections[i].Heading == "References" {
			refs = &sections[i]
		}
	}
	require.NotNil(t, refs)
	assert.Len(t, refs.Content, 2)
}

func TestParse_ProseEndsFootnoteContinuation(t *testing.T) {
	input := "[^1]: source\nplain prose line\n    indented but no longer a continuation"

	sections := Parse(input)
	// The footnote bullet keeps only its own body; prose lands elsewhere.
	var refs *Section
	for i := range sections {
		if sections[i].Heading == "References" {
			refs = &sections[i]
		}
	}
	require.NotNil(t, refs)
	assert.Equal(t, "[1] source", refs.Content[0].Text)
}

// =============================================================================
// CITATION TESTS
// =============================================================================

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		text  string
		cites []int
	}{
		{"plain", "no citations here", "no citations here", nil},
		{"bracket", "claim [1] made", "claim made", []int{1}},
		{"caret", "claim [^2] made", "claim made", []int{2}},
		{"duplicates", "a [1] b [1] c [2]", "a b c", []int{1, 2}},
		{"order", "z [5] y [2] x [5]", "z y x", []int{5, 2}},
		{"before punctuation", "claim [3].", "claim.", []int{3}},
		{"non numeric kept", "see [abc] there", "see [abc] there", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, cites := extractCitations(tt.in)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.cites, cites)
		})
	}
}

func TestParse_BulletCitations(t *testing.T) {
	sections := Parse("- finding one [4]\n- finding two [4] [7]")
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Content, 2)
	assert.Equal(t, []int{4}, sections[0].Content[0].Citations)
	assert.Equal(t, []int{4, 7}, sections[0].Content[1].Citations)
}

// =============================================================================
// TOTALITY TESTS
// =============================================================================

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"\x00\x01\x02binary\xffgarbage",
		strings.Repeat("#", 500),
		"[^]: broken footnote",
		"[^99]:",
		"- ",
		"####### too many hashes",
		strings.Repeat("a", 1<<16),
		"---\n---\n---",
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) })
	}
}

func TestParse_EmptyInputYieldsNoSections(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("   \n\t\n"))
}
