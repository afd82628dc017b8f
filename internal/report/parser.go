// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// PARSER CONSTANTS
// =============================================================================

// DefaultSectionHeading titles the section that collects content arriving
// before any explicit heading.
const DefaultSectionHeading = "Live Report"

// ReferencesHeading titles the section that collects footnote definitions.
const ReferencesHeading = "References"

var (
	footnoteDefRe = regexp.MustCompile(`^\[\^(\d+)\]:\s*(.*)$`)
	numberedRe    = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	citationRe    = regexp.MustCompile(`\[\^?(\d+)\]`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	prePunctRe    = regexp.MustCompile(`\s+([.,;:!?)])`)
)

// referencesHeadings are the recognized references/bibliography heading
// spellings, lowercase, with tail punctuation already stripped.
var referencesHeadings = map[string]bool{
	"references":   true,
	"bibliography": true,
	"sources":     true,
	"works cited": true,
}

// =============================================================================
// PARSER STATE
// =============================================================================

// parser is the per-call line-classification state machine. It carries the
// open section, the pending paragraph buffer, and the index of the footnote
// bullet that indented continuation lines attach to.
type parser struct {
	sections  []*Section
	current   *Section
	paragraph []string

	// footnoteSection/footnoteIdx point at the bullet receiving multi-line
	// footnote continuations; footnoteSection is nil when no target is active.
	footnoteSection *Section
	footnoteIdx     int

	sectionSeq int
}

// Parse converts freeform generated text into structured report sections.
//
// It is total: malformed, empty, or binary-looking input produces fewer (or
// zero) sections, never a panic or error. Sections that end with no content
// are dropped from the result.
func Parse(text string) []Section {
	p := &parser{}

	for _, rawLine := range strings.Split(text, "\n") {
		p.line(rawLine)
	}
	p.flushParagraph()

	out := make([]Section, 0, len(p.sections))
	for _, s := range p.sections {
		if len(s.Content) == 0 {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// line classifies one input line. The rule order is load-bearing: the first
// match wins.
func (p *parser) line(raw string) {
	line := strings.TrimRight(raw, " \t\r")
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "##"):
		// Rule 1: section heading.
		p.flushParagraph()
		p.clearFootnoteTarget()
		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if isReferencesHeading(heading) {
			p.openSection(ReferencesHeading)
			return
		}
		p.openSection(heading)

	case strings.HasPrefix(trimmed, "#"):
		// Rule 2: bare title line. The report title is supplied externally.
		return

	case isReferencesHeading(trimmed) || isHorizontalRule(trimmed):
		// Rule 3: references heading or horizontal rule opens References.
		p.flushParagraph()
		p.clearFootnoteTarget()
		p.openSection(ReferencesHeading)

	case trimmed == "":
		// Rule 4: blank line flushes the pending paragraph only.
		p.flushParagraph()

	case footnoteDefRe.MatchString(trimmed):
		// Rule 5: footnote definition becomes a References bullet.
		p.flushParagraph()
		m := footnoteDefRe.FindStringSubmatch(trimmed)
		sec := p.ensureReferences()
		sec.Content = append(sec.Content, ContentItem{
			Text:     "[" + m[1] + "] " + strings.TrimSpace(m[2]),
			IsBullet: true,
		})
		p.footnoteSection = sec
		p.footnoteIdx = len(sec.Content) - 1

	case p.footnoteSection != nil && isIndented(line):
		// Rule 6: indented continuation of the active footnote.
		item := &p.footnoteSection.Content[p.footnoteIdx]
		item.Text = item.Text + " " + trimmed

	case isBullet(trimmed):
		// Rule 7: bullet or numbered-list marker.
		p.flushParagraph()
		p.clearFootnoteTarget()
		sec := p.ensureSection()
		clean, cites := extractCitations(bulletBody(trimmed))
		sec.Content = append(sec.Content, ContentItem{
			Text:      clean,
			Citations: cites,
			IsBullet:  true,
		})

	default:
		// Rule 8: plain prose joins the paragraph buffer.
		p.clearFootnoteTarget()
		p.ensureSection()
		p.paragraph = append(p.paragraph, trimmed)
	}
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// openSection closes the current section and opens a new one. References is
// special-cased: reopening it resumes the existing section so footnotes from
// separate blocks collect in one place.
func (p *parser) openSection(heading string) {
	if heading == "" {
		heading = DefaultSectionHeading
	}
	if heading == ReferencesHeading {
		for _, s := range p.sections {
			if s.Heading == ReferencesHeading {
				p.current = s
				return
			}
		}
	}
	p.sectionSeq++
	s := &Section{
		ID:      fmt.Sprintf("sec-%d", p.sectionSeq),
		Heading: heading,
	}
	p.sections = append(p.sections, s)
	p.current = s
}

// ensureSection returns the open section, opening the default one if needed.
func (p *parser) ensureSection() *Section {
	if p.current == nil {
		p.openSection(DefaultSectionHeading)
	}
	return p.current
}

// ensureReferences returns the References section, opening it if needed. The
// open section moves to References so trailing footnote prose stays there.
func (p *parser) ensureReferences() *Section {
	p.openSection(ReferencesHeading)
	return p.current
}

// flushParagraph converts the buffered prose lines into one content item.
func (p *parser) flushParagraph() {
	if len(p.paragraph) == 0 {
		return
	}
	text := strings.Join(p.paragraph, " ")
	p.paragraph = p.paragraph[:0]

	clean, cites := extractCitations(text)
	if clean == "" && len(cites) == 0 {
		return
	}
	sec := p.ensureSection()
	sec.Content = append(sec.Content, ContentItem{
		Text:      clean,
		Citations: cites,
	})
}

func (p *parser) clearFootnoteTarget() {
	p.footnoteSection = nil
	p.footnoteIdx = 0
}

// =============================================================================
// LINE CLASSIFIERS
// =============================================================================

// isReferencesHeading matches the recognized references/bibliography heading
// spellings, tolerating trailing colons and bold markers.
func isReferencesHeading(line string) bool {
	s := strings.ToLower(strings.TrimSpace(line))
	s = strings.Trim(s, "*_")
	s = strings.TrimSuffix(s, ":")
	return referencesHeadings[s]
}

// isHorizontalRule matches standalone ---/***/___ style rule lines.
func isHorizontalRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	var marker rune
	count := 0
	for _, r := range line {
		if r == ' ' {
			continue
		}
		if r != '-' && r != '*' && r != '_' {
			return false
		}
		if marker == 0 {
			marker = r
		}
		if r != marker {
			return false
		}
		count++
	}
	return count >= 3
}

// isIndented reports whether the raw line begins with whitespace.
func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// isBullet matches -, *, + bullet markers and N. / N) numbered markers.
func isBullet(line string) bool {
	if len(line) >= 2 && (line[0] == '-' || line[0] == '*' || line[0] == '+') && line[1] == ' ' {
		return true
	}
	return numberedRe.MatchString(line)
}

// bulletBody strips the list marker from a bullet line.
func bulletBody(line string) string {
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return m[2]
	}
	return strings.TrimSpace(line[1:])
}

// =============================================================================
// CITATION EXTRACTION
// =============================================================================

// extractCitations removes [n] and [^n] tokens from the visible text and
// collects them as an ordered set of integers, duplicates removed with first
// occurrence order preserved. Residual double spacing and space before
// punctuation left by token removal is normalized.
func extractCitations(text string) (string, []int) {
	var cites []int
	seen := make(map[int]bool)

	clean := citationRe.ReplaceAllStringFunc(text, func(tok string) string {
		m := citationRe.FindStringSubmatch(tok)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return ""
		}
		if !seen[n] {
			seen[n] = true
			cites = append(cites, n)
		}
		return ""
	})

	clean = multiSpaceRe.ReplaceAllString(clean, " ")
	clean = prePunctRe.ReplaceAllString(clean, "$1")
	return strings.TrimSpace(clean), cites
}
