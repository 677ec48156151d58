package chunker

import (
	"regexp"
	"strings"
)

// Structural split helpers. Each returns nil when the rule finds no structure
// in the content, which makes the chunker fall back to the sliding window.

var (
	pageBreakRe = regexp.MustCompile(`\f|\n-{3,}\s*[Pp]age\s+\d+\s*-{3,}\n?`)
	// sectionRe detects numbered or shouting headings inside a single page.
	sectionRe  = regexp.MustCompile(`(?m)^(?:\d+(?:\.\d+)*\.?\s+\S.*|[A-Z][A-Z0-9 ,:-]{3,})$`)
	slideRe    = regexp.MustCompile(`\f|\n-{3,}\s*[Ss]lide\s+\d+\s*-{3,}\n?`)
	sheetRe    = regexp.MustCompile(`(?m)^(?:#\s*)?Sheet:?\s+.+$`)
	htmlHeadRe = regexp.MustCompile(`(?is)<h[1-6][^>]*>`)
	htmlTagRe  = regexp.MustCompile(`(?s)<[^>]+>`)
	sentenceRe = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
)

// splitPages splits PDF-extracted text on page breaks. Pages containing
// detected section headings are further split at those headings.
func splitPages(content string) []string {
	pages := nonEmpty(pageBreakRe.Split(content, -1))
	if len(pages) < 2 {
		// One page only: try detected sections instead.
		if sections := splitAtHeadings(content); len(sections) > 1 {
			return sections
		}
		return pages
	}
	var out []string
	for _, p := range pages {
		if sections := splitAtHeadings(p); len(sections) > 1 {
			out = append(out, sections...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitAtHeadings cuts text before each detected section heading.
func splitAtHeadings(text string) []string {
	locs := sectionRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			out = append(out, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	out = append(out, text[prev:])
	return nonEmpty(out)
}

// splitParagraphs splits on blank lines.
func splitParagraphs(content string) []string {
	return nonEmpty(strings.Split(content, "\n\n"))
}

// splitSlides splits presentation text on slide markers.
func splitSlides(content string) []string {
	return nonEmpty(slideRe.Split(content, -1))
}

// splitSheetRows splits spreadsheet text per sheet, grouping rows so each
// group stays under the chunk size; the sheet header row is carried into
// every group.
func splitSheetRows(content string, policy Policy) []string {
	marks := sheetRe.FindAllStringIndex(content, -1)
	if len(marks) == 0 {
		return nil
	}

	var out []string
	for i, m := range marks {
		end := len(content)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		sheet := content[m[0]:end]
		lines := strings.Split(strings.TrimSpace(sheet), "\n")
		if len(lines) < 2 {
			out = append(out, sheet)
			continue
		}
		// lines[0] is the sheet marker, lines[1] the header row.
		title, header, rows := lines[0], lines[1], lines[2:]
		prefix := title + "\n" + header
		out = append(out, groupRows(prefix, rows, policy.ChunkSize, 0)...)
	}
	return nonEmpty(out)
}

// splitCSVRows batches csv rows under both the row cap and the chunk size,
// repeating the header row in every batch.
func splitCSVRows(content string, policy Policy) []string {
	lines := nonEmpty(strings.Split(content, "\n"))
	if len(lines) < 2 {
		return nil
	}
	return groupRows(lines[0], lines[1:], policy.ChunkSize, policy.MaxRows)
}

// groupRows accumulates rows under the size limit (and row cap when
// maxRows > 0), prefixing each group with the header.
func groupRows(header string, rows []string, size, maxRows int) []string {
	var out []string
	var group []string
	groupLen := len(header)

	flush := func() {
		if len(group) > 0 {
			out = append(out, header+"\n"+strings.Join(group, "\n"))
			group = nil
			groupLen = len(header)
		}
	}

	for _, row := range rows {
		if strings.TrimSpace(row) == "" {
			continue
		}
		overSize := len(group) > 0 && groupLen+1+len(row) > size
		overRows := maxRows > 0 && len(group) >= maxRows
		if overSize || overRows {
			flush()
		}
		group = append(group, row)
		groupLen += 1 + len(row)
	}
	flush()
	return out
}

// splitHTMLSections cuts at heading tags and strips markup from each section.
func splitHTMLSections(content string) []string {
	locs := htmlHeadRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		// No headings: strip tags and let the window fallback handle it only
		// if the document actually contains markup.
		if !htmlTagRe.MatchString(content) {
			return nil
		}
		stripped := stripHTML(content)
		if stripped == "" {
			return nil
		}
		return []string{stripped}
	}

	var out []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			out = append(out, stripHTML(content[prev:loc[0]]))
		}
		prev = loc[0]
	}
	out = append(out, stripHTML(content[prev:]))
	return nonEmpty(out)
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, " "))
}

// splitSentences cuts text at sentence boundaries. Returns nil when no
// terminator is found so the caller falls back to the sliding window.
func splitSentences(content string) []string {
	matches := sentenceRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches)+1)
	consumed := 0
	for _, m := range matches {
		out = append(out, m[1])
		consumed += len(m[0])
	}
	// Trailing text without a terminator.
	if rest := strings.TrimSpace(content[consumed:]); rest != "" {
		out = append(out, rest)
	}
	return nonEmpty(out)
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}
