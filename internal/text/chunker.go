package text

import (
	"regexp"
	"strings"
)

// Chunk is a bounded, positioned slice of a document's extracted text.
// Index ordering is significant and contiguous from 0.
type Chunk struct {
	Index         int
	Content       string
	Page          int
	SectionTitle  string
	CharOffset    int
	TokenEstimate int
}

// separators, coarse to fine. A finer separator is only consulted where
// the coarser one cannot produce pieces within the chunk size.
var separators = []string{"\f", "\n## ", "\n### ", "\n\n", "\n", ". ", " "}

const maxSectionTitleLen = 100

var (
	headingRe = regexp.MustCompile(`(?m)^#{2,3}\s+(.+)$`)
	markerRe  = regexp.MustCompile(`(?m)^## (?:Slide \d+|Sheet: .+)$`)
)

// Split chunks text into overlapping, structure-aware segments.
// Deterministic for fixed inputs.
func Split(text string, size, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	pieces := split(text, size, separators)

	var chunks []Chunk
	searchFrom := 0
	tail := ""
	for _, piece := range pieces {
		content := tail + piece

		// Locate the true offset in the source text. Searching forward
		// from the previous chunk guards against matching an earlier
		// duplicate of the same content.
		offset := searchFrom
		if idx := strings.Index(text[searchFrom:], content); idx >= 0 {
			offset = searchFrom + idx
		}
		end := offset + len(content)

		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, Chunk{
				Index:         len(chunks),
				Content:       content,
				Page:          estimatePage(text, offset),
				SectionTitle:  sectionTitle(content),
				CharOffset:    offset,
				TokenEstimate: len(content) / 4,
			})
		}

		// The next chunk starts at most `overlap` characters before the
		// end of this piece.
		searchFrom = end - min(overlap, len(content))
		if searchFrom < 0 {
			searchFrom = 0
		}
		if overlap > 0 {
			tail = content[len(content)-min(overlap, len(content)):]
		}
	}
	return chunks
}

// split recursively breaks text on the separator ladder until every piece
// fits the chunk size, then merges adjacent pieces back up to the size.
func split(text string, size int, seps []string) []string {
	if len(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplit(text, size)
	}

	parts := splitKeep(text, seps[0])
	if len(parts) == 1 {
		return split(text, size, seps[1:])
	}

	var pieces []string
	for _, p := range parts {
		if len(p) > size {
			pieces = append(pieces, split(p, size, seps[1:])...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return merge(pieces, size)
}

// splitKeep splits text around sep without dropping any characters, so
// the pieces tile the original text exactly; offsets and page markers
// depend on that. Heading separators cut after their leading newline so
// a heading stays with the section it titles; every other separator
// stays with the piece it terminates.
func splitKeep(text, sep string) []string {
	keep := len(sep)
	if sep == "\n## " || sep == "\n### " {
		keep = 1
	}

	var parts []string
	start := 0
	for {
		idx := strings.Index(text[start:], sep)
		if idx < 0 {
			break
		}
		cut := start + idx + keep
		parts = append(parts, text[start:cut])
		start = cut
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func merge(pieces []string, size int) []string {
	var out []string
	var b strings.Builder
	for _, p := range pieces {
		if b.Len() > 0 && b.Len()+len(p) > size {
			out = append(out, b.String())
			b.Reset()
		}
		b.WriteString(p)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// estimatePage counts page-break markers preceding the offset. When the
// text has no page breaks it falls back to counting slide/sheet section
// markers. Returns 0 when the text carries no positional markers at all.
func estimatePage(text string, offset int) int {
	if strings.Contains(text, "\f") {
		return strings.Count(text[:offset], "\f") + 1
	}

	locs := markerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return 0
	}
	page := 0
	for _, loc := range locs {
		if loc[0] <= offset {
			page++
		}
	}
	return page
}

// sectionTitle extracts the first heading-style line within the piece.
func sectionTitle(content string) string {
	m := headingRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[1])
	if len(title) > maxSectionTitleLen {
		title = title[:maxSectionTitleLen]
	}
	return title
}
