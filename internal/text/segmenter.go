package text

import (
	"strings"
)

// Segment is one span of a source document, carrying provenance metadata.
type Segment struct {
	Text           string
	SourceDocument string
	OrdinalIndex   int
	EstimatedPage  int
}

type SplitOptions struct {
	// SegmentLength is the target maximum span length in bytes.
	SegmentLength int
	// Overlap is how many bytes consecutive spans share.
	Overlap int
}

func DefaultSplitOptions() SplitOptions {
	return SplitOptions{SegmentLength: 1000, Overlap: 200}
}

// Split points are preferred at paragraph, then line, then sentence,
// then word boundaries. A span that contains none of these is hard-cut.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split divides document text into overlapping segments and assigns each a
// best-effort source page. Page attribution is linear interpolation over the
// whole document and is advisory only: documents with uneven text density
// per page will misattribute.
func Split(documentName, text string, totalPages int, opts SplitOptions) []Segment {
	if opts.SegmentLength <= 0 {
		opts = DefaultSplitOptions()
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.SegmentLength {
		opts.Overlap = 0
	}

	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}

	var segments []Segment
	start := 0
	ordinal := 0

	for start < len(text) {
		end := start + opts.SegmentLength
		if end >= len(text) {
			end = len(text)
		} else {
			if cut := findCut(text[start:end]); cut > 0 {
				end = start + cut
			}
		}

		span := strings.TrimSpace(text[start:end])
		if span != "" {
			segments = append(segments, Segment{
				Text:           span,
				SourceDocument: documentName,
				OrdinalIndex:   ordinal,
				EstimatedPage:  estimatePage(ordinal, opts.SegmentLength, len(text), totalPages),
			})
			ordinal++
		}

		if end >= len(text) {
			break
		}

		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return segments
}

// findCut returns the byte offset just past the last occurrence of the most
// preferred separator found in the window, or 0 when only a hard cut works.
func findCut(window string) int {
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return idx + len(sep)
		}
	}
	return 0
}

// estimatePage maps a segment ordinal to a page via average characters per
// page, clamped to [1, totalPages].
func estimatePage(ordinal, segmentLength, totalChars, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	avgCharsPerPage := float64(totalChars) / float64(totalPages)
	if avgCharsPerPage <= 0 {
		return 1
	}

	page := int(float64(ordinal*segmentLength)/avgCharsPerPage) + 1
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page
}
