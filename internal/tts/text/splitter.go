// Package text provides sentence segmentation for splitting prose into
// per-clip units.
//
// This package implements the segmentation rules that decide where one audio
// clip ends and the next begins, following Go coding standards and design
// principles for explicit behavior and maintainable code.
package text

import (
	"regexp"
	"strings"
)

// Regex patterns for input normalization.
const (
	whitespaceRegexPattern = `\s+`
)

// Character classes for boundary detection. All are ASCII, so the scanner can
// work on bytes even when the surrounding text is multi-byte UTF-8.
const (
	sentenceTerminals = ".!?"
	closingTrailers   = `"')]`
	spaceChar         = ' '
)

// Splitter segments normalized prose into sentences.
//
// A sentence ends at the first terminal punctuation mark (period, exclamation
// mark, or question mark), extended over any run of closing quotes, brackets,
// or parentheses, provided the next character is whitespace or the end of the
// text. A terminal that fails that check, such as the decimal point in "3.14"
// or the inner periods of "e.g.", does not end the sentence.
//
// Abbreviations get no special treatment. "Dr. Smith arrived." splits after
// "Dr." because the period is followed by a space. Callers wanting different
// behavior must rewrite the text before splitting.
type Splitter struct {
	// Precompiled regex pattern for performance.
	whitespacePattern *regexp.Regexp
}

// NewSplitter creates a new sentence splitter with compiled patterns.
func NewSplitter() *Splitter {
	return &Splitter{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
	}
}

// Split segments text into sentences.
//
// The text is first normalized: every whitespace run collapses to a single
// space and surrounding whitespace is trimmed. Scanning then walks the
// normalized text emitting one sentence per boundary. Any non-empty remainder
// after the last boundary is appended as a final fragment, so no input text is
// ever dropped. Text containing no boundary at all comes back as a single
// sentence. Empty or whitespace-only input yields nil.
func (s *Splitter) Split(text string) []string {
	normalized := s.normalize(text)
	if normalized == "" {
		return nil
	}

	sentences, lastEnd := s.scan(normalized)
	if len(sentences) == 0 {
		// No boundary anywhere: the whole text is one sentence.
		return []string{normalized}
	}

	tail := strings.TrimSpace(normalized[lastEnd:])
	if tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// normalize collapses whitespace runs to single spaces and trims the ends.
func (s *Splitter) normalize(text string) string {
	collapsed := s.whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(collapsed)
}

// scan emits one sentence per boundary and reports the offset just past the
// last boundary, which marks where the unmatched remainder begins.
//
// The input must already be normalized, so the only whitespace byte is a
// single ASCII space.
func (s *Splitter) scan(text string) (sentences []string, lastEnd int) {
	start := 0

	for pos := 0; pos < len(text); pos++ {
		if !isTerminal(text[pos]) {
			continue
		}

		// Extend over the whole run of closing quotes and brackets. A
		// partial run can never end a sentence because the byte after it
		// is another closer, not whitespace.
		end := pos + 1
		for end < len(text) && isClosing(text[end]) {
			end++
		}

		if end < len(text) && text[end] != spaceChar {
			// Mid-token terminal, as in "3.14" or "e.g."; keep scanning.
			continue
		}

		sentence := strings.TrimSpace(text[start:end])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = end
		lastEnd = end
		pos = end - 1
	}

	return sentences, lastEnd
}

// isTerminal reports whether b ends a sentence.
func isTerminal(b byte) bool {
	return strings.IndexByte(sentenceTerminals, b) >= 0
}

// isClosing reports whether b may trail a terminal as a closing quote or
// bracket.
func isClosing(b byte) bool {
	return strings.IndexByte(closingTrailers, b) >= 0
}
