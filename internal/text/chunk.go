package text

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// DefaultChunkLimit is the maximum chunk length in code units when the caller
// passes no limit.
const DefaultChunkLimit = 300

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// abbreviations suppress a sentence split when they precede the terminator.
// Matched case-sensitively against the word ending at the punctuation mark.
var abbreviations = map[string]struct{}{
	"Mr.": {}, "Mrs.": {}, "Ms.": {}, "Dr.": {}, "Prof.": {},
	"Sr.": {}, "Jr.": {}, "Ph.D.": {}, "etc.": {}, "e.g.": {},
	"i.e.": {}, "vs.": {}, "Inc.": {}, "Ltd.": {}, "Co.": {},
	"Corp.": {}, "St.": {}, "Ave.": {}, "Blvd.": {},
}

// ChunkText splits text into ordered, sentence-respecting chunks of at most
// limit code units. Paragraphs (blank-line separated) never share a chunk.
// A single sentence longer than the limit becomes its own oversized chunk;
// sentences are never cut in the middle.
func ChunkText(text string, limit int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var chunks []string

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		var current strings.Builder

		flush := func() {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
		}

		for _, sentence := range SplitSentences(para) {
			if current.Len() == 0 {
				current.WriteString(sentence)
				continue
			}

			if current.Len()+1+len(sentence) > limit {
				flush()
				current.WriteString(sentence)
				continue
			}

			current.WriteByte(' ')
			current.WriteString(sentence)
		}

		flush()
	}

	return chunks, nil
}

// SplitSentences splits a paragraph into sentences on whitespace following
// '.', '!' or '?'. The split is suppressed when the terminator belongs to a
// known abbreviation or to a single-capital initial ("J. Smith"). Terminators
// stay attached to their sentence.
func SplitSentences(para string) []string {
	runes := []rune(para)

	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Only whitespace after the terminator ends a sentence.
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}

		if r == '.' && suppressSplit(runes, start, i) {
			continue
		}

		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}

		start = i + 1
	}

	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

// suppressSplit reports whether the period at index end terminates an
// abbreviation or a single-capital initial rather than a sentence.
func suppressSplit(runes []rune, start, end int) bool {
	wordStart := end
	for wordStart > start && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}

	word := string(runes[wordStart : end+1])
	if _, ok := abbreviations[word]; ok {
		return true
	}

	// Initials: a single capital letter followed by the period.
	wr := []rune(word)

	return len(wr) == 2 && unicode.IsUpper(wr[0]) && wr[1] == '.'
}
