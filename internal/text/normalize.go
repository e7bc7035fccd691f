package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// emojiPattern covers emoticons, symbols & pictographs, transport, flags,
// regional indicators and dingbats. Removed outright before any substitution.
var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F700}-\x{1F77F}\x{1F780}-\x{1F7FF}\x{1F800}-\x{1F8FF}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FA6F}\x{1FA70}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{1F1E6}-\x{1F1FF}]+`)

// combiningMarks spans U+0302 (combining circumflex) through U+0328 (combining
// ogonek). NFKD decomposition above splits accented letters into base + mark,
// so stripping the marks leaves plain letters behind.
var combiningMarks = regexp.MustCompile(`[\x{0302}-\x{0328}]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

var spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:'])`)

// closingPunct matches a final rune that already terminates an utterance.
// Kept wide on purpose: closing quotes and CJK terminators count too.
var closingPunct = regexp.MustCompile(`[.!?;:,'"\x{201C}\x{201D}\x{2018}\x{2019})\]}…。」』】〉》›»]$`)

// literalReplacer maps dash variants, curly quotes, accents and layout
// characters to plain ASCII equivalents. Applied after emoji removal.
var literalReplacer = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"‒", "-", // figure dash
	"‑", "-", // non-breaking hyphen
	"¯", " ", // macron
	"_", " ",
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"´", "'", // acute accent
	"`", "'", // grave accent
	"[", " ",
	"]", " ",
	"|", " ",
	"/", " ",
	"#", " ",
	"→", " ", // right arrow
	"←", " ", // left arrow
)

var decorativeReplacer = strings.NewReplacer(
	"♥", "", // heart
	"♡", "", // white heart
	"☆", "", // star
	"♠", "", // spade suit
	"©", "", // copyright
	`\`, "",
)

var expressionReplacer = strings.NewReplacer(
	"e.g.,", "for example, ",
	"i.e.,", "that is, ",
	"@", " at ",
)

// Normalize canonicalizes raw input text for synthesis. The step order is
// significant: NFKD must run before mark stripping, and the substitution
// tables must run before punctuation spacing is repaired. The result is
// guaranteed non-empty for non-empty input and always ends in closing
// punctuation. Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = norm.NFKD.String(s)
	s = emojiPattern.ReplaceAllString(s, "")
	s = literalReplacer.Replace(s)
	s = combiningMarks.ReplaceAllString(s, "")
	s = decorativeReplacer.Replace(s)
	s = expressionReplacer.Replace(s)
	s = spaceBeforePunct.ReplaceAllString(s, "$1")

	for strings.Contains(s, `""`) {
		s = strings.ReplaceAll(s, `""`, `"`)
	}
	for strings.Contains(s, "''") {
		s = strings.ReplaceAll(s, "''", "'")
	}
	for strings.Contains(s, "``") {
		s = strings.ReplaceAll(s, "``", "`")
	}

	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s != "" && !closingPunct.MatchString(s) {
		s += "."
	}

	return s
}
