// Package textnorm turns chat-backend text into plain prose that reads
// naturally when spoken.
//
// Normalize strips markdown and other visual formatting in a fixed order,
// softens punctuation into pauses, removes emoji and asides, and bounds the
// result to MaxLength characters. It is pure and idempotent.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest text, in characters, handed to synthesis.
const MaxLength = 5000

// maxPasses bounds the fixed-point iteration in Normalize.
const maxPasses = 4

type rule struct {
	re   *regexp.Regexp
	with string
}

var (
	emphasisRules = []rule{
		{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
		{regexp.MustCompile(`__(.+?)__`), "$1"},
		{regexp.MustCompile(`~~(.+?)~~`), "$1"},
		{regexp.MustCompile(`\*([^*\n]+)\*`), "$1"},
		{regexp.MustCompile(`(^|[^\p{L}\p{N}])_([^_\n]+)_([^\p{L}\p{N}]|$)`), "$1$2$3"},
	}

	headerRe = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`)

	codeRules = []rule{
		{regexp.MustCompile("(?s)```.*?```"), " "},
		{regexp.MustCompile("(?s)~~~.*?~~~"), " "},
		{regexp.MustCompile("`([^`\n]*)`"), "$1"},
	}

	urlRules = []rule{
		{regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`), "$1"},
		{regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`), ""},
	}

	listRules = []rule{
		{regexp.MustCompile(`(?m)^[ \t]*(?:[-*_][ \t]*){3,}$`), ""},
		{regexp.MustCompile(`(?m)^[ \t]*>+[ \t]?`), ""},
		{regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•▪◦‣]|\d{1,3}[.)])[ \t]+`), ""},
	}

	pauseRules = []rule{
		{regexp.MustCompile(`[ \t]*(?:—|–|--)[ \t]*`), ", "},
		{regexp.MustCompile(`[ \t]+-[ \t]+`), ", "},
		{regexp.MustCompile(`\.{3,}|…`), ", "},
	}

	symbolRe = regexp.MustCompile("[*_~#|\\[\\]{}<>^\\\\`]")

	colonRe = regexp.MustCompile(`[:：]\s+`)

	emojiRe = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{2190}-\x{21FF}\x{2300}-\x{23FF}\x{FE00}-\x{FE0F}\x{20E3}\x{E0020}-\x{E007F}\x{3030}\x{303D}\x{3297}\x{3299}]`)

	parenRe = regexp.MustCompile(`[ \t]*\([^()]*\)`)

	quoteRules = []rule{
		{regexp.MustCompile(`[“”„‟«»]`), `"`},
		{regexp.MustCompile(`[‘’‚‛]`), "'"},
	}

	spaceBeforePunctRe = regexp.MustCompile(`[ \t]+([.,!?;:।])`)
	punctRunRe         = regexp.MustCompile(`[.!?,;।](?:[ \t]*[.!?,;।])+`)

	lineBreakRe = regexp.MustCompile(`([^\s.!?,;:।])[ \t]*\n\s*`)
	spaceRe     = regexp.MustCompile(`\s+`)
	leadRe      = regexp.MustCompile(`^[\s.,;:!?।]+`)
)

// Normalize converts text into speakable prose.
//
// The rules run in a fixed order and are repeated until the output stops
// changing, so Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	out := text
	for i := 0; i < maxPasses; i++ {
		next := pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// IsSpeakable reports whether normalized text has anything left to say.
func IsSpeakable(normalized string) bool {
	return strings.TrimSpace(normalized) != ""
}

// stripAsides removes parenthesised asides from the innermost level out,
// however deeply they nest.
func stripAsides(s string) string {
	for {
		next := parenRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

func pass(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	s = apply(s, emphasisRules)
	s = headerRe.ReplaceAllString(s, "")
	s = apply(s, codeRules)
	s = apply(s, urlRules)
	s = apply(s, listRules)
	s = apply(s, pauseRules)
	s = symbolRe.ReplaceAllString(s, " ")
	s = colonRe.ReplaceAllString(s, ". ")
	s = emojiRe.ReplaceAllString(s, " ")
	s = stripAsides(s)
	s = apply(s, quoteRules)
	s = collapsePunct(s)

	s = lineBreakRe.ReplaceAllString(s, "$1. ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = collapsePunct(s)

	s = norm.NFC.String(s)
	s = leadRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	return truncate(s, MaxLength)
}

func apply(s string, rules []rule) string {
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return s
}

// collapsePunct joins runs like "!!", ". ," or "?." into one mark,
// keeping the strongest terminal.
func collapsePunct(s string) string {
	s = spaceBeforePunctRe.ReplaceAllString(s, "$1")
	return punctRunRe.ReplaceAllStringFunc(s, strongest)
}

func strongest(run string) string {
	for _, mark := range []string{"?", "!", ".", "।", ";"} {
		if strings.Contains(run, mark) {
			return mark
		}
	}
	return ","
}

// truncate cuts s to at most limit runes, preferring the last sentence end
// in the second half of the window.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)[:limit]
	cut := len(runes)
	for i := len(runes) - 1; i >= limit/2; i-- {
		if isTerminal(runes[i]) {
			cut = i + 1
			break
		}
	}

	return strings.TrimSpace(string(runes[:cut]))
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '।'
}
