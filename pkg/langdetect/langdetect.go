// Package langdetect resolves the spoken language of a recognised utterance.
//
// Resolution is two-tier. An engine-reported locale is looked up in a fixed
// locale table first; when the engine reports nothing usable the transcript
// is scanned for Indic scripts in a fixed priority order. Anything else is
// English.
package langdetect

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Code is an internal language code (ISO 639-1).
type Code string

// Supported language codes.
const (
	English   Code = "en"
	Hindi     Code = "hi"
	Tamil     Code = "ta"
	Telugu    Code = "te"
	Kannada   Code = "kn"
	Malayalam Code = "ml"
	Bengali   Code = "bn"
	Marathi   Code = "mr"
	Gujarati  Code = "gu"
	Punjabi   Code = "pa"
	Odia      Code = "or"
)

// Default is returned when neither tier resolves a language.
const Default = English

// localeTable maps canonical BCP-47 locales to language codes.
var localeTable = map[string]Code{
	"en": English, "en-IN": English, "en-US": English, "en-GB": English,
	"hi": Hindi, "hi-IN": Hindi,
	"ta": Tamil, "ta-IN": Tamil, "ta-LK": Tamil,
	"te": Telugu, "te-IN": Telugu,
	"kn": Kannada, "kn-IN": Kannada,
	"ml": Malayalam, "ml-IN": Malayalam,
	"bn": Bengali, "bn-IN": Bengali, "bn-BD": Bengali,
	"mr": Marathi, "mr-IN": Marathi,
	"gu": Gujarati, "gu-IN": Gujarati,
	"pa": Punjabi, "pa-IN": Punjabi,
	"or": Odia, "or-IN": Odia,
}

// scripts is scanned in order; the first script present in the text wins.
// Devanagari maps to Hindi since Hindi and Marathi share it.
var scripts = []struct {
	table *unicode.RangeTable
	code  Code
}{
	{unicode.Tamil, Tamil},
	{unicode.Telugu, Telugu},
	{unicode.Kannada, Kannada},
	{unicode.Malayalam, Malayalam},
	{unicode.Bengali, Bengali},
	{unicode.Devanagari, Hindi},
}

// Detect resolves the language of a final transcript.
// A mapped engine locale always wins over the script scan.
func Detect(locale, transcript string) Code {
	if code, ok := FromLocale(locale); ok {
		return code
	}
	if code, ok := FromScript(transcript); ok {
		return code
	}
	return Default
}

// FromLocale maps an engine-reported locale through the locale table.
// Separators and case are canonicalised first, so "hi_in" matches "hi-IN".
func FromLocale(locale string) (Code, bool) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", false
	}

	if code, ok := localeTable[locale]; ok {
		return code, true
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	code, ok := localeTable[tag.String()]
	return code, ok
}

// FromScript returns the first script in priority order that occurs in text.
func FromScript(text string) (Code, bool) {
	for _, s := range scripts {
		table := s.table
		if strings.ContainsFunc(text, func(r rune) bool { return unicode.Is(table, r) }) {
			return s.code, true
		}
	}
	return "", false
}
