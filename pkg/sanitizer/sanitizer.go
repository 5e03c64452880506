// Package sanitizer normalizes free-text fields before validation: equipment
// names and locations, maintenance notes, rating feedback. It never rejects
// input, only canonicalizes it; validation decides acceptance.
package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

// TrimAndNormalize trims the string and collapses internal whitespace runs to
// a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}

// NormalizeCategory lowercases categories so filter matching and the
// auto-approve lookup are case-insensitive.
func NormalizeCategory(category string) string {
	return strings.ToLower(TrimAndNormalize(category))
}

// NormalizeCertification canonicalizes credential names the same way the
// identity service emits them: lowercase, hyphen-joined.
func NormalizeCertification(name string) string {
	normalized := strings.ToLower(TrimAndNormalize(name))
	return strings.ReplaceAll(normalized, " ", "-")
}

// NormalizeNotes keeps internal newlines (notes are multi-line) but trims the
// ends and strips control characters.
func NormalizeNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}

	var result strings.Builder
	for _, r := range notes {
		if r == '\n' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
