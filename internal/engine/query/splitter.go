// Package query splits legacy free-text searches ("retíficas em Chapecó, SC")
// into a niche and a location. New callers pass both fields structured; this
// exists for saved campaigns and configs that only carry the combined text.
package query

import "strings"

// Splitter separates a combined query into niche and location.
type Splitter interface {
	Split(text string) (niche, location string)
}

var (
	nicheSeparators    = []string{" - ", " – ", " em ", " no ", " na ", " de ", " in ", " near ", " perto de ", "|"}
	locationSeparators = []string{" em ", " no ", " na ", " in ", " - ", " – ", " near ", " perto de ", "|"}
)

// SeparatorSplitter cuts at the first known connector. Commas are part of the
// niche ("mecânica, diesel") and never split.
type SeparatorSplitter struct{}

var _ Splitter = SeparatorSplitter{}

func (SeparatorSplitter) Split(text string) (string, string) {
	return Niche(text), Location(text)
}

// Niche drops everything after any separator.
func Niche(text string) string {
	cleaned := text
	for _, sep := range nicheSeparators {
		if idx := strings.Index(strings.ToLower(cleaned), sep); idx != -1 {
			cleaned = cleaned[:idx]
		}
	}
	return strings.TrimSpace(cleaned)
}

// Location returns the text after the first location separator found, in separator priority order.
func Location(text string) string {
	lower := strings.ToLower(text)
	for _, sep := range locationSeparators {
		if idx := strings.Index(lower, sep); idx != -1 {
			return strings.TrimSpace(text[idx+len(sep):])
		}
	}
	return ""
}
