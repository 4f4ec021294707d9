// Package dedup tracks which business names a run has already seen.
//
// Matching is exact and case-sensitive. Names that differ only by punctuation,
// accents or whitespace count as different businesses; NearDuplicates reports
// such pairs without merging them.
package dedup

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Set is the run-scoped set of known lead names. Not safe for concurrent use.
type Set struct {
	names map[string]struct{}
	order []string
}

func New(seed ...string) *Set {
	s := &Set{names: make(map[string]struct{}, len(seed))}
	for _, n := range seed {
		s.Remember(n)
	}
	return s
}

// IsNew reports whether name has not been remembered yet.
func (s *Set) IsNew(name string) bool {
	_, ok := s.names[name]
	return !ok
}

// Contains is the inverse of IsNew.
func (s *Set) Contains(name string) bool {
	return !s.IsNew(name)
}

func (s *Set) Remember(name string) {
	if _, ok := s.names[name]; ok {
		return
	}
	s.names[name] = struct{}{}
	s.order = append(s.order, name)
}

func (s *Set) Len() int {
	return len(s.names)
}

// Names returns remembered names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Pair is two names that look like the same business.
type Pair struct {
	A, B       string
	Similarity float64
}

// NearDuplicates returns pairs of distinct names whose Jaro-Winkler similarity,
// compared case-insensitively, is at least threshold. Highest similarity first.
func NearDuplicates(names []string, threshold float64) []Pair {
	var pairs []Pair
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[i] == names[j] {
				continue
			}
			sim := matchr.JaroWinkler(strings.ToLower(names[i]), strings.ToLower(names[j]), false)
			if sim >= threshold {
				pairs = append(pairs, Pair{A: names[i], B: names[j], Similarity: sim})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Similarity > pairs[j].Similarity
	})
	return pairs
}
