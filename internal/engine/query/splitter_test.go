package query

import "testing"

func TestSeparatorSplitter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		niche    string
		location string
	}{
		{"Retífica de Motores em Santa Catarina", "Retífica", "Santa Catarina"},
		{"Clínicas em Chapecó, SC", "Clínicas", "Chapecó, SC"},
		{"Mecânica, Diesel", "Mecânica, Diesel", ""},
		{"dentists in Lisbon", "dentists", "Lisbon"},
		{"", "", ""},
	}

	var s Splitter = SeparatorSplitter{}
	for _, c := range cases {
		niche, loc := s.Split(c.in)
		if niche != c.niche {
			t.Fatalf("Split(%q) niche = %q, want %q", c.in, niche, c.niche)
		}
		if loc != c.location {
			t.Fatalf("Split(%q) location = %q, want %q", c.in, loc, c.location)
		}
	}
}
