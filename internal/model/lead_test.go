package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"  ", 0},
		{"4.5", 4.5},
		{" 4,2 ", 4.2},
		{"5", 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseRating(tt.in), 1e-9, "input %q", tt.in)
	}
}

func TestParseRatingRejectsNonFinite(t *testing.T) {
	for _, in := range []string{"sem avaliação", "Inf", "-inf", "+Infinity", "NaN", "1e400"} {
		assert.True(t, math.IsNaN(ParseRating(in)), "input %q", in)
	}
}
