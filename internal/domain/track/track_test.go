package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearFromReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		expected string
	}{
		{
			name:     "full date",
			date:     "1984-10-26",
			expected: "1984",
		},
		{
			name:     "year and month",
			date:     "1991-05",
			expected: "1991",
		},
		{
			name:     "year only",
			date:     "1969",
			expected: "1969",
		},
		{
			name:     "empty date",
			date:     "",
			expected: "N/A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, YearFromReleaseDate(tt.date))
		})
	}
}

func TestJoinArtists(t *testing.T) {
	tests := []struct {
		name     string
		artists  []string
		expected string
	}{
		{
			name:     "single artist",
			artists:  []string{"Queen"},
			expected: "Queen",
		},
		{
			name:     "multiple artists",
			artists:  []string{"David Bowie", "Queen"},
			expected: "David Bowie, Queen",
		},
		{
			name:     "no artists",
			artists:  nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinArtists(tt.artists))
		})
	}
}
