// Package track provides the Track domain entity.
package track

import "strings"

// Track represents a playable Spotify track.
// Contains only information retrieved from Spotify API.
type Track struct {
	ID          string // Spotify Track ID
	Name        string // Track name
	Artist      string // Artist names joined with ", "
	Album       string // Album name
	ReleaseDate string // Album release date (YYYY, YYYY-MM or YYYY-MM-DD)
	ReleaseYear string // Year component of ReleaseDate ("N/A" when unknown)
	PreviewURL  string // 30 second preview URL (may be empty)
	URI         string // Spotify URI (spotify:track:...)
}

// YearFromReleaseDate extracts the year component of a release date.
// Spotify reports dates with year, month or day precision; the year is
// always the leading component. Returns "N/A" for an empty date.
func YearFromReleaseDate(date string) string {
	if date == "" {
		return "N/A"
	}
	year, _, _ := strings.Cut(date, "-")
	return year
}

// JoinArtists renders a list of artist names as a single display string.
func JoinArtists(names []string) string {
	return strings.Join(names, ", ")
}
