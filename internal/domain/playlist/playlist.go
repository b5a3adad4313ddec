// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/hitsterfy/hitsterfy/internal/domain/track"

// Playlist represents a Spotify playlist after catalog filtering.
type Playlist struct {
	ID     string        // Spotify Playlist ID
	Name   string        // Playlist name
	URL    string        // Spotify URL
	Tracks []track.Track // Playable tracks in the playlist
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TrackByID returns the track with the given ID, or nil if absent.
func (p *Playlist) TrackByID(id string) *track.Track {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return &p.Tracks[i]
		}
	}
	return nil
}
