package filter

import "context"

// MissingTrackFilter rejects playlist items without track data.
// Spotify returns such items for removed tracks and for episodes.
type MissingTrackFilter struct{}

// NewMissingTrackFilter creates a new MissingTrackFilter.
func NewMissingTrackFilter() *MissingTrackFilter {
	return &MissingTrackFilter{}
}

func (f *MissingTrackFilter) Name() string {
	return "missing_track_filter"
}

func (f *MissingTrackFilter) Description() string {
	return "Rejects playlist items without track data"
}

func (f *MissingTrackFilter) ReturnCodes() []string {
	return []string{"missing_track"}
}

func (f *MissingTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MissingTrackFilter) Check(ctx context.Context, e Entry) Result {
	if !e.HasTrack {
		return Reject("missing_track")
	}
	return Accept()
}
