package filter

import "context"

// MissingURIFilter rejects tracks without a playable Spotify URI.
type MissingURIFilter struct{}

// NewMissingURIFilter creates a new MissingURIFilter.
func NewMissingURIFilter() *MissingURIFilter {
	return &MissingURIFilter{}
}

func (f *MissingURIFilter) Name() string {
	return "missing_uri_filter"
}

func (f *MissingURIFilter) Description() string {
	return "Rejects tracks without a playable Spotify URI"
}

func (f *MissingURIFilter) ReturnCodes() []string {
	return []string{"missing_uri"}
}

func (f *MissingURIFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MissingURIFilter) Check(ctx context.Context, e Entry) Result {
	if e.URI == "" {
		return Reject("missing_uri")
	}
	return Accept()
}
