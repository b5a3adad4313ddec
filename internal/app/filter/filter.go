// Package filter provides the filter chain for catalog admission.
package filter

import "context"

// Entry represents a raw playlist item before it is admitted to the catalog.
type Entry struct {
	ID          string // Spotify Track ID
	Name        string // Track name
	URI         string // Spotify URI (may be empty for unavailable tracks)
	ReleaseDate string // Album release date
	IsLocal     bool   // Local file flag reported by the playlist API
	HasTrack    bool   // False for removed tracks and non-track items
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "local_file", "missing_uri"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for catalog filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, e Entry) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
