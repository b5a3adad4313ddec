package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalFileFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		isLocal      bool
		wantAccepted bool
		wantCode     string
	}{
		{
			name:         "regular track",
			isLocal:      false,
			wantAccepted: true,
		},
		{
			name:         "local file",
			isLocal:      true,
			wantAccepted: false,
			wantCode:     "local_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLocalFileFilter()

			e := Entry{
				ID:       "test-track",
				URI:      "spotify:track:test-track",
				IsLocal:  tt.isLocal,
				HasTrack: true,
			}

			result := f.Check(context.Background(), e)

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, tt.wantCode, result.Code)
			}
		})
	}
}

func TestMissingTrackFilter_Check(t *testing.T) {
	f := NewMissingTrackFilter()

	result := f.Check(context.Background(), Entry{HasTrack: false})
	assert.False(t, result.Accepted)
	assert.Equal(t, "missing_track", result.Code)

	result = f.Check(context.Background(), Entry{ID: "test-track", HasTrack: true})
	assert.True(t, result.Accepted)
}

func TestMissingURIFilter_Check(t *testing.T) {
	f := NewMissingURIFilter()

	result := f.Check(context.Background(), Entry{ID: "test-track", HasTrack: true})
	assert.False(t, result.Accepted)
	assert.Equal(t, "missing_uri", result.Code)

	result = f.Check(context.Background(), Entry{
		ID:       "test-track",
		URI:      "spotify:track:test-track",
		HasTrack: true,
	})
	assert.True(t, result.Accepted)
}

func TestChain_Execute(t *testing.T) {
	tests := []struct {
		name         string
		entry        Entry
		wantAccepted bool
		wantCode     string
	}{
		{
			name: "playable track passes all filters",
			entry: Entry{
				ID:       "track-1",
				URI:      "spotify:track:track-1",
				HasTrack: true,
			},
			wantAccepted: true,
		},
		{
			name:         "missing track rejected first",
			entry:        Entry{IsLocal: true, HasTrack: false},
			wantAccepted: false,
			wantCode:     "missing_track",
		},
		{
			name: "local file rejected",
			entry: Entry{
				ID:       "track-2",
				URI:      "spotify:local:track-2",
				IsLocal:  true,
				HasTrack: true,
			},
			wantAccepted: false,
			wantCode:     "local_file",
		},
		{
			name: "missing uri rejected",
			entry: Entry{
				ID:       "track-3",
				HasTrack: true,
			},
			wantAccepted: false,
			wantCode:     "missing_uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewCatalogChain()

			result := chain.Execute(context.Background(), tt.entry)

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, tt.wantCode, result.Code)
			}
		})
	}
}

func TestGetRegistered(t *testing.T) {
	registered := GetRegistered()

	factory, ok := registered["release_year_filter"]
	assert.True(t, ok)
	assert.Equal(t, "release_year_filter", factory().Name())
}
