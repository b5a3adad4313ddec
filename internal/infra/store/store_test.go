package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hitsterfy/hitsterfy/internal/domain/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_History(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	heard, err := s.ListHeard(ctx, "user-1")
	assert.NoError(t, err)
	assert.Empty(t, heard)

	err = s.AppendHeard(ctx, "user-1", track.Track{
		ID:          "track-1",
		Name:        "Song 1",
		Artist:      "Artist A",
		ReleaseYear: "1984",
	})
	assert.NoError(t, err)

	err = s.AppendHeard(ctx, "user-1", track.Track{
		ID:          "track-2",
		Name:        "Song 2",
		Artist:      "Artist B",
		ReleaseYear: "N/A",
	})
	assert.NoError(t, err)

	// Entries come back oldest first.
	heard, err = s.ListHeard(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, heard, 2)
	assert.Equal(t, "track-1", heard[0].TrackID)
	assert.Equal(t, "Song 1", heard[0].Name)
	assert.Equal(t, "Artist A", heard[0].Artist)
	assert.Equal(t, "1984", heard[0].ReleaseYear)
	assert.False(t, heard[0].ListenedAt.IsZero())
	assert.Equal(t, "track-2", heard[1].TrackID)

	ids, err := s.HeardTrackIDs(ctx, "user-1")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"track-1", "track-2"}, ids)

	// History is scoped per user.
	heard, err = s.ListHeard(ctx, "user-2")
	assert.NoError(t, err)
	assert.Empty(t, heard)
}

func TestStore_ClearHeard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.AppendHeard(ctx, "user-1", track.Track{ID: "track-1"}))
	assert.NoError(t, s.AppendHeard(ctx, "user-2", track.Track{ID: "track-2"}))

	assert.NoError(t, s.ClearHeard(ctx, "user-1"))

	heard, err := s.ListHeard(ctx, "user-1")
	assert.NoError(t, err)
	assert.Empty(t, heard)

	// Other users keep their history.
	heard, err = s.ListHeard(ctx, "user-2")
	assert.NoError(t, err)
	assert.Len(t, heard, 1)
}

func TestStore_Config(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadConfig(ctx, "user-1")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	err = s.SaveConfig(ctx, "user-1", PlayerConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RefreshToken: "refresh-1",
		PlaylistURL:  "https://open.spotify.com/playlist/abc",
	})
	assert.NoError(t, err)

	cfg, err := s.LoadConfig(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "refresh-1", cfg.RefreshToken)
	assert.Equal(t, "https://open.spotify.com/playlist/abc", cfg.PlaylistURL)
	assert.False(t, cfg.UpdatedAt.IsZero())

	// Saving again replaces the previous config.
	err = s.SaveConfig(ctx, "user-1", PlayerConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RefreshToken: "refresh-2",
		PlaylistURL:  "",
	})
	assert.NoError(t, err)

	cfg, err = s.LoadConfig(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "refresh-2", cfg.RefreshToken)
	assert.Equal(t, "", cfg.PlaylistURL)
}

func TestStore_LatestConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.LatestConfig(ctx)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	err = s.SaveConfig(ctx, "user-1", PlayerConfig{ClientID: "client-1", RefreshToken: "refresh-1"})
	assert.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	err = s.SaveConfig(ctx, "user-2", PlayerConfig{ClientID: "client-2", RefreshToken: "refresh-2"})
	assert.NoError(t, err)

	userID, cfg, err := s.LatestConfig(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "user-2", userID)
	assert.Equal(t, "refresh-2", cfg.RefreshToken)
}
