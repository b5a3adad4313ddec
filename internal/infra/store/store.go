// Package store persists player configuration and listening history in
// a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hitsterfy/hitsterfy/internal/domain/track"
)

// ErrConfigNotFound indicates that no configuration is stored for the user.
var ErrConfigNotFound = errors.New("player config not found")

const schema = `
CREATE TABLE IF NOT EXISTS spotify_configs (
	user_id       TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	client_secret TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	playlist_url  TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS listened_songs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL,
	track_id     TEXT NOT NULL,
	name         TEXT NOT NULL,
	artist       TEXT NOT NULL,
	release_year TEXT NOT NULL,
	listened_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listened_songs_user ON listened_songs(user_id);
`

// HeardTrack represents one listening history entry.
type HeardTrack struct {
	TrackID     string
	Name        string
	Artist      string
	ReleaseYear string
	ListenedAt  time.Time
}

// PlayerConfig represents the stored Spotify configuration for a user.
type PlayerConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	PlaylistURL  string
	UpdatedAt    time.Time
}

// Store is a SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path and applies
// the schema. The path can be ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendHeard records a track in the user's listening history.
func (s *Store) AppendHeard(ctx context.Context, userID string, t track.Track) error {
	query := `
		INSERT INTO listened_songs (user_id, track_id, name, artist, release_year, listened_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, userID, t.ID, t.Name, t.Artist, t.ReleaseYear, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to insert history entry")
	}
	return nil
}

// ListHeard returns the user's listening history, oldest first.
func (s *Store) ListHeard(ctx context.Context, userID string) ([]HeardTrack, error) {
	query := `
		SELECT track_id, name, artist, release_year, listened_at
		FROM listened_songs
		WHERE user_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var heard []HeardTrack
	for rows.Next() {
		var h HeardTrack
		if err := rows.Scan(&h.TrackID, &h.Name, &h.Artist, &h.ReleaseYear, &h.ListenedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan history entry")
		}
		heard = append(heard, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read history")
	}
	return heard, nil
}

// HeardTrackIDs returns the distinct track IDs in the user's history.
func (s *Store) HeardTrackIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT track_id
		FROM listened_songs
		WHERE user_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan track id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read history")
	}
	return ids, nil
}

// ClearHeard removes the user's entire listening history.
func (s *Store) ClearHeard(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM listened_songs WHERE user_id = ?`, userID)
	if err != nil {
		return errors.Wrap(err, "failed to clear history")
	}
	return nil
}

// SaveConfig stores the user's configuration, replacing any previous one.
func (s *Store) SaveConfig(ctx context.Context, userID string, cfg PlayerConfig) error {
	query := `
		INSERT INTO spotify_configs (user_id, client_id, client_secret, refresh_token, playlist_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			refresh_token = excluded.refresh_token,
			playlist_url = excluded.playlist_url,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		userID, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, cfg.PlaylistURL, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to save config")
	}
	return nil
}

// LoadConfig returns the user's stored configuration.
func (s *Store) LoadConfig(ctx context.Context, userID string) (*PlayerConfig, error) {
	query := `
		SELECT client_id, client_secret, refresh_token, playlist_url, updated_at
		FROM spotify_configs
		WHERE user_id = ?
	`

	var cfg PlayerConfig
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&cfg.ClientID, &cfg.ClientSecret, &cfg.RefreshToken, &cfg.PlaylistURL, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrConfigNotFound, "user %s", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return &cfg, nil
}

// LatestConfig returns the most recently saved configuration and its user ID.
// Used when the player starts without credentials and has to fall back on
// whatever the auth helper persisted last.
func (s *Store) LatestConfig(ctx context.Context) (string, *PlayerConfig, error) {
	query := `
		SELECT user_id, client_id, client_secret, refresh_token, playlist_url, updated_at
		FROM spotify_configs
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var userID string
	var cfg PlayerConfig
	err := s.db.QueryRowContext(ctx, query).Scan(
		&userID, &cfg.ClientID, &cfg.ClientSecret, &cfg.RefreshToken, &cfg.PlaylistURL, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, errors.Wrap(ErrConfigNotFound, "no stored configs")
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to load latest config")
	}
	return userID, &cfg, nil
}
