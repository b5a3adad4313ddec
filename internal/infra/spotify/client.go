// Package spotify provides a client for the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/hitsterfy/hitsterfy/internal/app/filter"
	"github.com/hitsterfy/hitsterfy/internal/domain/playlist"
	"github.com/hitsterfy/hitsterfy/internal/domain/track"
)

var (
	// ErrInvalidPlaylistReference indicates a reference that is neither a
	// playlist URI nor a playlist URL.
	ErrInvalidPlaylistReference = errors.New("invalid playlist reference")

	// ErrEmptyCatalog indicates a playlist with no playable tracks left
	// after filtering.
	ErrEmptyCatalog = errors.New("no playable tracks in playlist")
)

// catalogAPI is the slice of the Spotify Web API the client uses.
// *spotify.Client satisfies it.
type catalogAPI interface {
	GetPlaylist(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.FullPlaylist, error)
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	CurrentUser(ctx context.Context) (*spotify.PrivateUser, error)
}

// Client fetches playlists and normalizes them into the track catalog.
type Client struct {
	api        catalogAPI
	chain      *filter.Chain
	maxRetries int
	retryDelay time.Duration
}

// NewAPI builds an authenticated Spotify Web API client backed by the
// given token source.
func NewAPI(ctx context.Context, src oauth2.TokenSource) *spotify.Client {
	return spotify.New(oauth2.NewClient(ctx, src))
}

// New creates a new catalog client. A nil chain gets the default
// catalog filters.
func New(api *spotify.Client, chain *filter.Chain) *Client {
	return newClient(api, chain)
}

func newClient(api catalogAPI, chain *filter.Chain) *Client {
	if chain == nil {
		chain = filter.NewCatalogChain()
	}
	return &Client{
		api:        api,
		chain:      chain,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// ResolvePlaylistID extracts the playlist ID from a Spotify playlist URI
// (spotify:playlist:ID) or URL (https://open.spotify.com/playlist/ID,
// including intl-XX variants). Any other form, bare IDs included, is
// rejected with ErrInvalidPlaylistReference.
func ResolvePlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	if id, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok && id != "" {
		return id, nil
	}

	if strings.Contains(ref, "/playlist/") {
		if u, err := url.Parse(ref); err == nil {
			parts := strings.Split(u.Path, "/")
			for i, p := range parts {
				if p == "playlist" && i+1 < len(parts) && parts[i+1] != "" {
					return parts[i+1], nil
				}
			}
		}
	}

	return "", errors.Wrapf(ErrInvalidPlaylistReference, "unsupported reference %q", ref)
}

// FetchPlaylist retrieves a playlist by URI or URL and returns its
// playable tracks after filtering. Returns ErrEmptyCatalog when no
// track survives the filter chain.
func (c *Client) FetchPlaylist(ctx context.Context, ref string) (*playlist.Playlist, error) {
	playlistID, err := ResolvePlaylistID(ref)
	if err != nil {
		return nil, err
	}

	var meta *spotify.FullPlaylist
	err = c.retry(func() error {
		p, err := c.api.GetPlaylist(ctx, spotify.ID(playlistID))
		if err != nil {
			return err
		}
		meta = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	var tracks []track.Track
	filtered := 0
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			result := c.chain.Execute(ctx, itemEntry(item))
			if !result.Accepted {
				filtered++
				zlog.Debug().Msgf("track filtered (%s): %s", result.Code, itemEntry(item).Name)
				continue
			}
			tracks = append(tracks, convertTrack(item.Track.Track))
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	zlog.Info().Msgf("playlist %s loaded: %d playable tracks, %d filtered", playlistID, len(tracks), filtered)

	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrEmptyCatalog, "playlist %s", playlistID)
	}

	return &playlist.Playlist{
		ID:     playlistID,
		Name:   meta.Name,
		URL:    PlaylistURL(playlistID),
		Tracks: tracks,
	}, nil
}

// CurrentUserID returns the Spotify user ID of the authenticated user.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	var user *spotify.PrivateUser
	err := c.retry(func() error {
		u, err := c.api.CurrentUser(ctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to get current user")
	}
	return user.ID, nil
}

// PlaylistURL returns the Spotify URL for a playlist.
func PlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://open.spotify.com/playlist/%s", playlistID)
}

// itemEntry maps a raw playlist item to a filter entry.
func itemEntry(item spotify.PlaylistItem) filter.Entry {
	e := filter.Entry{IsLocal: item.IsLocal}
	if t := item.Track.Track; t != nil && t.ID != "" {
		e.HasTrack = true
		e.ID = string(t.ID)
		e.Name = t.Name
		e.URI = string(t.URI)
		e.ReleaseDate = t.Album.ReleaseDate
	}
	return e
}

// convertTrack converts a Spotify FullTrack to a domain Track.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return track.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		Artist:      track.JoinArtists(artists),
		Album:       t.Album.Name,
		ReleaseDate: t.Album.ReleaseDate,
		ReleaseYear: track.YearFromReleaseDate(t.Album.ReleaseDate),
		PreviewURL:  t.PreviewURL,
		URI:         string(t.URI),
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
