// Package musicbrainz looks up the original release year of a
// recording. Streaming catalogs often carry remaster or compilation
// dates, which would give the game away with the wrong year.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrYearNotFound indicates that no usable release date was found.
var ErrYearNotFound = errors.New("original release year not found")

// yearCacheEntry represents a cached lookup result.
type yearCacheEntry struct {
	year int
	err  error
}

// Client is a MusicBrainz API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client

	// Cache for year lookups
	yearCache map[string]*yearCacheEntry
	cacheMu   sync.RWMutex
}

// searchResponse represents the response from the recording search API.
type searchResponse struct {
	Recordings []struct {
		Title    string `json:"title"`
		Releases []struct {
			Title        string `json:"title"`
			Date         string `json:"date"`
			Status       string `json:"status"`
			ReleaseGroup struct {
				PrimaryType    string   `json:"primary-type"`
				SecondaryTypes []string `json:"secondary-types"`
			} `json:"release-group"`
		} `json:"releases"`
	} `json:"recordings"`
}

// New creates a new MusicBrainz client.
func New() *Client {
	return &Client{
		baseURL:    "https://musicbrainz.org/ws/2",
		userAgent:  "Hitsterfy/1.0 (https://github.com/hitsterfy/hitsterfy)",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		yearCache:  make(map[string]*yearCacheEntry),
	}
}

// GetOriginalReleaseYear searches MusicBrainz for the recording and
// returns the year of its earliest studio album release. When no studio
// album qualifies, the earliest dated release of any kind is used.
func (c *Client) GetOriginalReleaseYear(ctx context.Context, artistName, trackName string) (int, error) {
	if artistName == "" || trackName == "" {
		return 0, errors.New("artist name and track name are required")
	}

	cacheKey := fmt.Sprintf("year:%s:%s", artistName, trackName)
	c.cacheMu.RLock()
	if entry, ok := c.yearCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached release year for %s - %s", artistName, trackName)
		return entry.year, entry.err
	}
	c.cacheMu.RUnlock()

	cleaned := CleanTrackName(trackName)

	params := url.Values{}
	params.Set("query", fmt.Sprintf("artist:%s AND recording:%s", artistName, cleaned))
	params.Set("fmt", "json")
	params.Set("limit", "25")

	reqURL := c.baseURL + "/recording?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}
	// MusicBrainz rejects requests without an identifying User-Agent
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("musicbrainz API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, errors.Wrap(err, "failed to parse response")
	}

	year, lookupErr := pickOriginalYear(&response)

	c.cacheMu.Lock()
	c.yearCache[cacheKey] = &yearCacheEntry{year: year, err: lookupErr}
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached release year for %s - %s: %d", artistName, trackName, year)

	return year, lookupErr
}

type datedRelease struct {
	date   string
	studio bool
}

// pickOriginalYear chooses the earliest studio album release, falling
// back to the earliest dated release of any kind.
func pickOriginalYear(response *searchResponse) (int, error) {
	var releases []datedRelease
	for _, rec := range response.Recordings {
		for _, rel := range rec.Releases {
			if rel.Date == "" {
				continue
			}
			releases = append(releases, datedRelease{
				date:   rel.Date,
				studio: isStudioAlbumRelease(rel.Status, rel.Title, rel.ReleaseGroup.PrimaryType, rel.ReleaseGroup.SecondaryTypes),
			})
		}
	}
	if len(releases) == 0 {
		return 0, ErrYearNotFound
	}

	sort.Slice(releases, func(i, j int) bool { return releases[i].date < releases[j].date })

	for _, rel := range releases {
		if rel.studio {
			return yearOf(rel.date)
		}
	}
	return yearOf(releases[0].date)
}

func yearOf(date string) (int, error) {
	yearStr, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, errors.Wrapf(ErrYearNotFound, "unparseable date %q", date)
	}
	return year, nil
}

// compilationTitle matches release titles that are clearly not the
// original album.
var compilationTitle = regexp.MustCompile(`(?i)\b(compilation|collection|best of|greatest hits|anthology|box set)\b`)

// excludedSecondaryTypes are release group types that never carry the
// original release date.
var excludedSecondaryTypes = map[string]bool{
	"Live":        true,
	"Remix":       true,
	"Soundtrack":  true,
	"Compilation": true,
	"DJ-mix":      true,
	"Interview":   true,
	"Demo":        true,
}

func isStudioAlbumRelease(status, title, primaryType string, secondaryTypes []string) bool {
	if status != "Official" {
		return false
	}
	if primaryType != "Album" {
		return false
	}
	if compilationTitle.MatchString(title) {
		return false
	}
	for _, st := range secondaryTypes {
		if excludedSecondaryTypes[st] {
			return false
		}
	}
	return true
}

// cleanupPatterns strip remaster, reissue and edition suffixes that
// streaming catalogs append to track names and that break MusicBrainz
// matching.
var cleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*-\s*(\d{4}\s*)?(re)?master(ed)?(\s*\d{4})?.*$`),
	regexp.MustCompile(`(?i)\s*\(\s*(\d{4}\s*)?(re)?master(ed)?(\s*\d{4})?\s*\)`),
	regexp.MustCompile(`(?i)\s*-\s*\d{4}\s*(version|mix|remix).*$`),
	regexp.MustCompile(`(?i)\s*-\s*(stereo|mono)(\s*(version|mix))?.*$`),
	regexp.MustCompile(`(?i)\s*\(\s*(stereo|mono)(\s*(version|mix))?\s*\)`),
	regexp.MustCompile(`(?i)\s*-\s*(single|album|radio)\s*(version|edit|mix).*$`),
	regexp.MustCompile(`(?i)\s*\(\s*(single|album|radio)\s*(version|edit|mix)\s*\)`),
	regexp.MustCompile(`(?i)\s*-\s*live\b.*$`),
	regexp.MustCompile(`(?i)\s*\(\s*live\b[^)]*\)`),
	regexp.MustCompile(`(?i)\s*-\s*(deluxe|expanded|extended|special|anniversary)(\s*(edition|version))?.*$`),
	regexp.MustCompile(`(?i)\s*\(\s*(deluxe|expanded|extended|special|anniversary)(\s*(edition|version))?\s*\)`),
	regexp.MustCompile(`(?i)\s*-\s*(from|bonus track).*$`),
}

// CleanTrackName removes catalog suffixes from a track name. The
// patterns run twice because suffixes stack ("Song - Live - 2011
// Remaster").
func CleanTrackName(name string) string {
	cleaned := name
	for i := 0; i < 2; i++ {
		for _, pattern := range cleanupPatterns {
			cleaned = pattern.ReplaceAllString(cleaned, "")
		}
	}
	cleaned = regexp.MustCompile(`\(\s*\)`).ReplaceAllString(cleaned, "")
	cleaned = strings.TrimRight(cleaned, " -")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return name
	}
	return cleaned
}
