package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/hitsterfy/hitsterfy/internal/app/device"
	"github.com/hitsterfy/hitsterfy/internal/domain/playlist"
	"github.com/hitsterfy/hitsterfy/internal/domain/track"
)

var (
	ErrSessionRunning   = errors.New("session already started")
	ErrSessionNotReady  = errors.New("session is not ready")
	ErrInvalidPhase     = errors.New("operation not valid in current phase")
	ErrCatalogExhausted = errors.New("all tracks have been played")
)

const defaultPollInterval = 3 * time.Second

// TrackSource loads the playable catalog.
type TrackSource interface {
	FetchPlaylist(ctx context.Context, ref string) (*playlist.Playlist, error)
}

// Player controls the playback device.
type Player interface {
	Connect(ctx context.Context) error
	Play(ctx context.Context, req device.PlayRequest) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	TogglePlay(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (*device.Playback, error)
	Events() <-chan device.Event
	Disconnect()
}

// History persists listening history.
type History interface {
	AppendHeard(ctx context.Context, userID string, t track.Track) error
	HeardTrackIDs(ctx context.Context, userID string) ([]string, error)
}

// Config holds session configuration.
type Config struct {
	UserID       string
	PlaylistRef  string
	PollInterval time.Duration // Player state poll interval (default 3s)
	Rand         *rand.Rand    // Source of track selection randomness
}

// Manager runs one guessing game session.
type Manager struct {
	mu sync.RWMutex

	id      string
	config  Config
	source  TrackSource
	player  Player
	history History
	rng     *rand.Rand

	phase   Phase
	catalog *playlist.Playlist
	heard   map[string]bool
	current *track.Track
	playing bool

	premiumCh   chan struct{}
	premiumOnce sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewManager creates a new session manager.
func NewManager(cfg Config, source TrackSource, player Player, history History) (*Manager, error) {
	if source == nil || player == nil || history == nil {
		return nil, errors.New("session dependencies are required")
	}
	if cfg.PlaylistRef == "" {
		return nil, errors.New("playlist reference is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		id:        uuid.New().String(),
		config:    cfg,
		source:    source,
		player:    player,
		history:   history,
		rng:       rng,
		phase:     PhaseLoading,
		heard:     make(map[string]bool),
		premiumCh: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// ID returns the session ID.
func (m *Manager) ID() string {
	return m.id
}

// Start loads the catalog, seeds the heard set from history and brings
// the playback device up. Must be called once before any other action.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseLoading {
		return ErrSessionRunning
	}

	catalog, err := m.source.FetchPlaylist(ctx, m.config.PlaylistRef)
	if err != nil {
		return errors.Wrap(err, "failed to load catalog")
	}

	heardIDs, err := m.history.HeardTrackIDs(ctx, m.config.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to load history")
	}
	for _, id := range heardIDs {
		m.heard[id] = true
	}

	if err := m.player.Connect(ctx); err != nil {
		return errors.Wrap(err, "failed to connect device")
	}

	m.catalog = catalog

	// A playlist the user has heard end to end has no game left in it.
	if m.unheardCountLocked() == 0 {
		m.phase = PhaseCompleted
		zlog.Info().Msgf("session %s: playlist %q is already fully heard", m.id, catalog.Name)
		return nil
	}
	m.phase = PhaseAwaitingStart

	go m.eventLoop()
	go m.pollLoop()

	zlog.Info().Msgf("session %s started: playlist=%q tracks=%d heard=%d",
		m.id, catalog.Name, len(catalog.Tracks), len(heardIDs))
	return nil
}

// unheardCountLocked counts catalog tracks absent from the heard set.
// Must be called with lock held.
func (m *Manager) unheardCountLocked() int {
	unheard := 0
	for i := range m.catalog.Tracks {
		if !m.heard[m.catalog.Tracks[i].ID] {
			unheard++
		}
	}
	return unheard
}

// SelectNext picks an unheard track uniformly at random and starts it
// hidden. Valid when awaiting the first play or after a reveal.
func (m *Manager) SelectNext(ctx context.Context) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectNextLocked(ctx)
}

// selectNextLocked implements SelectNext. Must be called with lock held.
func (m *Manager) selectNextLocked(ctx context.Context) (*track.Track, error) {
	switch m.phase {
	case PhaseAwaitingStart, PhaseRevealed:
		// fall through
	case PhaseLoading:
		return nil, ErrSessionNotReady
	default:
		return nil, errors.Wrapf(ErrInvalidPhase, "phase %s", m.phase)
	}

	candidates := make([]*track.Track, 0, len(m.catalog.Tracks))
	for i := range m.catalog.Tracks {
		if !m.heard[m.catalog.Tracks[i].ID] {
			candidates = append(candidates, &m.catalog.Tracks[i])
		}
	}
	if len(candidates) == 0 {
		m.phase = PhaseCompleted
		m.current = nil
		m.playing = false
		return nil, ErrCatalogExhausted
	}

	next := candidates[m.rng.Intn(len(candidates))]

	// The phase transitions only after playback actually starts, so a
	// failed play leaves the session exactly where it was.
	if err := m.player.Play(ctx, device.PlayRequest{TrackURI: next.URI}); err != nil {
		if errors.Is(err, device.ErrPremiumRequired) {
			m.failPremiumLocked()
		}
		return nil, errors.Wrap(err, "failed to start playback")
	}

	m.current = next
	m.phase = PhasePlaying
	m.playing = true

	zlog.Debug().Msgf("session %s: now playing hidden track %s", m.id, next.ID)
	return next, nil
}

// TogglePlayback pauses or resumes the current track. With no track on
// deck it behaves as SelectNext and starts the next round.
func (m *Manager) TogglePlayback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhasePlaying && m.phase != PhaseRevealed {
		_, err := m.selectNextLocked(ctx)
		return err
	}

	playing, err := m.player.TogglePlay(ctx)
	if err != nil {
		if errors.Is(err, device.ErrPremiumRequired) {
			m.failPremiumLocked()
		}
		return errors.Wrap(err, "failed to toggle playback")
	}
	m.playing = playing
	return nil
}

// Reveal uncovers the current track and records it as heard. Pausing
// the device is best effort: the reveal succeeds even when the pause
// command fails. The history write is local first; a failed remote
// append is logged and never rolls the reveal back.
func (m *Manager) Reveal(ctx context.Context) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhasePlaying {
		return nil, errors.Wrapf(ErrInvalidPhase, "phase %s", m.phase)
	}

	if err := m.player.Pause(ctx); err != nil {
		zlog.Warn().Msgf("session %s: pause on reveal failed: %v", m.id, err)
	}
	m.playing = false
	m.phase = PhaseRevealed

	revealed := m.current
	m.heard[revealed.ID] = true

	if err := m.history.AppendHeard(ctx, m.config.UserID, *revealed); err != nil {
		zlog.Warn().Msgf("session %s: failed to persist history entry: %v", m.id, err)
	}

	zlog.Info().Msgf("session %s: revealed %s - %s (%s)",
		m.id, revealed.Artist, revealed.Name, revealed.ReleaseYear)
	return revealed, nil
}

// Next advances to the next hidden track after a reveal.
func (m *Manager) Next(ctx context.Context) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRevealed {
		return nil, errors.Wrapf(ErrInvalidPhase, "phase %s", m.phase)
	}
	return m.selectNextLocked(ctx)
}

// Phase returns the current phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Current returns the current track, if one exists.
func (m *Manager) Current() (*track.Track, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil || (m.phase != PhasePlaying && m.phase != PhaseRevealed) {
		return nil, false
	}
	return m.current, true
}

// IsPlaying reports whether the current track is audible. A revealed
// track counts: the player may resume it while reading the answer.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (m.phase == PhasePlaying || m.phase == PhaseRevealed) && m.playing
}

// Remaining returns the number of unheard tracks left in the catalog.
func (m *Manager) Remaining() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.catalog == nil {
		return 0
	}
	return m.unheardCountLocked()
}

// Catalog returns the loaded playlist.
func (m *Manager) Catalog() *playlist.Playlist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// PremiumRequired is closed when the account turns out to lack the
// premium subscription playback control needs. The session is over at
// that point.
func (m *Manager) PremiumRequired() <-chan struct{} {
	return m.premiumCh
}

// Close tears the session down. Safe to call multiple times.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.player.Disconnect()

		m.mu.Lock()
		m.phase = PhaseCompleted
		m.mu.Unlock()

		zlog.Debug().Msgf("session %s closed", m.id)
	})
}

// eventLoop consumes device events until the device goes away.
func (m *Manager) eventLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-m.player.Events():
			if !ok {
				return
			}
			m.handleDeviceEvent(event)
		}
	}
}

// handleDeviceEvent handles device events.
func (m *Manager) handleDeviceEvent(event device.Event) {
	zlog.Debug().Msgf("device event: type=%s state=%s", event.Type, event.State)

	switch event.Type {
	case device.EventNotReady:
		zlog.Warn().Msg("playback device became unavailable")

	case device.EventError:
		if errors.Is(event.Err, device.ErrPremiumRequired) {
			m.mu.Lock()
			m.failPremiumLocked()
			m.mu.Unlock()
			return
		}
		zlog.Warn().Msgf("device error: %v", event.Err)
	}
}

// pollLoop keeps the playing flag in sync with the device.
func (m *Manager) pollLoop() {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			active := m.phase == PhasePlaying
			m.mu.RUnlock()
			if !active {
				continue
			}

			snapshot, err := m.player.Snapshot(m.ctx)
			if err != nil {
				zlog.Debug().Msgf("player state poll failed: %v", err)
				continue
			}

			m.mu.Lock()
			if m.phase == PhasePlaying {
				m.playing = snapshot.Playing
			}
			m.mu.Unlock()
		}
	}
}

// failPremiumLocked marks the session terminally failed.
// Must be called with lock held.
func (m *Manager) failPremiumLocked() {
	m.phase = PhaseCompleted
	m.current = nil
	m.playing = false
	m.premiumOnce.Do(func() { close(m.premiumCh) })
	zlog.Error().Msg("spotify premium is required for playback, session over")
}
