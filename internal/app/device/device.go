package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
)

// Errors
var (
	ErrDeviceNotReady  = errors.New("device not ready")
	ErrPremiumRequired = errors.New("spotify premium required")
)

// PlaybackError represents a failed playback command.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s failed: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Surface is the slice of the Spotify Web API used for device control.
// *spotify.Client satisfies it.
type Surface interface {
	PlayerDevices(ctx context.Context) ([]spotify.PlayerDevice, error)
	TransferPlayback(ctx context.Context, deviceID spotify.ID, play bool) error
	PlayOpt(ctx context.Context, opt *spotify.PlayOptions) error
	PauseOpt(ctx context.Context, opt *spotify.PlayOptions) error
	NextOpt(ctx context.Context, opt *spotify.PlayOptions) error
	PreviousOpt(ctx context.Context, opt *spotify.PlayOptions) error
	Volume(ctx context.Context, percent int) error
	PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error)
}

// Config holds device configuration.
type Config struct {
	Name   string // Preferred Connect device name
	Volume int    // Initial volume percent (negative leaves it unchanged)
}

// PlayRequest describes what to start playing.
type PlayRequest struct {
	TrackURI   string   // Single track to play
	TrackURIs  []string // Explicit list of tracks to play
	ContextURI string   // Playlist or album context to play
	Offset     *int     // Position within the track list or context
}

// Playback is a snapshot of the player state.
type Playback struct {
	Playing    bool
	TrackURI   string
	ProgressMs int
}

// Device manages a Spotify Connect playback device.
type Device struct {
	mu sync.Mutex

	surface  Surface
	config   Config
	state    State
	deviceID spotify.ID

	eventCh   chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a new device controller.
func New(surface Surface, config Config) *Device {
	ctx, cancel := context.WithCancel(context.Background())
	return &Device{
		surface: surface,
		config:  config,
		state:   StateUninitialized,
		eventCh: make(chan Event, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel.
func (d *Device) Events() <-chan Event {
	return d.eventCh
}

// GetState returns the current connection state.
func (d *Device) GetState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect discovers a Connect device and transfers playback to it
// without starting playback. Calling Connect on a ready device is a
// no-op, so repeated session starts cannot stack device setups.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateReady {
		return nil
	}
	if d.state == StateDisconnected {
		return ErrDeviceNotReady
	}
	d.state = StateInitializing
	d.sendEventLocked(Event{Type: EventStateChanged, State: d.state})

	devices, err := d.surface.PlayerDevices(ctx)
	if err != nil {
		d.state = StateUninitialized
		d.sendEventLocked(Event{Type: EventError, State: d.state, Err: d.wrapErr("connect", err)})
		return d.wrapErr("connect", err)
	}

	target, ok := pickDevice(devices, d.config.Name)
	if !ok {
		d.state = StateUninitialized
		d.sendEventLocked(Event{Type: EventNotReady, State: d.state})
		return errors.Join(ErrDeviceNotReady, errors.New("no connect device available"))
	}

	if err := d.surface.TransferPlayback(ctx, target.ID, false); err != nil {
		d.state = StateUninitialized
		wrapped := d.wrapErr("transfer", err)
		d.sendEventLocked(Event{Type: EventError, State: d.state, Err: wrapped})
		return wrapped
	}

	if d.config.Volume >= 0 {
		if err := d.surface.Volume(ctx, d.config.Volume); err != nil {
			// Volume is cosmetic, playback still works without it.
			zlog.Warn().Msgf("device: failed to set volume: %v", err)
		}
	}

	d.deviceID = target.ID
	d.state = StateReady
	zlog.Info().Msgf("device ready: %s (%s)", target.Name, target.ID)
	d.sendEventLocked(Event{Type: EventReady, State: d.state})
	return nil
}

// Play starts playback of the requested tracks on the connected device.
func (d *Device) Play(ctx context.Context, req PlayRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	opts := &spotify.PlayOptions{DeviceID: &d.deviceID}
	switch {
	case req.ContextURI != "":
		uri := spotify.URI(req.ContextURI)
		opts.PlaybackContext = &uri
	case req.TrackURI != "":
		opts.URIs = []spotify.URI{spotify.URI(req.TrackURI)}
	default:
		opts.URIs = make([]spotify.URI, len(req.TrackURIs))
		for i, u := range req.TrackURIs {
			opts.URIs[i] = spotify.URI(u)
		}
	}
	if req.Offset != nil {
		opts.PlaybackOffset = &spotify.PlaybackOffset{Position: req.Offset}
	}

	if err := d.surface.PlayOpt(ctx, opts); err != nil {
		return d.wrapErr("play", err)
	}
	return nil
}

// Pause pauses playback on the connected device.
func (d *Device) Pause(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	if err := d.surface.PauseOpt(ctx, &spotify.PlayOptions{DeviceID: &d.deviceID}); err != nil {
		return d.wrapErr("pause", err)
	}
	return nil
}

// Resume resumes paused playback on the connected device.
func (d *Device) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	if err := d.surface.PlayOpt(ctx, &spotify.PlayOptions{DeviceID: &d.deviceID}); err != nil {
		return d.wrapErr("resume", err)
	}
	return nil
}

// TogglePlay flips playback between playing and paused, based on what
// the device reports. Returns the resulting playing state.
func (d *Device) TogglePlay(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return false, ErrDeviceNotReady
	}

	st, err := d.surface.PlayerState(ctx)
	if err != nil {
		return false, d.wrapErr("state", err)
	}

	opts := &spotify.PlayOptions{DeviceID: &d.deviceID}
	if st.Playing {
		if err := d.surface.PauseOpt(ctx, opts); err != nil {
			return false, d.wrapErr("pause", err)
		}
		return false, nil
	}
	if err := d.surface.PlayOpt(ctx, opts); err != nil {
		return false, d.wrapErr("resume", err)
	}
	return true, nil
}

// Next skips to the next track on the connected device.
func (d *Device) Next(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	if err := d.surface.NextOpt(ctx, &spotify.PlayOptions{DeviceID: &d.deviceID}); err != nil {
		return d.wrapErr("next", err)
	}
	return nil
}

// Previous skips back to the previous track on the connected device.
func (d *Device) Previous(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	if err := d.surface.PreviousOpt(ctx, &spotify.PlayOptions{DeviceID: &d.deviceID}); err != nil {
		return d.wrapErr("previous", err)
	}
	return nil
}

// SetVolume sets the device volume.
func (d *Device) SetVolume(ctx context.Context, percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrDeviceNotReady
	}

	if err := d.surface.Volume(ctx, percent); err != nil {
		return d.wrapErr("volume", err)
	}
	return nil
}

// Snapshot returns the current player state.
func (d *Device) Snapshot(ctx context.Context) (*Playback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return nil, ErrDeviceNotReady
	}

	st, err := d.surface.PlayerState(ctx)
	if err != nil {
		return nil, d.wrapErr("state", err)
	}

	p := &Playback{
		Playing:    st.Playing,
		ProgressMs: int(st.Progress),
	}
	if st.Item != nil {
		p.TrackURI = string(st.Item.URI)
	}
	return p, nil
}

// Disconnect tears the device down and closes the event channel.
// Safe to call multiple times.
func (d *Device) Disconnect() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.state = StateDisconnected
		d.deviceID = ""
		d.sendEventLocked(Event{Type: EventStateChanged, State: StateDisconnected})
		d.mu.Unlock()

		d.cancel()
		close(d.eventCh)
		zlog.Debug().Msg("device disconnected")
	})
}

// wrapErr classifies a Web API error. A 403 mentioning premium is the
// accounts service refusing playback control for a free account.
func (d *Device) wrapErr(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden &&
		strings.Contains(strings.ToLower(apiErr.Message), "premium") {
		return &PlaybackError{Op: op, Err: ErrPremiumRequired}
	}
	return &PlaybackError{Op: op, Err: err}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (d *Device) sendEventLocked(e Event) {
	select {
	case d.eventCh <- e:
		// Successfully sent
	case <-d.ctx.Done():
		// Context cancelled, don't send
	default:
		// Channel full, drop event
	}
}

// pickDevice chooses a Connect device: the configured name wins, then
// the active device, then the first one listed.
func pickDevice(devices []spotify.PlayerDevice, name string) (spotify.PlayerDevice, bool) {
	if len(devices) == 0 {
		return spotify.PlayerDevice{}, false
	}

	if name != "" {
		for _, dev := range devices {
			if dev.Name == name {
				return dev, true
			}
		}
	}
	for _, dev := range devices {
		if dev.Active {
			return dev, true
		}
	}
	return devices[0], true
}
