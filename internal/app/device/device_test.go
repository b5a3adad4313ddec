package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"
)

type fakeSurface struct {
	devices    []spotify.PlayerDevice
	devicesErr error

	transferIDs   []spotify.ID
	transferPlays []bool

	playOpts []*spotify.PlayOptions
	playErr  error

	pauseOpts []*spotify.PlayOptions
	nextOpts  []*spotify.PlayOptions
	prevOpts  []*spotify.PlayOptions
	volumes   []int

	playerState *spotify.PlayerState
}

func (f *fakeSurface) PlayerDevices(ctx context.Context) ([]spotify.PlayerDevice, error) {
	return f.devices, f.devicesErr
}

func (f *fakeSurface) TransferPlayback(ctx context.Context, deviceID spotify.ID, play bool) error {
	f.transferIDs = append(f.transferIDs, deviceID)
	f.transferPlays = append(f.transferPlays, play)
	return nil
}

func (f *fakeSurface) PlayOpt(ctx context.Context, opt *spotify.PlayOptions) error {
	f.playOpts = append(f.playOpts, opt)
	return f.playErr
}

func (f *fakeSurface) PauseOpt(ctx context.Context, opt *spotify.PlayOptions) error {
	f.pauseOpts = append(f.pauseOpts, opt)
	return nil
}

func (f *fakeSurface) NextOpt(ctx context.Context, opt *spotify.PlayOptions) error {
	f.nextOpts = append(f.nextOpts, opt)
	return nil
}

func (f *fakeSurface) PreviousOpt(ctx context.Context, opt *spotify.PlayOptions) error {
	f.prevOpts = append(f.prevOpts, opt)
	return nil
}

func (f *fakeSurface) Volume(ctx context.Context, percent int) error {
	f.volumes = append(f.volumes, percent)
	return nil
}

func (f *fakeSurface) PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error) {
	if f.playerState == nil {
		return &spotify.PlayerState{}, nil
	}
	return f.playerState, nil
}

// The production client must keep satisfying the control surface.
var _ Surface = (*spotify.Client)(nil)

func twoDevices() []spotify.PlayerDevice {
	return []spotify.PlayerDevice{
		{ID: "dev-active", Name: "Kitchen Speaker", Active: true},
		{ID: "dev-named", Name: "Hitsterfy Player"},
	}
}

func TestDevice_Connect(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: 50})

	err := d.Connect(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StateReady, d.GetState())

	// The named device wins over the active one, and the transfer must
	// not start playback.
	assert.Equal(t, []spotify.ID{"dev-named"}, surface.transferIDs)
	assert.Equal(t, []bool{false}, surface.transferPlays)
	assert.Equal(t, []int{50}, surface.volumes)

	// Setup announces the transitional state, then readiness.
	e := <-d.Events()
	assert.Equal(t, EventStateChanged, e.Type)
	assert.Equal(t, StateInitializing, e.State)
	e = <-d.Events()
	assert.Equal(t, EventReady, e.Type)
	assert.Equal(t, StateReady, e.State)
}

func TestDevice_ConnectIdempotent(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))
	assert.NoError(t, d.Connect(ctx))
	assert.NoError(t, d.Connect(ctx))

	// Only the first call transfers playback.
	assert.Len(t, surface.transferIDs, 1)
	assert.Empty(t, surface.volumes)
}

func TestDevice_ConnectFallbacks(t *testing.T) {
	// Unknown name falls back to the active device.
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "No Such Device", Volume: -1})
	assert.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, []spotify.ID{"dev-active"}, surface.transferIDs)

	// No active device falls back to the first one.
	surface = &fakeSurface{devices: []spotify.PlayerDevice{
		{ID: "dev-1", Name: "Speaker 1"},
		{ID: "dev-2", Name: "Speaker 2"},
	}}
	d = New(surface, Config{Volume: -1})
	assert.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, []spotify.ID{"dev-1"}, surface.transferIDs)
}

func TestDevice_ConnectNoDevices(t *testing.T) {
	surface := &fakeSurface{}
	d := New(surface, Config{Volume: -1})

	err := d.Connect(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotReady)
	assert.Equal(t, StateUninitialized, d.GetState())

	<-d.Events() // initializing
	e := <-d.Events()
	assert.Equal(t, EventNotReady, e.Type)
}

func TestDevice_PlayRequiresReady(t *testing.T) {
	d := New(&fakeSurface{}, Config{Volume: -1})

	err := d.Play(context.Background(), PlayRequest{TrackURI: "spotify:track:abc"})
	assert.ErrorIs(t, err, ErrDeviceNotReady)
}

func TestDevice_Play(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	// Single track.
	assert.NoError(t, d.Play(ctx, PlayRequest{TrackURI: "spotify:track:abc"}))
	opt := surface.playOpts[0]
	assert.Equal(t, spotify.ID("dev-named"), *opt.DeviceID)
	assert.Equal(t, []spotify.URI{"spotify:track:abc"}, opt.URIs)
	assert.Nil(t, opt.PlaybackContext)

	// Context with offset.
	offset := 3
	assert.NoError(t, d.Play(ctx, PlayRequest{
		ContextURI: "spotify:playlist:xyz",
		Offset:     &offset,
	}))
	opt = surface.playOpts[1]
	assert.Equal(t, spotify.URI("spotify:playlist:xyz"), *opt.PlaybackContext)
	assert.Empty(t, opt.URIs)
	assert.Equal(t, 3, *opt.PlaybackOffset.Position)

	// Explicit track list.
	assert.NoError(t, d.Play(ctx, PlayRequest{
		TrackURIs: []string{"spotify:track:a", "spotify:track:b"},
	}))
	opt = surface.playOpts[2]
	assert.Equal(t, []spotify.URI{"spotify:track:a", "spotify:track:b"}, opt.URIs)
}

func TestDevice_PlayPremiumRequired(t *testing.T) {
	surface := &fakeSurface{
		devices: twoDevices(),
		playErr: spotify.Error{Status: 403, Message: "Player command failed: Premium required"},
	}
	d := New(surface, Config{Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	err := d.Play(ctx, PlayRequest{TrackURI: "spotify:track:abc"})
	assert.ErrorIs(t, err, ErrPremiumRequired)

	var playbackErr *PlaybackError
	assert.True(t, errors.As(err, &playbackErr))
	assert.Equal(t, "play", playbackErr.Op)
}

func TestDevice_PauseAndResume(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	assert.NoError(t, d.Pause(ctx))
	assert.Len(t, surface.pauseOpts, 1)
	assert.Equal(t, spotify.ID("dev-named"), *surface.pauseOpts[0].DeviceID)

	assert.NoError(t, d.Resume(ctx))
	assert.Len(t, surface.playOpts, 1)
	assert.Empty(t, surface.playOpts[0].URIs)
}

func TestDevice_TogglePlay(t *testing.T) {
	surface := &fakeSurface{
		devices: twoDevices(),
		playerState: &spotify.PlayerState{
			CurrentlyPlaying: spotify.CurrentlyPlaying{Playing: true},
		},
	}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	// The device reports playing, so the toggle pauses.
	playing, err := d.TogglePlay(ctx)
	assert.NoError(t, err)
	assert.False(t, playing)
	assert.Len(t, surface.pauseOpts, 1)
	assert.Equal(t, spotify.ID("dev-named"), *surface.pauseOpts[0].DeviceID)

	// Paused state resumes instead.
	surface.playerState.Playing = false
	playing, err = d.TogglePlay(ctx)
	assert.NoError(t, err)
	assert.True(t, playing)
	assert.Len(t, surface.playOpts, 1)
	assert.Empty(t, surface.playOpts[0].URIs)
}

func TestDevice_TogglePlayRequiresReady(t *testing.T) {
	d := New(&fakeSurface{}, Config{Volume: -1})

	_, err := d.TogglePlay(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotReady)
}

func TestDevice_NextAndPrevious(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Name: "Hitsterfy Player", Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	assert.NoError(t, d.Next(ctx))
	assert.Len(t, surface.nextOpts, 1)
	assert.Equal(t, spotify.ID("dev-named"), *surface.nextOpts[0].DeviceID)

	assert.NoError(t, d.Previous(ctx))
	assert.Len(t, surface.prevOpts, 1)
	assert.Equal(t, spotify.ID("dev-named"), *surface.prevOpts[0].DeviceID)

	d.Disconnect()
	assert.ErrorIs(t, d.Next(ctx), ErrDeviceNotReady)
	assert.ErrorIs(t, d.Previous(ctx), ErrDeviceNotReady)
}

func TestDevice_Snapshot(t *testing.T) {
	surface := &fakeSurface{
		devices: twoDevices(),
		playerState: &spotify.PlayerState{
			CurrentlyPlaying: spotify.CurrentlyPlaying{
				Playing:  true,
				Progress: 12000,
				Item: &spotify.FullTrack{
					SimpleTrack: spotify.SimpleTrack{URI: "spotify:track:abc"},
				},
			},
		},
	}
	d := New(surface, Config{Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	p, err := d.Snapshot(ctx)
	assert.NoError(t, err)
	assert.True(t, p.Playing)
	assert.Equal(t, "spotify:track:abc", p.TrackURI)
	assert.Equal(t, 12000, p.ProgressMs)
}

func TestDevice_DisconnectIdempotent(t *testing.T) {
	surface := &fakeSurface{devices: twoDevices()}
	d := New(surface, Config{Volume: -1})

	ctx := context.Background()
	assert.NoError(t, d.Connect(ctx))

	d.Disconnect()
	d.Disconnect() // second call must not panic
	assert.Equal(t, StateDisconnected, d.GetState())

	// Event channel drains the buffered events, then reports closed.
	var types []EventType
	for e := range d.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventStateChanged, // initializing
		EventReady,
		EventStateChanged, // disconnected
	}, types)

	// A torn down device does not reconnect.
	assert.ErrorIs(t, d.Connect(ctx), ErrDeviceNotReady)
	assert.ErrorIs(t, d.Play(ctx, PlayRequest{TrackURI: "spotify:track:abc"}), ErrDeviceNotReady)
}
