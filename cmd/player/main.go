// Package main provides the interactive guessing game entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/hitsterfy/hitsterfy/internal/app/device"
	"github.com/hitsterfy/hitsterfy/internal/app/filter"
	"github.com/hitsterfy/hitsterfy/internal/app/session"
	"github.com/hitsterfy/hitsterfy/internal/domain/track"
	"github.com/hitsterfy/hitsterfy/internal/infra/auth"
	"github.com/hitsterfy/hitsterfy/internal/infra/config"
	"github.com/hitsterfy/hitsterfy/internal/infra/logger"
	"github.com/hitsterfy/hitsterfy/internal/infra/musicbrainz"
	"github.com/hitsterfy/hitsterfy/internal/infra/spotify"
	"github.com/hitsterfy/hitsterfy/internal/infra/store"
)

var (
	app        = kingpin.New("hitsterfy", "Guess-the-year music game played through Spotify Connect")
	configPath = app.Flag("config", "Configuration file path").Short('c').Default("config.yaml").String()
	verbose    = app.Flag("verbose", "Enable debug logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Write logs to a file instead of stderr").String()
	playCmd    = app.Command("play", "Start an interactive game session").Default()
	filtersCmd = app.Command("list-filters", "List available track filters")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == filtersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player exited with error: %v", err)
		os.Exit(1)
	}
}

// run executes the game session. Using a separate function ensures defer
// statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	creds := auth.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	}
	playlistRef := cfg.Game.PlaylistURL

	// Without a refresh token in the config or environment, fall back on
	// whatever the auth helper persisted last.
	if creds.RefreshToken == "" {
		_, stored, err := st.LatestConfig(ctx)
		if err != nil {
			return fmt.Errorf("no refresh token configured; run hitsterfy-auth first: %w", err)
		}
		creds.RefreshToken = stored.RefreshToken
	}

	tokens, err := auth.New(creds)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	// Refresh eagerly so bad credentials fail before the game starts.
	if _, err := tokens.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	chain, err := buildChain(cfg)
	if err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	api := spotify.NewAPI(ctx, tokens)
	catalog := spotify.New(api, chain)

	userID, err := catalog.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify user: %w", err)
	}
	zlog.Info().Msgf("Authenticated as %s", userID)

	// Spotify occasionally rotates refresh tokens; persist the current one
	// so the next run keeps working.
	if rotated := tokens.RefreshToken(); rotated != creds.RefreshToken {
		saveErr := st.SaveConfig(ctx, userID, store.PlayerConfig{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RefreshToken: rotated,
			PlaylistURL:  playlistRef,
		})
		if saveErr != nil {
			zlog.Warn().Msgf("Failed to persist rotated refresh token: %v", saveErr)
		}
	}

	dev := device.New(api, device.Config{
		Name:   cfg.Player.DeviceName,
		Volume: cfg.Player.Volume,
	})

	mgr, err := session.NewManager(session.Config{
		UserID:       userID,
		PlaylistRef:  playlistRef,
		PollInterval: cfg.PollInterval(),
	}, catalog, dev, st)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer mgr.Close()

	fmt.Println("Loading playlist...")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if mgr.Phase() == session.PhaseCompleted {
		fmt.Printf("You have already heard every track in %s.\n", mgr.Catalog().Name)
		fmt.Println("Pick another playlist, or wipe the slate with: hitsterfy-history clear <user-id>")
		return nil
	}
	fmt.Printf("Ready: %s (%d tracks left to guess)\n", mgr.Catalog().Name, mgr.Remaining())
	printHelp()

	return gameLoop(ctx, mgr)
}

// gameLoop reads commands from stdin until the game ends or the context is
// cancelled.
func gameLoop(ctx context.Context, mgr *session.Manager) error {
	mb := musicbrainz.New()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case <-mgr.PremiumRequired():
			fmt.Println("\nSpotify Premium is required for playback control. Game over.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleCommand(ctx, mgr, mb, line)
			if err != nil {
				if errors.Is(err, session.ErrCatalogExhausted) {
					fmt.Println("No tracks left. Thanks for playing!")
					return nil
				}
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handleCommand dispatches a single game command. The bool result requests
// loop termination.
func handleCommand(ctx context.Context, mgr *session.Manager, mb *musicbrainz.Client, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil

	case "p", "play", "pause":
		if mgr.Phase() == session.PhaseAwaitingStart {
			return false, startRound(ctx, mgr)
		}
		if err := mgr.TogglePlayback(ctx); err != nil {
			return false, err
		}
		if mgr.IsPlaying() {
			fmt.Println("Playing.")
		} else {
			fmt.Println("Paused.")
		}
		return false, nil

	case "r", "reveal":
		revealed, err := mgr.Reveal(ctx)
		if err != nil {
			return false, err
		}
		printReveal(ctx, mb, revealed)
		return false, nil

	case "n", "next":
		if mgr.Phase() == session.PhaseAwaitingStart {
			return false, startRound(ctx, mgr)
		}
		if _, err := mgr.Next(ctx); err != nil {
			return false, err
		}
		fmt.Printf("Mystery track playing. (%d left after this one)\n", mgr.Remaining())
		return false, nil

	case "s", "status":
		printStatus(mgr)
		return false, nil

	case "h", "help", "?":
		printHelp()
		return false, nil

	case "q", "quit", "exit":
		fmt.Println("Thanks for playing!")
		return true, nil

	default:
		fmt.Printf("Unknown command %q (h for help)\n", line)
		return false, nil
	}
}

func startRound(ctx context.Context, mgr *session.Manager) error {
	if _, err := mgr.SelectNext(ctx); err != nil {
		return err
	}
	fmt.Printf("Mystery track playing. (%d left after this one)\n", mgr.Remaining())
	return nil
}

// printReveal announces the current track. MusicBrainz sometimes knows an
// earlier original release than the album Spotify serves (remasters,
// compilations), so the original year is shown when it differs.
func printReveal(ctx context.Context, mb *musicbrainz.Client, t *track.Track) {
	fmt.Printf("It was: %s - %s\n", t.Artist, t.Name)
	fmt.Printf("Album:  %s (%s)\n", t.Album, t.ReleaseYear)

	primaryArtist, _, _ := strings.Cut(t.Artist, ", ")
	originalYear, err := mb.GetOriginalReleaseYear(ctx, primaryArtist, t.Name)
	if err != nil {
		zlog.Debug().Msgf("No original release year for %s - %s: %v", primaryArtist, t.Name, err)
		return
	}
	if strconv.Itoa(originalYear) != t.ReleaseYear {
		fmt.Printf("Originally released in %d.\n", originalYear)
	}
}

func printStatus(mgr *session.Manager) {
	fmt.Printf("Phase: %s\n", mgr.Phase())
	if _, ok := mgr.Current(); ok {
		if mgr.IsPlaying() {
			fmt.Println("A mystery track is playing.")
		} else {
			fmt.Println("A mystery track is loaded (paused).")
		}
	}
	fmt.Printf("Tracks left: %d\n", mgr.Remaining())
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  p  play/pause the mystery track")
	fmt.Println("  r  reveal the answer")
	fmt.Println("  n  next mystery track")
	fmt.Println("  s  session status")
	fmt.Println("  q  quit")
}

// buildChain assembles the catalog filter chain from the baseline filters
// plus any configured optional ones.
func buildChain(cfg *config.Config) (*filter.Chain, error) {
	chain := filter.NewCatalogChain()
	for name, factory := range filter.GetRegistered() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := factory()
		if err := f.ValidateConfig(cfg.FilterSettings(name)); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		chain.Add(f)
	}
	return chain, nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
