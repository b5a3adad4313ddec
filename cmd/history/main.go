// Package main provides the listening history admin tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/hitsterfy/hitsterfy/internal/infra/store"
)

var (
	app    = kingpin.New("hitsterfy-history", "Listening history admin tool for hitsterfy")
	dbPath = app.Flag("db", "Database path").Envar("HITSTERFY_DB").Default("hitsterfy.db").String()

	// list command
	listCmd  = app.Command("list", "List heard tracks for a user")
	listUser = listCmd.Arg("user-id", "Spotify user ID").Required().String()

	// clear command
	clearCmd  = app.Command("clear", "Clear a user's listening history")
	clearUser = clearCmd.Arg("user-id", "Spotify user ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	switch command {
	case listCmd.FullCommand():
		err = listHistory(ctx, st, *listUser)
	case clearCmd.FullCommand():
		err = clearHistory(ctx, st, *clearUser)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func listHistory(ctx context.Context, st *store.Store, userID string) error {
	heard, err := st.ListHeard(ctx, userID)
	if err != nil {
		return err
	}
	if len(heard) == 0 {
		fmt.Printf("No history for %s\n", userID)
		return nil
	}

	fmt.Printf("History for %s (%d tracks):\n", userID, len(heard))
	for i, h := range heard {
		fmt.Printf("  %3d. [%s] %s - %s (heard %s)\n",
			i+1, h.ReleaseYear, h.Artist, h.Name, h.ListenedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func clearHistory(ctx context.Context, st *store.Store, userID string) error {
	if err := st.ClearHeard(ctx, userID); err != nil {
		return err
	}
	fmt.Printf("Cleared history for %s\n", userID)
	return nil
}
