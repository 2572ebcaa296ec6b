package main

import (
	"errors"
	"fmt"

	"github.com/franz/spotify-manager/internal/manager"
	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a playlist's tracks to the cache",
	Long: `Fetch a playlist and store its tracks together with their albums and
artists. With --rating every track of the playlist is rated: a positive
value means liked, zero neutral and a negative value disliked. Rating a
track again overwrites the previous rating.`,
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().String("playlist-id", "", "Spotify playlist ID (required)")
	addCmd.Flags().Int("rating", 0, "rate every track: >0 liked, 0 neutral, <0 disliked")
	addCmd.MarkFlagRequired("playlist-id")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	playlistID, _ := cmd.Flags().GetString("playlist-id")

	// Without --rating the tracks are stored unrated
	var rating *music.Rating
	if cmd.Flags().Changed("rating") {
		r, _ := cmd.Flags().GetInt("rating")
		rating = music.NewRating(r).Ptr()
	}

	cfg, err := loadCatalogConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := requireSchema(ctx, db); err != nil {
		return err
	}

	logger, err := openEventLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	m := manager.New(&manager.Config{
		Store:   db,
		Catalog: newCatalog(cfg),
		Logger:  logger,
	})

	res, err := m.AddPlaylist(ctx, playlistID, rating)
	if errors.Is(err, manager.ErrCatalog) {
		// Logged by the manager; the cache is untouched
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add playlist: %w", err)
	}

	util.DebugLog("Playlist %s: %d tracks, %d albums, %d artists", playlistID, res.Tracks, res.Albums, res.Artists)
	return nil
}
