package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache totals",
	Long: `Print the number of tracks by rating state plus the number of albums and
artists in the cache. With --tracks every track is listed with its album,
artist and rating.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("tracks", false, "list every track")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := requireSchema(ctx, db); err != nil {
		return err
	}

	if err := db.PrintSummary(ctx, out); err != nil {
		return err
	}

	if list, _ := cmd.Flags().GetBool("tracks"); !list {
		return nil
	}

	tracks, err := db.GetTracks(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tALBUM\tARTIST\tRATING")
	for _, t := range tracks {
		album, artist := parentNames(t)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, album, artist, ratingLabel(t))
	}
	return w.Flush()
}

// parentNames returns the album and artist names of t, falling back to the
// referenced id when the row is missing from the cache
func parentNames(t music.Track) (album, artist string) {
	if t.Album == nil {
		return "? (" + t.AlbumID + ")", "?"
	}
	if t.Album.Artist == nil {
		return t.Album.Name, "? (" + t.Album.ArtistID + ")"
	}
	return t.Album.Name, t.Album.Artist.Name
}

func ratingLabel(t music.Track) string {
	if t.State() == music.StateUnrated {
		return "-"
	}
	return fmt.Sprintf("%s (x%d)", t.State(), t.TimesRated)
}
