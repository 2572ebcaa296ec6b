package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/spotify-manager/internal/manager"
	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/store"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the albums of known artists and the tracks of known albums",
	Long: `Sweep every artist whose albums were not fetched yet and store its albums,
then sweep every album whose tracks were not fetched yet and store its
tracks. Albums found in the first sweep are swept in the second.

Fetched entities are not asked for again unless --stale-after is set, in
which case entities fetched longer ago than that are fetched again.

Interrupting the sweep keeps everything stored so far; the next run
picks up the rest.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().Duration("stale-after", 0, "re-fetch entities fetched longer ago than this (0 = never)")
	fetchCmd.Flags().Bool("report", false, "write a Markdown run report next to the event log")

	viper.BindPFlag("stale-after", fetchCmd.Flags().Lookup("stale-after"))
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var staleBefore time.Time
	if d := util.GetStaleAfter(); d > 0 {
		staleBefore = time.Now().Add(-d)
		util.InfoLog("Re-fetching entities last fetched before %s", staleBefore.Format(time.DateTime))
	}

	util.InfoLog("=== Fetch ===")
	util.InfoLog("Database: %s", db.Path())
	if path := logger.Path(); path != "" {
		util.DebugLog("Event log: %s", path)
	}

	m := manager.New(&manager.Config{
		Store:        db,
		Catalog:      newCatalog(cfg),
		Logger:       logger,
		ShowProgress: util.ShowProgress(),
	})

	res, err := m.Fetch(ctx, staleBefore)
	cancelled := errors.Is(err, context.Canceled)
	if err != nil && !cancelled {
		return fmt.Errorf("fetch failed: %w", err)
	}

	util.InfoLog("Artists: %d fetched, %d failed, %s albums received",
		res.ArtistsFetched, res.ArtistsFailed, humanize.Comma(int64(res.AlbumsReceived)))
	util.InfoLog("Albums: %d fetched, %d failed, %s tracks received",
		res.AlbumsFetched, res.AlbumsFailed, humanize.Comma(int64(res.TracksReceived)))
	if res.Refreshed > 0 {
		util.InfoLog("Refreshed %d stale units", res.Refreshed)
	}
	if cancelled {
		util.WarnLog("Interrupted after %s, %d units left for the next run",
			res.Duration.Round(time.Millisecond), res.Skipped)
	} else {
		util.SuccessLog("Fetch complete in %s", res.Duration.Round(time.Millisecond))
	}

	if want, _ := cmd.Flags().GetBool("report"); want {
		if err := writeRunReport(context.WithoutCancel(ctx), db, logger); err != nil {
			return err
		}
	}

	return nil
}

// writeRunReport closes the event log and writes summary.md beside it
func writeRunReport(ctx context.Context, db *store.Store, logger *report.EventLogger) error {
	path := logger.Path()
	if path == "" {
		util.WarnLog("No event log to report on; set --events-dir")
		return nil
	}
	logger.Close()

	runReport, err := report.GenerateRunReport(ctx, db, path)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	outputPath := filepath.Join(filepath.Dir(path), "reports", logger.RunID(), "summary.md")
	if err := report.WriteMarkdownReport(runReport, outputPath); err != nil {
		return err
	}

	util.InfoLog("Report saved to: %s", outputPath)
	return nil
}
