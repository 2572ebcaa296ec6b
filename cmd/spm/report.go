package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a sync report from the cache and an event log",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Playlist, artist and album units that succeeded or failed
- Units skipped by an interrupted sweep
- Cache totals by rating state
- Top errors

Without --event-log the most recent log in the events directory is used.
The report is saved to <events-dir>/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: <events-dir>/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (default: most recent)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := requireSchema(ctx, db); err != nil {
		return err
	}

	eventsDir, err := util.ExpandHome(viper.GetString("events-dir"))
	if err != nil {
		return err
	}

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	if eventLogPath == "" && eventsDir != "" {
		if eventLogPath, err = latestEventLog(eventsDir); err != nil {
			return err
		}
	}
	if eventLogPath == "" {
		util.WarnLog("No event log found; reporting cache totals only")
	}

	util.InfoLog("Analyzing data...")
	runReport, err := report.GenerateRunReport(ctx, db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join(eventsDir, "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	if err := report.WriteMarkdownReport(runReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report saved to: %s", outputPath)
	util.InfoLog("  Artists fetched: %d (%d failed)", runReport.ArtistAlbums.OK, runReport.ArtistAlbums.Failed)
	util.InfoLog("  Albums fetched: %d (%d failed)", runReport.AlbumTracks.OK, runReport.AlbumTracks.Failed)
	if runReport.Skipped > 0 {
		util.WarnLog("  Skipped: %d", runReport.Skipped)
	}

	return nil
}

// latestEventLog returns the newest events-*.jsonl file in dir, or "" when
// there is none. Log names start with their creation time.
func latestEventLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}

	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
