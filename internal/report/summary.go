package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/spotify-manager/internal/store"
)

// RunReport summarizes one sync run and the cache it left behind
type RunReport struct {
	GeneratedAt time.Time
	RunID       string
	Duration    time.Duration

	// Unit statistics, from the event log
	Playlists      UnitStats
	ArtistAlbums   UnitStats
	AlbumTracks    UnitStats
	Skipped        int
	EntitiesStored int

	// Cache totals after the run
	Cache *store.Summary

	TopErrors []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// UnitStats counts the outcomes of one kind of sync unit
type UnitStats struct {
	OK     int
	Failed int
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// ReadEvents decodes every event of a JSONL event log
func ReadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to decode event on line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	return events, nil
}

// GenerateRunReport creates a run report from the event log and the cache
func GenerateRunReport(ctx context.Context, db *store.Store, eventLogPath string) (*RunReport, error) {
	report := &RunReport{
		GeneratedAt:  time.Now(),
		DatabasePath: db.Path(),
		EventLogPath: eventLogPath,
	}

	if eventLogPath != "" {
		events, err := ReadEvents(eventLogPath)
		if err != nil {
			return nil, err
		}
		report.tally(events)
	}

	cache, err := db.GetSummary(ctx)
	if err != nil {
		return nil, err
	}
	report.Cache = cache

	return report, nil
}

// tally fills the unit statistics and top errors from events
func (r *RunReport) tally(events []Event) {
	var first, last time.Time
	errorCounts := make(map[string]int)

	for _, e := range events {
		if r.RunID == "" {
			r.RunID = e.RunID
		}
		if first.IsZero() || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}

		var stats *UnitStats
		switch e.Event {
		case EventPlaylist:
			stats = &r.Playlists
		case EventArtistAlbums:
			stats = &r.ArtistAlbums
		case EventAlbumTracks:
			stats = &r.AlbumTracks
		case EventSkip:
			r.Skipped++
		}

		if e.Error != "" {
			errorCounts[e.Error]++
		}
		if stats == nil {
			continue
		}
		if e.Level == LevelError {
			stats.Failed++
		} else {
			stats.OK++
			r.EntitiesStored += e.Count
		}
	}

	if !first.IsZero() {
		r.Duration = last.Sub(first)
	}
	r.TopErrors = topErrors(errorCounts, 10)
}

// topErrors returns the most common errors, most frequent first
func topErrors(counts map[string]int, limit int) []ErrorSummary {
	errors := make([]ErrorSummary, 0, len(counts))
	for err, count := range counts {
		errors = append(errors, ErrorSummary{Error: err, Count: count})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors
}

// WriteMarkdownReport writes the run report as Markdown
func WriteMarkdownReport(report *RunReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Spotify Manager - Sync Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	units := []struct {
		label string
		stats UnitStats
	}{
		{"Playlists", report.Playlists},
		{"Artist Albums", report.ArtistAlbums},
		{"Album Tracks", report.AlbumTracks},
	}
	md.WriteString("## Sync\n\n")
	md.WriteString("| Unit | OK | Failed |\n")
	md.WriteString("|------|----|--------|\n")
	for _, u := range units {
		md.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			u.label, humanize.Comma(int64(u.stats.OK)), humanize.Comma(int64(u.stats.Failed))))
	}
	md.WriteString("\n")
	if report.Skipped > 0 {
		md.WriteString(fmt.Sprintf("Skipped units: %d\n\n", report.Skipped))
	}
	md.WriteString(fmt.Sprintf("Entities received: %s\n\n", humanize.Comma(int64(report.EntitiesStored))))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("Duration: %s\n\n", report.Duration.Round(time.Second)))
	}

	if c := report.Cache; c != nil {
		md.WriteString("## Cache\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Tracks | %s |\n", humanize.Comma(int64(c.Tracks))))
		md.WriteString(fmt.Sprintf("| Rated | %s |\n", humanize.Comma(int64(c.Rated))))
		md.WriteString(fmt.Sprintf("| Liked | %s |\n", humanize.Comma(int64(c.Liked))))
		md.WriteString(fmt.Sprintf("| Neutral | %s |\n", humanize.Comma(int64(c.Neutral))))
		md.WriteString(fmt.Sprintf("| Disliked | %s |\n", humanize.Comma(int64(c.Disliked))))
		md.WriteString(fmt.Sprintf("| Unrated | %s |\n", humanize.Comma(int64(c.Unrated))))
		md.WriteString(fmt.Sprintf("| Albums | %s |\n", humanize.Comma(int64(c.Albums))))
		md.WriteString(fmt.Sprintf("| Artists | %s |\n", humanize.Comma(int64(c.Artists))))
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, truncate(err.Error, 120)))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// truncate shortens s to at most max runes
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
