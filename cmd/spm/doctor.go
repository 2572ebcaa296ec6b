package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/store"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the cache and configuration",
	Long: `Run diagnostic checks to ensure spm can operate correctly.

This command checks:
- SQLite version
- Database accessibility, location and integrity
- Installed schema version against the latest one
- Rows whose album or artist is missing
- Catalog credentials
- Event log directory permissions

Use this command to troubleshoot issues before running spm operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	util.InfoLog("=== SPM Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}

	dbPath, err := util.ExpandHome(viper.GetString("db"))
	if err != nil {
		return err
	}
	results = append(results, checkDatabase(ctx, dbPath))
	if dbPath != "" {
		results = append(results, checkMount(dbPath))
	}

	// Schema checks need an existing database; opening creates the file
	if _, err := os.Stat(dbPath); err == nil {
		if db, err := store.Open(dbPath); err == nil {
			schemaResult := checkSchema(ctx, db)
			results = append(results, schemaResult)
			if !schemaResult.error && !schemaResult.warning {
				results = append(results, checkOrphans(ctx, db))
			}
			db.Close()
		}
	}

	results = append(results, checkCredentials())

	if dir := viper.GetString("events-dir"); dir != "" {
		if dir, err = util.ExpandHome(dir); err != nil {
			return err
		}
		results = append(results, checkEventsDirectory(dir))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running spm.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! The cache is ready.")
	}

	return nil
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is built in, so only the version is reported
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(ctx context.Context, dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created by 'spm init')", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s)", dbPath, humanize.Bytes(uint64(info.Size()))),
	}
}

// checkMount warns when the database lives on a network filesystem, where
// SQLite file locking cannot be trusted
func checkMount(dbPath string) checkResult {
	info, err := util.DetectMount(filepath.Dir(dbPath))
	if err != nil {
		return checkResult{
			name:    "Database location",
			warning: true,
			message: fmt.Sprintf("cannot determine filesystem: %v", err),
		}
	}
	if info == nil {
		return checkResult{
			name:    "Database location",
			message: "filesystem unknown on this platform",
		}
	}
	if info.Network {
		return checkResult{
			name:    "Database location",
			warning: true,
			message: fmt.Sprintf("%s is a %s network mount; keep the cache on a local disk", info.MountPoint, info.FSType),
		}
	}

	return checkResult{
		name:    "Database location",
		message: fmt.Sprintf("local %s filesystem", info.FSType),
	}
}

// checkSchema compares the installed schema version with the latest one
func checkSchema(ctx context.Context, db *store.Store) checkResult {
	tables, err := db.Tables(ctx)
	if err != nil {
		return checkResult{name: "Schema", error: true, message: err.Error()}
	}
	for _, name := range schema.EntityTables {
		if !slices.Contains(tables, name) {
			return checkResult{
				name:    "Schema",
				warning: true,
				message: fmt.Sprintf("table %s does not exist (run 'spm init')", name),
			}
		}
	}

	installed, err := db.InstalledVersion(ctx)
	if err != nil {
		return checkResult{name: "Schema", error: true, message: err.Error()}
	}

	latest := db.Registry().Latest()
	switch {
	case installed.Less(latest):
		return checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("version %s, latest is %s (run 'spm upgrade')", installed, latest),
		}
	case latest.Less(installed):
		return checkResult{
			name:    "Schema",
			error:   true,
			message: fmt.Sprintf("version %s is newer than this build knows (%s)", installed, latest),
		}
	}

	return checkResult{
		name:    "Schema",
		message: fmt.Sprintf("version %s (latest)", installed),
	}
}

// checkOrphans looks for tracks and albums whose parent row is missing
func checkOrphans(ctx context.Context, db *store.Store) checkResult {
	orphans, err := db.CountOrphans(ctx)
	if err != nil {
		return checkResult{name: "References", error: true, message: err.Error()}
	}
	if orphans.Tracks > 0 || orphans.Albums > 0 {
		return checkResult{
			name:    "References",
			warning: true,
			message: fmt.Sprintf("%d tracks without album, %d albums without artist", orphans.Tracks, orphans.Albums),
		}
	}

	return checkResult{name: "References", message: "every track and album resolves"}
}

// checkCredentials verifies that catalog credentials are configured
func checkCredentials() checkResult {
	cfg, err := loadCatalogConfig()
	if err != nil {
		return checkResult{
			name:    "Catalog credentials",
			warning: true,
			message: fmt.Sprintf("%v (needed by add and fetch)", err),
		}
	}

	kind := "client credentials"
	if cfg.Token != "" {
		kind = "static token"
	}
	return checkResult{
		name:    "Catalog credentials",
		message: fmt.Sprintf("%s, market %s", kind, cfg.Market),
	}
}

// checkEventsDirectory verifies the event log directory is writable
func checkEventsDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Events directory",
				message: fmt.Sprintf("%s (will be created)", path),
			}
		}
		return checkResult{
			name:    "Events directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Events directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check write permission by creating a temp file
	f, err := os.CreateTemp(path, ".spm_write_test")
	if err != nil {
		return checkResult{
			name:    "Events directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{
		name:    "Events directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}
