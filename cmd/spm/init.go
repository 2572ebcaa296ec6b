package main

import (
	"fmt"

	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the cache tables",
	Long: `Create the artists, albums and tracks tables plus the version table.

Existing tables are left alone. With --force every table is dropped and
recreated empty, discarding the whole cache.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "drop and recreate existing tables")
	initCmd.Flags().String("schema-version", "", "schema version to create (default latest)")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")
	versionStr, _ := cmd.Flags().GetString("schema-version")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	version := db.Registry().Latest()
	if versionStr != "" {
		if version, err = schema.ParseVersion(versionStr); err != nil {
			return err
		}
	}

	logger, err := openEventLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	if force {
		util.WarnLog("Dropping all tables in %s", db.Path())
	}

	err = db.CreateTables(ctx, version, force)
	logger.LogSchema("create", "", version.String(), err)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	util.SuccessLog("Tables created at schema version %s", version)
	return nil
}
