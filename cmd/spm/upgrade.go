package main

import (
	"errors"
	"fmt"

	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/store"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the cache tables to a newer schema version",
	Long: `Upgrade the cache tables from the installed schema version to the target,
walking every intermediate version. Existing rows are kept; new columns
start out empty.`,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().String("to", "", "target schema version (default latest)")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	to, _ := cmd.Flags().GetString("to")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	target := db.Registry().Latest()
	if to != "" {
		if target, err = schema.ParseVersion(to); err != nil {
			return err
		}
	}

	logger, err := openEventLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	installed, err := db.InstalledVersion(ctx)
	if err != nil {
		return err
	}

	err = db.UpgradeTables(ctx, target)
	logger.LogSchema("upgrade", installed.String(), target.String(), err)
	if errors.Is(err, store.ErrMissingTable) {
		// Already logged by the store; nothing to upgrade
		util.InfoLog("Run 'spm init' to create the tables")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to upgrade tables: %w", err)
	}

	if installed == target {
		util.InfoLog("Schema already at version %s", target)
		return nil
	}
	util.SuccessLog("Upgraded schema from %s to %s", installed, target)
	return nil
}
