package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "spm",
		Short: "Spotify Manager - keep a local cache of your Spotify music",
		Long: `spm (Spotify Manager) keeps a local SQLite cache of tracks, albums and
artists from the Spotify catalog. Playlists are added with an optional
rating for every track, and the fetch sweep fills in the albums of every
known artist and the tracks of every known album, never asking the API
twice for the same entity.`,
		Version:          Version,
		SilenceUsage:     true,
		PersistentPreRun: setupLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/spm/config.yaml)")
	rootCmd.PersistentFlags().String("db", "~/.spotify_manager.db", "cache database file")
	rootCmd.PersistentFlags().String("events-dir", "~/.spotify_manager/events", "directory for JSONL event logs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("loose-scope", false, "ignore writes outside a transaction instead of failing")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("events-dir", rootCmd.PersistentFlags().Lookup("events-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("loose-scope", rootCmd.PersistentFlags().Lookup("loose-scope"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		if configDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(configDir, "spm"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// SPM_TOKEN, SPM_CLIENT_ID, SPM_DB, ...
	viper.SetEnvPrefix("SPM")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func setupLogging(cmd *cobra.Command, args []string) {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
