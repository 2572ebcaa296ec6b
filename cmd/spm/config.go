package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/spotify"
	"github.com/franz/spotify-manager/internal/store"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envKeyReplacer maps config keys like client-id onto SPM_CLIENT_ID
var envKeyReplacer = strings.NewReplacer("-", "_")

// catalogConfig holds the Spotify credentials and client tuning
type catalogConfig struct {
	Token             string  `validate:"required_without_all=ClientID ClientSecret"`
	ClientID          string  `validate:"required_with=ClientSecret"`
	ClientSecret      string  `validate:"required_with=ClientID"`
	APIURL            string  `validate:"omitempty,url"`
	Market            string  `validate:"len=2,uppercase"`
	PageSize          int     `validate:"min=1,max=50"`
	RequestsPerSecond float64 `validate:"gt=0"`
}

var validate = validator.New()

// loadCatalogConfig reads the catalog settings from flags, env and the
// config file
func loadCatalogConfig() (*catalogConfig, error) {
	cfg := &catalogConfig{
		Token:             viper.GetString("token"),
		ClientID:          viper.GetString("client-id"),
		ClientSecret:      viper.GetString("client-secret"),
		APIURL:            viper.GetString("api-url"),
		Market:            spotify.DefaultMarket,
		PageSize:          spotify.MaxPageSize,
		RequestsPerSecond: spotify.DefaultRequestsPerSecond,
	}
	if viper.IsSet("market") {
		cfg.Market = strings.ToUpper(viper.GetString("market"))
	}
	if viper.IsSet("page-size") {
		cfg.PageSize = viper.GetInt("page-size")
	}
	if viper.IsSet("rps") {
		cfg.RequestsPerSecond = viper.GetFloat64("rps")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
			}
			return nil, fmt.Errorf("%w: %s; set SPM_TOKEN or SPM_CLIENT_ID and SPM_CLIENT_SECRET",
				util.ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// newCatalog builds the Spotify client. A static token wins over client
// credentials.
func newCatalog(cfg *catalogConfig) *spotify.Client {
	var tokens spotify.TokenSource
	if cfg.Token != "" {
		tokens = spotify.StaticToken(cfg.Token)
	} else {
		tokens = spotify.NewClientCredentials(cfg.ClientID, cfg.ClientSecret)
	}

	return spotify.NewClient(tokens, &spotify.Options{
		BaseURL:           cfg.APIURL,
		Market:            cfg.Market,
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// openStore opens the cache database named by --db
func openStore() (*store.Store, error) {
	path, err := util.ExpandHome(viper.GetString("db"))
	if err != nil {
		return nil, err
	}

	db, err := store.OpenWithOptions(path, &store.OpenOptions{
		LooseScope: util.GetLooseScope(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openEventLogger creates the per-run event log under --events-dir. An
// empty directory disables event logging.
func openEventLogger() (*report.EventLogger, error) {
	dir := viper.GetString("events-dir")
	if dir == "" {
		return report.NullLogger(), nil
	}
	dir, err := util.ExpandHome(dir)
	if err != nil {
		return nil, err
	}

	minLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		minLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		minLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(dir, minLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create event logger: %w", err)
	}
	return logger, nil
}

// requireSchema fails unless the entity tables exist at the latest version
func requireSchema(ctx context.Context, db *store.Store) error {
	tables, err := db.Tables(ctx)
	if err != nil {
		return err
	}
	for _, name := range schema.EntityTables {
		if !slices.Contains(tables, name) {
			return fmt.Errorf("table %s does not exist, run 'spm init' first", name)
		}
	}

	installed, err := db.InstalledVersion(ctx)
	if err != nil {
		return err
	}
	if latest := db.Registry().Latest(); installed != latest {
		return fmt.Errorf("schema is at version %s, run 'spm upgrade' to move to %s", installed, latest)
	}
	return nil
}
