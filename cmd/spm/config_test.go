package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/spotify"
	"github.com/franz/spotify-manager/internal/util"
	"github.com/spf13/viper"
)

// setConfig overrides a viper key for the duration of the test
func setConfig(t *testing.T, key string, value any) {
	t.Helper()

	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, nil) })
}

func TestLoadCatalogConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{"no credentials", nil, true},
		{"static token", map[string]any{"token": "abc"}, false},
		{"client credentials", map[string]any{"client-id": "id", "client-secret": "secret"}, false},
		{"id without secret", map[string]any{"client-id": "id"}, true},
		{"lowercase market", map[string]any{"token": "abc", "market": "de"}, false},
		{"bad market", map[string]any{"token": "abc", "market": "USA"}, true},
		{"page size too large", map[string]any{"token": "abc", "page-size": 100}, true},
		{"zero rate", map[string]any{"token": "abc", "rps": 0}, true},
		{"bad api url", map[string]any{"token": "abc", "api-url": "not a url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.settings {
				setConfig(t, k, v)
			}

			cfg, err := loadCatalogConfig()
			if tt.wantErr {
				if !errors.Is(err, util.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cfg.Market) != 2 || strings.ToUpper(cfg.Market) != cfg.Market {
				t.Errorf("expected an uppercase market, got %q", cfg.Market)
			}
		})
	}
}

func TestLoadCatalogConfigDefaults(t *testing.T) {
	setConfig(t, "token", "abc")

	cfg, err := loadCatalogConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market != spotify.DefaultMarket || cfg.PageSize != spotify.MaxPageSize ||
		cfg.RequestsPerSecond != spotify.DefaultRequestsPerSecond {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestRequireSchema(t *testing.T) {
	ctx := context.Background()

	db, _ := openTestDB(t, schema.Version{})
	if err := requireSchema(ctx, db); err == nil || !strings.Contains(err.Error(), "spm init") {
		t.Errorf("expected an init hint, got %v", err)
	}

	db, _ = openTestDB(t, schema.MustParseVersion("1.2.0"))
	if err := requireSchema(ctx, db); err == nil || !strings.Contains(err.Error(), "spm upgrade") {
		t.Errorf("expected an upgrade hint, got %v", err)
	}

	db, _ = openTestDB(t, schema.DefaultRegistry().Latest())
	if err := requireSchema(ctx, db); err != nil {
		t.Errorf("expected latest schema to pass, got %v", err)
	}
}

func TestLatestEventLog(t *testing.T) {
	dir := t.TempDir()

	got, err := latestEventLog(dir)
	if err != nil || got != "" {
		t.Fatalf("expected no log in an empty dir, got %q, %v", got, err)
	}

	for _, name := range []string{
		"events-20260101-120000-aaaaaaaa.jsonl",
		"events-20260301-090000-bbbbbbbb.jsonl",
		"events-20260201-235959-cccccccc.jsonl",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	got, err = latestEventLog(dir)
	if err != nil {
		t.Fatalf("latestEventLog failed: %v", err)
	}
	if filepath.Base(got) != "events-20260301-090000-bbbbbbbb.jsonl" {
		t.Errorf("expected the newest log, got %s", got)
	}
}
