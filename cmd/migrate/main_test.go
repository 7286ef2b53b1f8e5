package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/ogurasousui/personnel/internal/platform/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEffectiveMigrationsDir(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		flag string
		db   config.DatabaseConfig
		want string
	}{
		{name: "flag wins", flag: "db/migrations", db: config.DatabaseConfig{MigrationsDir: "assets/migrations"}, want: "db/migrations"},
		{name: "config", db: config.DatabaseConfig{MigrationsDir: "deploy/personnel"}, want: "deploy/personnel"},
		{name: "default", flag: "  ", want: config.DefaultMigrationsDir},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := effectiveMigrationsDir(tc.flag, tc.db); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEffectiveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/personnel.yaml")

	if got := effectiveConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Errorf("expected flag value, got %q", got)
	}
	if got := effectiveConfigPath(""); got != "/etc/personnel.yaml" {
		t.Errorf("expected env value, got %q", got)
	}
}

func TestSourceURL(t *testing.T) {
	t.Parallel()

	got, err := sourceURL("assets/migrations")
	if err != nil {
		t.Fatalf("sourceURL returned error: %v", err)
	}
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "assets/migrations") {
		t.Errorf("unexpected source url: %s", got)
	}
	if !filepath.IsAbs(filepath.FromSlash(strings.TrimPrefix(got, "file://"))) {
		t.Errorf("expected absolute path, got %s", got)
	}
}

func TestMigrateLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	l := newMigrateLogger(zap.New(core))

	l.Printf("Finished 1/u create_personnel (read 2ms, ran 5ms)\n")

	if l.Verbose() {
		t.Error("expected non verbose logger at info level")
	}
	entries := logs.FilterLoggerName("migrate").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Message != "Finished 1/u create_personnel (read 2ms, ran 5ms)" {
		t.Errorf("unexpected message: %q", entries[0].Message)
	}

	debugCore, _ := observer.New(zap.DebugLevel)
	if !newMigrateLogger(zap.New(debugCore)).Verbose() {
		t.Error("expected verbose logger at debug level")
	}
}

func TestIgnoreNoChange(t *testing.T) {
	t.Parallel()

	if err := ignoreNoChange(migrate.ErrNoChange); err != nil {
		t.Errorf("expected nil for no change, got %v", err)
	}
	dirty := migrate.ErrDirty{Version: 2}
	if err := ignoreNoChange(dirty); !errors.Is(err, dirty) {
		t.Errorf("expected dirty error, got %v", err)
	}
}
