package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ogurasousui/personnel/internal/platform/config"
	"github.com/ogurasousui/personnel/internal/platform/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "", "directory containing migration files (defaults to database.migrations_dir)")
	)
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logger.Mode, cfg.Logger.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Server.Passerelle == config.PasserelleMemory {
		zl.Fatal("migrations require the postgres passerelle", zap.String("passerelle", cfg.Server.Passerelle))
	}

	dir := effectiveMigrationsDir(*migrationsDir, cfg.Database)
	zl.Info("running migration",
		zap.String("action", action),
		zap.String("dir", dir),
		zap.String("database", cfg.Database.Name),
	)

	if err := runMigration(action, dir, cfg.Database.DSN(), zl); err != nil {
		zl.Fatal("migration failed", zap.String("action", action), zap.Error(err))
	}

	zl.Info("migration completed", zap.String("action", action))
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

// effectiveMigrationsDir は -dir フラグ、database.migrations_dir、既定値の順に採用します。
func effectiveMigrationsDir(flagValue string, db config.DatabaseConfig) string {
	if dir := strings.TrimSpace(flagValue); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(db.MigrationsDir); dir != "" {
		return dir
	}
	return config.DefaultMigrationsDir
}

func sourceURL(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	return "file://" + filepath.ToSlash(absDir), nil
}

func runMigration(action, dir, dsn string, zl *zap.Logger) error {
	src, err := sourceURL(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New(src, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()
	m.Log = newMigrateLogger(zl)

	switch action {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			zl.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		zl.Info("current version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// migrateLogger は golang-migrate の進捗ログを zap に流します。
type migrateLogger struct {
	sugar *zap.SugaredLogger
}

var _ migrate.Logger = (*migrateLogger)(nil)

func newMigrateLogger(zl *zap.Logger) *migrateLogger {
	return &migrateLogger{sugar: zl.Named("migrate").Sugar()}
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.sugar.Infof(strings.TrimRight(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.sugar.Desugar().Core().Enabled(zapcore.DebugLevel)
}
