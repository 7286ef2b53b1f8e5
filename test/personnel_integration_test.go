//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	pgpasserelle "github.com/ogurasousui/personnel/internal/adapters/passerelle/postgres"
	"github.com/ogurasousui/personnel/internal/core/personnel"
	"github.com/ogurasousui/personnel/internal/core/personnel/personneltest"
	"github.com/ogurasousui/personnel/internal/platform/config"
	pg "github.com/ogurasousui/personnel/internal/platform/db/postgres"
)

const migrationsDir = "../assets/migrations"

func TestPostgresPasserelleIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database, nil)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	txManager := pg.NewTransactionManager(pool, pg.IsolationLevel(cfg.Database.IsolationLevel), nil)

	personneltest.RunPasserelleContract(t, func(t *testing.T) personnel.Passerelle {
		t.Helper()
		if err := truncate(ctx, pool); err != nil {
			t.Fatalf("failed to truncate tables: %v", err)
		}
		return pgpasserelle.New(pool, txManager)
	})
}

func TestPostgresPasserelleRejectsSecondRootIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database, nil)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	p := pgpasserelle.New(pool, pg.NewTransactionManager(pool, "", nil))
	g, err := personnel.Open(ctx, p, personnel.WithTransactionManager(p))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	_, err = p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "intruder", DateArrive: g.Root().DateArrive()}, personnel.NoID)
	if !errors.Is(err, personnel.ErrRootAlreadyExists) {
		t.Fatalf("expected ErrRootAlreadyExists, got %v", err)
	}
}

func truncate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `TRUNCATE employes, ligues`); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `ALTER SEQUENCE personnel_id_seq RESTART WITH 1`)
	return err
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}
