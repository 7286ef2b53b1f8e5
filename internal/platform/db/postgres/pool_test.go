package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/personnel/internal/platform/config"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	dbCfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            15432,
		User:            "user",
		Password:        "pass",
		Name:            "personnel",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		ApplicationName: "personnel-test",
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}

	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}

	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}

	if poolCfg.ConnConfig.Database != "personnel" {
		t.Errorf("expected database personnel, got %s", poolCfg.ConnConfig.Database)
	}

	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "personnel-test" {
		t.Errorf("expected application_name personnel-test, got %q", got)
	}
}

func TestIsolationLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]pgx.TxIsoLevel{
		"":                pgx.ReadCommitted,
		"read_committed":  pgx.ReadCommitted,
		"repeatable_read": pgx.RepeatableRead,
		"serializable":    pgx.Serializable,
	}
	for raw, want := range cases {
		if got := IsolationLevel(raw); got != want {
			t.Errorf("IsolationLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
