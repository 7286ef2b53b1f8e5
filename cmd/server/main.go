package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/personnel/internal/adapters/grpc/handler"
	"github.com/ogurasousui/personnel/internal/adapters/passerelle/memory"
	pgpasserelle "github.com/ogurasousui/personnel/internal/adapters/passerelle/postgres"
	"github.com/ogurasousui/personnel/internal/core/personnel"
	"github.com/ogurasousui/personnel/internal/platform/config"
	pg "github.com/ogurasousui/personnel/internal/platform/db/postgres"
	"github.com/ogurasousui/personnel/internal/platform/logger"
	"github.com/ogurasousui/personnel/internal/platform/server"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logger.Mode, cfg.Logger.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	var (
		passerelle personnel.Passerelle
		tx         personnel.TransactionManager
	)
	switch cfg.Server.Passerelle {
	case config.PasserelleMemory:
		mem := memory.New()
		passerelle, tx = mem, mem
	default:
		dbPool, err := pg.NewPool(ctx, cfg.Database, zl)
		if err != nil {
			zl.Fatal("failed to initialize database pool", zap.Error(err))
		}
		defer dbPool.Close()

		txManager := pg.NewTransactionManager(dbPool, pg.IsolationLevel(cfg.Database.IsolationLevel), zl)
		pgp := pgpasserelle.New(dbPool, txManager)
		passerelle, tx = pgp, pgp
	}

	facility, err := personnel.Open(ctx, passerelle,
		personnel.WithTransactionManager(tx),
		personnel.WithLogger(zl),
		personnel.WithLigueRemovalPolicy(cfg.Personnel.LigueRemovalPolicy),
		personnel.WithRootDefaults(cfg.Personnel.Root.RootDefaults()),
	)
	if err != nil {
		zl.Fatal("failed to open personnel", zap.Error(err))
	}
	zl.Info("personnel loaded",
		zap.String("passerelle", cfg.Server.Passerelle),
		zap.Int("ligues", len(facility.Ligues())),
		zap.Stringer("ligue_removal_policy", facility.LigueRemovalPolicy()),
	)

	grpcServer := server.New(cfg.Server.ListenAddr, handler.NewPersonnelGrpcHandler(facility), zl)
	if err := grpcServer.Run(ctx); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}
