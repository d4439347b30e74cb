// Package main provides the arena server. It wires together configuration,
// the database, the content catalogs, the matchmaking queue, and the battle
// orchestration service, then runs the queue expiry sweeper under the
// lifecycle manager.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/duskhollow/arena/internal/arena"
	"github.com/duskhollow/arena/internal/config"
	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/matchmaking"
	"github.com/duskhollow/arena/internal/game/thrall"
	"github.com/duskhollow/arena/internal/observability"
	"github.com/duskhollow/arena/internal/server"
	"github.com/duskhollow/arena/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting Duskhollow arena server",
		zap.String("name", cfg.Server.Name),
	)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Load content catalogs
	catalog := ability.Builtin()
	if cfg.Content.AbilitiesDir != "" {
		catalog, err = ability.LoadDirectory(cfg.Content.AbilitiesDir)
		if err != nil {
			logger.Fatal("loading abilities", zap.Error(err))
		}
	}
	var clans *thrall.ClanRegistry
	if cfg.Content.ClansDir != "" {
		clans, err = thrall.LoadClanDirectory(cfg.Content.ClansDir)
		if err != nil {
			logger.Fatal("loading clans", zap.Error(err))
		}
	}
	roster, err := thrall.LoadRoster(cfg.Content.ThrallsDir, catalog, clans)
	if err != nil {
		logger.Fatal("loading thrall roster", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("abilities", len(catalog.All())),
		zap.Int("thralls", roster.Len()),
	)

	// Build services
	queue := matchmaking.NewMatchmaker(matchmaking.Config{
		QueueTimeout: cfg.Matchmaking.QueueTimeout,
		BotVariance:  cfg.Matchmaking.BotVariance,
	}, logger)

	svc, err := arena.NewService(arena.Deps{
		Thralls:     roster,
		Catalog:     catalog,
		Battles:     postgres.NewBattleRepository(pool.DB()),
		Wallets:     postgres.NewWalletRepository(pool.DB()),
		Queue:       queue,
		TickCeiling: cfg.Engine.TickCeiling,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("building arena service", zap.Error(err))
	}

	sweeper := arena.NewSweeper(svc, cfg.Matchmaking.SweepInterval, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			// Pool is already connected; just keep it alive
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("sweeper", sweeper)

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Duration("sweep_interval", cfg.Matchmaking.SweepInterval),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
