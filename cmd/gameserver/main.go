// Package main runs the Mordecai game server: world load, database wiring,
// and the real-time core behind the connection lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/config"
	"github.com/rockfordlhotka/Mordecai/internal/frontend/session"
	"github.com/rockfordlhotka/Mordecai/internal/frontend/telnet"
	"github.com/rockfordlhotka/Mordecai/internal/game/atmosphere"
	"github.com/rockfordlhotka/Mordecai/internal/game/broadcast"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/movement"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
	"github.com/rockfordlhotka/Mordecai/internal/gameserver"
	"github.com/rockfordlhotka/Mordecai/internal/observability"
	"github.com/rockfordlhotka/Mordecai/internal/server"
	"github.com/rockfordlhotka/Mordecai/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	zonesDir := flag.String("zones", "content/zones", "path to zone YAML files directory")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	// Load world
	zoneStart := time.Now()
	rooms, zoneStartRoom, err := world.LoadRoomsFromDir(*zonesDir)
	if err != nil {
		logger.Fatal("loading zones", zap.Error(err))
	}
	startRoom := cfg.Game.StartRoom
	if startRoom == "" {
		startRoom = zoneStartRoom
	}
	worldMgr, err := world.NewManager(rooms, startRoom)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	if err := worldMgr.ValidateLinks(); err != nil {
		logger.Fatal("validating world links", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("rooms", worldMgr.RoomCount()),
		zap.String("start_room", worldMgr.StartRoomID()),
		zap.Duration("elapsed", time.Since(zoneStart)),
	)

	// Connect to PostgreSQL for player and message persistence
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	playerRepo := postgres.NewPlayerRepository(pool.DB())
	messageRepo := postgres.NewMessageRepository(pool.DB())

	// Assemble the real-time core
	policy := presence.PolicySilent
	if cfg.Game.Presence.NotifySuperseded {
		policy = presence.PolicyNotify
	}
	registry := presence.NewRegistry(logger, policy, cfg.Game.Presence.OutboxBuffer)
	history := message.NewHistory(cfg.Game.History.Capacity)

	// Warm the history buffer with the most recent durable messages so the
	// first joiners after a restart still get context.
	if stored, err := messageRepo.RecentMessages(ctx, cfg.Game.History.ReplayCount); err != nil {
		logger.Warn("loading stored messages", zap.Error(err))
	} else {
		for _, msg := range stored {
			history.Append(msg)
		}
		logger.Info("history warmed", zap.Int("messages", len(stored)))
	}

	broadcaster := broadcast.NewBroadcaster(logger, registry, history)
	engine := movement.NewEngine(logger, playerRepo, worldMgr)
	core := gameserver.NewCore(
		logger, registry, history, broadcaster, engine,
		playerRepo, messageRepo,
		worldMgr.StartRoomID(), cfg.Game.History.ReplayCount,
	)
	scheduler := atmosphere.NewScheduler(logger, cfg.Game.Atmosphere, registry, broadcaster)
	acceptor := telnet.NewAcceptor(cfg.Telnet, session.NewHandler(logger, core), logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	// Registration order is stop order reversed: the Telnet listener goes
	// down first, the database pool last.
	lifecycle.Add("postgres", &server.ServiceFunc{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("presence", &server.ServiceFunc{
		StartFn: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
		StopFn: func() {
			registry.CloseAll()
		},
	})

	lifecycle.Add("atmosphere", &server.ServiceFunc{
		StartFn: func(ctx context.Context) error {
			scheduler.Run(ctx)
			return nil
		},
	})

	lifecycle.Add("telnet", &server.ServiceFunc{
		StartFn: acceptor.Serve,
		StopFn:  acceptor.Stop,
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
