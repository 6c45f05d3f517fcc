// Package main runs the XO Online game server: a framed TCP listener for
// players and an optional gRPC health endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/TobyBridle/xo-online/internal/admin"
	"github.com/TobyBridle/xo-online/internal/config"
	"github.com/TobyBridle/xo-online/internal/game/render"
	"github.com/TobyBridle/xo-online/internal/game/resources"
	"github.com/TobyBridle/xo-online/internal/game/session"
	"github.com/TobyBridle/xo-online/internal/gameserver"
	"github.com/TobyBridle/xo-online/internal/observability"
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/server"
	"github.com/TobyBridle/xo-online/internal/transport"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and XO_* environment only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting XO Online",
		zap.String("tcp_addr", cfg.TCP.Addr()),
		zap.Int("capacity", cfg.Registry.Capacity),
	)

	text, err := resources.Load(cfg.Content.StringsFile)
	if err != nil {
		logger.Fatal("loading strings", zap.Error(err))
	}
	styler := render.NewStyler(cfg.Content.Color)

	clients := registry.New(cfg.Registry.Capacity, cfg.Registry.Buckets)
	sessions := session.NewManager(clients, styler, text, logger, cfg.Session.ListCacheTTL)
	dispatcher := gameserver.NewDispatcher(clients, sessions, styler, text, logger, cfg.Registry.Capacity)
	handler := gameserver.NewHandler(clients, dispatcher, text, logger, cfg.Session.OutboxSize)
	acceptor := transport.NewAcceptor(cfg.TCP, handler, logger)

	// Services stop in reverse: admin, then tcp (which drains connections
	// through the dispatcher), then the dispatcher.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("dispatcher", &server.FuncService{
		StartFn: dispatcher.Run,
		StopFn:  dispatcher.Stop,
	})
	lifecycle.Add("tcp", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	lifecycle.OnDrain(func() {
		logger.Info("draining connections", zap.Int("active", acceptor.Active()))
	})

	if cfg.Admin.Enabled {
		health := admin.New(cfg.Admin, logger)
		lifecycle.Add("admin", &server.FuncService{
			StartFn: func() error {
				health.SetServing(true)
				return health.ListenAndServe()
			},
			StopFn: health.Stop,
		})
		lifecycle.OnDrain(func() {
			health.SetServing(false)
		})
	}

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("admin", cfg.Admin.Enabled),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
