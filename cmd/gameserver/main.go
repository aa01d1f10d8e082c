// Package main provides the game server binary that runs one Destiny World
// game behind a gRPC service and an HTTP/WebSocket gateway.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/config"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (empty = defaults and DESTINY_ env)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	app, cleanup, err := initializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("initializing game server: %v", err)
	}

	app.Logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.Server.Addr()),
		zap.Bool("gateway", cfg.Gateway.Enabled),
		zap.String("storage", app.Store.Backend),
	)

	err = app.Lifecycle.Run(ctx)
	if err != nil {
		app.Logger.Error("server error", zap.Error(err))
	}
	cleanup()
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}
