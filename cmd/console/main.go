// Package main provides the terminal client that plays Destiny World
// in-process, with no server in between.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/console"
	"github.com/cory-johannsen/destiny/internal/gameserver"
	"github.com/cory-johannsen/destiny/internal/observability"
	"github.com/cory-johannsen/destiny/internal/reasoning"
	"github.com/cory-johannsen/destiny/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (empty = defaults and DESTINY_ env)")
	logPath := flag.String("log", "destiny-console.log", "log file; the terminal belongs to the game")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = *logPath
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening save store", zap.Error(err))
	}
	defer store.Close()

	var opts []gameserver.Option
	if cfg.Reasoning.Enabled {
		model := reasoning.NewAnthropic(cfg.Reasoning)
		opts = append(opts,
			gameserver.WithReasoner(reasoning.NewReasoner(model), cfg.Reasoning.Timeout),
			gameserver.WithReactor(reasoning.NewReactor(model), cfg.Reasoning.Timeout),
		)
	}
	if cfg.Scripting.ScriptDir != "" {
		opts = append(opts, gameserver.WithScripts(cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit))
	}

	game, err := gameserver.NewGame(cfg.Game, store, logger, opts...)
	if err != nil {
		logger.Fatal("creating game", zap.Error(err))
	}
	defer game.Close()

	logger.Info("console started", zap.String("storage", store.Backend))
	if err := console.Run(game); err != nil {
		logger.Error("console", zap.Error(err))
	}
}
