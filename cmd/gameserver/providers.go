package main

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/gameserver"
	"github.com/cory-johannsen/destiny/internal/gateway"
	"github.com/cory-johannsen/destiny/internal/observability"
	"github.com/cory-johannsen/destiny/internal/reasoning"
	"github.com/cory-johannsen/destiny/internal/server"
	"github.com/cory-johannsen/destiny/internal/storage"
)

// App is the assembled game server.
type App struct {
	Logger    *zap.Logger
	Store     *storage.Store
	Game      *gameserver.Game
	Lifecycle *server.Lifecycle
}

func provideLogger(cfg config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage.Store, func(), error) {
	s, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening save store: %w", err)
	}
	return s, s.Close, nil
}

// provideGameOptions turns the reasoning and scripting sections into Game
// options. Both are optional.
func provideGameOptions(cfg config.Config, logger *zap.Logger) []gameserver.Option {
	var opts []gameserver.Option
	if cfg.Reasoning.Enabled {
		model := reasoning.NewAnthropic(cfg.Reasoning)
		opts = append(opts,
			gameserver.WithReasoner(reasoning.NewReasoner(model), cfg.Reasoning.Timeout),
			gameserver.WithReactor(reasoning.NewReactor(model), cfg.Reasoning.Timeout),
		)
		logger.Info("language model reasoning enabled", zap.String("model", cfg.Reasoning.Model))
	}
	if cfg.Scripting.ScriptDir != "" {
		opts = append(opts, gameserver.WithScripts(cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit))
	}
	return opts
}

func provideGame(cfg config.Config, store *storage.Store, logger *zap.Logger, opts []gameserver.Option) (*gameserver.Game, func(), error) {
	g, err := gameserver.NewGame(cfg.Game, store, logger, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating game: %w", err)
	}
	return g, g.Close, nil
}

func provideGRPCServer(game *gameserver.Game, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer()
	gameserver.RegisterGameServiceServer(s, gameserver.NewGRPCService(game, logger))
	return s
}

// provideLifecycle registers the gRPC server and, when enabled, the gateway.
func provideLifecycle(cfg config.Config, logger *zap.Logger, game *gameserver.Game, grpcServer *grpc.Server) *server.Lifecycle {
	lc := server.NewLifecycle(logger, server.WithStopTimeout(cfg.Server.ShutdownTimeout))
	lc.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: grpcServer.GracefulStop,
	})
	if cfg.Gateway.Enabled {
		gw := gateway.New(game, cfg.Gateway, cfg.Server.ShutdownTimeout, logger)
		lc.Add("gateway", &server.FuncService{StartFn: gw.Start, StopFn: gw.Stop})
	}
	return lc
}
