//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/cory-johannsen/destiny/internal/config"
)

func initializeApp(ctx context.Context, cfg config.Config) (*App, func(), error) {
	wire.Build(
		provideLogger,
		provideStore,
		provideGameOptions,
		provideGame,
		provideGRPCServer,
		provideLifecycle,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
