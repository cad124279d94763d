package fx

import (
	"mahjong-tracker/internal/cache"
	"mahjong-tracker/internal/config"
	"mahjong-tracker/internal/database"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/logger"
	"mahjong-tracker/internal/repository"
	"mahjong-tracker/internal/server"
	"mahjong-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideGameConfig(repo *repository.ConfigRepository, log zerolog.Logger) (*gameconfig.Provider, error) {
	return gameconfig.NewProvider(repo, log)
}

func ProvidePointsCache(games *repository.GameRepository, users *repository.UserRepository, provider *gameconfig.Provider, cfg *config.Config, log zerolog.Logger) *cache.PointsCache {
	return cache.New(games, users, provider, cfg.ReplayBatchSize, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewGameRepository),
	fx.Provide(repository.NewConfigRepository),
	// scoring configuration + derived standings
	fx.Provide(ProvideGameConfig),
	fx.Provide(ProvidePointsCache),
	// svc
	fx.Provide(service.NewGameService),
	fx.Provide(service.NewStatsService),
	// server
	fx.Provide(server.New),
)
