package fx

import (
	"combat-tracker/internal/combat"
	"combat-tracker/internal/config"
	"combat-tracker/internal/database"
	"combat-tracker/internal/escrow"
	"combat-tracker/internal/fight"
	"combat-tracker/internal/logger"
	"combat-tracker/internal/persistence"
	"combat-tracker/internal/repository"
	"combat-tracker/internal/scoring"
	"combat-tracker/internal/storage"
	"combat-tracker/internal/tracker"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideCache(cfg *config.Config) *combat.Cache {
	return combat.New(cfg.CacheCap())
}

func ProvideLogStore(cfg *config.Config, log zerolog.Logger) (*storage.LogStore, error) {
	return storage.NewLogStore(cfg.DataDir, log)
}

func ProvideFightQuery(m *fight.Manager) escrow.FightQuery {
	return m
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// storage
	fx.Provide(ProvideLogStore),
	fx.Provide(repository.NewLedgerRepository),
	fx.Provide(repository.NewEscrowRepository),
	fx.Provide(persistence.NewStore),
	// combat core
	fx.Provide(ProvideCache),
	fx.Provide(scoring.NewEngine),
	fx.Provide(fight.NewManager),
	fx.Provide(ProvideFightQuery),
	fx.Provide(escrow.NewManager),
	// facade
	fx.Provide(tracker.New),
)
