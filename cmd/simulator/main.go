// Command simulator runs the combat core against an in-memory host and
// plays out a short scripted skirmish: a few hits, a kill, a fight session,
// and a mid-fight disconnect that exercises escrow.
package main

import (
	"context"
	"database/sql"
	"time"

	"combat-tracker/internal/config"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/escrow"
	"combat-tracker/internal/fight"
	fxmodules "combat-tracker/internal/fx"
	"combat-tracker/internal/host"
	"combat-tracker/internal/tracker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Provide(host.NewMemory),
		fx.Provide(func(m *host.Memory) host.Host { return m }),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	t *tracker.Tracker,
	esc *escrow.Manager,
	world *host.Memory,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
	shutdowner fx.Shutdowner,
) {
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := esc.Load(ctx); err != nil {
				return err
			}
			esc.Start(ctx)
			t.Start(ctx)
			go func() {
				skirmish(t, world, logger)
				if err := shutdowner.Shutdown(); err != nil {
					logger.Error().Err(err).Msg("shutdown request failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down combat core")
			t.Stop()
			esc.Stop()

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("combat core stopped")
			return nil
		},
	})
}

func skirmish(t *tracker.Tracker, world *host.Memory, logger zerolog.Logger) {
	alice := uuid.New()
	bob := uuid.New()

	world.AddPlayer(alice, "Alice")
	world.AddPlayer(bob, "Bob")
	world.SetSlot(bob, 0, domain.ItemStack{Item: "diamond", Count: 12})

	t.AddToTeam(fight.Team1, alice)
	t.AddToTeam(fight.Team2, bob)
	t.StartFight()

	for i := 0; i < 3; i++ {
		t.OnHit(tracker.HitEvent{
			AttackerID:   alice,
			AttackerName: "Alice",
			VictimID:     bob,
			VictimName:   "Bob",
			Weapon:       "iron_sword",
			BodyPart:     domain.BodyPartTorso,
			Damage:       6.5,
			VictimArmor:  3,
		})
		time.Sleep(200 * time.Millisecond)
	}

	t.OnKill(tracker.KillEvent{
		KillerID:    alice,
		KillerName:  "Alice",
		VictimID:    bob,
		VictimName:  "Bob",
		Weapon:      "iron_sword",
		VictimArmor: 3,
	})

	// Bob rage-quits mid-fight; his holdings go into escrow.
	world.SetOnline(bob, false)
	t.OnPlayerQuit(bob)

	scores := t.CurrentScores()
	logger.Info().
		Int("team1", scores.Team1).
		Int("team2", scores.Team2).
		Msg("mid-fight scores")

	t.EndFight()

	world.SetOnline(bob, true)
	t.OnPlayerJoin(bob)

	logger.Info().Msg("skirmish complete")
}
