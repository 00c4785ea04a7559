package scoring

import (
	"combat-tracker/internal/config"
	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"

	"github.com/google/uuid"
)

// Roster is a team membership set.
type Roster map[uuid.UUID]struct{}

func (r Roster) Has(playerID uuid.UUID) bool {
	_, ok := r[playerID]
	return ok
}

// Engine turns combat records into team scores. It carries no mutable state
// beyond the configuration handle; identical inputs always produce identical
// outputs.
type Engine struct {
	cfg *config.Config
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// ScoreSession computes team totals over the given records for one fight
// session. Records outside the session contribute nothing, and intra-team
// damage never awards points to either side.
func (e *Engine) ScoreSession(records []domain.CombatRecord, sessionID uuid.UUID, team1, team2 Roster) domain.ScorePair {
	var scores domain.ScorePair
	for _, record := range records {
		if !record.InSession(sessionID) {
			continue
		}

		attacker1, attacker2 := team1.Has(record.AttackerID), team2.Has(record.AttackerID)
		victim1, victim2 := team1.Has(record.VictimID), team2.Has(record.VictimID)

		if !attacker1 && !attacker2 {
			continue
		}
		if (attacker1 && victim1) || (attacker2 && victim2) {
			continue
		}

		points := e.hitPoints(record)
		if record.Fatal {
			points += e.killPoints(record)
		}
		if record.VictimBlocking {
			points += e.cfg.BlockHitterPoints()
			if victim1 {
				scores.Team1 += e.cfg.BlockBlockerPoints()
			} else if victim2 {
				scores.Team2 += e.cfg.BlockBlockerPoints()
			}
		}

		if attacker1 {
			scores.Team1 += points
		} else {
			scores.Team2 += points
		}
	}
	return scores
}

func (e *Engine) hitPoints(record domain.CombatRecord) int {
	points := int(record.Damage * e.cfg.HitDamageMultiplier())
	if points < 0 {
		return 0
	}
	return points
}

func (e *Engine) killPoints(record domain.CombatRecord) int {
	base := e.cfg.KillBasePoints()
	armorBonus := record.VictimArmor * e.cfg.ArmorBonusPerTier()
	underdogBonus := (constants.MaxWeaponTier - WeaponTier(record.Weapon)) * e.cfg.WeakWeaponBonusPerTier()
	return base + armorBonus + underdogBonus
}
