package domain

import (
	"github.com/google/uuid"
)

// Position is a 3D world coordinate reported by the host.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type BodyPart string

const (
	BodyPartHead  BodyPart = "head"
	BodyPartTorso BodyPart = "torso"
	BodyPartLegs  BodyPart = "legs"
)

// CombatRecord is one observed PvP hit or kill event. Records are immutable
// once created; ID is assigned at creation and is the identity used for
// deduplication across cache and disk lookups.
type CombatRecord struct {
	ID             string     `json:"id"`
	AttackerID     uuid.UUID  `json:"attacker_id"`
	AttackerName   string     `json:"attacker_name"`
	VictimID       uuid.UUID  `json:"victim_id"`
	VictimName     string     `json:"victim_name"`
	Weapon         string     `json:"weapon"`
	BodyPart       BodyPart   `json:"body_part"`
	Location       Position   `json:"location"`
	Damage         float64    `json:"damage"`
	Fatal          bool       `json:"fatal"`
	VictimBlocking bool       `json:"victim_blocking"`
	VictimArmor    int        `json:"victim_armor"` // tier 0-6
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
	Timestamp      int64      `json:"timestamp"` // wall clock, milliseconds
}

// InSession reports whether the record was tagged with the given fight session.
func (r CombatRecord) InSession(sessionID uuid.UUID) bool {
	return r.SessionID != nil && *r.SessionID == sessionID
}

// Involves reports whether the player took part in the event on either side.
func (r CombatRecord) Involves(playerID uuid.UUID) bool {
	return r.AttackerID == playerID || r.VictimID == playerID
}

// ScorePair holds team totals for a fight session.
type ScorePair struct {
	Team1 int
	Team2 int
}

// WinsLosses is a per-player fight outcome counter, moved only at session
// resolution.
type WinsLosses struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// ItemStack is a quantity of one item type in a holdings slot. A zero-value
// stack represents an empty slot.
type ItemStack struct {
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

func (s ItemStack) Empty() bool {
	return s.Item == "" || s.Count <= 0
}

type EscrowState string

const (
	// EscrowSequestered means the holdings are held and the timeout is running.
	EscrowSequestered EscrowState = "sequestered"
	// EscrowReleased means the timeout elapsed (or an admin released it) and
	// the holdings are waiting for a safe opportunity to return.
	EscrowReleased EscrowState = "released"
)

// EscrowRecord is a sequestered snapshot of a combat logger's holdings.
// Inventory is the primary holdings; Stash is the secondary compartment.
type EscrowRecord struct {
	PlayerID  uuid.UUID   `json:"player_id"`
	Expiry    int64       `json:"expiry"` // wall clock, milliseconds
	Inventory []ItemStack `json:"inventory"`
	Stash     []ItemStack `json:"stash"`
	State     EscrowState `json:"state"`
}

func (e EscrowRecord) Released() bool {
	return e.State == EscrowReleased
}
