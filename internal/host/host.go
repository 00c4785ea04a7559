// Package host declares the ports through which the tracker core talks to
// the surrounding game server. The host delivers player facts and applies
// world effects; the core never reaches into it through globals.
package host

import (
	"combat-tracker/internal/domain"

	"github.com/google/uuid"
)

// Players answers identity and liveness queries about players.
type Players interface {
	Online(playerID uuid.UUID) bool
	Alive(playerID uuid.UUID) bool
	// Safe reports whether the player can receive items right now: alive,
	// not submerged in a hazardous liquid, not mid-fall.
	Safe(playerID uuid.UUID) bool
	Name(playerID uuid.UUID) string
	Position(playerID uuid.UUID) domain.Position
}

// Inventory mutates a player's holdings. The primary compartment is the
// carried inventory; the stash is the secondary (offline-chest style) one.
type Inventory interface {
	// Holdings returns a copy of both compartments without mutating them.
	Holdings(playerID uuid.UUID) (inventory, stash []domain.ItemStack)
	// TakeHoldings snapshots both compartments and clears them.
	TakeHoldings(playerID uuid.UUID) (inventory, stash []domain.ItemStack)
	ClearHoldings(playerID uuid.UUID)
	// Restore writes stacks back, preferring original slots and falling back
	// to any empty capacity. Occupied slots are never overwritten; stacks
	// that cannot be placed anywhere are returned.
	Restore(playerID uuid.UUID, inventory, stash []domain.ItemStack) (leftover []domain.ItemStack)
	// Give adds one stack to the carried inventory, reporting false when no
	// capacity remains.
	Give(playerID uuid.UUID, stack domain.ItemStack) bool
	// RemoveOne removes a single unit of the item from the carried
	// inventory, reporting whether a unit was found.
	RemoveOne(playerID uuid.UUID, item string) bool
	// Deposit places items into the world at a position (drop at feet).
	Deposit(position domain.Position, items []domain.ItemStack)
}

// Enforcer applies combat penalties through the host.
type Enforcer interface {
	ForceKill(playerID uuid.UUID)
}

// Status is the live fight display published once per tick.
type Status struct {
	Title    string
	Progress float64 // remaining fraction of the fight, 0..1
}

// Announcer delivers messages and the live status display. A nil recipients
// slice addresses every connected player.
type Announcer interface {
	Broadcast(message string)
	Tell(playerID uuid.UUID, message string)
	PublishStatus(recipients []uuid.UUID, status Status)
	ClearStatus()
}

// Host bundles every port the core consumes.
type Host interface {
	Players
	Inventory
	Enforcer
	Announcer
}
