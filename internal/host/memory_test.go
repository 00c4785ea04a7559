package host

import (
	"testing"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
)

func TestTakeHoldingsSnapshotsAndClears(t *testing.T) {
	m := NewMemory()
	player := uuid.New()
	m.AddPlayer(player, "Bob")
	m.SetSlot(player, 5, domain.ItemStack{Item: "diamond", Count: 3})
	m.SetStashSlot(player, 2, domain.ItemStack{Item: "elytra", Count: 1})

	inventory, stash := m.TakeHoldings(player)
	if inventory[5].Item != "diamond" || stash[2].Item != "elytra" {
		t.Fatal("snapshot should preserve slot positions")
	}
	if got := m.CountItem(player, "diamond"); got != 0 {
		t.Fatalf("holdings should be cleared, has %d", got)
	}
}

func TestRestorePrefersOriginalSlots(t *testing.T) {
	m := NewMemory()
	player := uuid.New()
	m.AddPlayer(player, "Bob")
	m.SetSlot(player, 5, domain.ItemStack{Item: "diamond", Count: 3})

	inventory, stash := m.TakeHoldings(player)

	// slot 5 is occupied now, the restored stack must land elsewhere
	m.SetSlot(player, 5, domain.ItemStack{Item: "dirt", Count: 1})

	leftover := m.Restore(player, inventory, stash)
	if len(leftover) != 0 {
		t.Fatalf("plenty of capacity, expected no leftover, got %v", leftover)
	}
	if got := m.CountItem(player, "diamond"); got != 3 {
		t.Fatalf("diamonds not restored, has %d", got)
	}
	if got := m.CountItem(player, "dirt"); got != 1 {
		t.Fatal("occupied slot must not be overwritten")
	}
}

func TestRestoreReturnsLeftoverWhenFull(t *testing.T) {
	m := NewMemory()
	player := uuid.New()
	m.AddPlayer(player, "Bob")

	// fill every slot in both compartments
	for i := 0; i < inventorySlots; i++ {
		m.SetSlot(player, i, domain.ItemStack{Item: "cobblestone", Count: 64})
	}
	for i := 0; i < stashSlots; i++ {
		m.SetStashSlot(player, i, domain.ItemStack{Item: "cobblestone", Count: 64})
	}

	leftover := m.Restore(player, []domain.ItemStack{{Item: "diamond", Count: 2}}, nil)
	if len(leftover) != 1 || leftover[0].Item != "diamond" {
		t.Fatalf("expected the diamond back as leftover, got %v", leftover)
	}
}

func TestRemoveOneDecrementsStack(t *testing.T) {
	m := NewMemory()
	player := uuid.New()
	m.AddPlayer(player, "Bob")
	m.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 2})

	if !m.RemoveOne(player, "diamond") {
		t.Fatal("expected a unit removed")
	}
	if got := m.CountItem(player, "diamond"); got != 1 {
		t.Fatalf("expected 1 remaining, has %d", got)
	}
	if !m.RemoveOne(player, "diamond") {
		t.Fatal("expected the last unit removed")
	}
	if m.RemoveOne(player, "diamond") {
		t.Fatal("nothing left to remove")
	}
}

func TestSafeRequiresAlive(t *testing.T) {
	m := NewMemory()
	player := uuid.New()
	m.AddPlayer(player, "Bob")

	if !m.Safe(player) {
		t.Fatal("fresh player should be safe")
	}
	m.SetAlive(player, false)
	if m.Safe(player) {
		t.Fatal("dead player is never safe")
	}
	m.SetAlive(player, true)
	m.SetSafe(player, false)
	if m.Safe(player) {
		t.Fatal("hazard flag should make the player unsafe")
	}
}

func TestDepositIgnoresEmptyStacks(t *testing.T) {
	m := NewMemory()

	m.Deposit(domain.Position{X: 1}, []domain.ItemStack{{}, {Item: "diamond", Count: 0}})
	if got := m.Drops(); len(got) != 0 {
		t.Fatalf("empty deposit should be dropped, got %v", got)
	}

	m.Deposit(domain.Position{X: 1}, []domain.ItemStack{{Item: "diamond", Count: 2}})
	drops := m.Drops()
	if len(drops) != 1 || drops[0].Items[0].Count != 2 {
		t.Fatalf("expected one drop, got %v", drops)
	}
}
