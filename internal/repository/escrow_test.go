package repository

import (
	"context"
	"testing"
	"time"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestEscrowPutGetRoundTrip(t *testing.T) {
	repo := NewEscrowRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	player := uuid.New()

	want := domain.EscrowRecord{
		PlayerID: player,
		Expiry:   time.Now().Add(5 * time.Minute).UnixMilli(),
		State:    domain.EscrowSequestered,
		Inventory: []domain.ItemStack{
			{Item: "diamond_sword", Count: 1},
			{Item: "cooked_beef", Count: 32},
		},
		Stash: []domain.ItemStack{
			{Item: "netherite_ingot", Count: 3},
		},
	}
	if err := repo.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(ctx, player)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record, got nil")
	}
	if got.PlayerID != want.PlayerID || got.Expiry != want.Expiry || got.State != want.State {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
	if len(got.Inventory) != 2 || got.Inventory[1] != want.Inventory[1] {
		t.Fatalf("inventory mismatch: %v", got.Inventory)
	}
	if len(got.Stash) != 1 || got.Stash[0] != want.Stash[0] {
		t.Fatalf("stash mismatch: %v", got.Stash)
	}
}

func TestEscrowPutUpserts(t *testing.T) {
	repo := NewEscrowRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	player := uuid.New()

	record := domain.EscrowRecord{
		PlayerID:  player,
		Expiry:    100,
		State:     domain.EscrowSequestered,
		Inventory: []domain.ItemStack{{Item: "stone", Count: 64}},
	}
	if err := repo.Put(ctx, record); err != nil {
		t.Fatalf("Put: %v", err)
	}

	record.State = domain.EscrowReleased
	if err := repo.Put(ctx, record); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, err := repo.Get(ctx, player)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.EscrowReleased {
		t.Fatalf("expected released state after upsert, got %s", got.State)
	}
}

func TestEscrowGetMissing(t *testing.T) {
	repo := NewEscrowRepository(newTestDB(t), zerolog.Nop())

	got, err := repo.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing record, got %+v", got)
	}
}

func TestEscrowDeleteAndAll(t *testing.T) {
	repo := NewEscrowRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for _, id := range []uuid.UUID{a, b} {
		record := domain.EscrowRecord{
			PlayerID: id,
			Expiry:   42,
			State:    domain.EscrowSequestered,
		}
		if err := repo.Put(ctx, record); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if err := repo.Delete(ctx, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	records, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(records) != 1 || records[0].PlayerID != b {
		t.Fatalf("expected only b to remain, got %v", records)
	}

	// deleting an absent record is not an error
	if err := repo.Delete(ctx, a); err != nil {
		t.Fatalf("Delete of missing record: %v", err)
	}
}
