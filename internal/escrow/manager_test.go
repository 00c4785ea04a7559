package escrow

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"combat-tracker/internal/config"
	"combat-tracker/internal/database"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/host"
	"combat-tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeFight struct {
	active       bool
	participants map[uuid.UUID]bool
}

func (f *fakeFight) Active() bool { return f.active }

func (f *fakeFight) IsParticipant(playerID uuid.UUID) bool { return f.participants[playerID] }

type fixture struct {
	cfg     *config.Config
	fight   *fakeFight
	repo    *repository.EscrowRepository
	world   *host.Memory
	manager *Manager

	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "tracker.db")

	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		cfg:   cfg,
		fight: &fakeFight{active: true, participants: make(map[uuid.UUID]bool)},
		repo:  repository.NewEscrowRepository(db, zerolog.Nop()),
		world: host.NewMemory(),
		clock: time.Now(),
	}
	f.manager = NewManager(cfg, f.fight, f.repo, f.world, zerolog.Nop())
	f.manager.now = func() time.Time { return f.clock }
	// run scheduled retries inline so tests stay deterministic
	f.manager.delay = func(d time.Duration, fn func()) { fn() }
	return f
}

func (f *fixture) addParticipant(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.world.AddPlayer(id, name)
	f.fight.participants[id] = true
	return id
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func TestOnQuitSequestersParticipantHoldings(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond_sword", Count: 1})
	f.world.SetStashSlot(player, 0, domain.ItemStack{Item: "netherite_ingot", Count: 4})

	f.manager.OnQuit(player)

	record, ok := f.manager.Record(player)
	if !ok {
		t.Fatal("expected an escrow record")
	}
	if record.State != domain.EscrowSequestered {
		t.Fatalf("expected sequestered state, got %s", record.State)
	}
	wantExpiry := f.clock.Add(f.cfg.EscrowTimeout()).UnixMilli()
	if record.Expiry != wantExpiry {
		t.Fatalf("expiry: got %d, want %d", record.Expiry, wantExpiry)
	}

	if got := f.world.CountItem(player, "diamond_sword"); got != 0 {
		t.Errorf("holdings should be emptied, player still has %d", got)
	}

	stored, err := f.repo.Get(context.Background(), player)
	if err != nil {
		t.Fatalf("repo.Get: %v", err)
	}
	if stored == nil || stored.State != domain.EscrowSequestered {
		t.Fatalf("record not mirrored to the repository: %+v", stored)
	}
}

func TestOnQuitIgnoresNonParticipants(t *testing.T) {
	f := newFixture(t)
	outsider := uuid.New()
	f.world.AddPlayer(outsider, "Carol")

	f.manager.OnQuit(outsider)
	if _, ok := f.manager.Record(outsider); ok {
		t.Fatal("non-participant must not be escrowed")
	}

	f.fight.active = false
	player := f.addParticipant(t, "Bob")
	f.manager.OnQuit(player)
	if _, ok := f.manager.Record(player); ok {
		t.Fatal("no escrow outside an active fight")
	}
}

func TestRepeatQuitDoesNotOverwriteSnapshot(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond_sword", Count: 1})

	f.manager.OnQuit(player)
	first, _ := f.manager.Record(player)

	// rejoin, pick up junk, log off again
	f.world.SetSlot(player, 1, domain.ItemStack{Item: "dirt", Count: 64})
	f.manager.OnQuit(player)

	second, ok := f.manager.Record(player)
	if !ok {
		t.Fatal("record vanished")
	}
	if second.Expiry != first.Expiry {
		t.Error("repeat quit must not extend the expiry")
	}
	for _, stack := range second.Inventory {
		if stack.Item == "dirt" {
			t.Error("repeat quit must not replace the snapshot")
		}
	}
	if got := f.world.CountItem(player, "dirt"); got != 0 {
		t.Errorf("current holdings should be cleared on repeat quit, has %d", got)
	}
}

func TestSweepReleasesAndRestoresOnlineOwner(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 2, domain.ItemStack{Item: "diamond_sword", Count: 1})

	f.manager.OnQuit(player)
	f.advance(f.cfg.EscrowTimeout() + time.Second)
	f.manager.Sweep(context.Background())

	if _, ok := f.manager.Record(player); ok {
		t.Fatal("record should be gone after restoration")
	}
	if got := f.world.CountItem(player, "diamond_sword"); got != 1 {
		t.Fatalf("holdings not restored, has %d", got)
	}

	stored, err := f.repo.Get(context.Background(), player)
	if err != nil {
		t.Fatalf("repo.Get: %v", err)
	}
	if stored != nil {
		t.Fatalf("repository row should be deleted after restoration: %+v", stored)
	}
}

func TestSweepLeavesOfflineOwnerForJoin(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "elytra", Count: 1})

	f.manager.OnQuit(player)
	f.world.SetOnline(player, false)

	f.advance(f.cfg.EscrowTimeout() + time.Second)
	f.manager.Sweep(context.Background())

	record, ok := f.manager.Record(player)
	if !ok {
		t.Fatal("record must survive until the owner returns")
	}
	if record.State != domain.EscrowReleased {
		t.Fatalf("expected released state, got %s", record.State)
	}
	if got := f.world.CountItem(player, "elytra"); got != 0 {
		t.Fatal("nothing should be restored while offline")
	}

	f.world.SetOnline(player, true)
	f.manager.OnJoin(player)

	if _, ok := f.manager.Record(player); ok {
		t.Fatal("record should be claimed on join")
	}
	if got := f.world.CountItem(player, "elytra"); got != 1 {
		t.Fatalf("holdings not restored on join, has %d", got)
	}
}

func TestOnJoinBeforeExpiryOnlyReportsRemaining(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 5})

	f.manager.OnQuit(player)
	f.advance(time.Minute)
	f.manager.OnJoin(player)

	if _, ok := f.manager.Record(player); !ok {
		t.Fatal("record must remain until expiry")
	}
	if got := f.world.CountItem(player, "diamond"); got != 0 {
		t.Fatal("nothing should be restored before expiry")
	}
	if tells := f.world.Tells(player); len(tells) == 0 {
		t.Fatal("owner should be told about the escrow")
	}
}

func TestOnRespawnRestoresDueRecord(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 3})

	f.manager.OnQuit(player)
	f.world.SetAlive(player, false)

	f.advance(f.cfg.EscrowTimeout() + time.Second)
	f.manager.Sweep(context.Background())
	if _, ok := f.manager.Record(player); !ok {
		t.Fatal("dead owner must not be restored by the sweep")
	}

	f.world.SetAlive(player, true)
	f.manager.OnRespawn(player)

	if _, ok := f.manager.Record(player); ok {
		t.Fatal("record should be claimed after respawn")
	}
	if got := f.world.CountItem(player, "diamond"); got != 3 {
		t.Fatalf("holdings not restored after respawn, has %d", got)
	}
}

func TestRestoreExactlyOnceUnderContention(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 7})

	f.manager.OnQuit(player)
	f.advance(f.cfg.EscrowTimeout() + time.Second)
	f.manager.markReleased(player)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.manager.tryRestore(player)
		}()
	}
	wg.Wait()

	if got := f.world.CountItem(player, "diamond"); got != 7 {
		t.Fatalf("restoration must happen exactly once, player has %d diamonds", got)
	}
}

func TestTryRestoreDefersWhileUnsafe(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 2})

	f.manager.OnQuit(player)
	f.advance(f.cfg.EscrowTimeout() + time.Second)

	f.world.SetSafe(player, false)
	var retries int
	f.manager.delay = func(d time.Duration, fn func()) {
		retries++
		if retries == 1 {
			f.world.SetSafe(player, true)
		}
		fn()
	}

	f.manager.tryRestore(player)

	if retries == 0 {
		t.Fatal("unsafe owner should trigger a deferred retry")
	}
	if got := f.world.CountItem(player, "diamond"); got != 2 {
		t.Fatalf("holdings not restored after owner became safe, has %d", got)
	}
}

func TestForceRelease(t *testing.T) {
	f := newFixture(t)
	player := f.addParticipant(t, "Bob")
	f.world.SetSlot(player, 0, domain.ItemStack{Item: "diamond", Count: 1})

	if f.manager.ForceRelease(uuid.New()) {
		t.Fatal("force release of unknown player should report false")
	}

	f.manager.OnQuit(player)
	if !f.manager.ForceRelease(player) {
		t.Fatal("force release should report true for an escrowed player")
	}
	if got := f.world.CountItem(player, "diamond"); got != 1 {
		t.Fatalf("holdings not restored on force release, has %d", got)
	}
}

func TestLoadRestoresCustodyFromRepository(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	record := domain.EscrowRecord{
		PlayerID:  player,
		Expiry:    f.clock.Add(time.Minute).UnixMilli(),
		State:     domain.EscrowSequestered,
		Inventory: []domain.ItemStack{{Item: "diamond", Count: 9}},
	}
	if err := f.repo.Put(context.Background(), record); err != nil {
		t.Fatalf("repo.Put: %v", err)
	}

	if err := f.manager.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := f.manager.Record(player)
	if !ok {
		t.Fatal("record not loaded")
	}
	if got.Expiry != record.Expiry || len(got.Inventory) != 1 {
		t.Fatalf("loaded record mismatch: %+v", got)
	}
}
