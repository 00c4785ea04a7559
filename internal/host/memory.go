package host

import (
	"sync"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
)

const (
	inventorySlots = 36
	stashSlots     = 27
)

type memPlayer struct {
	name      string
	online    bool
	alive     bool
	safe      bool
	position  domain.Position
	inventory []domain.ItemStack
	stash     []domain.ItemStack
}

// Drop is an item pile deposited into the world.
type Drop struct {
	Position domain.Position
	Items    []domain.ItemStack
}

// Memory is an in-process Host used by the simulator and by tests. It keeps
// per-player slot arrays and records every outbound effect so callers can
// assert on them.
type Memory struct {
	mu      sync.Mutex
	players map[uuid.UUID]*memPlayer

	drops      []Drop
	killed     []uuid.UUID
	broadcasts []string
	tells      map[uuid.UUID][]string
	status     *Status
}

func NewMemory() *Memory {
	return &Memory{
		players: make(map[uuid.UUID]*memPlayer),
		tells:   make(map[uuid.UUID][]string),
	}
}

// AddPlayer registers an online, alive, safe player with empty holdings.
func (m *Memory) AddPlayer(playerID uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[playerID] = &memPlayer{
		name:      name,
		online:    true,
		alive:     true,
		safe:      true,
		inventory: make([]domain.ItemStack, inventorySlots),
		stash:     make([]domain.ItemStack, stashSlots),
	}
}

func (m *Memory) SetOnline(playerID uuid.UUID, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.online = online
	}
}

func (m *Memory) SetAlive(playerID uuid.UUID, alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.alive = alive
	}
}

func (m *Memory) SetSafe(playerID uuid.UUID, safe bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.safe = safe
	}
}

func (m *Memory) SetPosition(playerID uuid.UUID, position domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.position = position
	}
}

// SetSlot writes one carried-inventory slot directly.
func (m *Memory) SetSlot(playerID uuid.UUID, slot int, stack domain.ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok && slot >= 0 && slot < len(p.inventory) {
		p.inventory[slot] = stack
	}
}

// SetStashSlot writes one stash slot directly.
func (m *Memory) SetStashSlot(playerID uuid.UUID, slot int, stack domain.ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok && slot >= 0 && slot < len(p.stash) {
		p.stash[slot] = stack
	}
}

func (m *Memory) Online(playerID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	return ok && p.online
}

func (m *Memory) Alive(playerID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	return ok && p.alive
}

func (m *Memory) Safe(playerID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	return ok && p.alive && p.safe
}

func (m *Memory) Name(playerID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		return p.name
	}
	return ""
}

func (m *Memory) Position(playerID uuid.UUID) domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		return p.position
	}
	return domain.Position{}
}

func (m *Memory) Holdings(playerID uuid.UUID) ([]domain.ItemStack, []domain.ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, nil
	}
	return copyStacks(p.inventory), copyStacks(p.stash)
}

func (m *Memory) TakeHoldings(playerID uuid.UUID) ([]domain.ItemStack, []domain.ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, nil
	}
	inventory, stash := copyStacks(p.inventory), copyStacks(p.stash)
	p.inventory = make([]domain.ItemStack, inventorySlots)
	p.stash = make([]domain.ItemStack, stashSlots)
	return inventory, stash
}

func (m *Memory) ClearHoldings(playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.inventory = make([]domain.ItemStack, inventorySlots)
		p.stash = make([]domain.ItemStack, stashSlots)
	}
}

func (m *Memory) Restore(playerID uuid.UUID, inventory, stash []domain.ItemStack) []domain.ItemStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return append(compactStacks(inventory), compactStacks(stash)...)
	}

	leftover := placeStacks(p.inventory, inventory)
	leftover = append(leftover, placeStacks(p.stash, stash)...)

	// best-effort second pass into whatever capacity remains
	remainder := leftover[:0]
	for _, stack := range leftover {
		if !placeAnywhere(p.inventory, stack) && !placeAnywhere(p.stash, stack) {
			remainder = append(remainder, stack)
		}
	}
	return remainder
}

func (m *Memory) Give(playerID uuid.UUID, stack domain.ItemStack) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok || stack.Empty() {
		return false
	}
	return placeAnywhere(p.inventory, stack)
}

func (m *Memory) RemoveOne(playerID uuid.UUID, item string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return false
	}
	for i, stack := range p.inventory {
		if stack.Item == item && stack.Count > 0 {
			stack.Count--
			if stack.Count == 0 {
				stack = domain.ItemStack{}
			}
			p.inventory[i] = stack
			return true
		}
	}
	return false
}

func (m *Memory) Deposit(position domain.Position, items []domain.ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items = compactStacks(items)
	if len(items) == 0 {
		return
	}
	m.drops = append(m.drops, Drop{Position: position, Items: items})
}

func (m *Memory) ForceKill(playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.alive = false
	}
	m.killed = append(m.killed, playerID)
}

func (m *Memory) Broadcast(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, message)
}

func (m *Memory) Tell(playerID uuid.UUID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tells[playerID] = append(m.tells[playerID], message)
}

func (m *Memory) PublishStatus(recipients []uuid.UUID, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := status
	m.status = &s
}

func (m *Memory) ClearStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = nil
}

// Observation helpers for tests and the simulator.

func (m *Memory) Drops() []Drop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Drop(nil), m.drops...)
}

func (m *Memory) Killed() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.killed...)
}

func (m *Memory) Broadcasts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.broadcasts...)
}

func (m *Memory) Tells(playerID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tells[playerID]...)
}

func (m *Memory) LastStatus() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return Status{}, false
	}
	return *m.status, true
}

// CountItem totals units of the item in the player's carried inventory.
func (m *Memory) CountItem(playerID uuid.UUID, item string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return 0
	}
	total := 0
	for _, stack := range p.inventory {
		if stack.Item == item {
			total += stack.Count
		}
	}
	return total
}

func copyStacks(stacks []domain.ItemStack) []domain.ItemStack {
	out := make([]domain.ItemStack, len(stacks))
	copy(out, stacks)
	return out
}

func compactStacks(stacks []domain.ItemStack) []domain.ItemStack {
	var out []domain.ItemStack
	for _, stack := range stacks {
		if !stack.Empty() {
			out = append(out, stack)
		}
	}
	return out
}

// placeStacks writes incoming stacks into their original slot index when that
// slot is still empty, returning the stacks that could not be placed.
func placeStacks(slots, incoming []domain.ItemStack) []domain.ItemStack {
	var leftover []domain.ItemStack
	for i, stack := range incoming {
		if stack.Empty() {
			continue
		}
		if i < len(slots) && slots[i].Empty() {
			slots[i] = stack
			continue
		}
		leftover = append(leftover, stack)
	}
	return leftover
}

func placeAnywhere(slots []domain.ItemStack, stack domain.ItemStack) bool {
	for i := range slots {
		if slots[i].Empty() {
			slots[i] = stack
			return true
		}
	}
	return false
}
