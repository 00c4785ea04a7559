package combat

import (
	"sort"
	"sync"
	"time"

	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time copy of the cache contents, keyed by attacker,
// newest-first per attacker.
type Snapshot map[uuid.UUID][]domain.CombatRecord

// Cache is the bounded recency store of combat records. Each attacker owns a
// fixed-capacity ring; the oldest record is evicted when the ring is full.
// All methods are safe for concurrent use.
type Cache struct {
	cap int

	mu        sync.RWMutex
	attackers map[uuid.UUID]*ring
	now       func() time.Time
}

func New(cap int) *Cache {
	if cap <= 0 {
		cap = constants.DefaultCacheCap
	}
	return &Cache{
		cap:       cap,
		attackers: make(map[uuid.UUID]*ring),
		now:       time.Now,
	}
}

// AddRecord inserts the record at the head of its attacker's ring, evicting
// the oldest entry when the ring is at capacity.
func (c *Cache) AddRecord(record domain.CombatRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.attackers[record.AttackerID]
	if !ok {
		r = newRing(c.cap)
		c.attackers[record.AttackerID] = r
	}
	r.push(record)
}

// RecentByAttacker returns up to limit newest-first records for the attacker.
func (c *Cache) RecentByAttacker(attackerID uuid.UUID, limit int) []domain.CombatRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.attackers[attackerID]
	if !ok {
		return nil
	}
	return r.newestFirst(limit)
}

// RecordsInvolving returns up to limit newest-first records where the player
// appears as attacker or victim. The attacker's own ring is oversampled and
// every other ring is scanned for victim matches; duplicates are dropped by
// record id.
func (c *Cache) RecordsInvolving(playerID uuid.UUID, limit int) []domain.CombatRecord {
	if limit <= 0 {
		limit = constants.DefaultLookupLimit
	}

	c.mu.RLock()
	all := make([]domain.CombatRecord, 0, limit*constants.LookupOversample)
	if r, ok := c.attackers[playerID]; ok {
		all = append(all, r.newestFirst(limit*constants.LookupOversample)...)
	}
	for attackerID, r := range c.attackers {
		if attackerID == playerID {
			continue
		}
		for _, record := range r.newestFirst(r.size) {
			if record.VictimID == playerID {
				all = append(all, record)
			}
		}
	}
	c.mu.RUnlock()

	return Dedupe(all, limit)
}

// DeleteOlderThan removes records involving the player that are older than
// now minus threshold. A zero threshold removes everything for the player.
func (c *Cache) DeleteOlderThan(playerID uuid.UUID, threshold time.Duration) {
	cutoff := c.cutoff(threshold)

	c.mu.Lock()
	defer c.mu.Unlock()

	for attackerID, r := range c.attackers {
		r.filter(func(record domain.CombatRecord) bool {
			return !record.Involves(playerID) || record.Timestamp >= cutoff
		})
		if r.size == 0 {
			delete(c.attackers, attackerID)
		}
	}
}

// DeleteAllOlderThan removes every record older than now minus threshold.
// A zero threshold empties the cache.
func (c *Cache) DeleteAllOlderThan(threshold time.Duration) {
	cutoff := c.cutoff(threshold)

	c.mu.Lock()
	defer c.mu.Unlock()

	for attackerID, r := range c.attackers {
		r.filter(func(record domain.CombatRecord) bool {
			return record.Timestamp >= cutoff
		})
		if r.size == 0 {
			delete(c.attackers, attackerID)
		}
	}
}

// Records returns a flat snapshot of every cached record, for scoring and
// display reads that must not disturb the cache.
func (c *Cache) Records() []domain.CombatRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []domain.CombatRecord
	for _, r := range c.attackers {
		all = append(all, r.newestFirst(r.size)...)
	}
	return all
}

// DrainAndClear atomically snapshots all records and empties the cache. Used
// by the persistence merge so the cache stays a bounded write buffer.
func (c *Cache) DrainAndClear() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(Snapshot, len(c.attackers))
	for attackerID, r := range c.attackers {
		if r.size > 0 {
			snapshot[attackerID] = r.newestFirst(r.size)
		}
	}
	c.attackers = make(map[uuid.UUID]*ring)
	return snapshot
}

// DrainExcludingSession atomically snapshots and removes every record NOT
// tagged with the given session, leaving the session's records cached. A
// running fight scores against the cache, so a mid-session merge must not
// take its records away.
func (c *Cache) DrainExcludingSession(sessionID uuid.UUID) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(Snapshot)
	for attackerID, r := range c.attackers {
		var drained []domain.CombatRecord
		for _, record := range r.newestFirst(r.size) {
			if !record.InSession(sessionID) {
				drained = append(drained, record)
			}
		}
		if len(drained) == 0 {
			continue
		}
		snapshot[attackerID] = drained
		r.filter(func(record domain.CombatRecord) bool {
			return record.InSession(sessionID)
		})
		if r.size == 0 {
			delete(c.attackers, attackerID)
		}
	}
	return snapshot
}

// Size returns the total number of cached records.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, r := range c.attackers {
		total += r.size
	}
	return total
}

func (c *Cache) cutoff(threshold time.Duration) int64 {
	if threshold <= 0 {
		// everything is older than "now"
		return c.now().UnixMilli() + 1
	}
	return c.now().Add(-threshold).UnixMilli()
}

// Dedupe sorts records newest-first, drops duplicates by id, and trims to
// limit. Shared by the cache and the disk-merge lookup paths.
func Dedupe(records []domain.CombatRecord, limit int) []domain.CombatRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, record := range records {
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		out = append(out, record)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
