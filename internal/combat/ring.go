package combat

import "combat-tracker/internal/domain"

// ring is a fixed-capacity recency buffer. head points at the newest record;
// pushing onto a full ring overwrites the oldest slot.
type ring struct {
	buf  []domain.CombatRecord
	head int
	size int
}

func newRing(cap int) *ring {
	return &ring{buf: make([]domain.CombatRecord, cap), head: -1}
}

func (r *ring) push(record domain.CombatRecord) {
	r.head = (r.head + 1) % len(r.buf)
	r.buf[r.head] = record
	if r.size < len(r.buf) {
		r.size++
	}
}

// newestFirst copies up to limit records out of the ring, newest first.
func (r *ring) newestFirst(limit int) []domain.CombatRecord {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]domain.CombatRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// filter keeps only records for which keep returns true, preserving recency
// order.
func (r *ring) filter(keep func(domain.CombatRecord) bool) {
	kept := make([]domain.CombatRecord, 0, r.size)
	for i := r.size - 1; i >= 0; i-- {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		if keep(r.buf[idx]) {
			kept = append(kept, r.buf[idx])
		}
	}

	r.head = -1
	r.size = 0
	for i := range r.buf {
		r.buf[i] = domain.CombatRecord{}
	}
	for _, record := range kept {
		r.push(record)
	}
}
