package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// exclusiveWeight is the semaphore weight of a writer. Readers take a weight
// of one, so any number of readers below this bound share an address.
const exclusiveWeight = 1 << 20

// lockTable hands out per-address reader/writer locks. Operations touching
// disjoint address sets proceed in parallel while overlapping writers
// serialise.
type lockTable struct {
	mu    sync.Mutex
	slots map[[20]byte]*lockSlot
}

type lockSlot struct {
	sem  *semaphore.Weighted
	refs int
}

type lockRequest struct {
	addr   [20]byte
	weight int64
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[[20]byte]*lockSlot)}
}

func (t *lockTable) slot(addr [20]byte) *lockSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[addr]
	if !ok {
		s = &lockSlot{sem: semaphore.NewWeighted(exclusiveWeight)}
		t.slots[addr] = s
	}
	s.refs++
	return s
}

func (t *lockTable) release(addr [20]byte, s *lockSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(t.slots, addr)
	}
}

// acquire locks every address in a canonical order so that concurrent callers
// cannot deadlock. Addresses in writes are held exclusively, the remaining
// reads are shared. The returned function releases all locks.
func (t *lockTable) acquire(ctx context.Context, writes, reads [][20]byte) (func(), error) {
	requests := plan(writes, reads)
	held := make([]*lockSlot, 0, len(requests))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(requests[i].weight)
			t.release(requests[i].addr, held[i])
		}
	}
	for _, req := range requests {
		s := t.slot(req.addr)
		if err := s.sem.Acquire(ctx, req.weight); err != nil {
			t.release(req.addr, s)
			unlock()
			return nil, err
		}
		held = append(held, s)
	}
	return unlock, nil
}

func plan(writes, reads [][20]byte) []lockRequest {
	weights := make(map[[20]byte]int64, len(writes)+len(reads))
	for _, addr := range reads {
		weights[addr] = 1
	}
	for _, addr := range writes {
		weights[addr] = exclusiveWeight
	}
	out := make([]lockRequest, 0, len(weights))
	for addr, weight := range weights {
		out = append(out, lockRequest{addr: addr, weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].addr[:], out[j].addr[:]) < 0 })
	return out
}
