package work

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// coordinator admits envelopes whose lock sets do not conflict with the
// locks held by running envelopes. Among conflicting envelopes admission is
// strict FIFO by Seq: an envelope never overtakes an earlier waiter it
// conflicts with. Non-conflicting envelopes may overtake freely.
//
// All state is guarded by mu. Locks are granted as a whole set, so no
// envelope ever holds a partial set while waiting for the rest.
type coordinator struct {
	mu sync.Mutex

	// active maps each held lock to the envelope holding it
	active map[Lock]*Envelope

	// held counts active locks per resource, for type-level conflict checks
	held map[string]int

	// waiting holds blocked envelopes ordered by Seq
	waiting []*Envelope

	// known holds every envelope that is waiting or active
	known map[uuid.UUID]*Envelope
}

func newCoordinator() *coordinator {
	return &coordinator{
		active: make(map[Lock]*Envelope),
		held:   make(map[string]int),
		known:  make(map[uuid.UUID]*Envelope),
	}
}

// isKnown reports whether the envelope id is currently waiting or active.
func (c *coordinator) isKnown(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.known[id]
	return ok
}

// offer registers env and returns the envelopes that became admissible,
// which is either env itself or nothing. It returns false when an envelope
// with the same id is already known.
func (c *coordinator) offer(env *Envelope) ([]*Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.known[env.id]; ok {
		return nil, false
	}
	c.known[env.id] = env

	// Recovered envelopes may carry a lower Seq than envelopes already waiting.
	i := sort.Search(len(c.waiting), func(i int) bool {
		return c.waiting[i].seq > env.seq
	})
	c.waiting = append(c.waiting, nil)
	copy(c.waiting[i+1:], c.waiting[i:])
	c.waiting[i] = env

	return c.admitLocked(), true
}

// release drops the locks held by env and returns every waiter that can
// now be admitted, in Seq order.
func (c *coordinator) release(env *Envelope) []*Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range env.locks {
		if c.active[l] != env {
			continue
		}
		delete(c.active, l)
		c.held[l.Resource]--
		if c.held[l.Resource] == 0 {
			delete(c.held, l.Resource)
		}
	}
	delete(c.known, env.id)

	return c.admitLocked()
}

// admitLocked walks the wait list in Seq order and admits every envelope
// that conflicts neither with the active set nor with an earlier waiter.
func (c *coordinator) admitLocked() []*Envelope {
	var admitted []*Envelope
	var ahead []Lock

	remaining := c.waiting[:0]
	for _, env := range c.waiting {
		if c.conflictsActiveLocked(env.locks) || anyConflict(env.locks, ahead) {
			env.markBlocked()
			ahead = append(ahead, env.locks...)
			remaining = append(remaining, env)
			continue
		}
		for _, l := range env.locks {
			c.active[l] = env
			c.held[l.Resource]++
		}
		admitted = append(admitted, env)
	}
	clear(c.waiting[len(remaining):])
	c.waiting = remaining

	return admitted
}

func (c *coordinator) conflictsActiveLocked(locks []Lock) bool {
	for _, l := range locks {
		if l.IsTypeLevel() {
			if c.held[l.Resource] > 0 {
				return true
			}
			continue
		}
		if _, ok := c.active[TypeLock(l.Resource)]; ok {
			return true
		}
		if _, ok := c.active[l]; ok {
			return true
		}
	}
	return false
}

// activeLocks returns a snapshot of the held locks.
func (c *coordinator) activeLocks() []Lock {
	c.mu.Lock()
	defer c.mu.Unlock()
	locks := make([]Lock, 0, len(c.active))
	for l := range c.active {
		locks = append(locks, l)
	}
	return normalizeLocks(locks)
}

// waitingCount returns the number of blocked envelopes.
func (c *coordinator) waitingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}
