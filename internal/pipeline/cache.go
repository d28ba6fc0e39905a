package pipeline

import (
	"sync"

	"dealgraph/internal/logging"
)

// ResultCache maps session ids to the last completed evaluation state. Put
// overwrites unconditionally; Get never mutates. LockSession serializes
// writers for one session so two concurrent ingestions of the same session
// cannot interleave — the winner is whichever run completes last, and it wins
// whole, not field by field.
type ResultCache interface {
	Put(sessionID string, state *EvaluationState)
	Get(sessionID string) (*EvaluationState, bool)
	LockSession(sessionID string) (unlock func())
}

// MemoryCache is the in-process ResultCache. Entries live until process
// restart; there is no eviction.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*EvaluationState
	locks   map[string]*sync.Mutex
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*EvaluationState),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Put stores the state for the session, replacing any prior entry.
func (c *MemoryCache) Put(sessionID string, state *EvaluationState) {
	c.mu.Lock()
	c.entries[sessionID] = state
	c.mu.Unlock()
	logging.Pipeline("Cached evaluation for session %s", sessionID)
}

// Get returns the cached state for the session, if any.
func (c *MemoryCache) Get(sessionID string) (*EvaluationState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.entries[sessionID]
	return state, ok
}

// LockSession acquires the per-session writer lock and returns its release.
func (c *MemoryCache) LockSession(sessionID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[sessionID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
