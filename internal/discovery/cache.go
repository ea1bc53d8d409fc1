package discovery

import (
	"sync"
	"time"

	"github.com/influo/discovery/models"
)

// CandidateBatch is one generation run's validated, deduplicated output,
// owned by the DiscoveryCache. Batches are replaced on regeneration, never
// mutated in place.
type CandidateBatch struct {
	Key       string
	Items     []models.CreatorProfile
	CreatedAt time.Time
}

// generation is the shared awaitable handle for one in-flight pipeline run.
// Every waiter that attaches before completion observes the same batch.
type generation struct {
	key   string
	done  chan struct{}
	batch *CandidateBatch
	err   error
}

// Done is closed exactly once, when the generation completes (success,
// parse-empty, or error).
func (g *generation) Done() <-chan struct{} { return g.done }

// Result is only valid after Done is closed.
func (g *generation) Result() (*CandidateBatch, error) { return g.batch, g.err }

// DiscoveryCache holds the most recent generated batch per canonical query
// plus the in-flight map that backs single-flight coordination. One instance
// is injected per process; tests construct isolated ones.
type DiscoveryCache struct {
	mu       sync.Mutex
	batches  map[string]*CandidateBatch
	inflight map[string]*generation
}

func NewDiscoveryCache() *DiscoveryCache {
	return &DiscoveryCache{
		batches:  make(map[string]*CandidateBatch),
		inflight: make(map[string]*generation),
	}
}

// Lookup returns the cached batch for key, or nil. Empty batches never count
// as hits so an exhausted or parse-empty run regenerates on the next request.
func (c *DiscoveryCache) Lookup(key string) *CandidateBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.batches[key]
	if b == nil || len(b.Items) == 0 {
		return nil
	}
	return b
}

// Begin is the single-flight entry point. Under one lock it checks the batch
// cache, then the in-flight map, then inserts a new entry; no suspension can
// interleave between the check and the insert. It returns either a cached
// batch, or the generation handle plus whether the caller owns (must run) it.
func (c *DiscoveryCache) Begin(key string) (*CandidateBatch, *generation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.batches[key]; b != nil && len(b.Items) > 0 {
		return b, nil, false
	}
	if g, ok := c.inflight[key]; ok {
		return nil, g, false
	}
	g := &generation{key: key, done: make(chan struct{})}
	c.inflight[key] = g
	return nil, g, true
}

// Complete publishes the outcome of a generation and unconditionally removes
// the in-flight entry, so a failed run never wedges future requests for the
// same key.
func (c *DiscoveryCache) Complete(g *generation, batch *CandidateBatch, err error) {
	c.mu.Lock()
	if err == nil && batch != nil {
		c.batches[g.key] = batch
	}
	delete(c.inflight, g.key)
	c.mu.Unlock()

	g.batch = batch
	g.err = err
	close(g.done)
}

// Invalidate drops the cached batch for key so the next request regenerates.
func (c *DiscoveryCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.batches, key)
	c.mu.Unlock()
}

// Sweep evicts batches older than maxAge and reports how many were dropped.
func (c *DiscoveryCache) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, b := range c.batches {
		if b.CreatedAt.Before(cutoff) {
			delete(c.batches, k)
			n++
		}
	}
	return n
}
