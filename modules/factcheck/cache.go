package factcheck

import "sync"

// verdictCache stores rendered verdicts keyed by the exact claim string.
// Entries live for the process lifetime; only successful adjudications are
// stored, so transient failures stay retryable.
type verdictCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func newVerdictCache() *verdictCache {
	return &verdictCache{entries: make(map[string]string)}
}

func (c *verdictCache) Get(claim string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	verdict, hit := c.entries[claim]
	return verdict, hit
}

func (c *verdictCache) Put(claim, verdict string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[claim] = verdict
}

func (c *verdictCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
