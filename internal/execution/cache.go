package execution

import (
	"sort"
	"sync"

	"TradeGate/internal/domain/models"
)

// resultCache is a bounded store of execution results keyed by request
// id. When full it evicts the entry with the oldest result timestamp.
type resultCache struct {
	mu      sync.RWMutex
	data    map[string]models.ExecutionResult
	maxSize int
}

func newResultCache(maxSize int) *resultCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &resultCache{
		data:    make(map[string]models.ExecutionResult),
		maxSize: maxSize,
	}
}

// Put stores a result, evicting the oldest entry when at capacity.
// Storing the same request id twice overwrites in place.
func (c *resultCache) Put(res models.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[res.RequestID]; !exists && len(c.data) >= c.maxSize {
		c.evictOldest()
	}
	c.data[res.RequestID] = res
}

func (c *resultCache) Get(requestID string) (models.ExecutionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.data[requestID]
	return res, ok
}

func (c *resultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Recent returns up to limit results sorted newest first, optionally
// filtered by status.
func (c *resultCache) Recent(status models.ExecutionStatus, limit int) []models.ExecutionResult {
	c.mu.RLock()
	out := make([]models.ExecutionResult, 0, len(c.data))
	for _, res := range c.data {
		if status != "" && res.Status != status {
			continue
		}
		out = append(out, res)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *resultCache) evictOldest() {
	var oldestKey string
	first := true
	var oldest models.ExecutionResult
	for key, res := range c.data {
		if first || res.Timestamp.Before(oldest.Timestamp) {
			oldest = res
			oldestKey = key
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.data, oldestKey)
	}
}
