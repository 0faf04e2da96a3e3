package calibration

import (
	"fmt"
	"sync"

	"credcal/domain/coverage"
	"credcal/internal/posterior"

	"golang.org/x/sync/singleflight"
)

// intervalKey identifies one posterior and interval rule
type intervalKey struct {
	n, k   int
	mass   float64
	method coverage.Method
	prior  posterior.Prior
}

func (k intervalKey) String() string {
	return fmt.Sprintf("%d/%d/%g/%s/%g/%g", k.n, k.k, k.mass, k.method, k.prior.Alpha, k.prior.Beta)
}

// intervalCache memoizes credible intervals. Concurrent misses on one key
// run a single search; failures are not stored.
type intervalCache struct {
	mu      sync.RWMutex
	entries map[intervalKey]coverage.Interval
	group   singleflight.Group
}

func newIntervalCache() *intervalCache {
	return &intervalCache{entries: make(map[intervalKey]coverage.Interval)}
}

func (c *intervalCache) get(key intervalKey, compute func() (coverage.Interval, error)) (coverage.Interval, error) {
	c.mu.RLock()
	iv, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return iv, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		iv, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = iv
		c.mu.Unlock()
		return iv, nil
	})
	if err != nil {
		return coverage.Interval{}, err
	}
	return v.(coverage.Interval), nil
}

func (c *intervalCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *intervalCache) reset() {
	c.mu.Lock()
	c.entries = make(map[intervalKey]coverage.Interval)
	c.mu.Unlock()
}
