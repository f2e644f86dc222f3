package resolver

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Cache keeps one snapshot per screen so warm resolutions never hit the
// store. Entries are dropped by Invalidate; there is no time-based expiry.
type Cache struct {
	src Source

	mu      sync.RWMutex
	screens map[int]*Snapshot
	gen     map[int]uint64
}

func NewCache(src Source) *Cache {
	return &Cache{
		src:     src,
		screens: map[int]*Snapshot{},
		gen:     map[int]uint64{},
	}
}

func (c *Cache) ScreenSnapshot(screenID int) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.screens[screenID]
	gen := c.gen[screenID]
	c.mu.RUnlock()
	if ok {
		log.Debug().Int("screen_id", screenID).Msg("snapshot cache hit")
		return snap, nil
	}

	snap, err := c.src.ScreenSnapshot(screenID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// an invalidation that raced the load wins; hand out the fresh-enough
	// snapshot once but do not keep it
	if c.gen[screenID] != gen {
		return snap, nil
	}
	c.screens[screenID] = snap
	return snap, nil
}

// Invalidate drops the cached snapshot of a screen. Group writes reach
// every member as a screen event, so screens are the only key.
func (c *Cache) Invalidate(screenID int) {
	c.mu.Lock()
	c.gen[screenID]++
	delete(c.screens, screenID)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.screens)
}
