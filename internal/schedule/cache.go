package schedule

import (
	"context"
	"sync"
	"time"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
)

// Snapshot is one complete result of a schedule refresh. It is immutable
// once published; readers must not modify the grouped slices.
type Snapshot struct {
	EventsBySurface map[int][]model.Event
	RefreshedAt     time.Time
	WindowStart     time.Time
	WindowEnd       time.Time
	Counts          []SourceCount
}

// Cache holds the last-computed grouped schedule. The render path only ever
// reads the published snapshot, so user-facing latency never depends on a
// facility website being up. Refreshes build the new snapshot fully off to
// the side and publish it in a single swap; a separate refresh mutex
// serializes overlapping refresh calls.
type Cache struct {
	registry *Registry
	loc      *time.Location

	refreshMu sync.Mutex

	mu   sync.RWMutex
	snap *Snapshot
}

// NewCache creates an empty cache over the given registry. loc is the
// display timezone used to compute the fetch window; nil means time.Local.
func NewCache(registry *Registry, loc *time.Location) *Cache {
	if loc == nil {
		loc = time.Local
	}
	return &Cache{registry: registry, loc: loc}
}

// Window returns the current fetch window: today 00:00 through
// day-after-tomorrow 00:00 in the cache's timezone.
func (c *Cache) Window(now time.Time) (time.Time, time.Time) {
	now = now.In(c.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 0, 2)
}

// Refresh fetches every enabled provider, groups the results, and publishes
// the new snapshot. Safe to call concurrently with readers and with itself.
func (c *Cache) Refresh(ctx context.Context) *Snapshot {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start, end := c.Window(time.Now())
	appLog.Info("refreshing schedules",
		"window_start", start.Format(time.RFC3339),
		"window_end", end.Format(time.RFC3339),
	)

	events, counts := c.registry.Fetch(ctx, start, end)

	snap := &Snapshot{
		EventsBySurface: GroupBySurface(events),
		RefreshedAt:     time.Now(),
		WindowStart:     start,
		WindowEnd:       end,
		Counts:          counts,
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	appLog.Info("schedule refresh complete", "total_events", len(events), "surfaces", len(snap.EventsBySurface))
	return snap
}

// Snapshot returns the last published snapshot, or nil before the first
// refresh completes.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Events returns the grouped, sorted events for one surface from the last
// snapshot. Nil when nothing has been fetched for that surface.
func (c *Cache) Events(surfaceID int) []model.Event {
	snap := c.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.EventsBySurface[surfaceID]
}
