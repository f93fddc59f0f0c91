package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

func TestCacheWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}
	c := NewCache(NewRegistry(), loc)

	now := time.Date(2025, 6, 15, 13, 42, 7, 0, loc)
	start, end := c.Window(now)

	if !start.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, loc)) {
		t.Errorf("window start = %v", start)
	}
	if !end.Equal(time.Date(2025, 6, 17, 0, 0, 0, 0, loc)) {
		t.Errorf("window end = %v", end)
	}
}

func TestCacheRefreshPublishesSnapshot(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &fakeProvider{name: "p", enabled: true, events: []model.Event{
		{SurfaceID: 864, Start: base.Add(9 * time.Hour), End: base.Add(10 * time.Hour), Title: "Skate"},
	}}
	c := NewCache(NewRegistry(p), time.UTC)

	if c.Snapshot() != nil {
		t.Fatal("snapshot non-nil before first refresh")
	}
	if c.Events(864) != nil {
		t.Fatal("events non-nil before first refresh")
	}

	snap := c.Refresh(context.Background())

	if snap == nil || c.Snapshot() != snap {
		t.Fatal("refresh did not publish its snapshot")
	}
	if snap.RefreshedAt.IsZero() {
		t.Error("refreshed-at not set")
	}
	if got := c.Events(864); len(got) != 1 || got[0].Title != "Skate" {
		t.Errorf("events for 864 = %+v", got)
	}
	if len(snap.Counts) != 1 || snap.Counts[0].Events != 1 {
		t.Errorf("counts = %+v", snap.Counts)
	}
}

func TestCacheRefreshReplacesWholeSnapshot(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &fakeProvider{name: "p", enabled: true, events: []model.Event{
		{SurfaceID: 864, Start: base, End: base.Add(time.Hour)},
	}}
	c := NewCache(NewRegistry(p), time.UTC)
	c.Refresh(context.Background())

	// The provider's surface vanishes next cycle; no stale carry-over.
	p.events = []model.Event{{SurfaceID: 999, Start: base, End: base.Add(time.Hour)}}
	c.Refresh(context.Background())

	if got := c.Events(864); got != nil {
		t.Errorf("stale events survived refresh: %+v", got)
	}
	if got := c.Events(999); len(got) != 1 {
		t.Errorf("new events missing: %+v", got)
	}
}

func TestCacheConcurrentReadsDuringRefresh(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &fakeProvider{name: "p", enabled: true, events: []model.Event{
		{SurfaceID: 864, Start: base, End: base.Add(time.Hour)},
	}}
	c := NewCache(NewRegistry(p), time.UTC)
	c.Refresh(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := c.Snapshot()
				// Readers must never see a torn snapshot: events and
				// timestamp arrive together.
				if snap != nil && snap.RefreshedAt.IsZero() {
					t.Error("torn snapshot observed")
					return
				}
				_ = c.Events(864)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Refresh(context.Background())
			}
		}()
	}
	wg.Wait()
}
