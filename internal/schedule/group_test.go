package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

func TestGroupBySurface(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{SurfaceID: 865, Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour), Title: "b-late"},
		{SurfaceID: 864, Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour), Title: "a-late"},
		{SurfaceID: 864, Start: base.Add(1 * time.Hour), End: base.Add(2 * time.Hour), Title: "a-early"},
		{SurfaceID: 865, Start: base.Add(1 * time.Hour), End: base.Add(2 * time.Hour), Title: "b-early"},
	}

	grouped := GroupBySurface(events)

	if len(grouped) != 2 {
		t.Fatalf("got %d surfaces, want 2", len(grouped))
	}
	if got := grouped[864]; len(got) != 2 || got[0].Title != "a-early" || got[1].Title != "a-late" {
		t.Errorf("surface 864 order wrong: %+v", got)
	}
	if got := grouped[865]; len(got) != 2 || got[0].Title != "b-early" || got[1].Title != "b-late" {
		t.Errorf("surface 865 order wrong: %+v", got)
	}
}

func TestGroupBySurfaceOrderInsensitive(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := make([]model.Event, 0, 30)
	for i := 0; i < 30; i++ {
		events = append(events, model.Event{
			SurfaceID: 864 + i%3,
			Start:     base.Add(time.Duration(i) * 17 * time.Minute),
			End:       base.Add(time.Duration(i)*17*time.Minute + time.Hour),
		})
	}

	want := GroupBySurface(events)

	shuffled := make([]model.Event, len(events))
	copy(shuffled, events)
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	got := GroupBySurface(shuffled)

	if len(got) != len(want) {
		t.Fatalf("surface count differs: %d vs %d", len(got), len(want))
	}
	for id, wantList := range want {
		gotList := got[id]
		if len(gotList) != len(wantList) {
			t.Fatalf("surface %d: %d events, want %d", id, len(gotList), len(wantList))
		}
		for i := range wantList {
			if !gotList[i].Start.Equal(wantList[i].Start) {
				t.Errorf("surface %d event %d start %v, want %v", id, i, gotList[i].Start, wantList[i].Start)
			}
		}
	}
}

func TestGroupBySurfaceStableTies(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []model.Event{
		{SurfaceID: 864, Start: base, End: base.Add(time.Hour), Title: "first"},
		{SurfaceID: 864, Start: base, End: base.Add(30 * time.Minute), Title: "second"},
	}

	got := GroupBySurface(events)[864]
	if got[0].Title != "first" || got[1].Title != "second" {
		t.Errorf("tie order not preserved: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestGroupBySurfaceEmpty(t *testing.T) {
	if got := GroupBySurface(nil); len(got) != 0 {
		t.Errorf("got %d groups for nil input", len(got))
	}
}
