package schedule

import (
	"testing"
	"time"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return ts
}

// checkTiling verifies that programs exactly tile [start, end) with no gaps
// and no overlaps.
func checkTiling(t *testing.T, programs []model.Program, start, end time.Time) {
	t.Helper()

	if len(programs) == 0 {
		t.Fatalf("no programs for window %v .. %v", start, end)
	}
	if !programs[0].Start.Equal(start) {
		t.Errorf("first program starts %v, want %v", programs[0].Start, start)
	}
	if !programs[len(programs)-1].End.Equal(end) {
		t.Errorf("last program ends %v, want %v", programs[len(programs)-1].End, end)
	}
	for i := 1; i < len(programs); i++ {
		if !programs[i].Start.Equal(programs[i-1].End) {
			t.Errorf("program %d starts %v, previous ended %v", i, programs[i].Start, programs[i-1].End)
		}
	}
	var total time.Duration
	for _, p := range programs {
		total += p.End.Sub(p.Start)
	}
	if want := end.Sub(start); total != want {
		t.Errorf("total duration %v, want %v", total, want)
	}
}

func TestFillOpenIceEmptyInput(t *testing.T) {
	start := mustTime(t, "2025-01-01T00:00")
	end := mustTime(t, "2025-01-01T03:30")

	programs := FillOpenIce(nil, start, end)

	checkTiling(t, programs, start, end)
	if len(programs) != 4 {
		t.Fatalf("got %d programs, want 4", len(programs))
	}
	for i, p := range programs {
		if p.Title != OpenIceTitle {
			t.Errorf("program %d title %q, want %q", i, p.Title, OpenIceTitle)
		}
	}
	// Last block truncated to fit exactly.
	last := programs[len(programs)-1]
	if got := last.End.Sub(last.Start); got != 30*time.Minute {
		t.Errorf("last block duration %v, want 30m", got)
	}
}

func TestFillOpenIceSingleEvent(t *testing.T) {
	// The worked scenario: a two-day window with one morning booking.
	start := mustTime(t, "2025-01-01T00:00")
	end := mustTime(t, "2025-01-03T00:00")
	events := []model.Event{{
		SurfaceID: 864,
		Start:     mustTime(t, "2025-01-01T09:30"),
		End:       mustTime(t, "2025-01-01T11:00"),
		Title:     "Public Skate",
	}}

	programs := FillOpenIce(events, start, end)
	checkTiling(t, programs, start, end)

	// 00:00..09:00 in 9 one-hour fillers, then a 30-minute filler.
	if got := programs[9].End.Sub(programs[9].Start); got != 30*time.Minute {
		t.Errorf("truncated filler duration %v, want 30m", got)
	}
	if programs[9].Title != OpenIceTitle {
		t.Errorf("program 9 title %q, want filler", programs[9].Title)
	}

	ev := programs[10]
	if ev.Title != "Public Skate" {
		t.Fatalf("program 10 title %q, want booking", ev.Title)
	}
	if !ev.Start.Equal(events[0].Start) || !ev.End.Equal(events[0].End) {
		t.Errorf("booking bounds %v..%v, want %v..%v", ev.Start, ev.End, events[0].Start, events[0].End)
	}

	// Remainder: 11:00 through Jan 3 00:00 is 37 one-hour fillers.
	rest := programs[11:]
	if len(rest) != 37 {
		t.Errorf("got %d trailing fillers, want 37", len(rest))
	}
	for i, p := range rest {
		if p.Title != OpenIceTitle {
			t.Errorf("trailing program %d title %q", i, p.Title)
		}
	}
}

func TestFillOpenIceTitleFallback(t *testing.T) {
	start := mustTime(t, "2025-01-01T00:00")
	end := mustTime(t, "2025-01-01T02:00")

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"empty", "", DefaultEventTitle},
		{"whitespace", "   \t", DefaultEventTitle},
		{"kept", "Stick & Puck", "Stick & Puck"},
		{"trimmed", "  Freestyle  ", "Freestyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []model.Event{{
				Start: mustTime(t, "2025-01-01T00:30"),
				End:   mustTime(t, "2025-01-01T01:30"),
				Title: tt.title,
			}}
			programs := FillOpenIce(events, start, end)
			checkTiling(t, programs, start, end)
			if got := programs[1].Title; got != tt.want {
				t.Errorf("title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFillOpenIceBackToBackEvents(t *testing.T) {
	start := mustTime(t, "2025-01-01T06:00")
	end := mustTime(t, "2025-01-01T12:00")
	events := []model.Event{
		{Start: mustTime(t, "2025-01-01T06:00"), End: mustTime(t, "2025-01-01T07:15"), Title: "Practice"},
		{Start: mustTime(t, "2025-01-01T07:15"), End: mustTime(t, "2025-01-01T08:45"), Title: "Game"},
	}

	programs := FillOpenIce(events, start, end)
	checkTiling(t, programs, start, end)

	if programs[0].Title != "Practice" || programs[1].Title != "Game" {
		t.Errorf("leading programs = %q, %q", programs[0].Title, programs[1].Title)
	}
	// No filler between back-to-back bookings.
	if !programs[1].Start.Equal(programs[0].End) {
		t.Errorf("gap between back-to-back bookings")
	}
}

func TestFillOpenIceWindowEdges(t *testing.T) {
	at := mustTime(t, "2025-01-01T00:00")

	if got := FillOpenIce(nil, at, at); len(got) != 0 {
		t.Errorf("empty window produced %d programs", len(got))
	}
	if got := FillOpenIce(nil, at.Add(time.Hour), at); got != nil {
		t.Errorf("inverted window produced %d programs", len(got))
	}
}

func TestFillOpenIceContainedEventMovesCursorBack(t *testing.T) {
	// An event fully contained in its predecessor is emitted as-is and the
	// cursor follows its end. This pins the accepted forward-merge behavior
	// for overlapping input; tiling guarantees only hold for
	// non-overlapping events.
	start := mustTime(t, "2025-01-01T00:00")
	end := mustTime(t, "2025-01-01T04:00")
	events := []model.Event{
		{Start: mustTime(t, "2025-01-01T00:00"), End: mustTime(t, "2025-01-01T03:00"), Title: "Tournament"},
		{Start: mustTime(t, "2025-01-01T01:00"), End: mustTime(t, "2025-01-01T02:00"), Title: "Warm-up"},
	}

	programs := FillOpenIce(events, start, end)

	want := []struct {
		title string
		start string
		end   string
	}{
		{"Tournament", "2025-01-01T00:00", "2025-01-01T03:00"},
		{"Warm-up", "2025-01-01T01:00", "2025-01-01T02:00"},
		{OpenIceTitle, "2025-01-01T02:00", "2025-01-01T03:00"},
		{OpenIceTitle, "2025-01-01T03:00", "2025-01-01T04:00"},
	}
	if len(programs) != len(want) {
		t.Fatalf("got %d programs, want %d", len(programs), len(want))
	}
	for i, w := range want {
		p := programs[i]
		if p.Title != w.title || !p.Start.Equal(mustTime(t, w.start)) || !p.End.Equal(mustTime(t, w.end)) {
			t.Errorf("program %d = (%v, %v, %q), want (%s, %s, %q)",
				i, p.Start, p.End, p.Title, w.start, w.end, w.title)
		}
	}
}
