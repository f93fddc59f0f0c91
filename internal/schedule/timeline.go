package schedule

import (
	"strings"
	"time"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

const (
	// OpenIceTitle marks a synthesized filler block. The guide renderer
	// keys its category/live tagging off this exact title.
	OpenIceTitle = "Open Ice"

	// DefaultEventTitle replaces an empty or whitespace-only booking title.
	DefaultEventTitle = "Ice Time"

	// fillerStep is the maximum duration of one filler block. Gaps are
	// tiled in fixed steps so a long idle stretch never becomes a single
	// multi-day programme the guide renderer chokes on.
	fillerStep = time.Hour
)

// FillOpenIce converts one surface's sorted bookings into a fully tiled
// programme list for the half-open window [start, end). Gaps before,
// between, and after bookings are tiled with one-hour-capped Open Ice
// blocks; bookings keep their own bounds and get DefaultEventTitle when
// their title trims to empty.
//
// The function is pure and total: it performs no I/O and has no error path.
// Malformed events must be filtered upstream. An inverted or empty window
// yields an empty list. The output tiles the window with no gaps or
// overlaps provided the input events are sorted and non-overlapping; an
// event contained inside its predecessor moves the cursor backward and is
// emitted as-is (facility schedules are assumed conflict-free).
func FillOpenIce(events []model.Event, start, end time.Time) []model.Program {
	if !start.Before(end) {
		return nil
	}

	programs := make([]model.Program, 0, len(events))
	cursor := start

	for _, ev := range events {
		// Tile the gap before this booking.
		for cursor.Before(ev.Start) {
			gapEnd := cursor.Add(fillerStep)
			if gapEnd.After(ev.Start) {
				gapEnd = ev.Start
			}
			programs = append(programs, model.Program{Start: cursor, End: gapEnd, Title: OpenIceTitle})
			cursor = gapEnd
		}

		title := strings.TrimSpace(ev.Title)
		if title == "" {
			title = DefaultEventTitle
		}
		programs = append(programs, model.Program{Start: ev.Start, End: ev.End, Title: title})

		cursor = ev.End
	}

	// Tile the remainder of the window.
	for cursor.Before(end) {
		gapEnd := cursor.Add(fillerStep)
		if gapEnd.After(end) {
			gapEnd = end
		}
		programs = append(programs, model.Program{Start: cursor, End: gapEnd, Title: OpenIceTitle})
		cursor = gapEnd
	}

	return programs
}
