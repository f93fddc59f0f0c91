package schedule

import (
	"sort"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

// GroupBySurface partitions events by surface and sorts each partition by
// start time. The sort is stable so events with equal starts keep their
// original fetch order. Pure function: no I/O, input slice untouched.
func GroupBySurface(events []model.Event) map[int][]model.Event {
	grouped := make(map[int][]model.Event)

	for _, ev := range events {
		grouped[ev.SurfaceID] = append(grouped[ev.SurfaceID], ev)
	}

	for _, list := range grouped {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Start.Before(list[j].Start)
		})
	}

	return grouped
}
