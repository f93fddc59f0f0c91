package model

import "time"

// Event is a single scheduled booking on one ice surface, normalized from a
// provider's native feed. Start/End are facility-local wall-clock times; every
// provider is responsible for parsing its own timestamps in that facility's
// fixed timezone before handing events to the rest of the pipeline.
type Event struct {
	// SurfaceID identifies a physical surface in the unified catalog,
	// not the facility-local room/product identifier.
	SurfaceID int

	Start time.Time
	End   time.Time

	// Title may be empty; renderers substitute a default.
	Title string

	Description string
	EventType   string // "game", "practice", "public_skate", ...

	// Raw retains the original provider fields for diagnostics only.
	// Nothing downstream of normalization reads it.
	Raw map[string]string
}

// Program is one materialized guide block: either a real booking or a
// synthesized Open Ice filler. Programs are derived on demand for a window
// and never persisted.
type Program struct {
	Start time.Time
	End   time.Time
	Title string
}
