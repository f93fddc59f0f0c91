// Package schedule aggregates facility booking feeds into a unified,
// surface-keyed programme timeline. Each facility is a Provider that
// normalizes its native feed into model.Event; the registry fans out over
// every enabled provider, the grouper partitions results by surface, and
// FillOpenIce turns one surface's sparse bookings into a gap-free guide.
package schedule

import (
	"context"
	"time"

	"github.com/kineticman/LivebarnScrape/internal/model"
)

// Provider is implemented once per facility.
//
// FetchSchedule returns the facility's events for the half-open window
// [start, end). It never returns an error: transport failures and malformed
// top-level payloads are logged inside the provider and yield nil, and a
// single event that fails field parsing is silently dropped. One facility's
// outage must never prevent guide generation for the others.
type Provider interface {
	// Name is a stable human-readable identifier used in logs and stats.
	Name() string

	// Enabled allows switching a provider off without removing it from
	// the registry.
	Enabled() bool

	// SurfaceIDs lists the unified catalog surfaces this provider covers.
	SurfaceIDs() []int

	FetchSchedule(ctx context.Context, start, end time.Time) []model.Event
}

// fetchTimeout bounds every provider's remote request.
const fetchTimeout = 15 * time.Second
