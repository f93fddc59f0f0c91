package schedule

import (
	"context"
	"time"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
)

// SourceCount records how many events one provider contributed to a refresh.
type SourceCount struct {
	Name   string
	Events int
}

// Registry holds the ordered, build-time-fixed set of schedule providers.
// Order only affects log output; results are concatenated before grouping.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Providers returns the registered providers in order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Fetch asks every enabled provider for events in [start, end) and
// concatenates the results. Per-provider counts are returned for logging
// and the /api/refresh response. A provider that fails contributes zero
// events; the error never reaches the caller.
func (r *Registry) Fetch(ctx context.Context, start, end time.Time) ([]model.Event, []SourceCount) {
	all := make([]model.Event, 0)
	counts := make([]SourceCount, 0, len(r.providers))

	for _, p := range r.providers {
		if !p.Enabled() {
			appLog.Info("skipping disabled provider", "provider", p.Name())
			continue
		}

		events := p.FetchSchedule(ctx, start, end)
		all = append(all, events...)
		counts = append(counts, SourceCount{Name: p.Name(), Events: len(events)})
		appLog.Info("provider fetch complete", "provider", p.Name(), "events", len(events))
	}

	return all, counts
}
