package schedule

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/kineticman/LivebarnScrape/internal/config"
	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
)

// maxICSOccurrences caps recurrence expansion per event so a pathological
// RRULE cannot blow up a refresh.
const maxICSOccurrences = 500

// ICSProvider turns ICS subscription feeds into schedule events. Some small
// rinks publish their booking calendar only as an iCal feed; each configured
// feed maps onto one catalog surface. Recurring bookings (weekly stick time,
// league slots) are expanded inside the fetch window.
type ICSProvider struct {
	sources []config.ICSSourceConfig
	client  *http.Client
	loc     *time.Location
}

// NewICSProvider creates the provider over the configured subscriptions.
// loc is the display timezone events are normalized into; nil means
// time.Local. With no sources the provider reports itself disabled.
func NewICSProvider(sources []config.ICSSourceConfig, loc *time.Location) *ICSProvider {
	if loc == nil {
		loc = time.Local
	}
	return &ICSProvider{
		sources: sources,
		client:  &http.Client{Timeout: fetchTimeout},
		loc:     loc,
	}
}

func (p *ICSProvider) Name() string { return "ICS feeds" }

func (p *ICSProvider) Enabled() bool { return len(p.sources) > 0 }

func (p *ICSProvider) SurfaceIDs() []int {
	ids := make([]int, 0, len(p.sources))
	for _, src := range p.sources {
		ids = append(ids, src.SurfaceID)
	}
	return ids
}

// FetchSchedule fetches every configured feed. A feed that fails to
// download or parse contributes nothing; a VEVENT that fails to parse is
// skipped on its own.
func (p *ICSProvider) FetchSchedule(ctx context.Context, start, end time.Time) []model.Event {
	all := make([]model.Event, 0)

	for _, src := range p.sources {
		body, err := p.fetch(ctx, src.URL)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID)
			continue
		}

		events, err := p.parseFeed(src, body, start, end)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", src.ID)
			continue
		}
		appLog.Info("ics feed events in window", "id", src.ID, "count", len(events))
		all = append(all, events...)
	}

	return all
}

func (p *ICSProvider) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// parseFeed parses one ICS body and expands its VEVENTs into concrete
// events starting inside [start, end).
func (p *ICSProvider) parseFeed(src config.ICSSourceConfig, body []byte, start, end time.Time) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		expanded, perr := p.expandVEvent(src, ve, start, end)
		if perr != nil {
			// Skip just this VEVENT; keep parsing the rest.
			appLog.Error("ics vevent skipped", perr, "id", src.ID)
			continue
		}
		events = append(events, expanded...)
	}

	return events, nil
}

func (p *ICSProvider) expandVEvent(src config.ICSSourceConfig, ve *ical.VEvent, start, end time.Time) ([]model.Event, error) {
	evStart, err := ve.GetStartAt()
	if err != nil {
		return nil, err
	}
	evEnd, err := ve.GetEndAt()
	if err != nil {
		// DTEND is optional; a bare DTSTART is a zero-duration marker,
		// useless as a booking.
		return nil, err
	}
	if !evStart.Before(evEnd) {
		return nil, errors.New("vevent start not before end")
	}

	summary := ""
	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		summary = prop.Value
	}
	description := ""
	if prop := ve.GetProperty(ical.ComponentPropertyDescription); prop != nil {
		description = prop.Value
	}

	rawRRule := ""
	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		rawRRule = prop.Value
	}

	make1 := func(s, e time.Time) model.Event {
		return model.Event{
			SurfaceID:   src.SurfaceID,
			Start:       s.In(p.loc),
			End:         e.In(p.loc),
			Title:       strings.TrimSpace(summary),
			Description: description,
		}
	}

	// Single occurrence.
	if rawRRule == "" {
		s := evStart.In(p.loc)
		if s.Before(start) || !s.Before(end) {
			return nil, nil
		}
		return []model.Event{make1(evStart, evEnd)}, nil
	}

	// Recurring: expand with rrule-go inside the window.
	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(evStart)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(ve, evStart.Location()) {
		set.ExDate(ex)
	}

	duration := evEnd.Sub(evStart)
	occTimes := set.Between(start.In(evStart.Location()), end.In(evStart.Location()), true)
	if len(occTimes) > maxICSOccurrences {
		appLog.Error("ics recurrence truncated", errors.New("occurrence cap reached"),
			"id", src.ID, "cap", maxICSOccurrences)
		occTimes = occTimes[:maxICSOccurrences]
	}

	out := make([]model.Event, 0, len(occTimes))
	for _, occ := range occTimes {
		s := occ.In(p.loc)
		if s.Before(start) || !s.Before(end) {
			continue
		}
		out = append(out, make1(occ, occ.Add(duration)))
	}
	return out, nil
}

// exDates collects EXDATE values, tolerating comma-joined lists and the
// basic DATE-TIME forms.
func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
