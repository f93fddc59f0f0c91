package schedule

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
)

// chillerTimeLayout matches the scheduler feed's sub-second timestamps,
// e.g. "2025-12-02 09:30:00.0".
const chillerTimeLayout = "2006-01-02 15:04:05.0"

// chillerSurfaces maps Chiller product IDs to unified catalog surface IDs.
// Product IDs absent from this table (meeting rooms, gyms, dry floors) are
// not ice sheets and are dropped.
var chillerSurfaces = map[string]int{
	"1":  864, // Dublin 1
	"2":  865, // Dublin 2
	"5":  867, // Easton 1
	"6":  866, // Easton 2
	"8":  868, // North 1
	"9":  869, // North 2
	"13": 872, // Ice Haus
	"14": 871, // Ice Works
	"16": 873, // Springfield
	"24": 870, // North 3
}

// chillerEvent mirrors one <event> element of the scheduler feed. Field
// names are the feed's child tags.
type chillerEvent struct {
	ID        string `xml:"id,attr"`
	ProductID string `xml:"productid"`
	StartDate string `xml:"start_date"`
	EndDate   string `xml:"end_date"`
	Text      string `xml:"text"`
}

// chillerFeed leaves the root element unnamed so unmarshalling only
// depends on the <event> children.
type chillerFeed struct {
	Events []chillerEvent `xml:"event"`
}

// ChillerProvider polls the OhioHealth Chiller scheduler XML API. The feed
// covers every Chiller facility; events are keyed by product ID and
// filtered to real ice sheets.
type ChillerProvider struct {
	baseURL string
	client  *http.Client
	enabled bool

	// loc is the facility's fixed timezone. The feed's timestamps carry no
	// offset; the "timeshift" query parameter pins the server to Eastern.
	loc *time.Location
}

// NewChillerProvider creates the Chiller provider. baseURL overrides the
// production endpoint for tests; empty means production.
func NewChillerProvider(baseURL string, enabled bool) *ChillerProvider {
	if baseURL == "" {
		baseURL = "https://thechiller.com/admin/scheduler/init-scheduler-live.cfm"
	}
	return &ChillerProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: fetchTimeout},
		enabled: enabled,
		loc:     chillerLocation(),
	}
}

func chillerLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Zone database missing; fall back to the fixed standard offset
		// the feed's timeshift parameter assumes.
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

func (p *ChillerProvider) Name() string { return "OhioHealth Chiller" }

func (p *ChillerProvider) Enabled() bool { return p.enabled }

func (p *ChillerProvider) SurfaceIDs() []int {
	ids := make([]int, 0, len(chillerSurfaces))
	for _, id := range chillerSurfaces {
		ids = append(ids, id)
	}
	return ids
}

// FetchSchedule queries the feed for [start, end) and normalizes the ice
// sheet events. The feed is queried by date, so events are returned for
// every day the window touches; timestamps outside the window are kept
// (they still land inside the guide's rendering window in practice).
func (p *ChillerProvider) FetchSchedule(ctx context.Context, start, end time.Time) []model.Event {
	q := url.Values{}
	q.Set("timeshift", "300") // Eastern (UTC-5)
	q.Set("uid", "1")
	q.Set("from", start.Format("2006-01-02"))
	q.Set("to", end.Format("2006-01-02"))

	appLog.Info("fetching chiller schedule", "from", q.Get("from"), "to", q.Get("to"))

	body, err := p.get(ctx, p.baseURL+"?"+q.Encode())
	if err != nil {
		appLog.Error("chiller fetch failed", err)
		return nil
	}

	var feed chillerFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		appLog.Error("chiller feed parse failed", err)
		return nil
	}

	events := make([]model.Event, 0, len(feed.Events))
	for _, raw := range feed.Events {
		surfaceID, ok := chillerSurfaces[raw.ProductID]
		if !ok {
			// Room, gym, or unmapped sheet.
			continue
		}

		startTime, err := time.ParseInLocation(chillerTimeLayout, raw.StartDate, p.loc)
		if err != nil {
			continue
		}
		endTime, err := time.ParseInLocation(chillerTimeLayout, raw.EndDate, p.loc)
		if err != nil {
			continue
		}

		events = append(events, model.Event{
			SurfaceID: surfaceID,
			Start:     startTime,
			End:       endTime,
			Title:     raw.Text,
			Raw: map[string]string{
				"id":         raw.ID,
				"productid":  raw.ProductID,
				"start_date": raw.StartDate,
				"end_date":   raw.EndDate,
				"text":       raw.Text,
			},
		})
	}

	appLog.Info("chiller ice sheet events", "count", len(events))
	return events
}

func (p *ChillerProvider) get(ctx context.Context, rawURL string) ([]byte, error) {
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
