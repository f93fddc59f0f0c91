package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
)

const (
	// lgriaSurfaceID is the single sheet at Lou & Gib Reese Ice Arena.
	lgriaSurfaceID = 2445

	// lgriaTimeLayout matches the page's offset-less ISO timestamps,
	// e.g. "2025-11-26T12:00:00". They are Eastern wall-clock times.
	lgriaTimeLayout = "2006-01-02T15:04:05"

	// lgriaScheduleVar is the JavaScript variable the booking list is
	// assigned to in the page source.
	lgriaScheduleVar = "_onlineScheduleList"
)

// lgriaEvent mirrors one element of the embedded schedule array.
type lgriaEvent struct {
	EventStartTime string `json:"EventStartTime"`
	EventEndTime   string `json:"EventEndTime"`
	Description    string `json:"Description"`
	AccountName    string `json:"AccountName"`
	ScheduleNotes  string `json:"ScheduleNotes"`
	EventTypeName  string `json:"EventTypeName"`
}

// LGRIAProvider scrapes the Lou & Gib Reese Ice Arena booking page. The
// schedule is not served by an API; it is a JavaScript array literal
// embedded in the page HTML.
type LGRIAProvider struct {
	scheduleURL string
	client      *http.Client
	enabled     bool
	loc         *time.Location
}

// NewLGRIAProvider creates the LGRIA provider. scheduleURL overrides the
// production page for tests; empty means production.
func NewLGRIAProvider(scheduleURL string, enabled bool) *LGRIAProvider {
	if scheduleURL == "" {
		scheduleURL = "https://lgria.finnlyconnect.com/schedule/201"
	}
	return &LGRIAProvider{
		scheduleURL: scheduleURL,
		client:      &http.Client{Timeout: fetchTimeout},
		enabled:     enabled,
		loc:         chillerLocation(), // same Eastern wall clock as the Chiller feed
	}
}

func (p *LGRIAProvider) Name() string { return "Lou & Gib Reese Ice Arena" }

func (p *LGRIAProvider) Enabled() bool { return p.enabled }

func (p *LGRIAProvider) SurfaceIDs() []int { return []int{lgriaSurfaceID} }

// FetchSchedule downloads the booking page, extracts the embedded schedule
// array, and normalizes it. The page serves the whole published schedule,
// so the window filter here is strict: only events starting inside
// [start, end) survive.
func (p *LGRIAProvider) FetchSchedule(ctx context.Context, start, end time.Time) []model.Event {
	appLog.Info("fetching lgria schedule", "url", p.scheduleURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.scheduleURL, nil)
	if err != nil {
		appLog.Error("lgria request build failed", err)
		return nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		appLog.Error("lgria fetch failed", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Error("lgria fetch failed", errors.New(resp.Status))
		return nil
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		appLog.Error("lgria read failed", err)
		return nil
	}

	rawList, err := extractJSListVariable(string(html), lgriaScheduleVar)
	if err != nil {
		appLog.Error("lgria schedule variable not found", err)
		return nil
	}

	var rawEvents []lgriaEvent
	if err := json.Unmarshal([]byte(rawList), &rawEvents); err != nil {
		appLog.Error("lgria schedule decode failed", err)
		return nil
	}

	events := make([]model.Event, 0, len(rawEvents))
	for _, raw := range rawEvents {
		startTime, err := time.ParseInLocation(lgriaTimeLayout, raw.EventStartTime, p.loc)
		if err != nil {
			continue
		}
		endTime, err := time.ParseInLocation(lgriaTimeLayout, raw.EventEndTime, p.loc)
		if err != nil {
			continue
		}

		if startTime.Before(start) || !startTime.Before(end) {
			continue
		}

		// Description is the booked event's name; AccountName is the
		// booking club and a usable fallback.
		title := raw.Description
		if title == "" {
			title = raw.AccountName
		}

		events = append(events, model.Event{
			SurfaceID:   lgriaSurfaceID,
			Start:       startTime,
			End:         endTime,
			Title:       strings.TrimSpace(title),
			Description: raw.ScheduleNotes,
			EventType:   raw.EventTypeName,
			Raw: map[string]string{
				"EventStartTime": raw.EventStartTime,
				"EventEndTime":   raw.EventEndTime,
				"Description":    raw.Description,
				"AccountName":    raw.AccountName,
			},
		})
	}

	appLog.Info("lgria events in window", "count", len(events))
	return events
}

// extractJSListVariable finds an assignment of the form
//
//	varName = [ {...}, {...} ];
//
// and returns the bracketed array literal. Depth counting (not a regex)
// handles nested arrays and objects inside the list.
func extractJSListVariable(html, varName string) (string, error) {
	marker := varName + " ="
	idx := strings.Index(html, marker)
	if idx == -1 {
		return "", fmt.Errorf("variable %q not found", varName)
	}

	start := strings.IndexByte(html[idx:], '[')
	if start == -1 {
		return "", fmt.Errorf("no '[' after %q assignment", varName)
	}
	start += idx

	depth := 0
	for i := start; i < len(html); i++ {
		switch html[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return html[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced brackets for %q", varName)
}
