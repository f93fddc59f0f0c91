package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
)

// DefaultInventoryURL is the LiveBarn static-data endpoint listing every
// venue and its surfaces.
const DefaultInventoryURL = "https://watchapi.livebarn.com/api/v2.0.0/staticdata/venues"

// inventoryVenue mirrors one venue object of the inventory payload. The
// API uses different state/postal keys across regions, so several aliases
// are decoded and coalesced.
type inventoryVenue struct {
	ID         int     `json:"id"`
	UUID       string  `json:"uuid"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	StateCode  string  `json:"stateCode"`
	Province   string  `json:"province"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postalCode"`
	Zip        string  `json:"zip"`
	Country    string  `json:"country"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TimeZone   string  `json:"timeZone"`

	Surfaces []inventorySurface `json:"surfaces"`
}

func (v *inventoryVenue) state() string {
	for _, s := range []string{v.State, v.StateCode, v.Province, v.Region} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (v *inventoryVenue) postal() string {
	if v.PostalCode != "" {
		return v.PostalCode
	}
	return v.Zip
}

type inventorySurface struct {
	ID   int    `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// SyncStats summarizes one inventory sync.
type SyncStats struct {
	Venues   int
	Surfaces int
	Skipped  int
}

// SyncInventory downloads the venue inventory and upserts it into the
// catalog. Existing favorites and captured stream URLs are untouched.
// Venues with an invalid or missing UUID are skipped rather than poisoning
// the unique index.
func (s *Store) SyncInventory(ctx context.Context, apiURL string) (SyncStats, error) {
	var stats SyncStats
	if apiURL == "" {
		apiURL = DefaultInventoryURL
	}

	appLog.Info("syncing venue inventory", "url", apiURL)

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return stats, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, fmt.Errorf("fetch inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, errors.New("fetch inventory: " + resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stats, err
	}

	var venues []inventoryVenue
	if err := json.Unmarshal(body, &venues); err != nil {
		return stats, fmt.Errorf("decode inventory: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, v := range venues {
		if _, err := uuid.Parse(v.UUID); err != nil {
			stats.Skipped++
			appLog.Error("skipping venue with bad uuid", err, "venue", v.Name)
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO venues
				(id, uuid, name, address, city, state, postal_code,
				 country, latitude, longitude, time_zone, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.UUID, v.Name, v.Address, v.City, v.state(), v.postal(),
			v.Country, v.Latitude, v.Longitude, v.TimeZone, now); err != nil {
			return stats, fmt.Errorf("upsert venue %d: %w", v.ID, err)
		}
		stats.Venues++

		for _, sf := range v.Surfaces {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO surfaces (id, uuid, name, venue_id, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				sf.ID, sf.UUID, sf.Name, v.ID, now); err != nil {
				return stats, fmt.Errorf("upsert surface %d: %w", sf.ID, err)
			}
			stats.Surfaces++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}

	appLog.Info("inventory sync complete", "venues", stats.Venues, "surfaces", stats.Surfaces, "skipped", stats.Skipped)
	return stats, nil
}
