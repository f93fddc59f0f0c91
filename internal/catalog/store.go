// Package catalog is the sqlite-backed inventory of venues, surfaces,
// favorites, and captured stream URLs. The schedule and guide layers only
// need surface metadata lookups and the captured-URL read/write pair; the
// Web UI uses the richer venue queries.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS venues (
	id INTEGER PRIMARY KEY,
	uuid TEXT UNIQUE,
	name TEXT,
	address TEXT,
	city TEXT,
	state TEXT,
	postal_code TEXT,
	country TEXT,
	latitude REAL,
	longitude REAL,
	time_zone TEXT,
	created_at TEXT,
	updated_at TEXT
);
CREATE TABLE IF NOT EXISTS surfaces (
	id INTEGER PRIMARY KEY,
	uuid TEXT UNIQUE,
	name TEXT,
	venue_id INTEGER,
	created_at TEXT,
	updated_at TEXT,
	FOREIGN KEY (venue_id) REFERENCES venues(id)
);
CREATE TABLE IF NOT EXISTS favorites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	surface_id INTEGER UNIQUE,
	added_at TEXT,
	notes TEXT,
	FOREIGN KEY (surface_id) REFERENCES surfaces(id)
);
CREATE TABLE IF NOT EXISTS surface_streams (
	id INTEGER PRIMARY KEY,
	surface_id INTEGER UNIQUE,
	venue_uuid TEXT,
	stream_name TEXT,
	venue_name TEXT,
	surface_name TEXT,
	playlist_url TEXT,
	full_captured_url TEXT,
	captured_at TEXT,
	FOREIGN KEY (surface_id) REFERENCES surfaces(id)
);
`

// Store wraps the sqlite catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path. WAL mode
// keeps readers unblocked while the capture job writes stream URLs.
func Open(path string) (*Store, error) {
	// _pragma query parameters are applied per-connection by the driver.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Venue is one facility from the inventory.
type Venue struct {
	ID            int    `json:"id"`
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	FavoriteCount int    `json:"favorite_count"`
}

// Surface is one sheet within a venue.
type Surface struct {
	ID          int    `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	VenueID     int    `json:"venue_id"`
	IsFavorite  bool   `json:"is_favorite"`
	HasCaptured bool   `json:"has_captured_url"`
}

// Favorite is a favorited surface joined with its venue and stream info.
type Favorite struct {
	VenueID     int    `json:"venue_id"`
	VenueName   string `json:"venue_name"`
	City        string `json:"city"`
	State       string `json:"state"`
	SurfaceID   int    `json:"surface_id"`
	SurfaceName string `json:"surface_name"`
	StreamName  string `json:"stream_name"`
	PlaylistURL string `json:"playlist_url,omitempty"`
}

// StreamInfo is the captured playlist URL and naming for one surface.
type StreamInfo struct {
	PlaylistURL     string
	FullCapturedURL string
	VenueName       string
	SurfaceName     string
	CapturedAt      time.Time
}

// Venues returns venues matching the optional search/state filters, with
// per-venue favorite counts, ordered by name.
func (s *Store) Venues(ctx context.Context, search, state string, limit, offset int) ([]Venue, error) {
	query := `
		SELECT v.id, v.uuid, v.name,
			COALESCE(v.city, ''), COALESCE(v.state, ''), COALESCE(v.country, ''),
			COUNT(f.id)
		FROM venues v
		LEFT JOIN surfaces sf ON sf.venue_id = v.id
		LEFT JOIN favorites f ON f.surface_id = sf.id
		WHERE 1=1`
	args := []any{}

	if search != "" {
		query += " AND (v.name LIKE ? OR v.city LIKE ?)"
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if state != "" {
		query += " AND v.state = ?"
		args = append(args, state)
	}
	query += " GROUP BY v.id ORDER BY v.name"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	venues := make([]Venue, 0)
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.UUID, &v.Name, &v.City, &v.State, &v.Country, &v.FavoriteCount); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// SurfacesForVenue returns a venue's surfaces with favorite and
// captured-stream flags.
func (s *Store) SurfacesForVenue(ctx context.Context, venueID int) ([]Surface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sf.id, sf.uuid, sf.name, sf.venue_id,
			f.id IS NOT NULL,
			ss.playlist_url IS NOT NULL AND ss.playlist_url != ''
		FROM surfaces sf
		LEFT JOIN favorites f ON f.surface_id = sf.id
		LEFT JOIN surface_streams ss ON ss.surface_id = sf.id
		WHERE sf.venue_id = ?
		ORDER BY sf.name`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	surfaces := make([]Surface, 0)
	for rows.Next() {
		var sf Surface
		if err := rows.Scan(&sf.ID, &sf.UUID, &sf.Name, &sf.VenueID, &sf.IsFavorite, &sf.HasCaptured); err != nil {
			return nil, err
		}
		surfaces = append(surfaces, sf)
	}
	return surfaces, rows.Err()
}

// Favorites returns every favorited surface with venue and stream details,
// ordered by venue then surface name. This drives the playlist and guide.
func (s *Store) Favorites(ctx context.Context) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.name, COALESCE(v.city, ''), COALESCE(v.state, ''),
			sf.id, sf.name, COALESCE(sf.uuid, ''),
			COALESCE(ss.playlist_url, '')
		FROM favorites f
		JOIN surfaces sf ON f.surface_id = sf.id
		JOIN venues v ON sf.venue_id = v.id
		LEFT JOIN surface_streams ss ON ss.surface_id = sf.id
		ORDER BY v.name, sf.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favorites := make([]Favorite, 0)
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.VenueID, &f.VenueName, &f.City, &f.State,
			&f.SurfaceID, &f.SurfaceName, &f.StreamName, &f.PlaylistURL); err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// ToggleFavorite flips a surface's favorite status and returns "added" or
// "removed". Adding also seeds the surface_streams row so the capture job
// has naming metadata to work with.
func (s *Store) ToggleFavorite(ctx context.Context, surfaceID int) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT id FROM favorites WHERE surface_id = ?`, surfaceID).Scan(&existing)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE surface_id = ?`, surfaceID); err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return "removed", nil

	case err != sql.ErrNoRows:
		return "", err
	}

	var surfaceName, venueName, streamName, venueUUID string
	err = tx.QueryRowContext(ctx, `
		SELECT sf.name, v.name, COALESCE(sf.uuid, ''), COALESCE(v.uuid, '')
		FROM surfaces sf
		JOIN venues v ON sf.venue_id = v.id
		WHERE sf.id = ?`, surfaceID).Scan(&surfaceName, &venueName, &streamName, &venueUUID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("surface %d not in catalog", surfaceID)
	}
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO surface_streams
			(surface_id, venue_uuid, stream_name, venue_name, surface_name)
		VALUES (?, ?, ?, ?, ?)`,
		surfaceID, venueUUID, streamName, venueName, surfaceName); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO favorites (surface_id, added_at) VALUES (?, ?)`,
		surfaceID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return "added", nil
}

// StreamInfo returns the captured stream data for one surface, or nil if
// the surface has never been favorited.
func (s *Store) StreamInfo(ctx context.Context, surfaceID int) (*StreamInfo, error) {
	var info StreamInfo
	var capturedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(playlist_url, ''), COALESCE(full_captured_url, ''),
			COALESCE(venue_name, ''), COALESCE(surface_name, ''),
			COALESCE(captured_at, '')
		FROM surface_streams
		WHERE surface_id = ?`, surfaceID).
		Scan(&info.PlaylistURL, &info.FullCapturedURL, &info.VenueName, &info.SurfaceName, &capturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if capturedAt != "" {
		if t, perr := time.Parse(time.RFC3339, capturedAt); perr == nil {
			info.CapturedAt = t
		}
	}
	return &info, nil
}

// SaveStreamURL records a freshly captured playlist URL for a surface.
func (s *Store) SaveStreamURL(ctx context.Context, surfaceID int, playlistURL, fullURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE surface_streams
		SET playlist_url = ?, full_captured_url = ?, captured_at = ?
		WHERE surface_id = ?`,
		playlistURL, fullURL, time.Now().UTC().Format(time.RFC3339), surfaceID)
	return err
}

// SurfaceChannel returns the venue/surface naming for one surface; used for
// default channel titles when a provider supplies no event title.
func (s *Store) SurfaceChannel(ctx context.Context, surfaceID int) (venueName, surfaceName string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT v.name, sf.name
		FROM surfaces sf
		JOIN venues v ON sf.venue_id = v.id
		WHERE sf.id = ?`, surfaceID).Scan(&venueName, &surfaceName)
	return venueName, surfaceName, err
}
