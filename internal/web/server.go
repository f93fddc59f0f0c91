// Package web exposes the HTTP surface: the favorites UI and API, the M3U
// playlist and XMLTV guide endpoints, and the HLS stream proxy. Guide and
// playlist rendering only ever read the schedule cache's last snapshot so
// request latency never depends on a facility website.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kineticman/LivebarnScrape/internal/catalog"
	"github.com/kineticman/LivebarnScrape/internal/config"
	"github.com/kineticman/LivebarnScrape/internal/guide"
	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/model"
	"github.com/kineticman/LivebarnScrape/internal/schedule"
)

// CaptureFunc obtains a fresh tokenized playlist URL for a surface. It is
// a function field so tests can stub the browser session out.
type CaptureFunc func(ctx context.Context, surfaceID int) (string, error)

// Server wires the HTTP routes to the catalog, schedule cache, and capture
// job.
type Server struct {
	cfg     *config.Config
	store   *catalog.Store
	cache   *schedule.Cache
	loc     *time.Location
	capture CaptureFunc

	router *mux.Router

	// relay is the client used to fetch origin playlists and segments.
	relay *http.Client
}

// NewServer constructs the server. loc is the display timezone used for
// guide windows; nil means time.Local.
func NewServer(cfg *config.Config, store *catalog.Store, cache *schedule.Cache, loc *time.Location, capture CaptureFunc) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		cache:   cache,
		loc:     loc,
		capture: capture,
		router:  mux.NewRouter(),
		relay:   &http.Client{Timeout: 30 * time.Second},
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(logWriter{}, s.router)
}

// logWriter adapts the access log stream onto the app logger.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	appLog.Debug("http " + string(p))
	return len(p), nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	s.router.HandleFunc("/api/venues", s.handleVenues).Methods(http.MethodGet)
	s.router.HandleFunc("/api/venues/{venueID:[0-9]+}/surfaces", s.handleSurfaces).Methods(http.MethodGet)
	s.router.HandleFunc("/api/favorites", s.handleFavorites).Methods(http.MethodGet)
	s.router.HandleFunc("/api/toggle_favorite/{surfaceID:[0-9]+}", s.handleToggleFavorite).Methods(http.MethodPost)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/logs", s.handleLogs).Methods(http.MethodGet)

	s.router.HandleFunc("/playlist.m3u", s.handlePlaylist).Methods(http.MethodGet)
	s.router.HandleFunc("/xmltv", s.handleXMLTV).Methods(http.MethodGet)

	s.router.HandleFunc("/proxy/{surfaceID:[0-9]+}", s.handleProxy).Methods(http.MethodGet)
	s.router.HandleFunc("/proxy/{surfaceID:[0-9]+}/seg", s.handleProxySegment).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), 0)
	offset := parseIntDefault(q.Get("offset"), 0)

	venues, err := s.store.Venues(r.Context(), q.Get("search"), q.Get("state"), limit, offset)
	if err != nil {
		appLog.Error("venue query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to query venues")
		return
	}
	writeJSON(w, http.StatusOK, venues)
}

func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	venueID, _ := strconv.Atoi(mux.Vars(r)["venueID"])

	surfaces, err := s.store.SurfacesForVenue(r.Context(), venueID)
	if err != nil {
		appLog.Error("surface query failed", err, "venue_id", venueID)
		writeError(w, http.StatusInternalServerError, "failed to query surfaces")
		return
	}
	writeJSON(w, http.StatusOK, surfaces)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		appLog.Error("favorites query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to query favorites")
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	surfaceID, _ := strconv.Atoi(mux.Vars(r)["surfaceID"])

	action, err := s.store.ToggleFavorite(r.Context(), surfaceID)
	if err != nil {
		appLog.Error("toggle favorite failed", err, "surface_id", surfaceID)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Info("favorite toggled", "surface_id", surfaceID, "action", action)
	writeJSON(w, http.StatusOK, map[string]string{
		"action":     action,
		"surface_id": strconv.Itoa(surfaceID),
	})
}

// handleRefresh triggers an immediate schedule refresh. The refresh blocks
// the request so the caller sees the new per-source counts.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Refresh(r.Context())

	counts := make(map[string]int, len(snap.Counts))
	total := 0
	for _, c := range snap.Counts {
		counts[c.Name] = c.Events
		total += c.Events
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed_at": snap.RefreshedAt,
		"sources":      counts,
		"total_events": total,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := parseIntDefault(r.URL.Query().Get("n"), 100)
	writeJSON(w, http.StatusOK, map[string]any{"lines": appLog.Recent(n)})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		appLog.Error("playlist favorites query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to query favorites")
		return
	}

	w.Header().Set("Content-Type", "application/x-mpegURL")
	_, _ = w.Write([]byte(guide.Playlist(favorites, s.baseURL(r))))
}

func (s *Server) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		appLog.Error("xmltv favorites query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to query favorites")
		return
	}

	now := time.Now().In(s.loc)
	windowStart, windowEnd := s.cache.Window(now)
	eventsBySurface := map[int][]model.Event{}
	if snap := s.cache.Snapshot(); snap != nil {
		eventsBySurface = snap.EventsBySurface
	}

	doc, err := guide.XMLTV(favorites, eventsBySurface, windowStart, windowEnd, now, s.baseURL(r))
	if err != nil {
		appLog.Error("xmltv render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render guide")
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(doc)
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg != nil && s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	// Fall back to how the client addressed us.
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// LanIP returns the local non-loopback address, used to build a default
// public URL when none is configured.
func LanIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
