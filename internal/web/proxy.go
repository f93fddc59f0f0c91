package web

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
)

// LiveBarn playlist tokens carry an expiry inside the hdnts query value.
// Recapture ahead of the deadline so players never see a dead manifest.
const tokenRefreshMargin = 5 * time.Minute

// allowedSegmentHost restricts the segment relay to LiveBarn's CDN so the
// endpoint cannot be used as an open proxy.
const allowedSegmentHost = "akamaized.net"

// TokenExpiry extracts the unix expiry embedded in a tokenized playlist URL.
// The hdnts value is a ~-separated list of fields, one of which is exp=N.
func TokenExpiry(playlistURL string) (time.Time, bool) {
	u, err := url.Parse(playlistURL)
	if err != nil {
		return time.Time{}, false
	}
	token := u.Query().Get("hdnts")
	if token == "" {
		return time.Time{}, false
	}
	for _, field := range strings.Split(token, "~") {
		val, ok := strings.CutPrefix(field, "exp=")
		if !ok {
			continue
		}
		sec, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}

// needsRecapture reports whether a stored playlist URL is absent, unreadable,
// or expiring within the refresh margin.
func needsRecapture(playlistURL string, now time.Time) bool {
	if playlistURL == "" {
		return true
	}
	exp, ok := TokenExpiry(playlistURL)
	if !ok {
		return true
	}
	return exp.Sub(now) < tokenRefreshMargin
}

// playlistURLFor returns a usable tokenized playlist URL for the surface,
// running a fresh browser capture when the stored one is stale.
func (s *Server) playlistURLFor(ctx context.Context, surfaceID int) (string, error) {
	info, err := s.store.StreamInfo(ctx, surfaceID)
	if err != nil {
		return "", err
	}

	stored := ""
	if info != nil {
		stored = info.PlaylistURL
	}
	if !needsRecapture(stored, time.Now()) {
		return stored, nil
	}

	if s.capture == nil {
		return "", fmt.Errorf("no stream URL for surface %d and capture is not configured", surfaceID)
	}

	appLog.Info("capturing stream URL", "surface_id", surfaceID)
	fresh, err := s.capture(ctx, surfaceID)
	if err != nil {
		return "", fmt.Errorf("capture surface %d: %w", surfaceID, err)
	}
	if err := s.store.SaveStreamURL(ctx, surfaceID, fresh, fresh); err != nil {
		appLog.Error("failed to persist stream URL", err, "surface_id", surfaceID)
	}
	return fresh, nil
}

// handleProxy serves the surface's HLS playlist with every URI rewritten
// through the segment relay, so players never talk to the CDN directly with
// a token they do not have.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	surfaceID, _ := strconv.Atoi(mux.Vars(r)["surfaceID"])

	playlistURL, err := s.playlistURLFor(r.Context(), surfaceID)
	if err != nil {
		appLog.Error("stream unavailable", err, "surface_id", surfaceID)
		writeError(w, http.StatusBadGateway, "stream unavailable")
		return
	}

	s.relayPlaylist(w, r, surfaceID, playlistURL)
}

// handleProxySegment relays a single CDN URL: media segments are streamed
// through, and nested playlists (chunklists) are rewritten like the top
// level manifest.
func (s *Server) handleProxySegment(w http.ResponseWriter, r *http.Request) {
	surfaceID, _ := strconv.Atoi(mux.Vars(r)["surfaceID"])

	raw := r.URL.Query().Get("u")
	target, err := url.Parse(raw)
	if err != nil || !target.IsAbs() {
		writeError(w, http.StatusBadRequest, "invalid segment url")
		return
	}
	if !strings.HasSuffix(target.Hostname(), allowedSegmentHost) {
		writeError(w, http.StatusForbidden, "segment host not allowed")
		return
	}

	if strings.HasSuffix(target.Path, ".m3u8") {
		s.relayPlaylist(w, r, surfaceID, target.String())
		return
	}

	resp, err := s.relay.Get(target.String())
	if err != nil {
		appLog.Error("segment fetch failed", err, "surface_id", surfaceID)
		writeError(w, http.StatusBadGateway, "segment fetch failed")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		appLog.Debug("segment copy aborted", "surface_id", surfaceID, "error", err.Error())
	}
}

// relayPlaylist fetches an origin manifest and writes it back with all URI
// lines pointed at /proxy/{id}/seg.
func (s *Server) relayPlaylist(w http.ResponseWriter, r *http.Request, surfaceID int, playlistURL string) {
	resp, err := s.relay.Get(playlistURL)
	if err != nil {
		appLog.Error("playlist fetch failed", err, "surface_id", surfaceID)
		writeError(w, http.StatusBadGateway, "playlist fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Error("playlist fetch failed", fmt.Errorf("origin status %d", resp.StatusCode), "surface_id", surfaceID)
		writeError(w, http.StatusBadGateway, "playlist fetch failed")
		return
	}

	base, err := url.Parse(playlistURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "playlist fetch failed")
		return
	}

	body, err := RewriteManifest(resp.Body, base, s.baseURL(r), surfaceID)
	if err != nil {
		appLog.Error("playlist rewrite failed", err, "surface_id", surfaceID)
		writeError(w, http.StatusBadGateway, "playlist rewrite failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-mpegURL")
	_, _ = w.Write([]byte(body))
}

// RewriteManifest rewrites every URI line of an HLS manifest to route
// through the segment relay. Relative URIs are resolved against base first.
// Tag lines pass through untouched.
func RewriteManifest(manifest io.Reader, base *url.URL, publicBase string, surfaceID int) (string, error) {
	var out strings.Builder
	sc := bufio.NewScanner(manifest)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		ref, err := url.Parse(trimmed)
		if err != nil {
			// Leave lines we cannot parse alone rather than break playback.
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		abs := base.ResolveReference(ref)
		fmt.Fprintf(&out, "%s/proxy/%d/seg?u=%s\n", publicBase, surfaceID, url.QueryEscape(abs.String()))
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}
