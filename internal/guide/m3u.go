// Package guide renders the M3U playlist and XMLTV guide a DVR client
// consumes. Both are derived views: the playlist from the favorites list,
// the guide from the favorites list plus the cached schedule snapshot.
package guide

import (
	"fmt"
	"strings"

	"github.com/kineticman/LivebarnScrape/internal/catalog"
)

// SanitizeTitle cleans channel titles so downstream DVRs don't build
// invalid filesystem paths on Windows/exFAT: control characters and
// Windows-invalid path characters become spaces, whitespace collapses.
func SanitizeTitle(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		if ch < 32 || strings.ContainsRune(`\/:*?"<>|`, ch) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(ch)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ChannelName builds the display name for one favorite surface.
func ChannelName(f catalog.Favorite) string {
	if f.VenueName != "" && f.SurfaceName != "" {
		return SanitizeTitle(f.VenueName + " - " + f.SurfaceName)
	}
	return fmt.Sprintf("Surface %d", f.SurfaceID)
}

// Playlist renders the M3U playlist over the favorite surfaces. baseURL is
// the externally reachable server base (no trailing slash); every entry
// points at this server's stream proxy. The Channels DVR custom tags carry
// guide metadata and the 1-hour placeholder hint.
func Playlist(favorites []catalog.Favorite, baseURL string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")

	for _, f := range favorites {
		title := ChannelName(f)

		location := ""
		switch {
		case f.City != "" && f.State != "":
			location = fmt.Sprintf(" (%s, %s)", f.City, f.State)
		case f.City != "":
			location = fmt.Sprintf(" (%s)", f.City)
		case f.State != "":
			location = fmt.Sprintf(" (%s)", f.State)
		}

		description := fmt.Sprintf("Live camera feed from %s - %s", f.VenueName, f.SurfaceName)
		if f.City != "" && f.State != "" {
			description += fmt.Sprintf(" in %s, %s", f.City, f.State)
		}

		b.WriteString("#EXTINF:-1")
		fmt.Fprintf(&b, " channel-id=%q", fmt.Sprint(f.SurfaceID))
		fmt.Fprintf(&b, " channel-number=%q", fmt.Sprint(f.SurfaceID))
		fmt.Fprintf(&b, " tvg-id=%q", fmt.Sprint(f.SurfaceID))
		fmt.Fprintf(&b, " tvg-name=%q", title)
		b.WriteString(` group-title="LiveBarn"`)
		fmt.Fprintf(&b, " tvc-guide-title=%q", "LIVE: "+title)
		fmt.Fprintf(&b, " tvc-guide-description=%q", description)
		b.WriteString(` tvc-guide-tags="Live, HDTV" tvc-guide-genres="Sports"`)
		// 1-hour placeholder blocks keep the DVR guide aligned with the
		// Open Ice tiling.
		b.WriteString(` tvc-guide-placeholders="3600"`)
		fmt.Fprintf(&b, ",%s%s\n", title, location)
		fmt.Fprintf(&b, "%s/proxy/%d\n", baseURL, f.SurfaceID)
	}

	return b.String()
}
