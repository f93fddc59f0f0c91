package web

import (
	"html/template"
	"net/http"
	"time"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/catalog"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>LiveBarn Scrape</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 60em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.6em; text-align: left; }
th { background: #f0f0f0; }
.links a { margin-right: 1em; }
.muted { color: #777; }
</style>
</head>
<body>
<h1>LiveBarn Scrape</h1>
<p class="links">
<a href="{{.BaseURL}}/playlist.m3u">playlist.m3u</a>
<a href="{{.BaseURL}}/xmltv">xmltv</a>
<a href="{{.BaseURL}}/api/logs">logs</a>
</p>

<h2>Favorites</h2>
{{if .Favorites}}
<table>
<tr><th>Channel</th><th>Venue</th><th>Location</th><th>Stream</th></tr>
{{range .Favorites}}
<tr>
<td>{{.SurfaceID}}</td>
<td>{{.VenueName}} &mdash; {{.SurfaceName}}</td>
<td>{{.City}}, {{.State}}</td>
<td><a href="{{$.BaseURL}}/proxy/{{.SurfaceID}}">watch</a></td>
</tr>
{{end}}
</table>
{{else}}
<p class="muted">No favorites yet. Add surfaces via POST /api/toggle_favorite/{surfaceID};
browse venues at <a href="{{.BaseURL}}/api/venues">/api/venues</a>.</p>
{{end}}

{{if .RefreshedAt}}
<p class="muted">Schedule refreshed {{.RefreshedAt}}.</p>
{{else}}
<p class="muted">No schedule refresh has run yet.</p>
{{end}}
</body>
</html>
`))

type indexData struct {
	BaseURL     string
	Favorites   []catalog.Favorite
	RefreshedAt string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		appLog.Error("index favorites query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to query favorites")
		return
	}

	data := indexData{
		BaseURL:   s.baseURL(r),
		Favorites: favorites,
	}
	if snap := s.cache.Snapshot(); snap != nil {
		data.RefreshedAt = snap.RefreshedAt.Format(time.RFC1123)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		appLog.Error("index render failed", err)
	}
}
