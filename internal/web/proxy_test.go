package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestTokenExpiry(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantSec int64
		wantOK  bool
	}{
		{
			name:    "exp mid token",
			url:     "https://livebarn.akamaized.net/a/playlist.m3u8?hdnts=st=1735700000~exp=1735707200~acl=/*~hmac=abc",
			wantSec: 1735707200,
			wantOK:  true,
		},
		{
			name:    "exp first field",
			url:     "https://livebarn.akamaized.net/a/playlist.m3u8?hdnts=exp=1700000000~hmac=abc",
			wantSec: 1700000000,
			wantOK:  true,
		},
		{
			name:   "no hdnts",
			url:    "https://livebarn.akamaized.net/a/playlist.m3u8",
			wantOK: false,
		},
		{
			name:   "no exp field",
			url:    "https://livebarn.akamaized.net/a/playlist.m3u8?hdnts=st=1~hmac=abc",
			wantOK: false,
		},
		{
			name:   "non numeric exp",
			url:    "https://livebarn.akamaized.net/a/playlist.m3u8?hdnts=exp=soon~hmac=abc",
			wantOK: false,
		},
		{
			name:   "unparseable url",
			url:    "://not-a-url",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, ok := TokenExpiry(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && exp.Unix() != tt.wantSec {
				t.Errorf("exp = %d, want %d", exp.Unix(), tt.wantSec)
			}
		})
	}
}

func TestNeedsRecapture(t *testing.T) {
	now := time.Unix(1735700000, 0)
	tokenURL := func(exp int64) string {
		return fmt.Sprintf("https://livebarn.akamaized.net/a/playlist.m3u8?hdnts=exp=%d~hmac=abc", exp)
	}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"empty", "", true},
		{"no token", "https://livebarn.akamaized.net/a/playlist.m3u8", true},
		{"already expired", tokenURL(now.Unix() - 60), true},
		{"expiring inside margin", tokenURL(now.Add(2 * time.Minute).Unix()), true},
		{"plenty of time left", tokenURL(now.Add(2 * time.Hour).Unix()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsRecapture(tt.url, now); got != tt.want {
				t.Errorf("needsRecapture = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRewriteManifest(t *testing.T) {
	manifest := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-STREAM-INF:BANDWIDTH=2000000",
		"chunklist_w123.m3u8?hdnts=exp=1~hmac=a",
		"#EXTINF:6.0,",
		"https://livebarn.akamaized.net/seg/media_1.ts",
		"",
	}, "\n")

	base, _ := url.Parse("https://livebarn.akamaized.net/feed/playlist.m3u8?hdnts=exp=1~hmac=a")
	out, err := RewriteManifest(strings.NewReader(manifest), base, "http://guide.test", 864)
	if err != nil {
		t.Fatalf("RewriteManifest: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "#EXTM3U" || lines[2] != "#EXT-X-STREAM-INF:BANDWIDTH=2000000" {
		t.Errorf("tag lines were altered:\n%s", out)
	}

	wantChunklist := "http://guide.test/proxy/864/seg?u=" +
		url.QueryEscape("https://livebarn.akamaized.net/feed/chunklist_w123.m3u8?hdnts=exp=1~hmac=a")
	if lines[3] != wantChunklist {
		t.Errorf("chunklist line = %q, want %q", lines[3], wantChunklist)
	}

	wantSeg := "http://guide.test/proxy/864/seg?u=" +
		url.QueryEscape("https://livebarn.akamaized.net/seg/media_1.ts")
	if lines[5] != wantSeg {
		t.Errorf("segment line = %q, want %q", lines[5], wantSeg)
	}
}

func TestProxySegmentRejectsForeignHosts(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/proxy/864/seg?u="+url.QueryEscape("https://evil.example.com/x.ts"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign host status = %d, want 403", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/proxy/864/seg?u=not-absolute")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("relative url status = %d, want 400", rec.Code)
	}
}

func TestProxyCapturesAndRewrites(t *testing.T) {
	manifest := "#EXTM3U\n#EXTINF:6.0,\nmedia_1.ts\n"
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-mpegURL")
		w.Write([]byte(manifest))
	}))
	defer origin.Close()

	captured := 0
	freshURL := origin.URL + fmt.Sprintf("/feed/playlist.m3u8?hdnts=exp=%d~hmac=a", time.Now().Add(4*time.Hour).Unix())
	capture := func(_ context.Context, surfaceID int) (string, error) {
		captured++
		if surfaceID != 864 {
			t.Errorf("capture called for surface %d, want 864", surfaceID)
		}
		return freshURL, nil
	}

	s, store := newTestServer(t, capture)

	// No stored URL yet, so the first request must trigger a capture.
	rec := doRequest(t, s, http.MethodGet, "/proxy/864")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if captured != 1 {
		t.Fatalf("capture ran %d times, want 1", captured)
	}
	if !strings.Contains(rec.Body.String(), "http://guide.test/proxy/864/seg?u=") {
		t.Errorf("manifest not rewritten:\n%s", rec.Body.String())
	}

	info, err := store.StreamInfo(context.Background(), 864)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info == nil || info.PlaylistURL != freshURL {
		t.Errorf("captured URL not persisted: %+v", info)
	}

	// A second request reuses the stored token without recapturing.
	rec = doRequest(t, s, http.MethodGet, "/proxy/864")
	if rec.Code != http.StatusOK {
		t.Fatalf("second request status = %d, want 200", rec.Code)
	}
	if captured != 1 {
		t.Errorf("capture ran %d times after reuse, want 1", captured)
	}
}

func TestProxyCaptureFailure(t *testing.T) {
	capture := func(context.Context, int) (string, error) {
		return "", fmt.Errorf("login rejected")
	}
	s, _ := newTestServer(t, capture)

	rec := doRequest(t, s, http.MethodGet, "/proxy/864")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
