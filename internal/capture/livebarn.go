// Package capture drives a headless Chromium session against the LiveBarn
// player to sniff the tokenized HLS playlist URL for one surface. The URL
// embeds a short-lived hdnts access token, so the proxy layer re-runs a
// capture whenever the cached URL is missing or about to expire.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "github.com/kineticman/LivebarnScrape/internal/log"
)

const (
	loginURL       = "https://watch.livebarn.com"
	videoURLFormat = "https://watch.livebarn.com/en/video/%d/live"

	// DefaultTimeout bounds the whole login + capture sequence. The
	// on-demand proxy path waits on this, so it stays well under the
	// DVR client's own tune timeout.
	DefaultTimeout = 45 * time.Second
)

// Options defines one capture run.
type Options struct {
	Email    string
	Password string

	// SurfaceID selects the player page to open.
	SurfaceID int

	// Timeout bounds the entire capture. Zero means DefaultTimeout.
	Timeout time.Duration
}

// StreamURL logs into LiveBarn, opens the surface's live player, and
// returns the first playlist URL seen on the wire that carries an access
// token. Chunklist URLs are sub-playlists and are skipped; only the
// top-level playlist is stable enough to hand to the proxy.
func StreamURL(parentCtx context.Context, opts Options) (string, error) {
	if opts.Email == "" || opts.Password == "" {
		return "", errors.New("capture: credentials are required")
	}
	if opts.SurfaceID <= 0 {
		return "", errors.New("capture: surface id is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var (
		mu       sync.Mutex
		captured string
		found    = make(chan struct{})
	)

	chromedp.ListenTarget(ctx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		url := resp.Response.URL
		if !isPlaylistURL(url) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if captured == "" {
			captured = url
			close(found)
		}
	})

	appLog.Info("stream capture starting", "surface_id", opts.SurfaceID)

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(loginURL),
		// The login form may be skipped if the browser profile still has
		// a session; errors here are tolerated for that reason.
		chromedp.ActionFunc(func(ctx context.Context) error {
			login := chromedp.Tasks{
				chromedp.WaitVisible(`input[name="username"]`, chromedp.ByQuery),
				chromedp.SendKeys(`input[name="username"]`, opts.Email, chromedp.ByQuery),
				chromedp.SendKeys(`input[type="password"]`, opts.Password, chromedp.ByQuery),
				chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
				chromedp.Sleep(2 * time.Second),
			}
			if err := login.Do(ctx); err != nil {
				appLog.Info("login form not shown, assuming active session")
			}
			return nil
		}),
		chromedp.Navigate(fmt.Sprintf(videoURLFormat, opts.SurfaceID)),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	// The player requests the playlist shortly after load; wait for the
	// network listener or the overall deadline.
	select {
	case <-found:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	if captured == "" {
		return "", errors.New("capture: no playlist URL observed")
	}
	appLog.Info("stream capture complete", "surface_id", opts.SurfaceID)
	return captured, nil
}

// isPlaylistURL reports whether a network response URL is the tokenized
// top-level HLS playlist for a LiveBarn feed.
func isPlaylistURL(url string) bool {
	if !strings.Contains(url, "cdn-akamai-livebarn.akamaized.net") {
		return false
	}
	if !strings.Contains(url, ".m3u8") || !strings.Contains(url, "hdnts=") {
		return false
	}
	return !strings.Contains(strings.ToLower(url), "chunklist_")
}
