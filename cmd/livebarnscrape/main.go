package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kineticman/LivebarnScrape/internal/capture"
	"github.com/kineticman/LivebarnScrape/internal/catalog"
	"github.com/kineticman/LivebarnScrape/internal/config"
	appLog "github.com/kineticman/LivebarnScrape/internal/log"
	"github.com/kineticman/LivebarnScrape/internal/schedule"
	"github.com/kineticman/LivebarnScrape/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	syncOnly   bool
}

func main() {
	appLog.Info("livebarnscrape starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if conf.PublicURL == "" {
		conf.PublicURL = "http://" + web.LanIP() + ":" + listenPort(conf.Listen)
		appLog.Info("derived public URL", "public_url", conf.PublicURL)
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to UTC", err, "timezone", conf.Timezone)
		loc = time.UTC
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"public_url", conf.PublicURL,
		"timezone", conf.Timezone,
		"db_path", conf.DBPath,
		"schedule_refresh", conf.ScheduleCron,
		"catalog_sync", conf.CatalogCron,
		"chiller", conf.Providers.Chiller,
		"lgria", conf.Providers.LGRIA,
		"ics_count", len(conf.ICS),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := catalog.Open(conf.DBPath)
	if err != nil {
		appLog.Error("failed to open catalog", err, "db_path", conf.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	// Seed the venue catalog on an empty database so the UI has something
	// to search right away.
	if empty, err := catalogEmpty(ctx, store); err != nil {
		appLog.Error("failed to inspect catalog", err)
	} else if empty || flags.syncOnly {
		if _, err := store.SyncInventory(ctx, ""); err != nil {
			appLog.Error("initial inventory sync failed", err)
		}
	}
	if flags.syncOnly {
		appLog.Info("inventory sync finished, exiting")
		return
	}

	registry := schedule.NewRegistry(
		schedule.NewChillerProvider("", conf.Providers.Chiller),
		schedule.NewLGRIAProvider("", conf.Providers.LGRIA),
		schedule.NewICSProvider(conf.ICS, loc),
	)
	cache := schedule.NewCache(registry, loc)
	cache.Refresh(ctx)

	if flags.once {
		appLog.Info("single refresh finished, exiting")
		return
	}

	captureFn := func(ctx context.Context, surfaceID int) (string, error) {
		return capture.StreamURL(ctx, capture.Options{
			Email:     conf.LiveBarn.Email,
			Password:  conf.LiveBarn.Password,
			SurfaceID: surfaceID,
		})
	}

	server := web.NewServer(conf, store, cache, loc, captureFn)

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.ScheduleCron, func() { cache.Refresh(ctx) }); err != nil {
		appLog.Error("invalid schedule refresh cron", err, "spec", conf.ScheduleCron)
		os.Exit(1)
	}
	if _, err := c.AddFunc(conf.CatalogCron, func() {
		if _, err := store.SyncInventory(ctx, ""); err != nil {
			appLog.Error("scheduled inventory sync failed", err)
		}
	}); err != nil {
		appLog.Error("invalid catalog sync cron", err, "spec", conf.CatalogCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	appLog.Info("livebarnscrape exiting")
}

// catalogEmpty reports whether the venue catalog has never been synced.
func catalogEmpty(ctx context.Context, store *catalog.Store) (bool, error) {
	venues, err := store.Venues(ctx, "", "", 1, 0)
	if err != nil {
		return false, err
	}
	return len(venues) == 0, nil
}

// listenPort extracts the port from a listen address like "0.0.0.0:5000".
func listenPort(listen string) string {
	for i := len(listen) - 1; i >= 0; i-- {
		if listen[i] == ':' {
			return listen[i+1:]
		}
	}
	return "5000"
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/livebarnscrape/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one schedule refresh and exit")
	flag.BoolVar(&cfg.syncOnly, "sync-catalog", false, "Sync the venue catalog and exit")

	flag.Parse()

	return cfg
}
