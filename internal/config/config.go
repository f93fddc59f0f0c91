package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSSourceConfig describes one ICS subscription used by the optional ICS
// schedule provider. Each subscription maps onto exactly one catalog surface.
type ICSSourceConfig struct {
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// SurfaceID is the unified catalog surface the feed's events belong to.
	SurfaceID int `yaml:"surface_id" json:"surface_id"`
}

// ProvidersConfig toggles the built-in schedule providers without removing
// them from the registry.
type ProvidersConfig struct {
	Chiller bool `yaml:"chiller" json:"chiller"`
	LGRIA   bool `yaml:"lgria" json:"lgria"`
}

// LiveBarnConfig holds credentials for the stream-capture session.
// Environment variables LIVEBARN_EMAIL / LIVEBARN_PASSWORD take precedence
// over the file so credentials can stay out of the config on disk.
type LiveBarnConfig struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// PublicURL is the base URL clients use to reach this server, e.g.
	// "http://192.168.1.10:5000". It is embedded into playlist and proxy
	// URLs. If empty, the server derives one from the LAN address.
	PublicURL string `yaml:"public_url" json:"public_url"`

	// Timezone is the IANA timezone used for guide windows and XMLTV
	// offsets (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// DBPath is the sqlite catalog database path.
	DBPath string `yaml:"db_path" json:"db_path"`

	// ScheduleCron is a cron-style spec for the periodic schedule refresh.
	ScheduleCron string `yaml:"schedule_refresh" json:"schedule_refresh"`

	// CatalogCron is a cron-style spec for the periodic venue catalog sync.
	CatalogCron string `yaml:"catalog_sync" json:"catalog_sync"`

	Providers ProvidersConfig `yaml:"providers" json:"providers"`

	// ICS lists ICS subscription sources; empty disables the ICS provider.
	ICS []ICSSourceConfig `yaml:"ics" json:"ics"`

	LiveBarn LiveBarnConfig `yaml:"livebarn" json:"livebarn"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "0.0.0.0:5000",
		Timezone:     "America/New_York",
		DBPath:       "/data/livebarn.db",
		ScheduleCron: "0 5 * * *",
		CatalogCron:  "30 4 * * 0",
		Providers: ProvidersConfig{
			Chiller: true,
			LGRIA:   true,
		},
		ICS: []ICSSourceConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "0.0.0.0:5000"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.DBPath == "" {
		c.DBPath = "/data/livebarn.db"
	}
	if c.ScheduleCron == "" {
		c.ScheduleCron = "0 5 * * *"
	}
	if c.CatalogCron == "" {
		c.CatalogCron = "30 4 * * 0"
	}
	if c.ICS == nil {
		c.ICS = []ICSSourceConfig{}
	}

	// Environment always wins for credentials.
	if v := os.Getenv("LIVEBARN_EMAIL"); v != "" {
		c.LiveBarn.Email = v
	}
	if v := os.Getenv("LIVEBARN_PASSWORD"); v != "" {
		c.LiveBarn.Password = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.Normalize()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (credentials may be present).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".livebarnscrape-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
