// Package config handles TOML-based configuration loading and validation.
// Provider hosts, markers and keyword lists are data here rather than code
// so a site moving domains only needs a config edit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Listen         string `toml:"listen" validate:"required,hostname_port"`
	DefaultVariant string `toml:"default_variant" validate:"required,max=32"`
	Debug          bool   `toml:"debug"`

	Log        LogConfig        `toml:"log"`
	Cache      CacheConfig      `toml:"cache"`
	HTTP       HTTPConfig       `toml:"http"`
	TMDB       TMDBConfig       `toml:"tmdb"`
	Browse     BrowseConfig     `toml:"browse"`
	Embed      EmbedConfig      `toml:"embed"`
	ServerList ServerListConfig `toml:"server_list"`
	Import     ImportConfig     `toml:"import"`
}

// LogConfig controls log level, format and optional file rotation.
type LogConfig struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	Format     string `toml:"format" validate:"oneof=text json"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
}

// CacheConfig selects the cache and catalog backend.
type CacheConfig struct {
	Driver   string `toml:"driver" validate:"oneof=sqlite memory"`
	Database string `toml:"database"` // empty = XDG data dir
}

// HTTPConfig tunes the outbound fetch client.
type HTTPConfig struct {
	Timeout      time.Duration `toml:"timeout" validate:"gt=0"`
	UserAgent    string        `toml:"user_agent" validate:"required"`
	MaxBodyBytes int64         `toml:"max_body_bytes" validate:"gt=0"`
	MaxRedirects int           `toml:"max_redirects" validate:"gt=0,lte=20"`
	Fingerprint  bool          `toml:"fingerprint"`
}

// TMDBConfig holds TMDB credentials for title lookups.
type TMDBConfig struct {
	BaseURL  string `toml:"base_url" validate:"required,http_url"`
	Token    string `toml:"token"`   // v4 read access token
	APIKey   string `toml:"api_key"` // v3 key, used when no token is set
	Language string `toml:"language" validate:"required"`
}

// BrowseConfig configures provider A.
type BrowseConfig struct {
	BaseURL          string        `toml:"base_url" validate:"required,http_url"`
	MoviePath        string        `toml:"movie_path" validate:"required"`
	SeriesPath       string        `toml:"series_path" validate:"required"`
	ListingPath      string        `toml:"listing_path" validate:"required"`
	CDNHosts         []string      `toml:"cdn_hosts" validate:"min=1,dive,required"`
	SoftNotFound     []string      `toml:"soft_not_found"`
	DiscoveryBatch   int           `toml:"discovery_batch" validate:"gte=1,lte=50"`
	DiscoveryCeiling int           `toml:"discovery_ceiling" validate:"gte=1"`
	TTL              time.Duration `toml:"ttl" validate:"gt=0"`
}

// EmbedConfig configures provider B.
type EmbedConfig struct {
	BaseURL       string        `toml:"base_url" validate:"required,http_url"`
	MoviePath     string        `toml:"movie_path" validate:"required"`
	SeriesPath    string        `toml:"series_path" validate:"required"`
	MediaKeywords []string      `toml:"media_keywords" validate:"min=1"`
	BlockedHosts  []string      `toml:"blocked_hosts"`
	TTL           time.Duration `toml:"ttl" validate:"gt=0"`
}

// ServerListConfig configures provider C.
type ServerListConfig struct {
	BaseURL string        `toml:"base_url" validate:"required,http_url"`
	TTL     time.Duration `toml:"ttl" validate:"gt=0"`
}

// ImportConfig bounds the catalog importer.
type ImportConfig struct {
	Workers  int `toml:"workers" validate:"gte=1,lte=32"`
	MaxPages int `toml:"max_pages" validate:"gte=1"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		DefaultVariant: "subtitled",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Cache: CacheConfig{
			Driver: "sqlite",
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			MaxBodyBytes: 5 * 1024 * 1024,
			MaxRedirects: 10,
		},
		TMDB: TMDBConfig{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "pt-BR",
		},
		Browse: BrowseConfig{
			BaseURL:          "https://cineveo.site",
			MoviePath:        "filme",
			SeriesPath:       "serie",
			ListingPath:      "category.php",
			CDNHosts:         []string{"cdn.cineveo.site"},
			SoftNotFound:     []string{"Página não encontrada", "404 Not Found", "Conteúdo não encontrado"},
			DiscoveryBatch:   5,
			DiscoveryCeiling: 500,
			TTL:              24 * time.Hour,
		},
		Embed: EmbedConfig{
			BaseURL:       "https://superflixapi.one",
			MoviePath:     "filme",
			SeriesPath:    "serie",
			MediaKeywords: []string{"m3u8", "master", "playlist", ".mp4"},
			BlockedHosts: []string{
				"google-analytics.com", "googletagmanager.com", "jwplayer.com",
				"jsdelivr.net", "cdnjs.cloudflare.com",
			},
			TTL: 12 * time.Hour,
		},
		ServerList: ServerListConfig{
			BaseURL: "https://embedplayapi.site",
			TTL:     6 * time.Hour,
		},
		Import: ImportConfig{
			Workers:  4,
			MaxPages: 10,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vidsource"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vidsource"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config file. See LoadFile.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return LoadFile("")
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path and merges it over defaults, then
// applies environment overrides (including a .env in the working directory).
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VIDSOURCE_TMDB_TOKEN"); v != "" {
		c.TMDB.Token = v
	}
	if v := os.Getenv("VIDSOURCE_DATABASE"); v != "" {
		c.Cache.Database = v
	}
	if v := os.Getenv("VIDSOURCE_LISTEN"); v != "" {
		c.Listen = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// fieldPath turns "Config.Browse.TTL" into "Browse.TTL".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// DatabasePath returns the SQLite path, defaulting to the XDG data dir.
func (c *Config) DatabasePath() (string, error) {
	if c.Cache.Database != "" {
		return c.Cache.Database, nil
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "vidsource", "vidsource.db"), nil
}
