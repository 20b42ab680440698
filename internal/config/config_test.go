package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultVariant != "subtitled" {
		t.Errorf("default variant = %q, want subtitled", cfg.DefaultVariant)
	}
	if cfg.Cache.Driver != "sqlite" {
		t.Errorf("default cache driver = %q, want sqlite", cfg.Cache.Driver)
	}
	if cfg.Browse.DiscoveryBatch != 5 || cfg.Browse.DiscoveryCeiling != 500 {
		t.Errorf("discovery = %d/%d, want 5/500", cfg.Browse.DiscoveryBatch, cfg.Browse.DiscoveryCeiling)
	}
	if !(cfg.Browse.TTL > cfg.Embed.TTL && cfg.Embed.TTL > cfg.ServerList.TTL) {
		t.Errorf("TTLs should decrease A > B > C, got %v %v %v", cfg.Browse.TTL, cfg.Embed.TTL, cfg.ServerList.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"invalid cache driver", func(c *Config) { c.Cache.Driver = "redis" }, true},
		{"valid memory driver", func(c *Config) { c.Cache.Driver = "memory" }, false},
		{"invalid log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"zero ttl", func(c *Config) { c.Embed.TTL = 0 }, true},
		{"negative ttl", func(c *Config) { c.ServerList.TTL = -time.Hour }, true},
		{"zero batch", func(c *Config) { c.Browse.DiscoveryBatch = 0 }, true},
		{"zero ceiling", func(c *Config) { c.Browse.DiscoveryCeiling = 0 }, true},
		{"bad base url", func(c *Config) { c.Embed.BaseURL = "not a url" }, true},
		{"empty base url", func(c *Config) { c.ServerList.BaseURL = "" }, true},
		{"no cdn hosts", func(c *Config) { c.Browse.CDNHosts = nil }, true},
		{"empty variant", func(c *Config) { c.DefaultVariant = "" }, true},
		{"bad listen", func(c *Config) { c.Listen = "nowhere" }, true},
		{"too many workers", func(c *Config) { c.Import.Workers = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNamesField(t *testing.T) {
	cfg := Default()
	cfg.Browse.TTL = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Browse.TTL") {
		t.Errorf("error should name the field, got %v", err)
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Chdir(tmpDir)

	content := `
default_variant = "dubbed"

[cache]
driver = "memory"

[browse]
base_url = "https://browse.example"
cdn_hosts = ["cdn.browse.example"]
ttl = "48h"

[embed]
blocked_hosts = ["ads.example"]
`
	dir := filepath.Join(tmpDir, "vidsource")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DefaultVariant != "dubbed" {
		t.Errorf("default_variant = %q, want dubbed", cfg.DefaultVariant)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("cache.driver = %q, want memory", cfg.Cache.Driver)
	}
	if cfg.Browse.BaseURL != "https://browse.example" {
		t.Errorf("browse.base_url = %q", cfg.Browse.BaseURL)
	}
	if cfg.Browse.TTL != 48*time.Hour {
		t.Errorf("browse.ttl = %v, want 48h", cfg.Browse.TTL)
	}
	if len(cfg.Embed.BlockedHosts) != 1 || cfg.Embed.BlockedHosts[0] != "ads.example" {
		t.Errorf("embed.blocked_hosts = %v", cfg.Embed.BlockedHosts)
	}
	// untouched sections keep defaults
	if cfg.ServerList.BaseURL != "https://embedplayapi.site" {
		t.Errorf("server_list.base_url = %q", cfg.ServerList.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.DefaultVariant != "subtitled" {
		t.Errorf("missing file should return defaults, got variant = %q", cfg.DefaultVariant)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	path := filepath.Join(tmpDir, "bad.toml")
	if err := os.WriteFile(path, []byte("[cache]\ndriver = \"redis\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject an invalid cache driver")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIDSOURCE_TMDB_TOKEN", "tok")
	t.Setenv("VIDSOURCE_DATABASE", "/tmp/x.db")
	t.Setenv("VIDSOURCE_LISTEN", "0.0.0.0:9000")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.TMDB.Token != "tok" {
		t.Errorf("tmdb token = %q", cfg.TMDB.Token)
	}
	if cfg.Cache.Database != "/tmp/x.db" {
		t.Errorf("database = %q", cfg.Cache.Database)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VIDSOURCE_TMDB_TOKEN", "")
	os.Unsetenv("VIDSOURCE_TMDB_TOKEN")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VIDSOURCE_TMDB_TOKEN=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.TMDB.Token != "from-dotenv" {
		t.Errorf("tmdb token = %q, want from-dotenv", cfg.TMDB.Token)
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	t.Setenv("XDG_DATA_HOME", "/data")
	got, err := cfg.DatabasePath()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/data", "vidsource", "vidsource.db") {
		t.Errorf("DatabasePath() = %q", got)
	}

	cfg.Cache.Database = "/tmp/custom.db"
	got, _ = cfg.DatabasePath()
	if got != "/tmp/custom.db" {
		t.Errorf("DatabasePath() = %q, want override", got)
	}
}
