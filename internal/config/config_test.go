package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("a missing config file must not fail: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "jsonfile" || cfg.Store.Path != "history.json" {
		t.Errorf("default store: %s %s", cfg.Store.Backend, cfg.Store.Path)
	}
	if cfg.Upstream.Provider != "ark" {
		t.Errorf("default provider: %s", cfg.Upstream.Provider)
	}
	if cfg.Analysis.MinImages != 5 || cfg.Analysis.MaxImages != 20 {
		t.Errorf("default batch bounds: %d-%d", cfg.Analysis.MinImages, cfg.Analysis.MaxImages)
	}
	if cfg.Analysis.MaxImageBytes != 10<<20 {
		t.Errorf("default image size: %d", cfg.Analysis.MaxImageBytes)
	}
	if cfg.Analysis.Retention != 50 {
		t.Errorf("default retention: %d", cfg.Analysis.Retention)
	}
	if cfg.UpstreamTimeout() != 120*time.Second {
		t.Errorf("default timeout: %v", cfg.UpstreamTimeout())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
store:
  backend: bolt
upstream:
  provider: ark
  model: custom-model
analysis:
  retention: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARK_API_KEY", "secret-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "bolt" || cfg.Store.Path != "history.db" {
		t.Errorf("bolt backend should default its path to history.db, got %s", cfg.Store.Path)
	}
	if cfg.Upstream.Model != "custom-model" {
		t.Errorf("model: %s", cfg.Upstream.Model)
	}
	if cfg.Analysis.Retention != 10 {
		t.Errorf("retention: %d", cfg.Analysis.Retention)
	}
	if cfg.Upstream.APIKey != "secret-key" {
		t.Errorf("API key must come from the environment, got %q", cfg.Upstream.APIKey)
	}
}

func TestLoad_OpenAIKeyEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("upstream:\n  provider: openai\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "oai-key")
	t.Setenv("ARK_API_KEY", "ark-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.APIKey != "oai-key" {
		t.Errorf("openai provider must read OPENAI_API_KEY, got %q", cfg.Upstream.APIKey)
	}
}

func TestDSNHelpers(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db"
	cfg.Database.Port = 3306
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Name = "friendlens"

	want := "u:p@tcp(db:3306)/friendlens?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("mysql dsn: %s", got)
	}
	if got := cfg.PostgresDSN(); got != "host=db port=3306 user=u password=p dbname=friendlens sslmode=disable" {
		t.Errorf("postgres dsn: %s", got)
	}
}
