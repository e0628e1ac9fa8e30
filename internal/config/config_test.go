package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("want default port 8080, got %d", cfg.Port)
	}
	if cfg.DBPath == "" {
		t.Fatalf("want a default db path")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 || cfg.DBPath != "/tmp/test.db" || cfg.LogLevel != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}
