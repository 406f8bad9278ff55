package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_URL", "PUBLIC_HOST", "HISTORY_ENABLED", "MODEL_PATH"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.APIURL != "" {
		t.Errorf("Expected empty API URL, got %q", cfg.APIURL)
	}
	if cfg.PublicHost != "localhost" {
		t.Errorf("Expected localhost, got %q", cfg.PublicHost)
	}
	if !cfg.HistoryEnabled {
		t.Error("History should be enabled by default")
	}
	if cfg.ModelPath != "" {
		t.Errorf("Local model should be disabled by default, got %q", cfg.ModelPath)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_URL", "http://inference.internal:8000")
	t.Setenv("HISTORY_ENABLED", "false")
	t.Setenv("FLUSH_INTERVAL", "not-a-number")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.APIURL != "http://inference.internal:8000" {
		t.Errorf("Unexpected API URL %q", cfg.APIURL)
	}
	if cfg.HistoryEnabled {
		t.Error("History should be disabled")
	}
	if cfg.ArchiveFlushSeconds != 30 {
		t.Errorf("Invalid value should fall back to 30, got %d", cfg.ArchiveFlushSeconds)
	}
}

func TestPageURL(t *testing.T) {
	cfg := &Config{PublicScheme: "https", PublicHost: "parts.example.com", Port: 443}
	if got := cfg.PageURL().String(); got != "https://parts.example.com" {
		t.Errorf("Expected https://parts.example.com, got %s", got)
	}

	cfg = &Config{PublicScheme: "http", PublicHost: "10.0.0.5", Port: 8080}
	page := cfg.PageURL()
	if page.Hostname() != "10.0.0.5" || page.Port() != "8080" {
		t.Errorf("Unexpected page URL %s", page)
	}
}
