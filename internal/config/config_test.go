package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("SUMMARY_CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %q", cfg.Address())
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.SummaryTTLSeconds != 300 {
		t.Fatalf("expected default summary ttl 300, got %d", cfg.SummaryTTLSeconds)
	}
}

func TestLoadRejectsBogusTTLs(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "not-a-number")
	t.Setenv("SUMMARY_CACHE_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.SummaryTTLSeconds != 300 {
		t.Fatalf("expected fallback summary ttl 300, got %d", cfg.SummaryTTLSeconds)
	}
}
