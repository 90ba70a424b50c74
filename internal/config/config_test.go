package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.AccessTokenTTLMins != 480 {
		t.Fatalf("expected default token ttl 480, got %d", cfg.AccessTokenTTLMins)
	}
	if cfg.PinUnlockTTLMins != 10 {
		t.Fatalf("expected default pin unlock ttl 10, got %d", cfg.PinUnlockTTLMins)
	}
	if cfg.Production() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.Production() {
		t.Fatalf("expected production env")
	}
	if cfg.AccessTokenTTLMins != 60 {
		t.Fatalf("expected token ttl 60, got %d", cfg.AccessTokenTTLMins)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
}

func TestLoadClampsBadTTLs(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("PIN_UNLOCK_TTL_MINUTES", "0")

	cfg := Load()

	if cfg.AccessTokenTTLMins != 480 {
		t.Fatalf("expected clamped token ttl 480, got %d", cfg.AccessTokenTTLMins)
	}
	if cfg.PinUnlockTTLMins != 10 {
		t.Fatalf("expected clamped pin ttl 10, got %d", cfg.PinUnlockTTLMins)
	}
}
