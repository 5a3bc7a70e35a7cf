package config

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/municipio_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
}

func TestLoadRateLimitDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimitPublic.RequestsPerSecond != 10 || cfg.RateLimitPublic.Burst != 20 {
		t.Fatalf("defaults públicos inesperados: %+v", cfg.RateLimitPublic)
	}
	if cfg.RateLimitAuth.RequestsPerSecond != 10 || cfg.RateLimitAuth.Burst != 40 {
		t.Fatalf("defaults de auth inesperados: %+v", cfg.RateLimitAuth)
	}
}

func TestLoadRateLimitOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_PUBLIC_RPS", "25")
	t.Setenv("RATE_LIMIT_PUBLIC_BURST", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimitPublic.RequestsPerSecond != 25 || cfg.RateLimitPublic.Burst != 50 {
		t.Fatalf("override público não aplicado: %+v", cfg.RateLimitPublic)
	}
	// Um prefixo não altera o outro.
	if cfg.RateLimitAuth.RequestsPerSecond != 10 || cfg.RateLimitAuth.Burst != 40 {
		t.Fatalf("limites de auth não deveriam mudar: %+v", cfg.RateLimitAuth)
	}
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_AUTH_RPS", "zero")

	if _, err := Load(); err == nil {
		t.Fatal("RPS não numérico deveria falhar o carregamento")
	}
}
