package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	TenantCacheTTL  time.Duration
	Storage         StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig descreve o backend de blobs usado pelos documentos de protocolo.
// Campos vazios significam uploads desabilitados (NoopUploader).
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	cacheTTL, err := parseDurationEnv("TENANT_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.TenantCacheTTL = cacheTTL

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic, err = parseRateLimitEnv("RATE_LIMIT_PUBLIC", RateLimitConfig{RequestsPerSecond: 10, Burst: 20})
	if err != nil {
		return nil, err
	}
	cfg.RateLimitAuth, err = parseRateLimitEnv("RATE_LIMIT_AUTH", RateLimitConfig{RequestsPerSecond: 10, Burst: 40})
	if err != nil {
		return nil, err
	}

	cfg.Storage = StorageConfig{
		Endpoint:  strings.TrimSpace(getEnv("STORAGE_ENDPOINT", "")),
		Region:    strings.TrimSpace(getEnv("STORAGE_REGION", "auto")),
		Bucket:    strings.TrimSpace(getEnv("STORAGE_BUCKET", "")),
		AccessKey: strings.TrimSpace(getEnv("STORAGE_ACCESS_KEY", "")),
		SecretKey: strings.TrimSpace(getEnv("STORAGE_SECRET_KEY", "")),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseRateLimitEnv lê os sufixos _RPS e _BURST do prefixo informado,
// mantendo os defaults quando ausentes.
func parseRateLimitEnv(prefix string, def RateLimitConfig) (RateLimitConfig, error) {
	if val := getEnv(prefix+"_RPS", ""); val != "" {
		rps, err := strconv.ParseFloat(val, 64)
		if err != nil || rps <= 0 {
			return RateLimitConfig{}, errors.New(prefix + "_RPS inválido")
		}
		def.RequestsPerSecond = rps
	}
	if val := getEnv(prefix+"_BURST", ""); val != "" {
		burst, err := strconv.Atoi(val)
		if err != nil || burst < 1 {
			return RateLimitConfig{}, errors.New(prefix + "_BURST inválido")
		}
		def.Burst = burst
	}
	return def, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
