package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gestaourbana/municipio/internal/auth"
	"github.com/gestaourbana/municipio/internal/config"
	httpmiddleware "github.com/gestaourbana/municipio/internal/http/middleware"
	"github.com/gestaourbana/municipio/internal/protocolo"
	"github.com/gestaourbana/municipio/internal/storage"
	"github.com/gestaourbana/municipio/internal/tenant"
	"github.com/gestaourbana/municipio/internal/transporte"
)

const readyTimeout = 2 * time.Second

// Handler agrega as dependências de infraestrutura dos endpoints de
// saúde e o estado compartilhado do roteador.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter monta o roteador completo: diretório de tenants, protocolos
// e transporte, com o middleware padrão do projeto.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, jwtManager *auth.JWTManager) (http.Handler, error) {
	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	tenantService := tenant.NewService(tenant.NewRepository(pool), redisClient, cfg.TenantCacheTTL)
	tenantHandler := tenant.NewHandler(tenantService)

	blobs, err := newUploader(cfg.Storage)
	if err != nil {
		return nil, err
	}

	protocoloRepo := protocolo.NewRepository(pool)
	protocoloService := protocolo.NewService(protocoloRepo, tenantService)
	protocoloHandler := protocolo.NewHandler(protocoloService, blobs)

	transporteService := transporte.NewService(transporte.NewRepository(pool))
	transporteHandler := transporte.NewHandler(transporteService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(jwtManager))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))
		private.Use(httpmiddleware.RequireStaff)

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAdmin)
			tenant.Mount(admin, tenantHandler)
		})

		private.Group(func(scoped chi.Router) {
			scoped.Use(httpmiddleware.TenantScope)
			protocolo.Mount(scoped, protocoloHandler)
			transporte.Mount(scoped, transporteHandler)
		})
	})

	return r, nil
}

// newUploader escolhe o backend de blobs: S3/R2 quando configurado,
// caso contrário uploads de conteúdo ficam desabilitados.
func newUploader(cfg config.StorageConfig) (storage.Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return storage.NoopUploader{}, nil
	}
	return storage.NewS3Uploader(storage.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
}

// Health responde imediatamente; não toca dependências.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready verifica banco e redis antes de aceitar tráfego.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "DB", "banco indisponível", nil)
		return
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "REDIS", "redis indisponível", nil)
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
