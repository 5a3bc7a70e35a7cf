package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaourbana/municipio/internal/util"
)

// DirectoryRepository abstrai o armazenamento do diretório de tenants.
type DirectoryRepository interface {
	GetTenant(context.Context, uuid.UUID) (*Tenant, error)
	GetTenantBySlug(context.Context, string) (*Tenant, error)
	ListTenants(context.Context) ([]Tenant, error)
	CreateTenant(context.Context, CreateTenantInput) (*Tenant, error)
	UpsertPool(context.Context) (*Tenant, error)
	DeleteTenant(context.Context, uuid.UUID) error
	GetCitizen(context.Context, uuid.UUID) (*Citizen, error)
	CreateCitizen(context.Context, CreateCitizenInput) (*Citizen, error)
	AdoptCitizens(context.Context, uuid.UUID) ([]uuid.UUID, error)
}

// Service contém as regras do diretório: resolução cidadão→tenant,
// manutenção da fila de espera e adoção de cidadãos.
type Service struct {
	repo     DirectoryRepository
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService cria uma nova instância de Service.
func NewService(repo DirectoryRepository, cache *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func citizenCacheKey(citizenID uuid.UUID) string {
	return "citizen:tenant:" + citizenID.String()
}

// ResolveTenant devolve o tenant ao qual o cidadão pertence.
func (s *Service) ResolveTenant(ctx context.Context, citizenID uuid.UUID) (Ref, error) {
	key := citizenCacheKey(citizenID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var ref Ref
			if json.Unmarshal(data, &ref) == nil {
				return ref, nil
			}
		}
	}

	citizen, err := s.repo.GetCitizen(ctx, citizenID)
	if err != nil {
		return Ref{}, err
	}

	t, err := s.repo.GetTenant(ctx, citizen.TenantID)
	if err != nil {
		return Ref{}, err
	}

	ref := Ref{ID: t.ID, Slug: t.Slug, Status: t.Status}

	if s.cache != nil {
		if payload, err := json.Marshal(ref); err == nil {
			_ = s.cache.Set(ctx, key, payload, s.cacheTTL).Err()
		}
	}

	return ref, nil
}

// EnsurePoolExists garante a existência da fila de espera com os campos
// canônicos. Idempotente: N chamadas produzem exatamente um registro.
func (s *Service) EnsurePoolExists(ctx context.Context) error {
	t, err := s.repo.UpsertPool(ctx)
	if err != nil {
		return fmt.Errorf("fila de espera: %w", err)
	}

	log.Debug().Str("tenant_id", t.ID.String()).Msg("fila de espera normalizada")
	return nil
}

// Create registra um novo tenant de município.
func (s *Service) Create(ctx context.Context, input CreateTenantInput) (*Tenant, error) {
	input.Slug = normalizeSlug(input.Slug)
	if input.Slug == "" {
		return nil, fmt.Errorf("%w: slug obrigatório", ErrInvalidInput)
	}
	if err := util.RequireString(input.DisplayName, "display_name"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Settings == nil {
		input.Settings = map[string]any{}
	}

	return s.repo.CreateTenant(ctx, input)
}

// Get devolve um tenant pelo id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.GetTenant(ctx, id)
}

// List devolve os tenants de municípios (sem a fila de espera).
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// GetCitizen busca um cidadão pelo identificador.
func (s *Service) GetCitizen(ctx context.Context, id uuid.UUID) (*Citizen, error) {
	return s.repo.GetCitizen(ctx, id)
}

// RegisterCitizen cadastra um cidadão; sem tenant definido ele entra na
// fila de espera até a prefeitura ativar um tenant próprio.
func (s *Service) RegisterCitizen(ctx context.Context, input CreateCitizenInput) (*Citizen, error) {
	if err := util.RequireString(input.Nome, "nome"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Email != "" {
		if err := util.ValidateEmail(input.Email); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	if input.TenantID != nil {
		t, err := s.repo.GetTenant(ctx, *input.TenantID)
		if err != nil {
			return nil, err
		}
		if t.Status == StatusSuspended {
			return nil, ErrInactive
		}
	}

	return s.repo.CreateCitizen(ctx, input)
}

// AdoptCitizens responde ao evento de ativação de um tenant: move os
// cidadãos da fila de espera para ele e invalida o cache de resolução.
func (s *Service) AdoptCitizens(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if IsPool(tenantID) {
		return 0, ErrPoolReserved
	}

	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if t.Status != StatusActive {
		return 0, ErrInactive
	}

	moved, err := s.repo.AdoptCitizens(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		for _, citizenID := range moved {
			_ = s.cache.Del(ctx, citizenCacheKey(citizenID)).Err()
		}
	}

	log.Info().Str("tenant_id", tenantID.String()).Int("cidadaos", len(moved)).Msg("cidadãos adotados da fila de espera")
	return len(moved), nil
}

// Delete remove um tenant de município; a fila de espera é intocável.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTenant(ctx, id)
}

func normalizeSlug(slug string) string {
	slug = strings.TrimSpace(strings.ToLower(slug))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
