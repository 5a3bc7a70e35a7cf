package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type stubDirectory struct {
	tenants     map[uuid.UUID]*Tenant
	citizens    map[uuid.UUID]*Citizen
	poolUpserts int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		tenants:  map[uuid.UUID]*Tenant{},
		citizens: map[uuid.UUID]*Citizen{},
	}
}

func (s *stubDirectory) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *stubDirectory) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	for _, t := range s.tenants {
		if t.Slug == slug {
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubDirectory) ListTenants(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	for _, t := range s.tenants {
		if IsPool(t.ID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *stubDirectory) CreateTenant(ctx context.Context, input CreateTenantInput) (*Tenant, error) {
	if input.Slug == poolSlug {
		return nil, ErrPoolReserved
	}
	t := &Tenant{ID: uuid.New(), Slug: input.Slug, DisplayName: input.DisplayName, Status: StatusActive, Plan: input.Plan, Settings: input.Settings}
	s.tenants[t.ID] = t
	return t, nil
}

func (s *stubDirectory) UpsertPool(ctx context.Context) (*Tenant, error) {
	s.poolUpserts++
	pool, ok := s.tenants[PoolTenant()]
	if !ok {
		pool = &Tenant{ID: PoolTenant(), CreatedAt: time.Now()}
		s.tenants[PoolTenant()] = pool
	}
	pool.Slug = poolSlug
	pool.DisplayName = poolName
	pool.Status = StatusSystem
	return pool, nil
}

func (s *stubDirectory) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if IsPool(id) {
		return ErrPoolReserved
	}
	if _, ok := s.tenants[id]; !ok {
		return ErrNotFound
	}
	delete(s.tenants, id)
	return nil
}

func (s *stubDirectory) GetCitizen(ctx context.Context, id uuid.UUID) (*Citizen, error) {
	c, ok := s.citizens[id]
	if !ok {
		return nil, ErrCitizenNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *stubDirectory) CreateCitizen(ctx context.Context, input CreateCitizenInput) (*Citizen, error) {
	tenantID := PoolTenant()
	if input.TenantID != nil {
		tenantID = *input.TenantID
	}
	c := &Citizen{ID: uuid.New(), TenantID: tenantID, Nome: input.Nome, CPF: input.CPF, Email: input.Email}
	s.citizens[c.ID] = c
	return c, nil
}

func (s *stubDirectory) AdoptCitizens(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var moved []uuid.UUID
	for _, c := range s.citizens {
		if IsPool(c.TenantID) {
			c.TenantID = tenantID
			moved = append(moved, c.ID)
		}
	}
	return moved, nil
}

func newTestService(t *testing.T) (*Service, *stubDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newStubDirectory()
	return NewService(repo, cache, time.Minute), repo, mr
}

func TestEnsurePoolExistsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.EnsurePoolExists(ctx); err != nil {
			t.Fatalf("EnsurePoolExists: %v", err)
		}
	}

	if repo.poolUpserts != 5 {
		t.Fatalf("esperava 5 upserts, obteve %d", repo.poolUpserts)
	}

	pool, err := repo.GetTenant(ctx, PoolTenant())
	if err != nil {
		t.Fatalf("GetTenant: %v", err)
	}
	if pool.Slug != poolSlug || pool.Status != StatusSystem {
		t.Fatalf("fila de espera fora do canônico: %+v", pool)
	}

	// Edição acidental é reparada pela próxima chamada.
	repo.tenants[PoolTenant()].DisplayName = "renomeado"
	if err := svc.EnsurePoolExists(ctx); err != nil {
		t.Fatalf("EnsurePoolExists: %v", err)
	}
	if repo.tenants[PoolTenant()].DisplayName != poolName {
		t.Fatal("campos canônicos não foram reaplicados")
	}
}

func TestPoolExcludedFromListings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.EnsurePoolExists(ctx); err != nil {
		t.Fatalf("EnsurePoolExists: %v", err)
	}
	if _, err := svc.Create(ctx, CreateTenantInput{Slug: "zabele", DisplayName: "Zabelê"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tenants, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, tn := range tenants {
		if IsPool(tn.ID) {
			t.Fatal("fila de espera não pode aparecer em listagens")
		}
	}
	if len(tenants) != 1 {
		t.Fatalf("esperava 1 tenant, obteve %d", len(tenants))
	}
}

func TestPoolCannotBeDeleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.EnsurePoolExists(ctx); err != nil {
		t.Fatalf("EnsurePoolExists: %v", err)
	}
	if err := svc.Delete(ctx, PoolTenant()); err != ErrPoolReserved {
		t.Fatalf("esperava ErrPoolReserved, obteve %v", err)
	}
}

func TestResolveTenantCachesAndMisses(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ResolveTenant(ctx, uuid.New()); err != ErrCitizenNotFound {
		t.Fatalf("esperava ErrCitizenNotFound, obteve %v", err)
	}

	_ = svc.EnsurePoolExists(ctx)
	tn, _ := svc.Create(ctx, CreateTenantInput{Slug: "zabele", DisplayName: "Zabelê"})
	citizen, _ := repo.CreateCitizen(ctx, CreateCitizenInput{Nome: "Maria", TenantID: &tn.ID})

	ref, err := svc.ResolveTenant(ctx, citizen.ID)
	if err != nil {
		t.Fatalf("ResolveTenant: %v", err)
	}
	if ref.ID != tn.ID {
		t.Fatalf("tenant errado: %s", ref.ID)
	}

	if !mr.Exists(citizenCacheKey(citizen.ID)) {
		t.Fatal("resolução não foi cacheada")
	}
}

func TestAdoptCitizensMovesPoolAndInvalidatesCache(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	_ = svc.EnsurePoolExists(ctx)
	tn, _ := svc.Create(ctx, CreateTenantInput{Slug: "zabele", DisplayName: "Zabelê"})

	pooled, _ := repo.CreateCitizen(ctx, CreateCitizenInput{Nome: "João"})
	if _, err := svc.ResolveTenant(ctx, pooled.ID); err != nil {
		t.Fatalf("ResolveTenant: %v", err)
	}

	moved, err := svc.AdoptCitizens(ctx, tn.ID)
	if err != nil {
		t.Fatalf("AdoptCitizens: %v", err)
	}
	if moved != 1 {
		t.Fatalf("esperava 1 cidadão movido, obteve %d", moved)
	}

	if mr.Exists(citizenCacheKey(pooled.ID)) {
		t.Fatal("cache de resolução deveria ter sido invalidado")
	}

	ref, err := svc.ResolveTenant(ctx, pooled.ID)
	if err != nil {
		t.Fatalf("ResolveTenant: %v", err)
	}
	if ref.ID != tn.ID {
		t.Fatalf("cidadão continua na fila de espera: %s", ref.ID)
	}

	if _, err := svc.AdoptCitizens(ctx, PoolTenant()); err != ErrPoolReserved {
		t.Fatalf("esperava ErrPoolReserved, obteve %v", err)
	}
}
