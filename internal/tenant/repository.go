package tenant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaourbana/municipio/internal/db"
)

const dbTimeout = 3 * time.Second

// Repository provê acesso ao armazenamento de tenants e cidadãos.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório do diretório de tenants.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTenant busca tenant pelo identificador.
func (r *Repository) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, slug, display_name, status, plan, settings, created_at, updated_at
        FROM tenants
        WHERE id = $1
    `

	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

// GetTenantBySlug busca tenant pelo slug.
func (r *Repository) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, slug, display_name, status, plan, settings, created_at, updated_at
        FROM tenants
        WHERE slug = $1
    `

	return scanTenant(r.pool.QueryRow(ctx, query, slug))
}

// ListTenants devolve os tenants de municípios; a fila de espera nunca
// aparece em listagens normais.
func (r *Repository) ListTenants(ctx context.Context) ([]Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, slug, display_name, status, plan, settings, created_at, updated_at
        FROM tenants
        WHERE id <> $1
        ORDER BY created_at DESC
    `

	rows, err := r.pool.Query(ctx, query, PoolTenant())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}

	return tenants, rows.Err()
}

// CreateTenant insere um novo tenant e devolve os dados persistidos.
func (r *Repository) CreateTenant(ctx context.Context, input CreateTenantInput) (*Tenant, error) {
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	if slug == poolSlug {
		return nil, ErrPoolReserved
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        INSERT INTO tenants (id, slug, display_name, status, plan, settings)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, slug, display_name, status, plan, settings, created_at, updated_at
    `

	settingsJSON, err := jsonMarshalMap(input.Settings)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		slug,
		strings.TrimSpace(input.DisplayName),
		StatusActive,
		strings.TrimSpace(strings.ToUpper(input.Plan)),
		settingsJSON,
	)

	return scanTenant(row)
}

// UpsertPool cria a fila de espera com o identificador fixo ou reaplica
// os campos canônicos caso já exista. Seguro para rodar a cada deploy.
func (r *Repository) UpsertPool(ctx context.Context) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        INSERT INTO tenants (id, slug, display_name, status, plan, settings)
        VALUES ($1, $2, $3, $4, '', '{}')
        ON CONFLICT (id) DO UPDATE
        SET slug = EXCLUDED.slug,
            display_name = EXCLUDED.display_name,
            status = EXCLUDED.status,
            updated_at = now()
        RETURNING id, slug, display_name, status, plan, settings, created_at, updated_at
    `

	return scanTenant(r.pool.QueryRow(ctx, query, PoolTenant(), poolSlug, poolName, StatusSystem))
}

// DeleteTenant remove um tenant de município. A fila de espera é reservada.
func (r *Repository) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if IsPool(id) {
		return ErrPoolReserved
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCitizen busca cidadão pelo identificador.
func (r *Repository) GetCitizen(ctx context.Context, id uuid.UUID) (*Citizen, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, tenant_id, nome, cpf, email, created_at, updated_at
        FROM cidadaos
        WHERE id = $1
    `

	var c Citizen
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.TenantID, &c.Nome, &c.CPF, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCitizenNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateCitizen registra um cidadão vinculado ao tenant informado.
func (r *Repository) CreateCitizen(ctx context.Context, input CreateCitizenInput) (*Citizen, error) {
	tenantID := PoolTenant()
	if input.TenantID != nil {
		tenantID = *input.TenantID
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        INSERT INTO cidadaos (id, tenant_id, nome, cpf, email)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, tenant_id, nome, cpf, email, created_at, updated_at
    `

	var c Citizen
	err := r.pool.QueryRow(ctx, query,
		uuid.New(),
		tenantID,
		strings.TrimSpace(input.Nome),
		strings.TrimSpace(input.CPF),
		strings.TrimSpace(strings.ToLower(input.Email)),
	).Scan(&c.ID, &c.TenantID, &c.Nome, &c.CPF, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AdoptCitizens move todos os cidadãos da fila de espera para o tenant
// informado. A checagem de status e o UPDATE rodam na mesma transação
// para que um tenant suspenso entre a validação e a adoção não receba
// cidadãos.
func (r *Repository) AdoptCitizens(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var moved []uuid.UUID
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM tenants WHERE id = $1 FOR UPDATE`, tenantID).Scan(&status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		if status != StatusActive {
			return ErrInactive
		}

		const query = `
            UPDATE cidadaos
            SET tenant_id = $2, updated_at = now()
            WHERE tenant_id = $1
            RETURNING id
        `

		rows, err := tx.Query(ctx, query, PoolTenant(), tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			moved = append(moved, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return moved, nil
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t           Tenant
		settingsRaw []byte
	)

	if err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.Plan, &settingsRaw, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	settings, err := decodeJSONMap(settingsRaw)
	if err != nil {
		return nil, err
	}
	t.Settings = settings

	return &t, nil
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}
	return result, nil
}

func jsonMarshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
