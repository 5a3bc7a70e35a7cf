package tenant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("tenant não encontrado")
	ErrCitizenNotFound = errors.New("cidadão não encontrado")
	ErrPoolReserved    = errors.New("tenant reservado do sistema")
	ErrInactive        = errors.New("tenant inativo")
	ErrInvalidInput    = errors.New("dados inválidos")
)

// PoolTenantID é o identificador fixo da fila de espera: o tenant que
// abriga cidadãos cuja prefeitura ainda não contratou a plataforma.
// Nunca é regenerado e a camada de persistência rejeita remoção ou reuso.
const PoolTenantID = "00000000-0000-4000-8000-000000000000"

const (
	poolSlug = "sem-prefeitura"
	poolName = "Cidadãos sem prefeitura"
)

// PoolTenant devolve o UUID reservado da fila de espera.
func PoolTenant() uuid.UUID {
	return uuid.MustParse(PoolTenantID)
}

// IsPool indica se o identificador é a fila de espera.
func IsPool(tenantID uuid.UUID) bool {
	return tenantID == PoolTenant()
}

// Status de um tenant na plataforma.
type Status string

const (
	StatusActive    Status = "ATIVO"
	StatusSuspended Status = "SUSPENSO"
	StatusSystem    Status = "SYSTEM"
)

// Tenant representa um município/cliente na plataforma.
type Tenant struct {
	ID          uuid.UUID      `json:"id"`
	Slug        string         `json:"slug"`
	DisplayName string         `json:"display_name"`
	Status      Status         `json:"status"`
	Plan        string         `json:"plan"`
	Settings    map[string]any `json:"settings"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Ref é a referência mínima usada por outros módulos.
type Ref struct {
	ID     uuid.UUID `json:"id"`
	Slug   string    `json:"slug"`
	Status Status    `json:"status"`
}

// Citizen pertence sempre a exatamente um tenant; a fila de espera conta
// como tenant válido para este fim.
type Citizen struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Nome      string    `json:"nome"`
	CPF       string    `json:"cpf"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTenantInput contém os campos necessários para registrar um tenant.
type CreateTenantInput struct {
	Slug        string
	DisplayName string
	Plan        string
	Settings    map[string]any
}

// CreateCitizenInput registra um cidadão; TenantID nulo cai na fila de espera.
type CreateCitizenInput struct {
	Nome     string
	CPF      string
	Email    string
	TenantID *uuid.UUID
}
