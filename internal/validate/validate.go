package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound       = errors.New("entidade não encontrada")
	ErrTenantMismatch = errors.New("entidade pertence a outro tenant")
	ErrUnknownKind    = errors.New("tipo de entidade desconhecido")
)

// Querier é o subconjunto de pgx.Tx necessário para a checagem. A
// validação roda na MESMA transação da escrita que protege, para que uma
// reatribuição de tenant concorrente não abra janela entre check e uso.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Kind nomeia uma tabela de domínio protegida pela validação.
type Kind string

const (
	KindCitizen  Kind = "cidadaos"
	KindPatient  Kind = "pacientes"
	KindSchool   Kind = "escolas"
	KindStudent  Kind = "alunos"
	KindVehicle  Kind = "veiculos"
	KindDriver   Kind = "motoristas"
	KindProperty Kind = "propriedades_rurais"
	KindFamily   Kind = "familias"
	KindUnit     Kind = "unidades_saude"
)

// fieldRefs é o mapeamento fechado e versionado de campos de formulário
// para a tabela referenciada. Incluir um novo campo protegido é mudança
// de código, não configuração.
var fieldRefs = map[string]Kind{
	"citizenId":      KindCitizen,
	"acompanhanteId": KindCitizen,
	"patientId":      KindPatient,
	"schoolId":       KindSchool,
	"studentId":      KindStudent,
	"vehicleId":      KindVehicle,
	"driverId":       KindDriver,
	"propertyId":     KindProperty,
	"familyId":       KindFamily,
	"unitId":         KindUnit,
}

// FieldKind devolve a tabela protegida associada a um nome de campo.
func FieldKind(field string) (Kind, bool) {
	kind, ok := fieldRefs[field]
	return kind, ok
}

// ValidateOwnership confirma que a entidade referenciada existe e pertence
// ao tenant esperado. Leitura pura: a ausência de erro é o único sinal de
// sucesso.
func ValidateOwnership(ctx context.Context, q Querier, kind Kind, entityID uuid.UUID, wantTenant uuid.UUID) error {
	if _, ok := kindTables[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	// kind vem do conjunto fechado acima; nunca de entrada do usuário.
	query := fmt.Sprintf(`SELECT tenant_id FROM %s WHERE id = $1`, kind)

	var tenantID uuid.UUID
	if err := q.QueryRow(ctx, query, entityID).Scan(&tenantID); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, entityID)
		}
		return err
	}

	if tenantID != wantTenant {
		return fmt.Errorf("%w: %s %s", ErrTenantMismatch, kind, entityID)
	}

	return nil
}

// CheckPayload percorre os dados de formulário de um protocolo e valida
// todo campo reconhecido como referência de entidade. Campos fora do
// mapeamento são ignorados.
func CheckPayload(ctx context.Context, q Querier, payload map[string]any, wantTenant uuid.UUID) error {
	for field, raw := range payload {
		kind, ok := fieldRefs[field]
		if !ok {
			continue
		}

		str, ok := raw.(string)
		if !ok || str == "" {
			continue
		}

		id, err := uuid.Parse(str)
		if err != nil {
			return fmt.Errorf("campo %s: %w", field, err)
		}

		if err := ValidateOwnership(ctx, q, kind, id, wantTenant); err != nil {
			return fmt.Errorf("campo %s: %w", field, err)
		}
	}

	return nil
}

var kindTables = func() map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(fieldRefs))
	for _, kind := range fieldRefs {
		set[kind] = struct{}{}
	}
	return set
}()
