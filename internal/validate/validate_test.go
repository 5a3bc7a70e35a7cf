package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeQuerier simula o lado do banco: entidade por (tabela, id) → tenant.
type fakeQuerier struct {
	rows    map[string]uuid.UUID
	queries int
}

type fakeRow struct {
	tenantID uuid.UUID
	err      error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 1 {
		return errors.New("scan inesperado")
	}
	ptr, ok := dest[0].(*uuid.UUID)
	if !ok {
		return errors.New("destino inesperado")
	}
	*ptr = r.tenantID
	return nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.queries++
	id := args[0].(uuid.UUID)
	for key, tenantID := range f.rows {
		if key == sql+"|"+id.String() {
			return fakeRow{tenantID: tenantID}
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeQuerier) add(kind Kind, id, tenantID uuid.UUID) {
	if f.rows == nil {
		f.rows = map[string]uuid.UUID{}
	}
	sql := "SELECT tenant_id FROM " + string(kind) + " WHERE id = $1"
	f.rows[sql+"|"+id.String()] = tenantID
}

func TestValidateOwnership(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()
	patient := uuid.New()

	q := &fakeQuerier{}
	q.add(KindPatient, patient, tenantA)

	ctx := context.Background()

	if err := ValidateOwnership(ctx, q, KindPatient, patient, tenantA); err != nil {
		t.Fatalf("mesmo tenant deveria passar: %v", err)
	}

	err := ValidateOwnership(ctx, q, KindPatient, patient, tenantB)
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("esperava ErrTenantMismatch, obteve %v", err)
	}

	err = ValidateOwnership(ctx, q, KindPatient, uuid.New(), tenantA)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperava ErrNotFound, obteve %v", err)
	}

	err = ValidateOwnership(ctx, q, Kind("tabela_invalida"), patient, tenantA)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("esperava ErrUnknownKind, obteve %v", err)
	}
}

func TestCheckPayload(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()
	patient := uuid.New()
	school := uuid.New()

	q := &fakeQuerier{}
	q.add(KindPatient, patient, tenantA)
	q.add(KindSchool, school, tenantB)

	ctx := context.Background()

	payload := map[string]any{
		"patientId":   patient.String(),
		"observacoes": "sem referência",
		"quantidade":  float64(3),
	}
	if err := CheckPayload(ctx, q, payload, tenantA); err != nil {
		t.Fatalf("payload válido rejeitado: %v", err)
	}

	// Referência cruzada de tenant sempre falha com TenantMismatch.
	payload["schoolId"] = school.String()
	err := CheckPayload(ctx, q, payload, tenantA)
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("esperava ErrTenantMismatch, obteve %v", err)
	}

	payload["schoolId"] = uuid.New().String()
	err = CheckPayload(ctx, q, payload, tenantA)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperava ErrNotFound, obteve %v", err)
	}

	payload["schoolId"] = "não-uuid"
	if err := CheckPayload(ctx, q, payload, tenantA); err == nil {
		t.Fatal("uuid inválido deveria falhar")
	}
}

func TestFieldKindClosedMapping(t *testing.T) {
	if kind, ok := FieldKind("patientId"); !ok || kind != KindPatient {
		t.Fatalf("patientId deveria mapear para pacientes, obteve %s", kind)
	}
	if _, ok := FieldKind("campoLivre"); ok {
		t.Fatal("campo fora do mapeamento não pode ser protegido")
	}
}
