package protocolo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaourbana/municipio/internal/validate"
)

const dbTimeout = 5 * time.Second

// Repository fornece acesso aos dados de protocolos. Operações de vários
// passos abrem transação própria: efeito parcial (protocolo em PENDENCIA
// sem a pendência gravada, por exemplo) é violação de correção.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetService busca a entrada do catálogo.
func (r *Repository) GetService(ctx context.Context, id uuid.UUID) (*CatalogService, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
		SELECT id, tenant_id, nome, tipo, prioridade_padrao, form_schema, workflow_template, documentos_obrigatorios
		FROM servicos
		WHERE id = $1
	`

	var (
		s         CatalogService
		schemaRaw []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.TenantID, &s.Name, &s.Kind, &s.DefaultPriority, &schemaRaw, &s.WorkflowTemplate, &s.RequiredDocs)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	if len(schemaRaw) > 0 {
		if err := json.Unmarshal(schemaRaw, &s.FormSchema); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

// CreateProtocol insere o protocolo com as etapas do template e os
// documentos obrigatórios do serviço. A validação de posse das
// referências do payload roda na mesma transação do INSERT.
func (r *Repository) CreateProtocol(ctx context.Context, input CreateProtocolInput, svc *CatalogService) (*Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if svc.Kind == ServiceComDados && len(input.FormData) > 0 {
		if err := validate.CheckPayload(ctx, tx, input.FormData, svc.TenantID); err != nil {
			return nil, err
		}
	}

	number, err := nextProtocolNumber(ctx, tx, svc.TenantID)
	if err != nil {
		return nil, err
	}

	customJSON, err := jsonMarshalMap(input.FormData)
	if err != nil {
		return nil, err
	}

	const insert = `
		INSERT INTO protocolos (id, numero, tenant_id, cidadao_id, servico_id, status, prioridade, titulo, custom_data, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	p := Protocol{
		ID:         uuid.New(),
		Number:     number,
		TenantID:   svc.TenantID,
		CitizenID:  input.CitizenID,
		ServiceID:  svc.ID,
		Status:     StatusVinculado,
		Priority:   svc.DefaultPriority,
		Title:      input.Title,
		CustomData: input.FormData,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
	}

	err = tx.QueryRow(ctx, insert, p.ID, p.Number, p.TenantID, p.CitizenID, p.ServiceID, p.Status, p.Priority, p.Title, customJSON, p.Latitude, p.Longitude).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for i, stageName := range svc.WorkflowTemplate {
		_, err = tx.Exec(ctx, `
			INSERT INTO protocolo_etapas (id, protocolo_id, nome, ordem, status)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), p.ID, stageName, i+1, StagePending)
		if err != nil {
			return nil, err
		}
	}

	for _, docType := range svc.RequiredDocs {
		_, err = tx.Exec(ctx, `
			INSERT INTO protocolo_documentos (id, protocolo_id, tipo, obrigatorio, status)
			VALUES ($1, $2, $3, TRUE, $4)
		`, uuid.New(), p.ID, docType, DocPending)
		if err != nil {
			return nil, err
		}
	}

	if err := insertHistory(ctx, tx, p.ID, ActionCreated, nil, &p.Status, strPtr("Protocolo criado e vinculado"), input.CreatedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProtocol busca protocolo pelo identificador, recusando protocolos
// de outro tenant.
func (r *Repository) GetProtocol(ctx context.Context, id, actorTenant uuid.UUID) (*Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanProtocol(r.db.QueryRow(ctx, selectProtocol+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if p.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, id)
	}
	return p, nil
}

// GetProtocolByNumber busca protocolo pelo número público. A sequência
// de numeração é por tenant, então a consulta exige o tenant do token.
func (r *Repository) GetProtocolByNumber(ctx context.Context, number string, actorTenant uuid.UUID) (*Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanProtocol(r.db.QueryRow(ctx, selectProtocol+` WHERE numero = $1 AND tenant_id = $2`, number, actorTenant))
}

// ListByCitizen devolve os protocolos de um cidadão no tenant do ator.
func (r *Repository) ListByCitizen(ctx context.Context, citizenID, actorTenant uuid.UUID) ([]Protocol, error) {
	return r.list(ctx, selectProtocol+` WHERE cidadao_id = $1 AND tenant_id = $2 ORDER BY created_at DESC`, citizenID, actorTenant)
}

// ListByTenant devolve os protocolos de um tenant, com filtro opcional
// de status.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Protocol, error) {
	if status != nil {
		return r.list(ctx, selectProtocol+` WHERE tenant_id = $1 AND status = $2 ORDER BY created_at DESC`, tenantID, *status)
	}
	return r.list(ctx, selectProtocol+` WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Protocol
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// StartProtocol move VINCULADO → PROGRESSO. PENDENCIA não aceita
// iniciar: o retorno a PROGRESSO é efeito exclusivo do fechamento da
// última pendência.
func (r *Repository) StartProtocol(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	return r.transition(ctx, id, actorTenant, func(p *Protocol) error {
		if err := CanStart(p.Status); err != nil {
			return err
		}
		p.Status = StatusProgresso
		return nil
	}, ActionStarted, nil, actorID)
}

// CompleteProtocol move PROGRESSO → CONCLUIDO após conferir pendências e
// documentos obrigatórios dentro da mesma transação.
func (r *Repository) CompleteProtocol(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockProtocol(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, id)
	}

	var openPendings int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM protocolo_pendencias
		WHERE protocolo_id = $1 AND status = $2
	`, id, PendingOpen).Scan(&openPendings)
	if err != nil {
		return nil, err
	}

	var docsNotApproved int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM protocolo_documentos
		WHERE protocolo_id = $1 AND obrigatorio AND status <> $2
	`, id, DocApproved).Scan(&docsNotApproved)
	if err != nil {
		return nil, err
	}

	if err := CanComplete(p.Status, openPendings, docsNotApproved); err != nil {
		return nil, err
	}

	old := p.Status
	p.Status = StatusConcluido
	now := time.Now()
	p.ConcludedAt = &now

	_, err = tx.Exec(ctx, `
		UPDATE protocolos SET status = $2, concluded_at = $3, updated_at = now() WHERE id = $1
	`, id, p.Status, now)
	if err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, id, ActionConcluded, &old, &p.Status, nil, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// CancelProtocol move qualquer status não terminal para CANCELADO com a
// justificativa gravada em caráter permanente.
func (r *Repository) CancelProtocol(ctx context.Context, id, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Protocol, error) {
	return r.transition(ctx, id, actorTenant, func(p *Protocol) error {
		if err := CanTransition(p.Status, StatusCancelado); err != nil {
			return err
		}
		p.Status = StatusCancelado
		p.CancelNote = &reason
		p.CancelledBy = actorID
		return nil
	}, ActionCancelled, &reason, actorID)
}

// AssignProtocol atribui o protocolo a um servidor.
func (r *Repository) AssignProtocol(ctx context.Context, id, actorTenant, assignee uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	return r.transition(ctx, id, actorTenant, func(p *Protocol) error {
		if p.Status.Terminal() {
			return fmt.Errorf("%w: protocolo %s", ErrInvalidTransition, p.Status)
		}
		p.AssignedTo = &assignee
		return nil
	}, ActionAssigned, nil, actorID)
}

// transition centraliza o padrão lock → conferir tenant → mutar →
// persistir → histórico.
func (r *Repository) transition(ctx context.Context, id, actorTenant uuid.UUID, mutate func(*Protocol) error, action string, comment *string, actorID *uuid.UUID) (*Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockProtocol(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, id)
	}

	old := p.Status
	if err := mutate(p); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE protocolos
		SET status = $2, assigned_to = $3, cancel_note = $4, cancelled_by = $5, updated_at = now()
		WHERE id = $1
	`, id, p.Status, p.AssignedTo, p.CancelNote, p.CancelledBy)
	if err != nil {
		return nil, err
	}

	var oldPtr *Status
	if old != p.Status {
		oldPtr = &old
	}
	if err := insertHistory(ctx, tx, id, action, oldPtr, &p.Status, comment, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// AddComment registra comentário na trilha de auditoria.
func (r *Repository) AddComment(ctx context.Context, id, actorTenant uuid.UUID, comment string, actorID *uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, id, actorTenant); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO protocolo_historico (id, protocolo_id, acao, comentario, ator_id)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), id, ActionComment, comment, actorID)
	return err
}

// GetHistory devolve a trilha completa, mais recente primeiro.
func (r *Repository) GetHistory(ctx context.Context, id, actorTenant uuid.UUID) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, id, actorTenant); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, protocolo_id, acao, status_anterior, status_novo, comentario, ator_id, created_at
		FROM protocolo_historico
		WHERE protocolo_id = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.ProtocolID, &h.Action, &h.OldStatus, &h.NewStatus, &h.Comment, &h.ActorID, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const selectProtocol = `
	SELECT id, numero, tenant_id, cidadao_id, servico_id, status, prioridade, titulo, custom_data,
	       latitude, longitude, assigned_to, cancelled_by, cancel_note, concluded_at, created_at, updated_at
	FROM protocolos
`

func lockProtocol(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Protocol, error) {
	return scanProtocol(tx.QueryRow(ctx, selectProtocol+` WHERE id = $1 FOR UPDATE`, id))
}

func scanProtocol(row pgx.Row) (*Protocol, error) {
	var (
		p         Protocol
		customRaw []byte
	)

	err := row.Scan(&p.ID, &p.Number, &p.TenantID, &p.CitizenID, &p.ServiceID, &p.Status, &p.Priority, &p.Title, &customRaw,
		&p.Latitude, &p.Longitude, &p.AssignedTo, &p.CancelledBy, &p.CancelNote, &p.ConcludedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(customRaw) > 0 {
		if err := json.Unmarshal(customRaw, &p.CustomData); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// nextProtocolNumber gera o número público ANO-NNNNNN a partir de uma
// sequência por tenant e ano. Sequência compartilhada entre tenants
// vazaria o volume de protocolos de um município para outro.
func nextProtocolNumber(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (string, error) {
	year := time.Now().Year()

	var seq int64
	err := tx.QueryRow(ctx, `
		INSERT INTO protocolo_sequencias (tenant_id, ano, ultimo)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, ano) DO UPDATE SET ultimo = protocolo_sequencias.ultimo + 1
		RETURNING ultimo
	`, tenantID, year).Scan(&seq)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d-%06d", year, seq), nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// checkProtocolTenant confere a posse do protocolo antes de operações
// referenciadas por id. O tenant de um protocolo nunca muda, então a
// checagem vale tanto no pool quanto dentro de transação.
func checkProtocolTenant(ctx context.Context, q rowQuerier, protocolID, actorTenant uuid.UUID) error {
	var tenantID uuid.UUID
	err := q.QueryRow(ctx, `SELECT tenant_id FROM protocolos WHERE id = $1`, protocolID).Scan(&tenantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if tenantID != actorTenant {
		return fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, protocolID)
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, protocolID uuid.UUID, action string, oldStatus, newStatus *Status, comment *string, actorID *uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO protocolo_historico (id, protocolo_id, acao, status_anterior, status_novo, comentario, ator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), protocolID, action, oldStatus, newStatus, comment, actorID)
	return err
}

func jsonMarshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func strPtr(s string) *string { return &s }
