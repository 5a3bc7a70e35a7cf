package protocolo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Pendências bloqueiam a conclusão do protocolo. Abrir a primeira em um
// protocolo PROGRESSO o leva a PENDENCIA; fechar a última o devolve a
// PROGRESSO. Ambos os efeitos acontecem na mesma transação da pendência.

// ListPendings devolve as pendências do protocolo.
func (r *Repository) ListPendings(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Pending, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, protocolID, actorTenant); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, selectPending+` WHERE protocolo_id = $1 ORDER BY created_at`, protocolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pending
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// OpenPending cria a pendência e aplica o efeito colateral sobre o
// status do protocolo pai.
func (r *Repository) OpenPending(ctx context.Context, input OpenPendingInput) (*Pending, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	protocol, err := lockProtocol(ctx, tx, input.ProtocolID)
	if err != nil {
		return nil, err
	}
	if protocol.TenantID != input.ActorTenant {
		return nil, fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, protocol.ID)
	}
	if protocol.Status.Terminal() {
		return nil, fmt.Errorf("%w: protocolo %s", ErrInvalidTransition, protocol.Status)
	}

	p := Pending{
		ID:          uuid.New(),
		ProtocolID:  input.ProtocolID,
		Type:        input.Type,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      PendingOpen,
		DueDate:     input.DueDate,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO protocolo_pendencias (id, protocolo_id, tipo, descricao, prioridade, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.ProtocolID, p.Type, p.Description, p.Priority, p.Status, p.DueDate).Scan(&p.CreatedAt)
	if err != nil {
		return nil, err
	}

	next := StatusAfterPendingOpened(protocol.Status)
	if next != protocol.Status {
		if _, err := tx.Exec(ctx, `UPDATE protocolos SET status = $2, updated_at = now() WHERE id = $1`, protocol.ID, next); err != nil {
			return nil, err
		}
		if err := insertHistory(ctx, tx, protocol.ID, ActionPendingOpened, &protocol.Status, &next, strPtr(input.Description), input.ActorID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolvePending fecha a pendência como RESOLVED.
func (r *Repository) ResolvePending(ctx context.Context, pendingID, actorTenant uuid.UUID, resolution string, actorID *uuid.UUID) (*Pending, error) {
	return r.closePending(ctx, pendingID, actorTenant, PendingResolved, resolution, actorID)
}

// CancelPending fecha a pendência como CANCELLED.
func (r *Repository) CancelPending(ctx context.Context, pendingID, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Pending, error) {
	return r.closePending(ctx, pendingID, actorTenant, PendingCancelled, reason, actorID)
}

func (r *Repository) closePending(ctx context.Context, pendingID, actorTenant uuid.UUID, to PendingStatus, text string, actorID *uuid.UUID) (*Pending, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := scanPending(tx.QueryRow(ctx, selectPending+` WHERE id = $1 FOR UPDATE`, pendingID))
	if err != nil {
		return nil, fmt.Errorf("pendência %s: %w", pendingID, err)
	}

	if err := CanTransitionPending(p.Status, to); err != nil {
		return nil, err
	}

	protocol, err := lockProtocol(ctx, tx, p.ProtocolID)
	if err != nil {
		return nil, err
	}
	if protocol.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: protocolo %s", ErrTenantMismatch, protocol.ID)
	}

	now := time.Now()
	p.Status = to
	p.Resolution = &text
	p.ResolvedAt = &now

	_, err = tx.Exec(ctx, `
		UPDATE protocolo_pendencias
		SET status = $2, resolucao = $3, resolved_at = $4
		WHERE id = $1
	`, p.ID, p.Status, p.Resolution, p.ResolvedAt)
	if err != nil {
		return nil, err
	}

	var openRemaining int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM protocolo_pendencias
		WHERE protocolo_id = $1 AND status = $2
	`, p.ProtocolID, PendingOpen).Scan(&openRemaining)
	if err != nil {
		return nil, err
	}

	next := StatusAfterPendingClosed(protocol.Status, openRemaining)
	if next != protocol.Status {
		if _, err := tx.Exec(ctx, `UPDATE protocolos SET status = $2, updated_at = now() WHERE id = $1`, protocol.ID, next); err != nil {
			return nil, err
		}
		if err := insertHistory(ctx, tx, protocol.ID, ActionStatusChanged, &protocol.Status, &next, strPtr("última pendência fechada"), actorID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

const selectPending = `
	SELECT id, protocolo_id, tipo, descricao, prioridade, status, due_date, resolucao, resolved_at, created_at
	FROM protocolo_pendencias
`

func scanPending(row pgx.Row) (*Pending, error) {
	var p Pending
	err := row.Scan(&p.ID, &p.ProtocolID, &p.Type, &p.Description, &p.Priority, &p.Status, &p.DueDate, &p.Resolution, &p.ResolvedAt, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
