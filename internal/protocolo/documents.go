package protocolo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Documentos seguem PENDING → UPLOADED → UNDER_REVIEW → APPROVED/REJECTED,
// com reenvio permitido após rejeição. Documento não obrigatório nunca
// bloqueia a conclusão, qualquer que seja seu estado.

// ListDocuments devolve os documentos do protocolo.
func (r *Repository) ListDocuments(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, protocolID, actorTenant); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, selectDocument+` WHERE protocolo_id = $1 ORDER BY created_at`, protocolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// RequestDocument registra a solicitação de um anexo ao cidadão.
func (r *Repository) RequestDocument(ctx context.Context, input RequestDocumentInput) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, input.ProtocolID, input.ActorTenant); err != nil {
		return nil, err
	}

	d := Document{
		ID:           uuid.New(),
		ProtocolID:   input.ProtocolID,
		DocumentType: input.DocumentType,
		Required:     input.Required,
		Status:       DocPending,
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO protocolo_documentos (id, protocolo_id, tipo, obrigatorio, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, d.ID, d.ProtocolID, d.DocumentType, d.Required, d.Status).Scan(&d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UploadDocument grava a chave do blob e move para UPLOADED. Legal a
// partir de PENDING ou de um REJECTED anterior.
func (r *Repository) UploadDocument(ctx context.Context, documentID, actorTenant uuid.UUID, fileKey string) (*Document, error) {
	return r.documentTransition(ctx, documentID, actorTenant, DocUploaded, func(d *Document) {
		now := time.Now()
		d.FileKey = &fileKey
		d.UploadedAt = &now
		d.RejectReason = nil
	})
}

// ReviewDocument marca o documento como em análise.
func (r *Repository) ReviewDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error) {
	return r.documentTransition(ctx, documentID, actorTenant, DocUnderReview, nil)
}

// ApproveDocument aprova o anexo enviado.
func (r *Repository) ApproveDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error) {
	return r.documentTransition(ctx, documentID, actorTenant, DocApproved, func(d *Document) {
		now := time.Now()
		d.ReviewedAt = &now
	})
}

// RejectDocument rejeita o anexo com o motivo gravado.
func (r *Repository) RejectDocument(ctx context.Context, documentID, actorTenant uuid.UUID, reason string) (*Document, error) {
	return r.documentTransition(ctx, documentID, actorTenant, DocRejected, func(d *Document) {
		now := time.Now()
		d.ReviewedAt = &now
		d.RejectReason = &reason
	})
}

func (r *Repository) documentTransition(ctx context.Context, documentID, actorTenant uuid.UUID, to DocumentStatus, mutate func(*Document)) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := scanDocument(tx.QueryRow(ctx, selectDocument+` WHERE id = $1 FOR UPDATE`, documentID))
	if err != nil {
		return nil, fmt.Errorf("documento %s: %w", documentID, err)
	}

	if err := checkProtocolTenant(ctx, tx, d.ProtocolID, actorTenant); err != nil {
		return nil, err
	}

	if err := CanTransitionDocument(d.Status, to); err != nil {
		return nil, err
	}

	d.Status = to
	if mutate != nil {
		mutate(d)
	}

	_, err = tx.Exec(ctx, `
		UPDATE protocolo_documentos
		SET status = $2, file_key = $3, motivo_rejeicao = $4, uploaded_at = $5, reviewed_at = $6
		WHERE id = $1
	`, d.ID, d.Status, d.FileKey, d.RejectReason, d.UploadedAt, d.ReviewedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

const selectDocument = `
	SELECT id, protocolo_id, tipo, obrigatorio, status, file_key, motivo_rejeicao, reviewed_at, uploaded_at, created_at
	FROM protocolo_documentos
`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ProtocolID, &d.DocumentType, &d.Required, &d.Status, &d.FileKey, &d.RejectReason, &d.ReviewedAt, &d.UploadedAt, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
