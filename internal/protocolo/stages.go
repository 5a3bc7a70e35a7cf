package protocolo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Etapas executam estritamente em ordem; não há etapas paralelas neste
// modelo. Terminais (COMPLETED, FAILED, SKIPPED) são imutáveis exceto
// por notas complementares.

// ListStages devolve as etapas do protocolo em ordem de execução.
func (r *Repository) ListStages(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := checkProtocolTenant(ctx, r.db, protocolID, actorTenant); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, selectStage+` WHERE protocolo_id = $1 ORDER BY ordem`, protocolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// StartStage move PENDING → IN_PROGRESS, recusando com ErrOutOfOrder se
// uma etapa de ordem anterior ainda estiver aberta.
func (r *Repository) StartStage(ctx context.Context, stageID, actorTenant uuid.UUID) (*Stage, error) {
	return r.stageTransition(ctx, stageID, actorTenant, func(target *Stage, siblings []Stage) error {
		if err := CanStartStage(*target, siblings); err != nil {
			return err
		}
		now := time.Now()
		target.Status = StageInProgress
		target.StartedAt = &now
		return nil
	})
}

// CompleteStage move IN_PROGRESS → COMPLETED com carimbo de conclusão.
func (r *Repository) CompleteStage(ctx context.Context, stageID, actorTenant uuid.UUID, notes *string) (*Stage, error) {
	return r.stageTransition(ctx, stageID, actorTenant, func(target *Stage, _ []Stage) error {
		if err := CanTransitionStage(target.Status, StageCompleted); err != nil {
			return err
		}
		now := time.Now()
		target.Status = StageCompleted
		target.CompletedAt = &now
		if notes != nil {
			target.Notes = notes
		}
		return nil
	})
}

// FailStage move IN_PROGRESS → FAILED. Não cancela o protocolo pai: essa
// decisão fica com o servidor.
func (r *Repository) FailStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason string) (*Stage, error) {
	return r.stageTransition(ctx, stageID, actorTenant, func(target *Stage, _ []Stage) error {
		if err := CanTransitionStage(target.Status, StageFailed); err != nil {
			return err
		}
		now := time.Now()
		target.Status = StageFailed
		target.CompletedAt = &now
		target.Reason = &reason
		return nil
	})
}

// SkipStage move PENDING ou IN_PROGRESS → SKIPPED.
func (r *Repository) SkipStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason *string) (*Stage, error) {
	return r.stageTransition(ctx, stageID, actorTenant, func(target *Stage, _ []Stage) error {
		if err := CanTransitionStage(target.Status, StageSkipped); err != nil {
			return err
		}
		now := time.Now()
		target.Status = StageSkipped
		target.CompletedAt = &now
		target.Reason = reason
		return nil
	})
}

// AppendStageNotes acrescenta notas a qualquer etapa, inclusive terminal.
func (r *Repository) AppendStageNotes(ctx context.Context, stageID, actorTenant uuid.UUID, notes string) (*Stage, error) {
	return r.stageTransition(ctx, stageID, actorTenant, func(target *Stage, _ []Stage) error {
		joined := notes
		if target.Notes != nil && *target.Notes != "" {
			joined = *target.Notes + "\n" + notes
		}
		target.Notes = &joined
		return nil
	})
}

func (r *Repository) stageTransition(ctx context.Context, stageID, actorTenant uuid.UUID, mutate func(target *Stage, siblings []Stage) error) (*Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Trava todas as etapas do protocolo: a checagem de ordem precisa de
	// uma visão estável das irmãs.
	rows, err := tx.Query(ctx, selectStage+`
		WHERE protocolo_id = (SELECT protocolo_id FROM protocolo_etapas WHERE id = $1)
		ORDER BY ordem
		FOR UPDATE
	`, stageID)
	if err != nil {
		return nil, err
	}

	var (
		siblings []Stage
		target   *Stage
	)
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if s.ID == stageID {
			target = s
		} else {
			siblings = append(siblings, *s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if target == nil {
		return nil, fmt.Errorf("etapa %s: %w", stageID, ErrNotFound)
	}

	if err := checkProtocolTenant(ctx, tx, target.ProtocolID, actorTenant); err != nil {
		return nil, err
	}

	if err := mutate(target, siblings); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE protocolo_etapas
		SET status = $2, notas = $3, motivo = $4, started_at = $5, completed_at = $6
		WHERE id = $1
	`, target.ID, target.Status, target.Notes, target.Reason, target.StartedAt, target.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return target, nil
}

const selectStage = `
	SELECT id, protocolo_id, nome, ordem, status, notas, motivo, started_at, completed_at, created_at
	FROM protocolo_etapas
`

func scanStage(row pgx.Row) (*Stage, error) {
	var s Stage
	err := row.Scan(&s.ID, &s.ProtocolID, &s.StageName, &s.StageOrder, &s.Status, &s.Notes, &s.Reason, &s.StartedAt, &s.CompletedAt, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
