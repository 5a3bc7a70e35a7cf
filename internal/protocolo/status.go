package protocolo

import "fmt"

// Status do protocolo ao longo do ciclo de vida.
type Status string

const (
	StatusVinculado Status = "VINCULADO"
	StatusProgresso Status = "PROGRESSO"
	StatusConcluido Status = "CONCLUIDO"
	StatusCancelado Status = "CANCELADO"
	StatusPendencia Status = "PENDENCIA"
)

// protocolTransitions é a matriz central de transições legais. Toda
// mudança de status passa por CanTransition; handlers nunca comparam
// strings soltas.
var protocolTransitions = map[Status][]Status{
	StatusVinculado: {StatusProgresso, StatusCancelado},
	StatusProgresso: {StatusPendencia, StatusConcluido, StatusCancelado},
	StatusPendencia: {StatusProgresso, StatusCancelado},
	StatusConcluido: {},
	StatusCancelado: {},
}

// Terminal indica status imutável.
func (s Status) Terminal() bool {
	return s == StatusConcluido || s == StatusCancelado
}

// Valid indica se o valor pertence ao conjunto fechado.
func (s Status) Valid() bool {
	_, ok := protocolTransitions[s]
	return ok
}

// CanTransition valida uma transição de status do protocolo.
func CanTransition(from, to Status) error {
	for _, allowed := range protocolTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

// CanStart valida o início manual da execução. Só VINCULADO aceita
// iniciar: PENDENCIA volta a PROGRESSO exclusivamente pelo fechamento
// da última pendência aberta.
func CanStart(current Status) error {
	if current != StatusVinculado {
		return fmt.Errorf("%w: iniciar exige VINCULADO, protocolo está %s", ErrInvalidTransition, current)
	}
	return nil
}

// CanComplete decide a conclusão: exige PROGRESSO, zero pendências
// abertas e todos os documentos obrigatórios aprovados.
func CanComplete(current Status, openPendings, requiredDocsNotApproved int) error {
	if err := CanTransition(current, StatusConcluido); err != nil {
		return err
	}
	if openPendings > 0 {
		return fmt.Errorf("%w: %d pendência(s) aberta(s)", ErrIncompleteRequirements, openPendings)
	}
	if requiredDocsNotApproved > 0 {
		return fmt.Errorf("%w: %d documento(s) obrigatório(s) não aprovado(s)", ErrIncompleteRequirements, requiredDocsNotApproved)
	}
	return nil
}

// StatusAfterPendingOpened aplica o efeito colateral da abertura de uma
// pendência sobre o status do protocolo.
func StatusAfterPendingOpened(current Status) Status {
	if current == StatusProgresso {
		return StatusPendencia
	}
	return current
}

// StatusAfterPendingClosed aplica o efeito da resolução/cancelamento de
// pendência: a última pendência aberta devolve o protocolo a PROGRESSO.
func StatusAfterPendingClosed(current Status, openRemaining int) Status {
	if current == StatusPendencia && openRemaining == 0 {
		return StatusProgresso
	}
	return current
}

// StageStatus de uma etapa de workflow.
type StageStatus string

const (
	StagePending    StageStatus = "PENDING"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageCompleted  StageStatus = "COMPLETED"
	StageFailed     StageStatus = "FAILED"
	StageSkipped    StageStatus = "SKIPPED"
)

// Terminal indica etapa imutável (exceto notas complementares).
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

var stageTransitions = map[StageStatus][]StageStatus{
	StagePending:    {StageInProgress, StageSkipped},
	StageInProgress: {StageCompleted, StageFailed, StageSkipped},
	StageCompleted:  {},
	StageFailed:     {},
	StageSkipped:    {},
}

// CanTransitionStage valida uma transição de etapa.
func CanTransitionStage(from, to StageStatus) error {
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: etapa %s → %s", ErrInvalidTransition, from, to)
}

// CanStartStage garante execução em ordem: nenhuma etapa de ordem
// anterior pode continuar aberta.
func CanStartStage(target Stage, all []Stage) error {
	if err := CanTransitionStage(target.Status, StageInProgress); err != nil {
		return err
	}
	for _, s := range all {
		if s.StageOrder < target.StageOrder && !s.Status.Terminal() {
			return fmt.Errorf("%w: etapa %d (%s) ainda aberta", ErrOutOfOrder, s.StageOrder, s.StageName)
		}
	}
	return nil
}

// PendingStatus de uma pendência.
type PendingStatus string

const (
	PendingOpen      PendingStatus = "PENDING"
	PendingResolved  PendingStatus = "RESOLVED"
	PendingCancelled PendingStatus = "CANCELLED"
)

var pendingTransitions = map[PendingStatus][]PendingStatus{
	PendingOpen:      {PendingResolved, PendingCancelled},
	PendingResolved:  {},
	PendingCancelled: {},
}

// CanTransitionPending valida uma transição de pendência.
func CanTransitionPending(from, to PendingStatus) error {
	for _, allowed := range pendingTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: pendência %s → %s", ErrInvalidTransition, from, to)
}

// DocumentStatus de um documento solicitado/enviado.
type DocumentStatus string

const (
	DocPending     DocumentStatus = "PENDING"
	DocUploaded    DocumentStatus = "UPLOADED"
	DocUnderReview DocumentStatus = "UNDER_REVIEW"
	DocApproved    DocumentStatus = "APPROVED"
	DocRejected    DocumentStatus = "REJECTED"
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	// REJECTED → UPLOADED permite reenvio após rejeição.
	DocPending:     {DocUploaded},
	DocUploaded:    {DocUnderReview, DocApproved, DocRejected},
	DocUnderReview: {DocApproved, DocRejected},
	DocApproved:    {},
	DocRejected:    {DocUploaded},
}

// CanTransitionDocument valida uma transição de documento.
func CanTransitionDocument(from, to DocumentStatus) error {
	for _, allowed := range documentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: documento %s → %s", ErrInvalidTransition, from, to)
}

// Ações registradas no histórico do protocolo.
const (
	ActionCreated        = "CRIACAO"
	ActionStarted        = "INICIO_EXECUCAO"
	ActionPendingOpened  = "PENDENCIA_IDENTIFICADA"
	ActionConcluded      = "CONCLUSAO"
	ActionCancelled      = "CANCELAMENTO"
	ActionAssigned       = "ATRIBUIDO"
	ActionComment        = "COMENTARIO"
	ActionStatusChanged  = "STATUS_ALTERADO"
	ActionAwaitingTrip   = "AGUARDANDO_VIAGEM"
	ActionDocumentReview = "DOCUMENTO_REVISADO"
)
