package protocolo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gestaourbana/municipio/internal/tenant"
)

// ProtocolRepository abstrai a persistência do ciclo de vida de
// protocolos. Toda operação por id carrega o tenant do ator: o
// repositório recusa com ErrTenantMismatch registros de outro tenant.
type ProtocolRepository interface {
	GetService(context.Context, uuid.UUID) (*CatalogService, error)
	CreateProtocol(context.Context, CreateProtocolInput, *CatalogService) (*Protocol, error)
	GetProtocol(ctx context.Context, id, actorTenant uuid.UUID) (*Protocol, error)
	GetProtocolByNumber(ctx context.Context, number string, actorTenant uuid.UUID) (*Protocol, error)
	ListByCitizen(ctx context.Context, citizenID, actorTenant uuid.UUID) ([]Protocol, error)
	ListByTenant(context.Context, uuid.UUID, *Status) ([]Protocol, error)
	StartProtocol(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error)
	CompleteProtocol(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error)
	CancelProtocol(ctx context.Context, id, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Protocol, error)
	AssignProtocol(ctx context.Context, id, actorTenant, assignee uuid.UUID, actorID *uuid.UUID) (*Protocol, error)
	AddComment(ctx context.Context, id, actorTenant uuid.UUID, comment string, actorID *uuid.UUID) error
	GetHistory(ctx context.Context, id, actorTenant uuid.UUID) ([]HistoryEntry, error)

	ListStages(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Stage, error)
	StartStage(ctx context.Context, stageID, actorTenant uuid.UUID) (*Stage, error)
	CompleteStage(ctx context.Context, stageID, actorTenant uuid.UUID, notes *string) (*Stage, error)
	FailStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason string) (*Stage, error)
	SkipStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason *string) (*Stage, error)
	AppendStageNotes(ctx context.Context, stageID, actorTenant uuid.UUID, notes string) (*Stage, error)

	ListPendings(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Pending, error)
	OpenPending(context.Context, OpenPendingInput) (*Pending, error)
	ResolvePending(ctx context.Context, pendingID, actorTenant uuid.UUID, resolution string, actorID *uuid.UUID) (*Pending, error)
	CancelPending(ctx context.Context, pendingID, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Pending, error)

	ListDocuments(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Document, error)
	RequestDocument(context.Context, RequestDocumentInput) (*Document, error)
	UploadDocument(ctx context.Context, documentID, actorTenant uuid.UUID, fileKey string) (*Document, error)
	ReviewDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error)
	ApproveDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error)
	RejectDocument(ctx context.Context, documentID, actorTenant uuid.UUID, reason string) (*Document, error)
}

// CitizenDirectory resolve cidadãos para a checagem de coerência de tenant
// na criação.
type CitizenDirectory interface {
	GetCitizen(context.Context, uuid.UUID) (*tenant.Citizen, error)
}

// Service contém as regras do módulo de protocolos.
type Service struct {
	repo     ProtocolRepository
	citizens CitizenDirectory
}

func NewService(repo ProtocolRepository, citizens CitizenDirectory) *Service {
	return &Service{repo: repo, citizens: citizens}
}

// Create cria um protocolo VINCULADO ao serviço informado. O tenant do
// protocolo, do cidadão e do serviço devem coincidir.
func (s *Service) Create(ctx context.Context, input CreateProtocolInput) (*Protocol, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: título obrigatório", ErrInvalidInput)
	}

	svc, err := s.repo.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}

	if input.ActorTenant != svc.TenantID {
		return nil, fmt.Errorf("%w: serviço %s", ErrTenantMismatch, svc.TenantID)
	}

	citizen, err := s.citizens.GetCitizen(ctx, input.CitizenID)
	if err != nil {
		return nil, err
	}
	if citizen.TenantID != svc.TenantID {
		return nil, fmt.Errorf("%w: cidadão %s e serviço %s", ErrTenantMismatch, citizen.TenantID, svc.TenantID)
	}

	if svc.Kind == ServiceSemDados {
		input.FormData = nil
	} else if len(input.FormData) == 0 {
		return nil, fmt.Errorf("%w: serviço exige dados de formulário", ErrInvalidInput)
	}

	return s.repo.CreateProtocol(ctx, input, svc)
}

func (s *Service) Get(ctx context.Context, id, actorTenant uuid.UUID) (*Protocol, error) {
	return s.repo.GetProtocol(ctx, id, actorTenant)
}

func (s *Service) GetByNumber(ctx context.Context, number string, actorTenant uuid.UUID) (*Protocol, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("%w: número obrigatório", ErrInvalidInput)
	}
	return s.repo.GetProtocolByNumber(ctx, number, actorTenant)
}

func (s *Service) ListByCitizen(ctx context.Context, citizenID, actorTenant uuid.UUID) ([]Protocol, error) {
	return s.repo.ListByCitizen(ctx, citizenID, actorTenant)
}

func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Protocol, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, *status)
	}
	return s.repo.ListByTenant(ctx, tenantID, status)
}

// Start inicia a execução a partir de VINCULADO; o ator deve pertencer
// ao mesmo tenant do protocolo.
func (s *Service) Start(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	return s.repo.StartProtocol(ctx, id, actorTenant, actorID)
}

func (s *Service) Complete(ctx context.Context, id, actorTenant uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	return s.repo.CompleteProtocol(ctx, id, actorTenant, actorID)
}

// Cancel encerra o protocolo mantendo o registro. Motivo é obrigatório.
func (s *Service) Cancel(ctx context.Context, id, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Protocol, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: motivo do cancelamento", ErrMissingResolution)
	}
	return s.repo.CancelProtocol(ctx, id, actorTenant, reason, actorID)
}

func (s *Service) Assign(ctx context.Context, id, actorTenant, assignee uuid.UUID, actorID *uuid.UUID) (*Protocol, error) {
	return s.repo.AssignProtocol(ctx, id, actorTenant, assignee, actorID)
}

func (s *Service) Comment(ctx context.Context, id, actorTenant uuid.UUID, comment string, actorID *uuid.UUID) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return fmt.Errorf("%w: comentário vazio", ErrInvalidInput)
	}
	return s.repo.AddComment(ctx, id, actorTenant, comment, actorID)
}

func (s *Service) History(ctx context.Context, id, actorTenant uuid.UUID) ([]HistoryEntry, error) {
	return s.repo.GetHistory(ctx, id, actorTenant)
}

func (s *Service) ListStages(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Stage, error) {
	return s.repo.ListStages(ctx, protocolID, actorTenant)
}

func (s *Service) StartStage(ctx context.Context, stageID, actorTenant uuid.UUID) (*Stage, error) {
	return s.repo.StartStage(ctx, stageID, actorTenant)
}

func (s *Service) CompleteStage(ctx context.Context, stageID, actorTenant uuid.UUID, notes *string) (*Stage, error) {
	return s.repo.CompleteStage(ctx, stageID, actorTenant, notes)
}

// FailStage reprova a etapa; motivo é obrigatório.
func (s *Service) FailStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason string) (*Stage, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: motivo da falha", ErrMissingResolution)
	}
	return s.repo.FailStage(ctx, stageID, actorTenant, reason)
}

func (s *Service) SkipStage(ctx context.Context, stageID, actorTenant uuid.UUID, reason *string) (*Stage, error) {
	return s.repo.SkipStage(ctx, stageID, actorTenant, reason)
}

func (s *Service) AppendStageNotes(ctx context.Context, stageID, actorTenant uuid.UUID, notes string) (*Stage, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, fmt.Errorf("%w: anotação vazia", ErrInvalidInput)
	}
	return s.repo.AppendStageNotes(ctx, stageID, actorTenant, notes)
}

func (s *Service) ListPendings(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Pending, error) {
	return s.repo.ListPendings(ctx, protocolID, actorTenant)
}

func (s *Service) OpenPending(ctx context.Context, input OpenPendingInput) (*Pending, error) {
	input.Description = strings.TrimSpace(input.Description)
	if input.Type == "" || input.Description == "" {
		return nil, fmt.Errorf("%w: tipo e descrição da pendência", ErrInvalidInput)
	}
	return s.repo.OpenPending(ctx, input)
}

// ResolvePending fecha a pendência com a resolução registrada. Resolução
// vazia é rejeitada antes de tocar o banco.
func (s *Service) ResolvePending(ctx context.Context, pendingID, actorTenant uuid.UUID, resolution string, actorID *uuid.UUID) (*Pending, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolução da pendência", ErrMissingResolution)
	}
	return s.repo.ResolvePending(ctx, pendingID, actorTenant, resolution, actorID)
}

func (s *Service) CancelPending(ctx context.Context, pendingID, actorTenant uuid.UUID, reason string, actorID *uuid.UUID) (*Pending, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: motivo do cancelamento", ErrMissingResolution)
	}
	return s.repo.CancelPending(ctx, pendingID, actorTenant, reason, actorID)
}

func (s *Service) ListDocuments(ctx context.Context, protocolID, actorTenant uuid.UUID) ([]Document, error) {
	return s.repo.ListDocuments(ctx, protocolID, actorTenant)
}

func (s *Service) RequestDocument(ctx context.Context, input RequestDocumentInput) (*Document, error) {
	input.DocumentType = strings.TrimSpace(input.DocumentType)
	if input.DocumentType == "" {
		return nil, fmt.Errorf("%w: tipo do documento", ErrInvalidInput)
	}
	return s.repo.RequestDocument(ctx, input)
}

func (s *Service) UploadDocument(ctx context.Context, documentID, actorTenant uuid.UUID, fileKey string) (*Document, error) {
	fileKey = strings.TrimSpace(fileKey)
	if fileKey == "" {
		return nil, fmt.Errorf("%w: arquivo obrigatório", ErrInvalidInput)
	}
	return s.repo.UploadDocument(ctx, documentID, actorTenant, fileKey)
}

func (s *Service) ReviewDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error) {
	return s.repo.ReviewDocument(ctx, documentID, actorTenant)
}

func (s *Service) ApproveDocument(ctx context.Context, documentID, actorTenant uuid.UUID) (*Document, error) {
	return s.repo.ApproveDocument(ctx, documentID, actorTenant)
}

// RejectDocument rejeita o anexo; o motivo alimenta o reenvio pelo cidadão.
func (s *Service) RejectDocument(ctx context.Context, documentID, actorTenant uuid.UUID, reason string) (*Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: motivo da rejeição", ErrMissingResolution)
	}
	return s.repo.RejectDocument(ctx, documentID, actorTenant, reason)
}
