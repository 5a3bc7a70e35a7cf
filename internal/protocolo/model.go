package protocolo

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound               = errors.New("protocolo não encontrado")
	ErrServiceNotFound        = errors.New("serviço não encontrado")
	ErrInvalidTransition      = errors.New("transição de status inválida")
	ErrIncompleteRequirements = errors.New("requisitos incompletos")
	ErrMissingResolution      = errors.New("justificativa obrigatória")
	ErrInvalidInput           = errors.New("dados inválidos")
	ErrOutOfOrder             = errors.New("etapa fora de ordem")
	ErrTenantMismatch         = errors.New("protocolo pertence a outro tenant")
)

// ServiceKind distingue serviços que capturam dados de formulário dos
// puramente informativos.
type ServiceKind string

const (
	ServiceComDados ServiceKind = "COM_DADOS"
	ServiceSemDados ServiceKind = "SEM_DADOS"
)

// CatalogService é a entrada do catálogo à qual o protocolo se vincula.
type CatalogService struct {
	ID              uuid.UUID      `json:"id"`
	TenantID        uuid.UUID      `json:"tenant_id"`
	Name            string         `json:"name"`
	Kind            ServiceKind    `json:"kind"`
	DefaultPriority int16          `json:"default_priority"`
	FormSchema      map[string]any `json:"form_schema,omitempty"`
	// WorkflowTemplate lista nomes de etapas na ordem de execução;
	// vazio significa serviço sem workflow interno.
	WorkflowTemplate []string `json:"workflow_template,omitempty"`
	// RequiredDocs lista tipos de documento obrigatórios para conclusão.
	RequiredDocs []string `json:"required_docs,omitempty"`
}

// Protocol é uma solicitação de cidadão e seu ciclo de vida rastreado.
// Nunca é removido fisicamente: cancelamento é status, não DELETE.
type Protocol struct {
	ID          uuid.UUID      `json:"id"`
	Number      string         `json:"number"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	CitizenID   uuid.UUID      `json:"citizen_id"`
	ServiceID   uuid.UUID      `json:"service_id"`
	Status      Status         `json:"status"`
	Priority    int16          `json:"priority"`
	Title       string         `json:"title"`
	CustomData  map[string]any `json:"custom_data,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	AssignedTo  *uuid.UUID     `json:"assigned_to,omitempty"`
	CancelledBy *uuid.UUID     `json:"cancelled_by,omitempty"`
	CancelNote  *string        `json:"cancel_note,omitempty"`
	ConcludedAt *time.Time     `json:"concluded_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Stage é uma etapa ordenada do workflow interno de um protocolo.
type Stage struct {
	ID          uuid.UUID   `json:"id"`
	ProtocolID  uuid.UUID   `json:"protocol_id"`
	StageName   string      `json:"stage_name"`
	StageOrder  int         `json:"stage_order"`
	Status      StageStatus `json:"status"`
	Notes       *string     `json:"notes,omitempty"`
	Reason      *string     `json:"reason,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Pending é um item bloqueante de clarificação/requisito.
type Pending struct {
	ID          uuid.UUID     `json:"id"`
	ProtocolID  uuid.UUID     `json:"protocol_id"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Priority    int16         `json:"priority"`
	Status      PendingStatus `json:"status"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Resolution  *string       `json:"resolution,omitempty"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Document é uma solicitação/envio de anexo com aprovação individual.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	ProtocolID   uuid.UUID      `json:"protocol_id"`
	DocumentType string         `json:"document_type"`
	Required     bool           `json:"required"`
	Status       DocumentStatus `json:"status"`
	FileKey      *string        `json:"file_key,omitempty"`
	RejectReason *string        `json:"reject_reason,omitempty"`
	ReviewedAt   *time.Time     `json:"reviewed_at,omitempty"`
	UploadedAt   *time.Time     `json:"uploaded_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HistoryEntry é uma linha da trilha de auditoria do protocolo.
type HistoryEntry struct {
	ID         uuid.UUID  `json:"id"`
	ProtocolID uuid.UUID  `json:"protocol_id"`
	Action     string     `json:"action"`
	OldStatus  *Status    `json:"old_status,omitempty"`
	NewStatus  *Status    `json:"new_status,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateProtocolInput reúne os dados de submissão de um protocolo.
// ActorTenant é o tenant do token e deve coincidir com o do serviço.
type CreateProtocolInput struct {
	Title       string
	CitizenID   uuid.UUID
	ServiceID   uuid.UUID
	FormData    map[string]any
	Latitude    *float64
	Longitude   *float64
	CreatedBy   *uuid.UUID
	ActorTenant uuid.UUID
}

// OpenPendingInput descreve a abertura de uma pendência.
type OpenPendingInput struct {
	ProtocolID  uuid.UUID
	Type        string
	Description string
	Priority    int16
	DueDate     *time.Time
	ActorID     *uuid.UUID
	ActorTenant uuid.UUID
}

// RequestDocumentInput solicita um documento ao cidadão.
type RequestDocumentInput struct {
	ProtocolID   uuid.UUID
	DocumentType string
	Required     bool
	ActorTenant  uuid.UUID
}
