package protocolo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/gestaourbana/municipio/internal/http/middleware"
	"github.com/gestaourbana/municipio/internal/storage"
	"github.com/gestaourbana/municipio/internal/tenant"
	"github.com/gestaourbana/municipio/internal/validate"
)

// Handler orquestra as rotas do módulo de protocolos.
type Handler struct {
	service *Service
	blobs   storage.Uploader
}

func NewHandler(service *Service, blobs storage.Uploader) *Handler {
	if blobs == nil {
		blobs = storage.NoopUploader{}
	}
	return &Handler{service: service, blobs: blobs}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/protocolos", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/numero/{numero}", h.handleGetByNumber)
		r.Get("/cidadao/{id}", h.handleListByCitizen)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/iniciar", h.handleStart)
			r.Post("/concluir", h.handleComplete)
			r.Post("/cancelar", h.handleCancel)
			r.Post("/atribuir", h.handleAssign)
			r.Post("/comentarios", h.handleComment)
			r.Get("/historico", h.handleHistory)
			r.Get("/etapas", h.handleListStages)
			r.Get("/pendencias", h.handleListPendings)
			r.Post("/pendencias", h.handleOpenPending)
			r.Get("/documentos", h.handleListDocuments)
			r.Post("/documentos", h.handleRequestDocument)
		})
	})

	r.Route("/etapas/{id}", func(r chi.Router) {
		r.Post("/iniciar", h.handleStartStage)
		r.Post("/concluir", h.handleCompleteStage)
		r.Post("/falhar", h.handleFailStage)
		r.Post("/pular", h.handleSkipStage)
		r.Post("/anotar", h.handleStageNotes)
	})

	r.Route("/pendencias/{id}", func(r chi.Router) {
		r.Post("/resolver", h.handleResolvePending)
		r.Post("/cancelar", h.handleCancelPending)
	})

	r.Route("/documentos/{id}", func(r chi.Router) {
		r.Post("/enviar", h.handleUploadDocument)
		r.Post("/analisar", h.handleReviewDocument)
		r.Post("/aprovar", h.handleApproveDocument)
		r.Post("/rejeitar", h.handleRejectDocument)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var body struct {
		Titulo    string         `json:"titulo"`
		CidadaoID uuid.UUID      `json:"cidadao_id"`
		ServicoID uuid.UUID      `json:"servico_id"`
		Dados     map[string]any `json:"dados"`
		Latitude  *float64       `json:"latitude"`
		Longitude *float64       `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}

	proto, err := h.service.Create(ctx, CreateProtocolInput{
		Title:       body.Titulo,
		CitizenID:   body.CidadaoID,
		ServiceID:   body.ServicoID,
		FormData:    body.Dados,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		CreatedBy:   actorID(ctx),
		ActorTenant: tenantID,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	logRequest(ctx, "POST /protocolos", start)
	writeJSON(w, http.StatusCreated, map[string]any{"protocolo": proto})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		status = &st
	}

	protos, err := h.service.ListByTenant(ctx, tenantID, status)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocolos": protos})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	proto, err := h.service.Get(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	proto, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "numero"), tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleListByCitizen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	protos, err := h.service.ListByCitizen(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocolos": protos})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}

	proto, err := h.service.Start(ctx, id, tenantID, actorID(ctx))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	logRequest(ctx, "POST /protocolos/{id}/iniciar", start)
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	proto, err := h.service.Complete(ctx, id, tenantID, actorID(ctx))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	logRequest(ctx, "POST /protocolos/{id}/concluir", start)
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Motivo string `json:"motivo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}

	proto, err := h.service.Cancel(ctx, id, tenantID, body.Motivo, actorID(ctx))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	logRequest(ctx, "POST /protocolos/{id}/cancelar", start)
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		ResponsavelID uuid.UUID `json:"responsavel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ResponsavelID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "responsável inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	proto, err := h.service.Assign(r.Context(), id, tenantID, body.ResponsavelID, actorID(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocolo": proto})
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Texto string `json:"texto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	if err := h.service.Comment(r.Context(), id, tenantID, body.Texto, actorID(r.Context())); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"historico": entries})
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stages, err := h.service.ListStages(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapas": stages})
}

func (h *Handler) handleStartStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stage, err := h.service.StartStage(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapa": stage})
}

func (h *Handler) handleCompleteStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Notas *string `json:"notas"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
			return
		}
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stage, err := h.service.CompleteStage(r.Context(), id, tenantID, body.Notas)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapa": stage})
}

func (h *Handler) handleFailStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Motivo string `json:"motivo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stage, err := h.service.FailStage(r.Context(), id, tenantID, body.Motivo)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapa": stage})
}

func (h *Handler) handleSkipStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Motivo *string `json:"motivo"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
			return
		}
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stage, err := h.service.SkipStage(r.Context(), id, tenantID, body.Motivo)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapa": stage})
}

func (h *Handler) handleStageNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Notas string `json:"notas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	stage, err := h.service.AppendStageNotes(r.Context(), id, tenantID, body.Notas)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"etapa": stage})
}

func (h *Handler) handleListPendings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	pendings, err := h.service.ListPendings(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendencias": pendings})
}

func (h *Handler) handleOpenPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Tipo       string     `json:"tipo"`
		Descricao  string     `json:"descricao"`
		Prioridade int16      `json:"prioridade"`
		Prazo      *time.Time `json:"prazo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}

	pending, err := h.service.OpenPending(ctx, OpenPendingInput{
		ProtocolID:  id,
		Type:        body.Tipo,
		Description: body.Descricao,
		Priority:    body.Prioridade,
		DueDate:     body.Prazo,
		ActorID:     actorID(ctx),
		ActorTenant: tenantID,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	logRequest(ctx, "POST /protocolos/{id}/pendencias", start)
	writeJSON(w, http.StatusCreated, map[string]any{"pendencia": pending})
}

func (h *Handler) handleResolvePending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Resolucao string `json:"resolucao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	pending, err := h.service.ResolvePending(r.Context(), id, tenantID, body.Resolucao, actorID(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendencia": pending})
}

func (h *Handler) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Motivo string `json:"motivo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	pending, err := h.service.CancelPending(r.Context(), id, tenantID, body.Motivo, actorID(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendencia": pending})
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	docs, err := h.service.ListDocuments(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentos": docs})
}

func (h *Handler) handleRequestDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Tipo        string `json:"tipo"`
		Obrigatorio bool   `json:"obrigatorio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	doc, err := h.service.RequestDocument(r.Context(), RequestDocumentInput{
		ProtocolID:   id,
		DocumentType: body.Tipo,
		Required:     body.Obrigatorio,
		ActorTenant:  tenantID,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"documento": doc})
}

// handleUploadDocument aceita a chave de um blob já armazenado ou o
// conteúdo em base64 para subir ao bucket antes de registrar o envio.
func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		FileKey     string `json:"file_key"`
		Conteudo    string `json:"conteudo_base64"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	fileKey := body.FileKey
	if fileKey == "" && body.Conteudo != "" {
		raw, err := base64.StdEncoding.DecodeString(body.Conteudo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "conteudo_base64 inválido", nil)
			return
		}
		key := fmt.Sprintf("documentos/%s/%d", id, time.Now().UnixNano())
		result, err := h.blobs.Upload(ctx, storage.UploadInput{Key: key, Body: raw, ContentType: body.ContentType})
		if err != nil {
			writeInternalError(w, err)
			return
		}
		fileKey = key
		if result.URL != "" {
			fileKey = result.URL
		}
	}

	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	doc, err := h.service.UploadDocument(ctx, id, tenantID, fileKey)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documento": doc})
}

func (h *Handler) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	doc, err := h.service.ReviewDocument(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documento": doc})
}

func (h *Handler) handleApproveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	doc, err := h.service.ApproveDocument(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documento": doc})
}

func (h *Handler) handleRejectDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Motivo string `json:"motivo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	doc, err := h.service.RejectDocument(r.Context(), id, tenantID, body.Motivo)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documento": doc})
}

// requestTenant extrai o tenant do token; sem tenant válido nenhuma
// rota do módulo opera.
func requestTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return uuid.Nil, false
	}
	return tenantID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return uuid.Nil, false
	}
	return id, true
}

func actorID(ctx context.Context) *uuid.UUID {
	sub, err := uuid.Parse(httpmiddleware.GetSubject(ctx))
	if err != nil {
		return nil
	}
	return &sub
}

func tenantAsUUID(ctx context.Context) (uuid.UUID, error) {
	return uuid.Parse(httpmiddleware.GetTenant(ctx))
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrServiceNotFound),
		errors.Is(err, tenant.ErrCitizenNotFound), errors.Is(err, validate.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, ErrTenantMismatch), errors.Is(err, validate.ErrTenantMismatch):
		writeError(w, http.StatusForbidden, "TENANT_MISMATCH", "registro pertence a outro tenant", nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOutOfOrder):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrIncompleteRequirements):
		writeError(w, http.StatusUnprocessableEntity, "INCOMPLETE_REQUIREMENTS", err.Error(), nil)
	case errors.Is(err, ErrMissingResolution), errors.Is(err, ErrInvalidInput),
		errors.Is(err, validate.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeInternalError(w, err)
	}
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("protocolo handler error")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

func logRequest(ctx context.Context, label string, start time.Time) {
	logger := log.Ctx(ctx)
	if logger == nil {
		logger = &log.Logger
	}
	reqID := chimiddleware.GetReqID(ctx)
	logger.Info().Str("request_id", reqID).Str("label", label).Dur("duration", time.Since(start)).Msg("protocolo_request")
}

// Helpers de resposta JSON compatíveis com o resto do projeto.
type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any            `json:"data"`
	Error *errorResponse `json:"error"`
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: payload, Error: nil})
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Data: nil, Error: &errorResponse{Code: code, Message: message, Details: details}})
}
