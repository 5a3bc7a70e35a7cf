package tenant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler orquestra as rotas do diretório de tenants.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Post("/pool/ensure", h.handleEnsurePool)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/adotar-cidadaos", h.handleAdoptCitizens)
	})

	r.Route("/cidadaos", func(r chi.Router) {
		r.Post("/", h.handleRegisterCitizen)
		r.Get("/{id}/tenant", h.handleResolveTenant)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slug         string         `json:"slug"`
		Nome         string         `json:"nome"`
		Plano        string         `json:"plano"`
		Configuracao map[string]any `json:"configuracao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	t, err := h.service.Create(r.Context(), CreateTenantInput{
		Slug:        body.Slug,
		DisplayName: body.Nome,
		Plan:        body.Plano,
		Settings:    body.Configuracao,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tenant": t})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.List(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// handleEnsurePool garante a existência da fila de espera. Idempotente:
// N chamadas resultam em exatamente uma linha com os campos canônicos.
func (h *Handler) handleEnsurePool(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EnsurePoolExists(r.Context()); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pool_id": PoolTenantID})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenant": t})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAdoptCitizens(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	moved, err := h.service.AdoptCitizens(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	log.Info().Str("tenant_id", id.String()).Int("cidadaos", moved).Msg("cidadaos adotados da fila de espera")
	writeJSON(w, http.StatusOK, map[string]any{"adotados": moved})
}

func (h *Handler) handleRegisterCitizen(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nome     string     `json:"nome"`
		CPF      string     `json:"cpf"`
		Email    string     `json:"email"`
		TenantID *uuid.UUID `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	c, err := h.service.RegisterCitizen(r.Context(), CreateCitizenInput{
		Nome:     body.Nome,
		CPF:      body.CPF,
		Email:    body.Email,
		TenantID: body.TenantID,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cidadao": c})
}

func (h *Handler) handleResolveTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	ref, err := h.service.ResolveTenant(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenant": ref})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCitizenNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, ErrPoolReserved):
		writeError(w, http.StatusConflict, "POOL_RESERVED", err.Error(), nil)
	case errors.Is(err, ErrInactive):
		writeError(w, http.StatusConflict, "TENANT_INACTIVE", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("tenant handler error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
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
