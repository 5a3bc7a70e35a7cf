package transporte

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/gestaourbana/municipio/internal/http/middleware"
)

// Handler orquestra as rotas de frota e montagem de viagens.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transporte", func(r chi.Router) {
		r.Post("/veiculos", h.handleCreateVehicle)
		r.Get("/veiculos", h.handleListVehicles)
		r.Post("/veiculos/{id}/status", h.handleVehicleStatus)
		r.Post("/motoristas", h.handleCreateDriver)
		r.Get("/motoristas", h.handleListDrivers)
		r.Post("/motoristas/{id}/status", h.handleDriverStatus)
		r.Post("/solicitacoes", h.handleCreateRequest)

		r.Post("/viagens/montar", h.handleAssemble)
		r.Get("/viagens/preview", h.handlePreview)
		r.Get("/viagens", h.handleListTrips)
		r.Get("/viagens/{id}", h.handleGetTrip)
		r.Post("/viagens/{id}/concluir", h.handleCompleteTrip)
		r.Post("/viagens/{id}/cancelar", h.handleCancelTrip)
	})
}

func (h *Handler) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	var body struct {
		Placa          string `json:"placa"`
		Modelo         string `json:"modelo"`
		Capacidade     int    `json:"capacidade"`
		Acessibilidade bool   `json:"acessibilidade"`
		Km             int64  `json:"km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	vehicle, err := h.service.RegisterVehicle(ctx, CreateVehicleInput{
		TenantID:       tenantID,
		Placa:          body.Placa,
		Modelo:         body.Modelo,
		Capacidade:     body.Capacidade,
		Acessibilidade: body.Acessibilidade,
		Km:             body.Km,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"veiculo": vehicle})
}

func (h *Handler) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	vehicles, err := h.service.ListVehicles(ctx, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"veiculos": vehicles})
}

func (h *Handler) handleVehicleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	var body struct {
		Status ResourceStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	vehicle, err := h.service.SetVehicleAvailability(r.Context(), id, tenantID, body.Status)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"veiculo": vehicle})
}

func (h *Handler) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	var body struct {
		Nome        string  `json:"nome"`
		CNH         string  `json:"cnh"`
		ValidadeCNH string  `json:"validade_cnh"`
		Telefone    *string `json:"telefone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	validade, err := time.Parse("2006-01-02", body.ValidadeCNH)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "validade_cnh inválida", nil)
		return
	}

	driver, err := h.service.RegisterDriver(ctx, CreateDriverInput{
		TenantID:    tenantID,
		Nome:        body.Nome,
		CNH:         body.CNH,
		ValidadeCNH: validade,
		Telefone:    body.Telefone,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"motorista": driver})
}

func (h *Handler) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	drivers, err := h.service.ListDrivers(ctx, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"motoristas": drivers})
}

func (h *Handler) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	var body struct {
		Status ResourceStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	driver, err := h.service.SetDriverAvailability(r.Context(), id, tenantID, body.Status)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"motorista": driver})
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	var body struct {
		ProtocoloID          uuid.UUID  `json:"protocolo_id"`
		CidadaoID            uuid.UUID  `json:"cidadao_id"`
		AcompanhanteID       *uuid.UUID `json:"acompanhante_id"`
		Destino              string     `json:"destino"`
		DataViagem           string     `json:"data_viagem"`
		NecessidadeEspecial  bool       `json:"necessidade_especial"`
		DescricaoNecessidade *string    `json:"descricao_necessidade"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	travelDate, err := time.Parse("2006-01-02", body.DataViagem)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "data_viagem inválida", nil)
		return
	}

	req, err := h.service.RegisterRequest(ctx, CreateRequestInput{
		TenantID:                tenantID,
		ProtocolID:              body.ProtocoloID,
		CitizenID:               body.CidadaoID,
		CompanionID:             body.AcompanhanteID,
		Destination:             body.Destino,
		TravelDate:              travelDate,
		SpecialNeeds:            body.NecessidadeEspecial,
		SpecialNeedsDescription: body.DescricaoNecessidade,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"solicitacao": req})
}

func (h *Handler) handleAssemble(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	var body struct {
		Destino      string `json:"destino"`
		DataViagem   string `json:"data_viagem"`
		HorarioSaida string `json:"horario_saida"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	travelDate, err := time.Parse("2006-01-02", body.DataViagem)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "data_viagem inválida", nil)
		return
	}

	result, err := h.service.Assemble(ctx, AssembleInput{
		TenantID:    tenantID,
		TravelDate:  travelDate,
		Destination: body.Destino,
		Departure:   body.HorarioSaida,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	logAssemble(ctx, result, start)
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}

	travelDate, err := time.Parse("2006-01-02", r.URL.Query().Get("data"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "data inválida", nil)
		return
	}

	preview, err := h.service.PreviewAssemble(ctx, tenantID, travelDate, r.URL.Query().Get("destino"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleListTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	trips, err := h.service.ListTrips(ctx, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viagens": trips})
}

func (h *Handler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	trip, err := h.service.GetTrip(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viagem": trip})
}

func (h *Handler) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	trip, err := h.service.CompleteTrip(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viagem": trip})
}

func (h *Handler) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantAsUUID(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "tenant inválido", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return
	}
	trip, err := h.service.CancelTrip(r.Context(), id, tenantID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viagem": trip})
}

func tenantAsUUID(ctx context.Context) (uuid.UUID, error) {
	return uuid.Parse(httpmiddleware.GetTenant(ctx))
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, ErrTenantMismatch):
		writeError(w, http.StatusForbidden, "TENANT_MISMATCH", "registro pertence a outro tenant", nil)
	case errors.Is(err, ErrNoRequests):
		writeError(w, http.StatusNotFound, "NO_REQUESTS", err.Error(), nil)
	case errors.Is(err, ErrNoVehicle):
		writeError(w, http.StatusConflict, "NO_VEHICLE", err.Error(), nil)
	case errors.Is(err, ErrNoDriver):
		writeError(w, http.StatusConflict, "NO_DRIVER", err.Error(), nil)
	case errors.Is(err, ErrResourceInUse):
		writeError(w, http.StatusConflict, "RESOURCE_IN_USE", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("transporte handler error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

func logAssemble(ctx context.Context, result *AssembleResult, start time.Time) {
	logger := log.Ctx(ctx)
	if logger == nil {
		logger = &log.Logger
	}
	logger.Info().
		Str("viagem_id", result.Trip.ID.String()).
		Str("destino", result.Trip.Destination).
		Int("passageiros", result.Total).
		Dur("duration", time.Since(start)).
		Msg("viagem montada")
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
