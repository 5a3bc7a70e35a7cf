package transporte

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FleetRepository abstrai a persistência de frota, solicitações e
// viagens. As operações por id recebem o tenant do ator e recusam
// com ErrTenantMismatch registros de outro tenant.
type FleetRepository interface {
	CreateVehicle(context.Context, CreateVehicleInput) (*Vehicle, error)
	ListVehicles(context.Context, uuid.UUID) ([]Vehicle, error)
	SetVehicleStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Vehicle, error)
	CreateDriver(context.Context, CreateDriverInput) (*Driver, error)
	ListDrivers(context.Context, uuid.UUID) ([]Driver, error)
	SetDriverStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Driver, error)
	CreateRequest(context.Context, CreateRequestInput) (*TransportRequest, error)
	ListScheduledRequests(ctx context.Context, tenantID uuid.UUID, travelDate time.Time, destination string) ([]TransportRequest, error)
	AssembleTrip(context.Context, AssembleInput) (*AssembleResult, error)
	GetTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error)
	ListTrips(context.Context, uuid.UUID) ([]Trip, error)
	CompleteTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error)
	CancelTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error)
}

// Service contém as regras do módulo de transporte.
type Service struct {
	repo FleetRepository
}

func NewService(repo FleetRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RegisterVehicle(ctx context.Context, input CreateVehicleInput) (*Vehicle, error) {
	input.Placa = strings.ToUpper(strings.TrimSpace(input.Placa))
	if input.Placa == "" || input.Modelo == "" {
		return nil, fmt.Errorf("%w: placa e modelo obrigatórios", ErrInvalidInput)
	}
	if input.Capacidade < 1 {
		return nil, fmt.Errorf("%w: capacidade mínima 1", ErrInvalidInput)
	}
	return s.repo.CreateVehicle(ctx, input)
}

func (s *Service) ListVehicles(ctx context.Context, tenantID uuid.UUID) ([]Vehicle, error) {
	return s.repo.ListVehicles(ctx, tenantID)
}

// SetVehicleAvailability alterna entre DISPONIVEL e MANUTENCAO. EM_VIAGEM
// é reservado à montagem de viagens.
func (s *Service) SetVehicleAvailability(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Vehicle, error) {
	if status != ResourceAvailable && status != ResourceMaintenance {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidInput, status)
	}
	return s.repo.SetVehicleStatus(ctx, id, actorTenant, status)
}

func (s *Service) RegisterDriver(ctx context.Context, input CreateDriverInput) (*Driver, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	input.CNH = strings.TrimSpace(input.CNH)
	if input.Nome == "" || input.CNH == "" {
		return nil, fmt.Errorf("%w: nome e CNH obrigatórios", ErrInvalidInput)
	}
	return s.repo.CreateDriver(ctx, input)
}

func (s *Service) ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]Driver, error) {
	return s.repo.ListDrivers(ctx, tenantID)
}

// SetDriverAvailability alterna entre DISPONIVEL e MANUTENCAO (afastado).
func (s *Service) SetDriverAvailability(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Driver, error) {
	if status != ResourceAvailable && status != ResourceMaintenance {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidInput, status)
	}
	return s.repo.SetDriverStatus(ctx, id, actorTenant, status)
}

func (s *Service) RegisterRequest(ctx context.Context, input CreateRequestInput) (*TransportRequest, error) {
	input.Destination = strings.TrimSpace(input.Destination)
	if input.Destination == "" {
		return nil, fmt.Errorf("%w: destino obrigatório", ErrInvalidInput)
	}
	if input.TravelDate.IsZero() {
		return nil, fmt.Errorf("%w: data da viagem obrigatória", ErrInvalidInput)
	}
	return s.repo.CreateRequest(ctx, input)
}

// Assemble agrupa o lote (data, destino) em uma viagem. Tudo ou nada:
// sem veículo ou motorista viável, nenhuma solicitação muda de status.
func (s *Service) Assemble(ctx context.Context, input AssembleInput) (*AssembleResult, error) {
	input.Destination = strings.TrimSpace(input.Destination)
	if input.Destination == "" || input.TravelDate.IsZero() {
		return nil, fmt.Errorf("%w: data e destino obrigatórios", ErrInvalidInput)
	}
	return s.repo.AssembleTrip(ctx, input)
}

// PreviewAssemble resume o lote sem criar viagem nem reservar recursos.
func (s *Service) PreviewAssemble(ctx context.Context, tenantID uuid.UUID, travelDate time.Time, destination string) (*Preview, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" || travelDate.IsZero() {
		return nil, fmt.Errorf("%w: data e destino obrigatórios", ErrInvalidInput)
	}

	requests, err := s.repo.ListScheduledRequests(ctx, tenantID, travelDate, destination)
	if err != nil {
		return nil, err
	}

	passengers, needsAccessibility := BuildManifest(requests)
	return &Preview{
		TotalRequests:      len(requests),
		TotalPassengers:    len(passengers),
		NeedsAccessibility: needsAccessibility,
		RecommendedClass:   ClassifyVehicle(len(passengers)),
		Requests:           requests,
	}, nil
}

func (s *Service) GetTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return s.repo.GetTrip(ctx, id, actorTenant)
}

func (s *Service) ListTrips(ctx context.Context, tenantID uuid.UUID) ([]Trip, error) {
	return s.repo.ListTrips(ctx, tenantID)
}

func (s *Service) CompleteTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return s.repo.CompleteTrip(ctx, id, actorTenant)
}

func (s *Service) CancelTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return s.repo.CancelTrip(ctx, id, actorTenant)
}
