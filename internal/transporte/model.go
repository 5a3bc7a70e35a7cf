package transporte

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("registro de transporte não encontrado")
	ErrNoRequests     = errors.New("nenhuma solicitação agendada para a data e destino")
	ErrNoVehicle      = errors.New("nenhum veículo disponível")
	ErrNoDriver       = errors.New("nenhum motorista disponível com CNH válida")
	ErrInvalidInput   = errors.New("dados inválidos")
	ErrResourceInUse  = errors.New("recurso em viagem")
	ErrTenantMismatch = errors.New("registro pertence a outro tenant")
)

// ResourceStatus cobre veículos e motoristas da frota.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "DISPONIVEL"
	ResourceOnTrip      ResourceStatus = "EM_VIAGEM"
	ResourceMaintenance ResourceStatus = "MANUTENCAO"
)

// VehicleClass é a classe mínima recomendada pelo número de passageiros.
type VehicleClass string

const (
	ClassCarro       VehicleClass = "CARRO"
	ClassVan         VehicleClass = "VAN"
	ClassMicroonibus VehicleClass = "MICROONIBUS"
	ClassOnibus      VehicleClass = "ONIBUS"
)

// ClassifyVehicle devolve a classe mínima pelos pontos de corte fixos.
func ClassifyVehicle(totalPassengers int) VehicleClass {
	switch {
	case totalPassengers <= 4:
		return ClassCarro
	case totalPassengers <= 8:
		return ClassVan
	case totalPassengers <= 15:
		return ClassMicroonibus
	default:
		return ClassOnibus
	}
}

// Vehicle é um recurso de frota escopado por tenant.
type Vehicle struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	Placa          string         `json:"placa"`
	Modelo         string         `json:"modelo"`
	Capacidade     int            `json:"capacidade"`
	Acessibilidade bool           `json:"acessibilidade"`
	Km             int64          `json:"km"`
	Status         ResourceStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Driver é um motorista da frota com CNH controlada.
type Driver struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Nome        string         `json:"nome"`
	CNH         string         `json:"cnh"`
	ValidadeCNH time.Time      `json:"validade_cnh"`
	Telefone    *string        `json:"telefone,omitempty"`
	Status      ResourceStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RequestStatus da solicitação de transporte.
type RequestStatus string

const (
	RequestScheduled    RequestStatus = "AGENDADO"
	RequestAwaitingTrip RequestStatus = "AGUARDANDO_VIAGEM"
	RequestCompleted    RequestStatus = "CONCLUIDO"
	RequestCancelled    RequestStatus = "CANCELADO"
)

// TransportRequest é uma solicitação aprovada para agendamento, ligada
// ao protocolo de origem.
type TransportRequest struct {
	ID                      uuid.UUID     `json:"id"`
	TenantID                uuid.UUID     `json:"tenant_id"`
	ProtocolID              uuid.UUID     `json:"protocol_id"`
	CitizenID               uuid.UUID     `json:"citizen_id"`
	CompanionID             *uuid.UUID    `json:"companion_id,omitempty"`
	Destination             string        `json:"destination"`
	TravelDate              time.Time     `json:"travel_date"`
	SpecialNeeds            bool          `json:"special_needs"`
	SpecialNeedsDescription *string       `json:"special_needs_description,omitempty"`
	Status                  RequestStatus `json:"status"`
	CreatedAt               time.Time     `json:"created_at"`
}

// Passenger é uma linha do manifesto; a ordem de inserção é preservada.
type Passenger struct {
	SourceProtocolID        uuid.UUID `json:"source_protocol_id"`
	CitizenID               uuid.UUID `json:"citizen_id"`
	IsAccompanyingPerson    bool      `json:"is_accompanying_person"`
	HasSpecialNeeds         bool      `json:"has_special_needs"`
	SpecialNeedsDescription *string   `json:"special_needs_description,omitempty"`
}

// TripStatus do ciclo de vida da viagem.
type TripStatus string

const (
	TripPlanned    TripStatus = "PLANEJADA"
	TripInProgress TripStatus = "EM_ANDAMENTO"
	TripDone       TripStatus = "CONCLUIDA"
	TripCancelled  TripStatus = "CANCELADA"
)

// Trip agrega data, destino, manifesto, veículo e motorista. O manifesto
// é imutável após a criação; replanejar exige nova viagem.
type Trip struct {
	ID          uuid.UUID   `json:"id"`
	TenantID    uuid.UUID   `json:"tenant_id"`
	TravelDate  time.Time   `json:"travel_date"`
	Destination string      `json:"destination"`
	Departure   string      `json:"departure"`
	VehicleID   uuid.UUID   `json:"vehicle_id"`
	DriverID    uuid.UUID   `json:"driver_id"`
	Passengers  []Passenger `json:"passengers"`
	Status      TripStatus  `json:"status"`
	Notes       *string     `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AssembleInput define o lote (data, destino) a montar.
type AssembleInput struct {
	TenantID    uuid.UUID
	TravelDate  time.Time
	Destination string
	Departure   string
}

// AssembleResult devolve o resultado completo da montagem.
type AssembleResult struct {
	Trip       *Trip    `json:"viagem"`
	Vehicle    *Vehicle `json:"veiculo"`
	Driver     *Driver  `json:"motorista"`
	Total      int      `json:"total_passageiros"`
	Patients   int      `json:"pacientes"`
	Companions int      `json:"acompanhantes"`
}

// Preview resume o lote sem criar a viagem nem reservar recursos.
type Preview struct {
	TotalRequests      int                `json:"total_solicitacoes"`
	TotalPassengers    int                `json:"total_passageiros"`
	NeedsAccessibility bool               `json:"necessita_acessibilidade"`
	RecommendedClass   VehicleClass       `json:"classe_recomendada"`
	Requests           []TransportRequest `json:"solicitacoes"`
}

// CreateVehicleInput registra um veículo na frota do tenant.
type CreateVehicleInput struct {
	TenantID       uuid.UUID
	Placa          string
	Modelo         string
	Capacidade     int
	Acessibilidade bool
	Km             int64
}

// CreateDriverInput registra um motorista na frota do tenant.
type CreateDriverInput struct {
	TenantID    uuid.UUID
	Nome        string
	CNH         string
	ValidadeCNH time.Time
	Telefone    *string
}

// CreateRequestInput registra uma solicitação agendada de transporte.
type CreateRequestInput struct {
	TenantID                uuid.UUID
	ProtocolID              uuid.UUID
	CitizenID               uuid.UUID
	CompanionID             *uuid.UUID
	Destination             string
	TravelDate              time.Time
	SpecialNeeds            bool
	SpecialNeedsDescription *string
}
