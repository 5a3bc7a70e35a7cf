package transporte

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// stubFleet reproduz em memória a mesma alocação best-fit do repositório
// real, incluindo a regra tudo-ou-nada da montagem.
type stubFleet struct {
	vehicles map[uuid.UUID]*Vehicle
	drivers  map[uuid.UUID]*Driver
	requests map[uuid.UUID]*TransportRequest
	trips    map[uuid.UUID]*Trip
}

func newStubFleet() *stubFleet {
	return &stubFleet{
		vehicles: map[uuid.UUID]*Vehicle{},
		drivers:  map[uuid.UUID]*Driver{},
		requests: map[uuid.UUID]*TransportRequest{},
		trips:    map[uuid.UUID]*Trip{},
	}
}

func (s *stubFleet) CreateVehicle(ctx context.Context, input CreateVehicleInput) (*Vehicle, error) {
	v := &Vehicle{
		ID: uuid.New(), TenantID: input.TenantID, Placa: input.Placa, Modelo: input.Modelo,
		Capacidade: input.Capacidade, Acessibilidade: input.Acessibilidade, Km: input.Km,
		Status: ResourceAvailable, CreatedAt: time.Now(),
	}
	s.vehicles[v.ID] = v
	return v, nil
}

func (s *stubFleet) ListVehicles(ctx context.Context, tenantID uuid.UUID) ([]Vehicle, error) {
	var out []Vehicle
	for _, v := range s.vehicles {
		if v.TenantID == tenantID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *stubFleet) SetVehicleStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	if v.TenantID != actorTenant {
		return nil, ErrTenantMismatch
	}
	if v.Status == ResourceOnTrip {
		return nil, ErrResourceInUse
	}
	v.Status = status
	return v, nil
}

func (s *stubFleet) CreateDriver(ctx context.Context, input CreateDriverInput) (*Driver, error) {
	d := &Driver{
		ID: uuid.New(), TenantID: input.TenantID, Nome: input.Nome, CNH: input.CNH,
		ValidadeCNH: input.ValidadeCNH, Telefone: input.Telefone,
		Status: ResourceAvailable, CreatedAt: time.Now(),
	}
	s.drivers[d.ID] = d
	return d, nil
}

func (s *stubFleet) ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]Driver, error) {
	var out []Driver
	for _, d := range s.drivers {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *stubFleet) SetDriverStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Driver, error) {
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.TenantID != actorTenant {
		return nil, ErrTenantMismatch
	}
	if d.Status == ResourceOnTrip {
		return nil, ErrResourceInUse
	}
	d.Status = status
	return d, nil
}

func (s *stubFleet) CreateRequest(ctx context.Context, input CreateRequestInput) (*TransportRequest, error) {
	req := &TransportRequest{
		ID: uuid.New(), TenantID: input.TenantID, ProtocolID: input.ProtocolID,
		CitizenID: input.CitizenID, CompanionID: input.CompanionID,
		Destination: input.Destination, TravelDate: input.TravelDate,
		SpecialNeeds: input.SpecialNeeds, SpecialNeedsDescription: input.SpecialNeedsDescription,
		Status: RequestScheduled, CreatedAt: time.Now(),
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *stubFleet) ListScheduledRequests(ctx context.Context, tenantID uuid.UUID, travelDate time.Time, destination string) ([]TransportRequest, error) {
	var out []TransportRequest
	for _, req := range s.requests {
		sameDay := req.TravelDate.Format("2006-01-02") == travelDate.Format("2006-01-02")
		if req.TenantID == tenantID && req.Status == RequestScheduled && req.Destination == destination && sameDay {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *stubFleet) AssembleTrip(ctx context.Context, input AssembleInput) (*AssembleResult, error) {
	requests, _ := s.ListScheduledRequests(ctx, input.TenantID, input.TravelDate, input.Destination)
	if len(requests) == 0 {
		return nil, ErrNoRequests
	}

	passengers, needsAccessibility := BuildManifest(requests)
	total := len(passengers)

	var vehicle *Vehicle
	for _, v := range s.vehicles {
		if v.TenantID != input.TenantID || v.Status != ResourceAvailable || v.Capacidade < total {
			continue
		}
		if needsAccessibility && !v.Acessibilidade {
			continue
		}
		if vehicle == nil || v.Capacidade < vehicle.Capacidade || (v.Capacidade == vehicle.Capacidade && v.Km < vehicle.Km) {
			vehicle = v
		}
	}
	if vehicle == nil {
		suffix := ""
		if needsAccessibility {
			suffix = " com acessibilidade"
		}
		return nil, fmt.Errorf("%w para %d passageiro(s)%s", ErrNoVehicle, total, suffix)
	}

	var driver *Driver
	for _, d := range s.drivers {
		if d.TenantID != input.TenantID || d.Status != ResourceAvailable || d.ValidadeCNH.Before(input.TravelDate) {
			continue
		}
		if driver == nil || d.Nome < driver.Nome {
			driver = d
		}
	}
	if driver == nil {
		return nil, ErrNoDriver
	}

	trip := &Trip{
		ID: uuid.New(), TenantID: input.TenantID, TravelDate: input.TravelDate,
		Destination: input.Destination, Departure: input.Departure,
		VehicleID: vehicle.ID, DriverID: driver.ID, Passengers: passengers,
		Status: TripPlanned, CreatedAt: time.Now(),
	}
	s.trips[trip.ID] = trip

	for _, req := range requests {
		s.requests[req.ID].Status = RequestAwaitingTrip
	}
	vehicle.Status = ResourceOnTrip
	driver.Status = ResourceOnTrip

	patients, companions := CountPassengers(passengers)
	return &AssembleResult{Trip: trip, Vehicle: vehicle, Driver: driver, Total: total, Patients: patients, Companions: companions}, nil
}

func (s *stubFleet) GetTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.TenantID != actorTenant {
		return nil, ErrTenantMismatch
	}
	return t, nil
}

func (s *stubFleet) ListTrips(ctx context.Context, tenantID uuid.UUID) ([]Trip, error) {
	var out []Trip
	for _, t := range s.trips {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *stubFleet) CompleteTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return s.closeTrip(id, actorTenant, TripDone, RequestCompleted)
}

func (s *stubFleet) CancelTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return s.closeTrip(id, actorTenant, TripCancelled, RequestScheduled)
}

func (s *stubFleet) closeTrip(id, actorTenant uuid.UUID, to TripStatus, reqStatus RequestStatus) (*Trip, error) {
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.TenantID != actorTenant {
		return nil, ErrTenantMismatch
	}
	t.Status = to
	s.vehicles[t.VehicleID].Status = ResourceAvailable
	s.drivers[t.DriverID].Status = ResourceAvailable
	for _, p := range t.Passengers {
		for _, req := range s.requests {
			if req.ProtocolID == p.SourceProtocolID {
				req.Status = reqStatus
			}
		}
	}
	return t, nil
}

func seedVehicles(fleet *stubFleet, tenantID uuid.UUID, specs []struct {
	capacidade int
	acessivel  bool
}) {
	for i, spec := range specs {
		v := &Vehicle{
			ID: uuid.New(), TenantID: tenantID,
			Placa: fmt.Sprintf("ABC-%04d", i), Modelo: "Frota",
			Capacidade: spec.capacidade, Acessibilidade: spec.acessivel,
			Status: ResourceAvailable,
		}
		fleet.vehicles[v.ID] = v
	}
}

func seedDriver(fleet *stubFleet, tenantID uuid.UUID, nome, cnh string, validade time.Time) {
	d := &Driver{ID: uuid.New(), TenantID: tenantID, Nome: nome, CNH: cnh, ValidadeCNH: validade, Status: ResourceAvailable}
	fleet.drivers[d.ID] = d
}

func seedRequests(fleet *stubFleet, tenantID uuid.UUID, day time.Time, destination string, n int, withCompanionAndNeeds bool) {
	for i := 0; i < n; i++ {
		req := &TransportRequest{
			ID: uuid.New(), TenantID: tenantID, ProtocolID: uuid.New(), CitizenID: uuid.New(),
			Destination: destination, TravelDate: day, Status: RequestScheduled,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if i == 0 && withCompanionAndNeeds {
			companion := uuid.New()
			desc := "cadeirante"
			req.CompanionID = &companion
			req.SpecialNeeds = true
			req.SpecialNeedsDescription = &desc
		}
		fleet.requests[req.ID] = req
	}
}

func TestBuildManifest(t *testing.T) {
	companion := uuid.New()
	desc := "cadeirante"
	requests := []TransportRequest{
		{ProtocolID: uuid.New(), CitizenID: uuid.New(), CompanionID: &companion, SpecialNeeds: true, SpecialNeedsDescription: &desc},
		{ProtocolID: uuid.New(), CitizenID: uuid.New()},
	}

	passengers, needs := BuildManifest(requests)
	if len(passengers) != 3 {
		t.Fatalf("esperava 3 passageiros (2 pacientes + 1 acompanhante), obteve %d", len(passengers))
	}
	if !needs {
		t.Fatal("necessidade especial deveria propagar para a viagem")
	}

	// O acompanhante nunca herda a flag de necessidade especial.
	if passengers[1].IsAccompanyingPerson != true || passengers[1].HasSpecialNeeds {
		t.Fatalf("acompanhante mal expandido: %+v", passengers[1])
	}
	if passengers[0].CitizenID != requests[0].CitizenID || passengers[1].CitizenID != companion {
		t.Fatal("ordem do manifesto deveria seguir as solicitações")
	}
}

func TestClassifyVehicle(t *testing.T) {
	cases := []struct {
		total int
		want  VehicleClass
	}{
		{1, ClassCarro}, {4, ClassCarro},
		{5, ClassVan}, {8, ClassVan},
		{9, ClassMicroonibus}, {15, ClassMicroonibus},
		{16, ClassOnibus}, {40, ClassOnibus},
	}
	for _, tc := range cases {
		if got := ClassifyVehicle(tc.total); got != tc.want {
			t.Errorf("ClassifyVehicle(%d) = %s, esperava %s", tc.total, got, tc.want)
		}
	}
}

func TestAssembleBestFit(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{4, false}, {8, false}, {15, false}, {30, false}})
	seedDriver(fleet, tenantID, "Carlos", "123", day.AddDate(1, 0, 0))
	seedRequests(fleet, tenantID, day, "Salvador", 6, false)

	svc := NewService(fleet)
	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Salvador", Departure: "05:00"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}
	if result.Vehicle.Capacidade != 8 {
		t.Fatalf("best-fit para 6 passageiros deveria escolher capacidade 8, obteve %d", result.Vehicle.Capacidade)
	}
}

func TestAssembleAccessibilityFilter(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	// O carro de 4 lugares bastaria em capacidade bruta, mas não é
	// acessível; o filtro obriga o de 8.
	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{4, false}, {8, true}})
	seedDriver(fleet, tenantID, "Dina", "456", day.AddDate(0, 6, 0))
	seedRequests(fleet, tenantID, day, "Aracaju", 2, true)

	svc := NewService(fleet)
	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Aracaju", Departure: "06:00"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}
	if !result.Vehicle.Acessibilidade {
		t.Fatal("grupo com necessidade especial exige veículo acessível")
	}
	if result.Vehicle.Capacidade != 8 {
		t.Fatalf("esperava o acessível de capacidade 8, obteve %d", result.Vehicle.Capacidade)
	}
}

// Cenário completo: 5 solicitações, uma com acompanhante e necessidade
// especial; frota {4 não acessível, 8 acessível}; um motorista com CNH
// válida. Espera viagem no veículo de 8 com 6 passageiros e todas as
// solicitações em AGUARDANDO_VIAGEM.
func TestAssembleFullScenario(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{4, false}, {8, true}})
	seedDriver(fleet, tenantID, "Edson", "789", day.AddDate(2, 0, 0))
	seedRequests(fleet, tenantID, day, "Recife", 5, true)

	svc := NewService(fleet)
	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Recife", Departure: "04:30"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}

	if result.Total != 6 || result.Patients != 5 || result.Companions != 1 {
		t.Fatalf("esperava 6 passageiros (5 pacientes + 1 acompanhante), obteve total=%d pacientes=%d acompanhantes=%d",
			result.Total, result.Patients, result.Companions)
	}
	if result.Vehicle.Capacidade != 8 || !result.Vehicle.Acessibilidade {
		t.Fatalf("esperava veículo acessível de capacidade 8, obteve %+v", result.Vehicle)
	}
	if result.Trip.Status != TripPlanned {
		t.Fatalf("viagem nova deveria ser PLANEJADA, obteve %s", result.Trip.Status)
	}

	for _, req := range fleet.requests {
		if req.Status != RequestAwaitingTrip {
			t.Fatalf("toda solicitação consumida deveria estar AGUARDANDO_VIAGEM, obteve %s", req.Status)
		}
	}
	if result.Vehicle.Status != ResourceOnTrip || result.Driver.Status != ResourceOnTrip {
		t.Fatal("veículo e motorista deveriam ficar reservados EM_VIAGEM")
	}
}

// Mesmo cenário sem veículo acessível: falha com ErrNoVehicle e nada
// muda de estado.
func TestAssembleNoAccessibleVehicleMutatesNothing(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{4, false}, {30, false}})
	seedDriver(fleet, tenantID, "Edson", "789", day.AddDate(2, 0, 0))
	seedRequests(fleet, tenantID, day, "Recife", 5, true)

	svc := NewService(fleet)
	_, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Recife", Departure: "04:30"})
	if !errors.Is(err, ErrNoVehicle) {
		t.Fatalf("esperava ErrNoVehicle, obteve %v", err)
	}

	if len(fleet.trips) != 0 {
		t.Fatal("nenhuma viagem deveria ser criada")
	}
	for _, req := range fleet.requests {
		if req.Status != RequestScheduled {
			t.Fatalf("solicitações deveriam permanecer AGENDADO, obteve %s", req.Status)
		}
	}
	for _, v := range fleet.vehicles {
		if v.Status != ResourceAvailable {
			t.Fatal("nenhum veículo deveria ser reservado")
		}
	}
}

func TestAssembleRejectsExpiredLicense(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{8, false}})
	seedDriver(fleet, tenantID, "Fábio", "111", day.AddDate(0, 0, -1))
	seedRequests(fleet, tenantID, day, "Maceió", 3, false)

	svc := NewService(fleet)
	_, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Maceió", Departure: "07:00"})
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("CNH vencida na data da viagem deveria dar ErrNoDriver, obteve %v", err)
	}
}

func TestPreviewDoesNotReserve(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{8, true}})
	seedRequests(fleet, tenantID, day, "Natal", 5, true)

	svc := NewService(fleet)
	preview, err := svc.PreviewAssemble(context.Background(), tenantID, day, "Natal")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	if preview.TotalRequests != 5 || preview.TotalPassengers != 6 {
		t.Fatalf("esperava 5 solicitações e 6 passageiros, obteve %d/%d", preview.TotalRequests, preview.TotalPassengers)
	}
	if !preview.NeedsAccessibility || preview.RecommendedClass != ClassVan {
		t.Fatalf("preview inconsistente: %+v", preview)
	}
	if len(fleet.trips) != 0 {
		t.Fatal("preview nunca cria viagem")
	}
	for _, req := range fleet.requests {
		if req.Status != RequestScheduled {
			t.Fatal("preview nunca muda status de solicitação")
		}
	}
}

func TestMaintenanceVehicleSkippedByAssembly(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{8, false}, {15, false}})
	seedDriver(fleet, tenantID, "Hugo", "333", day.AddDate(1, 0, 0))
	seedRequests(fleet, tenantID, day, "Fortaleza", 6, false)

	var small uuid.UUID
	for id, v := range fleet.vehicles {
		if v.Capacidade == 8 {
			small = id
		}
	}

	svc := NewService(fleet)
	if _, err := svc.SetVehicleAvailability(context.Background(), small, tenantID, ResourceMaintenance); err != nil {
		t.Fatalf("manutenção: %v", err)
	}
	if _, err := svc.SetVehicleAvailability(context.Background(), small, tenantID, ResourceOnTrip); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("EM_VIAGEM não pode ser setado manualmente, obteve %v", err)
	}

	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Fortaleza", Departure: "06:00"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}
	if result.Vehicle.Capacidade != 15 {
		t.Fatalf("veículo em manutenção deveria ser ignorado; esperava capacidade 15, obteve %d", result.Vehicle.Capacidade)
	}

	// Recurso reservado pela viagem não aceita mudança manual de status.
	if _, err := svc.SetVehicleAvailability(context.Background(), result.Vehicle.ID, tenantID, ResourceMaintenance); !errors.Is(err, ErrResourceInUse) {
		t.Fatalf("esperava ErrResourceInUse para veículo em viagem, obteve %v", err)
	}
}

func TestCancelTripFreesResources(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	day := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{8, false}})
	seedDriver(fleet, tenantID, "Gil", "222", day.AddDate(1, 0, 0))
	seedRequests(fleet, tenantID, day, "João Pessoa", 3, false)

	svc := NewService(fleet)
	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "João Pessoa", Departure: "05:30"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}

	trip, err := svc.CancelTrip(context.Background(), result.Trip.ID, tenantID)
	if err != nil {
		t.Fatalf("cancelamento: %v", err)
	}
	if trip.Status != TripCancelled {
		t.Fatalf("esperava CANCELADA, obteve %s", trip.Status)
	}
	if fleet.vehicles[trip.VehicleID].Status != ResourceAvailable || fleet.drivers[trip.DriverID].Status != ResourceAvailable {
		t.Fatal("cancelamento deveria devolver veículo e motorista à frota")
	}
	for _, req := range fleet.requests {
		if req.Status != RequestScheduled {
			t.Fatalf("solicitações deveriam voltar a AGENDADO para nova montagem, obteve %s", req.Status)
		}
	}
}

// Um token de outro município não pode operar frota nem viagens alheias.
func TestCrossTenantFleetRejected(t *testing.T) {
	fleet := newStubFleet()
	tenantID := uuid.New()
	intruder := uuid.New()
	day := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	seedVehicles(fleet, tenantID, []struct {
		capacidade int
		acessivel  bool
	}{{8, false}})
	seedDriver(fleet, tenantID, "Ivo", "444", day.AddDate(1, 0, 0))
	seedRequests(fleet, tenantID, day, "Petrolina", 3, false)

	svc := NewService(fleet)
	result, err := svc.Assemble(context.Background(), AssembleInput{TenantID: tenantID, TravelDate: day, Destination: "Petrolina", Departure: "05:00"})
	if err != nil {
		t.Fatalf("montagem: %v", err)
	}

	var vehicleID uuid.UUID
	for id := range fleet.vehicles {
		vehicleID = id
	}
	if _, err := svc.SetVehicleAvailability(context.Background(), vehicleID, intruder, ResourceMaintenance); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("status de veículo alheio deveria dar ErrTenantMismatch, obteve %v", err)
	}
	if _, err := svc.GetTrip(context.Background(), result.Trip.ID, intruder); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("consulta de viagem alheia deveria dar ErrTenantMismatch, obteve %v", err)
	}
	if _, err := svc.CompleteTrip(context.Background(), result.Trip.ID, intruder); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("conclusão de viagem alheia deveria dar ErrTenantMismatch, obteve %v", err)
	}
	if fleet.trips[result.Trip.ID].Status != TripPlanned {
		t.Fatal("viagem não deveria mudar de status após tentativa de outro tenant")
	}

	// O tenant dono segue operando normalmente.
	if _, err := svc.CompleteTrip(context.Background(), result.Trip.ID, tenantID); err != nil {
		t.Fatalf("conclusão pelo dono: %v", err)
	}
}
