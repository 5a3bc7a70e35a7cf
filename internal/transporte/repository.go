package transporte

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Repository fornece acesso aos dados de frota e viagens. A montagem de
// viagem roda inteira em uma transação: viagem criada sem as
// solicitações atualizadas é violação de correção, não estado degradado.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateVehicle registra um veículo DISPONIVEL na frota.
func (r *Repository) CreateVehicle(ctx context.Context, input CreateVehicleInput) (*Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	v := Vehicle{
		ID:             uuid.New(),
		TenantID:       input.TenantID,
		Placa:          input.Placa,
		Modelo:         input.Modelo,
		Capacidade:     input.Capacidade,
		Acessibilidade: input.Acessibilidade,
		Km:             input.Km,
		Status:         ResourceAvailable,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO veiculos (id, tenant_id, placa, modelo, capacidade, acessibilidade, km, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, v.ID, v.TenantID, v.Placa, v.Modelo, v.Capacidade, v.Acessibilidade, v.Km, v.Status).Scan(&v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehicles lista a frota do tenant.
func (r *Repository) ListVehicles(ctx context.Context, tenantID uuid.UUID) ([]Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectVehicle+` WHERE tenant_id = $1 ORDER BY placa`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// SetVehicleStatus alterna a disponibilidade de um veículo fora de
// viagem. Um veículo EM_VIAGEM só é liberado pelo encerramento da viagem.
func (r *Repository) SetVehicleStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	v, err := scanVehicle(tx.QueryRow(ctx, selectVehicle+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if v.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: veículo %s", ErrTenantMismatch, id)
	}
	if v.Status == ResourceOnTrip {
		return nil, fmt.Errorf("%w: veículo %s", ErrResourceInUse, v.Placa)
	}

	if _, err := tx.Exec(ctx, `UPDATE veiculos SET status = $2 WHERE id = $1`, id, status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	v.Status = status
	return v, nil
}

// CreateDriver registra um motorista DISPONIVEL na frota.
func (r *Repository) CreateDriver(ctx context.Context, input CreateDriverInput) (*Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	d := Driver{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		Nome:        input.Nome,
		CNH:         input.CNH,
		ValidadeCNH: input.ValidadeCNH,
		Telefone:    input.Telefone,
		Status:      ResourceAvailable,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO motoristas (id, tenant_id, nome, cnh, validade_cnh, telefone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, d.ID, d.TenantID, d.Nome, d.CNH, d.ValidadeCNH, d.Telefone, d.Status).Scan(&d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrivers lista os motoristas do tenant.
func (r *Repository) ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectDriver+` WHERE tenant_id = $1 ORDER BY nome`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// SetDriverStatus alterna a disponibilidade de um motorista fora de viagem.
func (r *Repository) SetDriverStatus(ctx context.Context, id, actorTenant uuid.UUID, status ResourceStatus) (*Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := scanDriver(tx.QueryRow(ctx, selectDriver+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if d.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: motorista %s", ErrTenantMismatch, id)
	}
	if d.Status == ResourceOnTrip {
		return nil, fmt.Errorf("%w: motorista %s", ErrResourceInUse, d.Nome)
	}

	if _, err := tx.Exec(ctx, `UPDATE motoristas SET status = $2 WHERE id = $1`, id, status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	d.Status = status
	return d, nil
}

// CreateRequest registra uma solicitação AGENDADO de transporte.
func (r *Repository) CreateRequest(ctx context.Context, input CreateRequestInput) (*TransportRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	req := TransportRequest{
		ID:                      uuid.New(),
		TenantID:                input.TenantID,
		ProtocolID:              input.ProtocolID,
		CitizenID:               input.CitizenID,
		CompanionID:             input.CompanionID,
		Destination:             input.Destination,
		TravelDate:              input.TravelDate,
		SpecialNeeds:            input.SpecialNeeds,
		SpecialNeedsDescription: input.SpecialNeedsDescription,
		Status:                  RequestScheduled,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO solicitacoes_transporte
			(id, tenant_id, protocolo_id, cidadao_id, acompanhante_id, destino, data_viagem, necessidade_especial, descricao_necessidade, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, req.ID, req.TenantID, req.ProtocolID, req.CitizenID, req.CompanionID, req.Destination,
		req.TravelDate, req.SpecialNeeds, req.SpecialNeedsDescription, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListScheduledRequests busca o lote AGENDADO de uma data e destino, sem
// travas. Serve o preview.
func (r *Repository) ListScheduledRequests(ctx context.Context, tenantID uuid.UUID, travelDate time.Time, destination string) ([]TransportRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectRequest+`
		WHERE tenant_id = $1 AND status = $2 AND destino = $3 AND data_viagem::date = $4::date
		ORDER BY created_at
	`, tenantID, RequestScheduled, destination, travelDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// AssembleTrip executa a montagem automática: agrupa o lote, escolhe o
// menor veículo que comporta todos, escolhe motorista com CNH válida e
// grava tudo em uma única transação. Veículo e motorista candidatos são
// travados por linha; duas montagens concorrentes nunca reservam o
// mesmo recurso.
func (r *Repository) AssembleTrip(ctx context.Context, input AssembleInput) (*AssembleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectRequest+`
		WHERE tenant_id = $1 AND status = $2 AND destino = $3 AND data_viagem::date = $4::date
		ORDER BY created_at
		FOR UPDATE
	`, input.TenantID, RequestScheduled, input.Destination, input.TravelDate)
	if err != nil {
		return nil, err
	}
	requests, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: %s em %s", ErrNoRequests, input.Destination, input.TravelDate.Format("2006-01-02"))
	}

	passengers, needsAccessibility := BuildManifest(requests)
	total := len(passengers)

	vehicle, err := r.lockBestVehicle(ctx, tx, input.TenantID, total, needsAccessibility)
	if err != nil {
		return nil, err
	}

	driver, err := r.lockDriver(ctx, tx, input.TenantID, input.TravelDate)
	if err != nil {
		return nil, err
	}

	manifest, err := json.Marshal(passengers)
	if err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("Viagem montada automaticamente. %d passageiro(s) para %s.", total, input.Destination)
	trip := Trip{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		TravelDate:  input.TravelDate,
		Destination: input.Destination,
		Departure:   input.Departure,
		VehicleID:   vehicle.ID,
		DriverID:    driver.ID,
		Passengers:  passengers,
		Status:      TripPlanned,
		Notes:       &notes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO viagens (id, tenant_id, data_viagem, destino, horario_saida, veiculo_id, motorista_id, passageiros, status, observacoes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, trip.ID, trip.TenantID, trip.TravelDate, trip.Destination, trip.Departure,
		trip.VehicleID, trip.DriverID, manifest, trip.Status, trip.Notes).Scan(&trip.CreatedAt)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(requests))
	protocolIDs := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
		protocolIDs = append(protocolIDs, req.ProtocolID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE solicitacoes_transporte SET status = $2, viagem_id = $3 WHERE id = ANY($1)
	`, ids, RequestAwaitingTrip, trip.ID); err != nil {
		return nil, err
	}

	// Trilha do protocolo de origem registra a espera pela viagem.
	for _, protocolID := range protocolIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO protocolo_historico (id, protocolo_id, acao, comentario)
			VALUES ($1, $2, 'AGUARDANDO_VIAGEM', $3)
		`, uuid.New(), protocolID, notes); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE veiculos SET status = $2 WHERE id = $1`, vehicle.ID, ResourceOnTrip); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE motoristas SET status = $2 WHERE id = $1`, driver.ID, ResourceOnTrip); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	vehicle.Status = ResourceOnTrip
	driver.Status = ResourceOnTrip
	patients, companions := CountPassengers(passengers)
	return &AssembleResult{
		Trip:       &trip,
		Vehicle:    vehicle,
		Driver:     driver,
		Total:      total,
		Patients:   patients,
		Companions: companions,
	}, nil
}

// lockBestVehicle trava o menor veículo disponível que comporta o grupo.
// Empate de capacidade decide pelo menor km rodado.
func (r *Repository) lockBestVehicle(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, total int, needsAccessibility bool) (*Vehicle, error) {
	row := tx.QueryRow(ctx, selectVehicle+`
		WHERE tenant_id = $1 AND status = $2 AND capacidade >= $3 AND (NOT $4 OR acessibilidade)
		ORDER BY capacidade ASC, km ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, tenantID, ResourceAvailable, total, needsAccessibility)

	v, err := scanVehicle(row)
	if err != nil {
		if err == pgx.ErrNoRows || err == ErrNotFound {
			suffix := ""
			if needsAccessibility {
				suffix = " com acessibilidade"
			}
			return nil, fmt.Errorf("%w para %d passageiro(s)%s", ErrNoVehicle, total, suffix)
		}
		return nil, err
	}
	return v, nil
}

// lockDriver trava um motorista disponível com CNH válida na data da
// viagem. A ordem por nome é apenas determinismo, não preferência.
func (r *Repository) lockDriver(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, travelDate time.Time) (*Driver, error) {
	row := tx.QueryRow(ctx, selectDriver+`
		WHERE tenant_id = $1 AND status = $2 AND validade_cnh >= $3::date
		ORDER BY nome ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, tenantID, ResourceAvailable, travelDate)

	d, err := scanDriver(row)
	if err != nil {
		if err == pgx.ErrNoRows || err == ErrNotFound {
			return nil, ErrNoDriver
		}
		return nil, err
	}
	return d, nil
}

// GetTrip carrega uma viagem com o manifesto, recusando viagens de
// outro tenant.
func (r *Repository) GetTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t, err := scanTrip(r.db.QueryRow(ctx, selectTrip+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if t.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: viagem %s", ErrTenantMismatch, id)
	}
	return t, nil
}

// ListTrips lista as viagens do tenant, mais recentes primeiro.
func (r *Repository) ListTrips(ctx context.Context, tenantID uuid.UUID) ([]Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectTrip+` WHERE tenant_id = $1 ORDER BY data_viagem DESC, created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CompleteTrip encerra a viagem e devolve veículo e motorista à frota.
func (r *Repository) CompleteTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return r.closeTrip(ctx, id, actorTenant, TripDone, RequestCompleted)
}

// CancelTrip desfaz a viagem planejada: recursos voltam a DISPONIVEL e
// as solicitações retornam a AGENDADO para nova montagem.
func (r *Repository) CancelTrip(ctx context.Context, id, actorTenant uuid.UUID) (*Trip, error) {
	return r.closeTrip(ctx, id, actorTenant, TripCancelled, RequestScheduled)
}

func (r *Repository) closeTrip(ctx context.Context, id, actorTenant uuid.UUID, to TripStatus, requestStatus RequestStatus) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	trip, err := scanTrip(tx.QueryRow(ctx, selectTrip+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if trip.TenantID != actorTenant {
		return nil, fmt.Errorf("%w: viagem %s", ErrTenantMismatch, id)
	}
	if trip.Status != TripPlanned && trip.Status != TripInProgress {
		return nil, fmt.Errorf("%w: viagem %s", ErrResourceInUse, trip.Status)
	}

	trip.Status = to
	if _, err := tx.Exec(ctx, `UPDATE viagens SET status = $2 WHERE id = $1`, trip.ID, trip.Status); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE veiculos SET status = $2 WHERE id = $1`, trip.VehicleID, ResourceAvailable); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE motoristas SET status = $2 WHERE id = $1`, trip.DriverID, ResourceAvailable); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE solicitacoes_transporte SET status = $2, viagem_id = NULL WHERE viagem_id = $1
	`, trip.ID, requestStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return trip, nil
}

const selectVehicle = `
	SELECT id, tenant_id, placa, modelo, capacidade, acessibilidade, km, status, created_at
	FROM veiculos
`

const selectDriver = `
	SELECT id, tenant_id, nome, cnh, validade_cnh, telefone, status, created_at
	FROM motoristas
`

const selectRequest = `
	SELECT id, tenant_id, protocolo_id, cidadao_id, acompanhante_id, destino, data_viagem, necessidade_especial, descricao_necessidade, status, created_at
	FROM solicitacoes_transporte
`

const selectTrip = `
	SELECT id, tenant_id, data_viagem, destino, horario_saida, veiculo_id, motorista_id, passageiros, status, observacoes, created_at
	FROM viagens
`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.TenantID, &v.Placa, &v.Modelo, &v.Capacidade, &v.Acessibilidade, &v.Km, &v.Status, &v.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.TenantID, &d.Nome, &d.CNH, &d.ValidadeCNH, &d.Telefone, &d.Status, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func collectRequests(rows pgx.Rows) ([]TransportRequest, error) {
	defer rows.Close()
	var out []TransportRequest
	for rows.Next() {
		var req TransportRequest
		err := rows.Scan(&req.ID, &req.TenantID, &req.ProtocolID, &req.CitizenID, &req.CompanionID,
			&req.Destination, &req.TravelDate, &req.SpecialNeeds, &req.SpecialNeedsDescription, &req.Status, &req.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var (
		t        Trip
		manifest []byte
	)
	err := row.Scan(&t.ID, &t.TenantID, &t.TravelDate, &t.Destination, &t.Departure,
		&t.VehicleID, &t.DriverID, &manifest, &t.Status, &t.Notes, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(manifest) > 0 {
		if err := json.Unmarshal(manifest, &t.Passengers); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
