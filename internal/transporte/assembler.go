package transporte

// Expansão de solicitações em manifesto de passageiros. Mantida pura
// para que a seleção de veículo e a montagem transacional possam ser
// testadas separadamente.

// BuildManifest expande cada solicitação em um ou dois passageiros, na
// ordem das solicitações. O acompanhante nunca herda a flag de
// necessidade especial.
func BuildManifest(requests []TransportRequest) (passengers []Passenger, needsAccessibility bool) {
	for _, req := range requests {
		passengers = append(passengers, Passenger{
			SourceProtocolID:        req.ProtocolID,
			CitizenID:               req.CitizenID,
			HasSpecialNeeds:         req.SpecialNeeds,
			SpecialNeedsDescription: req.SpecialNeedsDescription,
		})
		if req.SpecialNeeds {
			needsAccessibility = true
		}
		if req.CompanionID != nil {
			passengers = append(passengers, Passenger{
				SourceProtocolID:     req.ProtocolID,
				CitizenID:            *req.CompanionID,
				IsAccompanyingPerson: true,
			})
		}
	}
	return passengers, needsAccessibility
}

// CountPassengers separa pacientes de acompanhantes no manifesto.
func CountPassengers(passengers []Passenger) (patients, companions int) {
	for _, p := range passengers {
		if p.IsAccompanyingPerson {
			companions++
		} else {
			patients++
		}
	}
	return patients, companions
}
