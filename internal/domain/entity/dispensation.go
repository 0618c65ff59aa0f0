package entity

import "time"

// DispensationStatusConcluida único estado: no existe reversión de dispensaciones.
const DispensationStatusConcluida = "Concluída"

// Dispensation ítems entregados directamente a un paciente.
type Dispensation struct {
	ID        string
	PatientID string
	Items     []LineItem
	Notes     string
	Status    string
	CreatedBy string
	CreatedAt time.Time
}
