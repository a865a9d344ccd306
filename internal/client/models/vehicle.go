package models

// Vehicle ("vehiculo") is registered by a driver.
type Vehicle struct {
	ID    int64  `json:"id,omitempty"`
	Brand string `json:"marca"`
	Model string `json:"modelo"`
	Plate string `json:"matricula"`
	Seats int    `json:"plazasDisponibles"`
}
