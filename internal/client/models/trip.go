package models

import "github.com/dmitrijs2005/codrive/internal/timex"

// Trip is a published ride ("viaje").
type Trip struct {
	ID             int64      `json:"id"`
	Origin         string     `json:"origen"`
	Destination    string     `json:"destino"`
	DepartureAt    timex.Time `json:"fechaHoraSalida"`
	ArrivalAt      timex.Time `json:"fechaHoraLlegada"`
	TotalSeats     int        `json:"plazasTotales"`
	AvailableSeats int        `json:"plazasDisponibles"`
	Driver         *Profile   `json:"conductor,omitempty"`
	Passengers     []Profile  `json:"pasajeros,omitempty"`
}

// TripQuery filters GET /viajes/disponibles. MinSeats of 0 means no filter.
type TripQuery struct {
	Origin      string
	Destination string
	MinSeats    int
}

// NewTrip is the body of POST /viajes.
type NewTrip struct {
	Origin      string     `json:"origen"`
	Destination string     `json:"destino"`
	DepartureAt timex.Time `json:"fechaHoraSalida"`
	ArrivalAt   timex.Time `json:"fechaHoraLlegada"`
	TotalSeats  int        `json:"plazasTotales"`
}
