package models

import (
	"strings"

	"github.com/dmitrijs2005/codrive/internal/timex"
)

// ReservationStatus is the backend "estado" of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDIENTE"
	ReservationConfirmed ReservationStatus = "CONFIRMADA"
	ReservationCancelled ReservationStatus = "CANCELADA"
)

// Rank orders statuses for display: pending first, unknown values last.
func (s ReservationStatus) Rank() int {
	switch ReservationStatus(strings.ToUpper(string(s))) {
	case ReservationPending:
		return 1
	case ReservationConfirmed:
		return 2
	case ReservationCancelled:
		return 3
	default:
		return 99
	}
}

// Reservation ("reserva") links a passenger to a trip.
type Reservation struct {
	ID         int64             `json:"id"`
	User       Profile           `json:"usuario"`
	Trip       Trip              `json:"viaje"`
	ReservedAt timex.Time        `json:"fechaReserva"`
	Status     ReservationStatus `json:"estado"`
}

// Pending reports whether the driver can still confirm or cancel it.
func (r Reservation) Pending() bool {
	return strings.EqualFold(string(r.Status), string(ReservationPending))
}
