package entities

import "courtbooking/internal/db"

type ReservationView struct {
	db.Reservation
	CanCancel bool `json:"canCancel"`
}

type ReservationsList struct {
	Total        int               `json:"total"`
	Reservations []ReservationView `json:"reservations"`
}
