package domain

import "errors"

var (
	ErrRecordNotFound           = errors.New("record not found")
	ErrSeatsUnavailable         = errors.New("seat(s) are already held or booked")
	ErrHoldExpired              = errors.New("your seat selection has expired, please select your seats again")
	ErrHoldOwnership            = errors.New("hold does not belong to the current session")
	ErrAlreadyFinalized         = errors.New("booking is no longer pending")
	ErrInvalidState             = errors.New("booking is already cancelled or expired")
	ErrBookingExpired           = errors.New("booking has expired, please start over")
	ErrCancellationWindowClosed = errors.New("booking can no longer be cancelled, the showtime has already started")
	ErrPaymentDeclined          = errors.New("payment was declined")
)
