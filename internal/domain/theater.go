package domain

import "context"

type Theater struct {
	ID      int64
	Name    string
	Address string
	City    string

	// Latitude and Longitude are nil for theaters that were onboarded
	// without coordinates; those sort last in distance-ordered listings.
	Latitude  *float64
	Longitude *float64

	DistanceKm *float64
}

type TheaterRepository interface {
	GetTheatersByCity(ctx context.Context, city string, pagination Pagination) ([]Theater, *Metadata, error)
}
