// Package geo ranks theaters by great-circle distance from a point.
package geo

import (
	"math"
	"sort"

	"github.com/cinetix/booking-engine/internal/domain"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// SortTheatersByDistance fills in DistanceKm relative to (lat, lon) and sorts
// ascending. Theaters without coordinates get no distance and sort after all
// theaters that have one. The sort is stable so equal entries keep their
// repository order.
func SortTheatersByDistance(theaters []domain.Theater, lat, lon float64) {
	for i := range theaters {
		t := &theaters[i]
		if t.Latitude == nil || t.Longitude == nil {
			t.DistanceKm = nil
			continue
		}

		d := HaversineKm(lat, lon, *t.Latitude, *t.Longitude)
		t.DistanceKm = &d
	}

	sort.SliceStable(theaters, func(i, j int) bool {
		return distanceOrInf(theaters[i]) < distanceOrInf(theaters[j])
	})
}

func distanceOrInf(t domain.Theater) float64 {
	if t.DistanceKm == nil {
		return math.Inf(1)
	}

	return *t.DistanceKm
}
