package geo

import (
	"math"

	"field-route-service/internal/domain"
)

const earthRadiusInMeters = 6371000

var cardinals = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b domain.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusInMeters * c
}

// Bearing returns the initial compass bearing from -> to, in degrees [0, 360).
func Bearing(from, to domain.Coordinate) float64 {
	lat1 := toRadians(from.Latitude)
	lat2 := toRadians(to.Latitude)
	dLon := toRadians(to.Longitude - from.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// BearingToCardinal maps a bearing onto the 8-point compass. Each sector is
// 45 degrees wide and centred on its direction.
func BearingToCardinal(deg float64) string {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return cardinals[int(math.Round(deg/45))%8]
}

// PathLength sums the Haversine distance over consecutive points.
func PathLength(path []domain.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}
