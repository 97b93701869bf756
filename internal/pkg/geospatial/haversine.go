package geospatial

import "math"

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371008.8

// Haversine returns the great-circle distance in meters between two
// lng/lat positions given in degrees.
func Haversine(lng1, lat1, lng2, lat2 float64) float64 {
	rad := math.Pi / 180
	lat1, lat2 = lat1*rad, lat2*rad
	a := math.Pow(math.Sin((lat2-lat1)/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lng2-lng1)*rad/2), 2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
