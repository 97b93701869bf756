package geospatial

import "math"

const (
	// TileSize is the edge length of a tile in world pixels.
	TileSize = 512.0

	// MaxLatitude is the latitude at which Web Mercator turns into a square.
	MaxLatitude = 85.051129
)

// LngX converts a longitude to an x coordinate in a world of worldSize pixels.
func LngX(lng, worldSize float64) float64 {
	return (180 + lng) * worldSize / 360
}

// LatY converts a latitude to a y coordinate in a world of worldSize pixels.
func LatY(lat, worldSize float64) float64 {
	y := 180 / math.Pi * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return (180 - y) * worldSize / 360
}

// XLng is the inverse of LngX.
func XLng(x, worldSize float64) float64 {
	return x*360/worldSize - 180
}

// YLat is the inverse of LatY.
func YLat(y, worldSize float64) float64 {
	y2 := 180 - y*360/worldSize
	return 360/math.Pi*math.Atan(math.Exp(y2*math.Pi/180)) - 90
}

// Wrap constrains n to the half-open range (lo, hi]; lo itself maps to hi.
func Wrap(n, lo, hi float64) float64 {
	d := hi - lo
	w := math.Mod(math.Mod(n-lo, d)+d, d) + lo
	if w == lo {
		return hi
	}
	return w
}

// Clamp constrains n to [lo, hi].
func Clamp(n, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, n))
}

// Interpolate returns the linear interpolation between a and b at t.
func Interpolate(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
