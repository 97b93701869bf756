package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/samirrijal/mapcam/internal/pkg/geospatial"
)

// ErrInvalidLngLat is returned when a coordinate is NaN, infinite or has a
// latitude outside [-90, 90].
var ErrInvalidLngLat = errors.New("invalid LngLat")

// LngLat represents a geographic coordinate (WGS 84) in degrees.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewLngLat validates and builds a coordinate.
func NewLngLat(lng, lat float64) (LngLat, error) {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return LngLat{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidLngLat, lng, lat)
	}
	if lat > 90 || lat < -90 {
		return LngLat{}, fmt.Errorf("%w: latitude must be between -90 and 90, got %v", ErrInvalidLngLat, lat)
	}
	return LngLat{Lng: lng, Lat: lat}, nil
}

// Validate reports whether the coordinate would be accepted by NewLngLat.
func (ll LngLat) Validate() error {
	_, err := NewLngLat(ll.Lng, ll.Lat)
	return err
}

// Wrap returns the coordinate with its longitude wrapped into (-180, 180].
func (ll LngLat) Wrap() LngLat {
	if ll.Lng > -180 && ll.Lng <= 180 {
		return ll
	}
	return LngLat{Lng: geospatial.Wrap(ll.Lng, -180, 180), Lat: ll.Lat}
}

// DistanceTo returns the great-circle distance in meters.
func (ll LngLat) DistanceTo(o LngLat) float64 {
	return geospatial.Haversine(ll.Lng, ll.Lat, o.Lng, o.Lat)
}

func (ll LngLat) String() string {
	return fmt.Sprintf("LngLat(%.6f, %.6f)", ll.Lng, ll.Lat)
}

// Point is a pixel position, either on screen or in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point          { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point          { return Point{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Point) Mult(k float64) Point       { return Point{X: p.X * k, Y: p.Y * k} }
func (p Point) Div(k float64) Point        { return Point{X: p.X / k, Y: p.Y / k} }
func (p Point) Mag() float64               { return math.Hypot(p.X, p.Y) }
func (p Point) Equal(o Point) bool         { return p.X == o.X && p.Y == o.Y }
func (p Point) DistanceTo(o Point) float64 { return p.Sub(o).Mag() }

// LngLatBounds represents a geographic bounding box.
type LngLatBounds struct {
	SW LngLat `json:"sw"`
	NE LngLat `json:"ne"`
}

// NewLngLatBounds builds bounds from two opposite corners in any order.
func NewLngLatBounds(a, b LngLat) LngLatBounds {
	return LngLatBounds{
		SW: LngLat{Lng: math.Min(a.Lng, b.Lng), Lat: math.Min(a.Lat, b.Lat)},
		NE: LngLat{Lng: math.Max(a.Lng, b.Lng), Lat: math.Max(a.Lat, b.Lat)},
	}
}

// Extend grows the bounds to include ll.
func (b LngLatBounds) Extend(ll LngLat) LngLatBounds {
	return LngLatBounds{
		SW: LngLat{Lng: math.Min(b.SW.Lng, ll.Lng), Lat: math.Min(b.SW.Lat, ll.Lat)},
		NE: LngLat{Lng: math.Max(b.NE.Lng, ll.Lng), Lat: math.Max(b.NE.Lat, ll.Lat)},
	}
}

func (b LngLatBounds) NorthWest() LngLat { return LngLat{Lng: b.SW.Lng, Lat: b.NE.Lat} }
func (b LngLatBounds) SouthEast() LngLat { return LngLat{Lng: b.NE.Lng, Lat: b.SW.Lat} }

// Center returns the arithmetic midpoint of the bounds.
func (b LngLatBounds) Center() LngLat {
	return LngLat{Lng: (b.SW.Lng + b.NE.Lng) / 2, Lat: (b.SW.Lat + b.NE.Lat) / 2}
}

// Padding is the screen space, in pixels, kept free around fitted bounds.
type Padding struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// UniformPadding returns a padding with the same value on every side.
func UniformPadding(p float64) Padding {
	return Padding{Top: p, Bottom: p, Left: p, Right: p}
}
