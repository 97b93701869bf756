package domain

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrViewNotFound    = errors.New("view not found")
)

// SavedView is a named camera position users can fly back to.
type SavedView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Center    LngLat    `json:"center"`
	Zoom      float64   `json:"zoom"`
	Bearing   float64   `json:"bearing"`
	Pitch     float64   `json:"pitch"`
	CreatedAt time.Time `json:"created_at"`
}

// CameraOptions returns the view as a camera target.
func (v SavedView) CameraOptions() CameraOptions {
	center := v.Center
	zoom, bearing, pitch := v.Zoom, v.Bearing, v.Pitch
	return CameraOptions{Center: &center, Zoom: &zoom, Bearing: &bearing, Pitch: &pitch}
}

// TourStop is one leg of a camera tour.
type TourStop struct {
	ViewID string        `json:"view_id"`
	Pause  time.Duration `json:"pause"`
}

// Tour flies a session through saved views in order.
type Tour struct {
	SessionID string     `json:"session_id"`
	Stops     []TourStop `json:"stops"`
}

// TileJob identifies a tile requested from the tile-loader body.
type TileJob struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}
