package domain

import "time"

// CameraOptions holds the camera fields an operation should change. Nil
// fields are left untouched.
type CameraOptions struct {
	Center  *LngLat  `json:"center,omitempty"`
	Zoom    *float64 `json:"zoom,omitempty"`
	Bearing *float64 `json:"bearing,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty"`
	// Around keeps this location fixed on screen while zooming or rotating.
	Around *LngLat `json:"around,omitempty"`
}

// AnimationOptions controls how a camera transition is animated.
type AnimationOptions struct {
	// Duration of the animation. Nil selects the operation's default.
	Duration *time.Duration
	// Easing maps [0,1] to [0,1]. Nil selects the default ease curve.
	Easing func(t float64) float64
	// Offset of the target center relative to the viewport center, in pixels.
	Offset Point
	// Animate set to false makes the transition instantaneous.
	Animate *bool
	// NoMoveStart suppresses the movestart event.
	NoMoveStart bool
	// DelayEndEvents defers the end events after the numeric animation ends.
	DelayEndEvents time.Duration
}

// FlyToOptions configures a flight along the optimal zoom/pan path.
type FlyToOptions struct {
	CameraOptions
	AnimationOptions

	// Curve is the zoom-out aggressiveness (rho). Default 1.42.
	Curve *float64
	// Speed in screenfuls per second along the path. Default 1.2.
	Speed *float64
	// ScreenSpeed overrides Speed with a speed measured in screenfuls per
	// second assuming a linear timing curve.
	ScreenSpeed *float64
	// MinZoom caps how far out the flight path zooms.
	MinZoom *float64
	// MaxDuration turns flights longer than this into instant jumps.
	MaxDuration time.Duration
}

// FitBoundsOptions configures FitBounds and CameraForBounds.
type FitBoundsOptions struct {
	AnimationOptions

	// Padding is a number, a Padding, or a map with exactly the keys top,
	// bottom, left and right.
	Padding any
	MaxZoom *float64
	// Linear animates with EaseTo instead of FlyTo.
	Linear bool
	Curve  *float64
	Speed  *float64
}

// EventData is caller-supplied data merged into fired camera events.
type EventData map[string]any

// CameraState is a read-only snapshot of a session's camera.
type CameraState struct {
	SessionID string    `json:"session_id"`
	Center    LngLat    `json:"center"`
	Zoom      float64   `json:"zoom"`
	Bearing   float64   `json:"bearing"`
	Pitch     float64   `json:"pitch"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	MinZoom   float64   `json:"min_zoom"`
	MaxZoom   float64   `json:"max_zoom"`

	RenderWorldCopies bool          `json:"render_world_copies"`
	MaxBounds         *LngLatBounds `json:"max_bounds,omitempty"`

	Moving    bool      `json:"moving"`
	Zooming   bool      `json:"zooming"`
	Rotating  bool      `json:"rotating"`
	Pitching  bool      `json:"pitching"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionOptions describes a new camera session.
type SessionOptions struct {
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	Center            LngLat   `json:"center"`
	Zoom              float64  `json:"zoom"`
	Bearing           float64  `json:"bearing"`
	Pitch             float64  `json:"pitch"`
	MinZoom           *float64 `json:"min_zoom,omitempty"`
	MaxZoom           *float64 `json:"max_zoom,omitempty"`
	RenderWorldCopies *bool    `json:"render_world_copies,omitempty"`
	// MaxBounds limits where the viewport may go. Without it longitude is
	// unrestricted and latitude stops at the Mercator limit.
	MaxBounds *LngLatBounds `json:"max_bounds,omitempty"`
}

// Float returns a pointer to v, for optional option fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Duration returns a pointer to d.
func Duration(d time.Duration) *time.Duration { return &d }
