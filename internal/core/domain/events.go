package domain

// Camera lifecycle event names.
const (
	EventMoveStart  = "movestart"
	EventMove       = "move"
	EventMoveEnd    = "moveend"
	EventZoomStart  = "zoomstart"
	EventZoom       = "zoom"
	EventZoomEnd    = "zoomend"
	EventRotate     = "rotate"
	EventPitchStart = "pitchstart"
	EventPitch      = "pitch"
	EventPitchEnd   = "pitchend"

	// Tile pipeline events re-fired on a session.
	EventTileLoad  = "tileload"
	EventTileError = "tileerror"

	EventError = "error"
)

// CameraEvents lists every camera lifecycle event, in no particular order.
var CameraEvents = []string{
	EventMoveStart, EventMove, EventMoveEnd,
	EventZoomStart, EventZoom, EventZoomEnd,
	EventRotate,
	EventPitchStart, EventPitch, EventPitchEnd,
}

// CameraEvent is a session event as delivered to out-of-process consumers.
type CameraEvent struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	State     CameraState `json:"state"`
	Data      EventData   `json:"data,omitempty"`
}
