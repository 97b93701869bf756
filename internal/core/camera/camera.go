// Package camera animates a map Transform: instant jumps, eased
// transitions and optimal zoom-and-pan flights, firing movestart/move/moveend
// style events along the way.
//
// A Camera is single-threaded. Every method, and every frame callback, must
// run on the goroutine of its FrameScheduler.
package camera

import (
	"math"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/core/transform"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
	"github.com/samirrijal/mapcam/internal/pkg/geospatial"
	"github.com/samirrijal/mapcam/internal/pkg/logging"
)

const (
	DefaultEaseDuration = 500 * time.Millisecond
	DefaultCurve        = 1.42
	DefaultSpeed        = 1.2

	// DefaultBearingSnap is the bearing, in degrees, within which
	// SnapToNorth rotates back to north.
	DefaultBearingSnap = 7.0
)

// Camera drives a Transform through animated transitions. At most one
// transition runs at a time: starting another, or calling Stop, finalizes the
// running one first.
type Camera struct {
	*evented.Emitter

	tr    *transform.Transform
	sched ports.FrameScheduler

	bearingSnap float64

	moving, zooming, rotating, pitching bool

	session        *Session
	deferredEnd    func()
	cancelDeferred func()
}

// New returns a camera driving tr with frames from sched.
func New(tr *transform.Transform, sched ports.FrameScheduler) *Camera {
	c := &Camera{tr: tr, sched: sched, bearingSnap: DefaultBearingSnap}
	c.Emitter = evented.New(c)
	return c
}

// Transform returns the camera's transform. Mutating it directly bypasses
// events.
func (c *Camera) Transform() *transform.Transform { return c.tr }

func (c *Camera) IsMoving() bool   { return c.moving }
func (c *Camera) IsZooming() bool  { return c.zooming }
func (c *Camera) IsRotating() bool { return c.rotating }
func (c *Camera) IsPitching() bool { return c.pitching }

// IsEasing reports whether a transition is waiting for frames.
func (c *Camera) IsEasing() bool { return c.session != nil }

// ActiveSession returns the running transition, or nil.
func (c *Camera) ActiveSession() *Session { return c.session }

// State returns a snapshot of the camera.
func (c *Camera) State() domain.CameraState {
	st := c.tr.State()
	st.Moving, st.Zooming, st.Rotating, st.Pitching = c.moving, c.zooming, c.rotating, c.pitching
	st.UpdatedAt = c.sched.Now()
	return st
}

// JumpTo changes any combination of center, zoom, bearing and pitch without
// animation, firing movestart, move, the per-property events and moveend.
func (c *Camera) JumpTo(opts domain.CameraOptions, data domain.EventData) {
	if !validCameraOptions(opts) {
		return
	}
	c.Stop()

	tr := c.tr
	var zoomChanged, bearingChanged, pitchChanged bool
	if opts.Zoom != nil && tr.Zoom() != *opts.Zoom {
		zoomChanged = true
		tr.SetZoom(*opts.Zoom)
	}
	if opts.Center != nil {
		tr.SetCenter(*opts.Center)
	}
	if opts.Bearing != nil && tr.Bearing() != *opts.Bearing {
		bearingChanged = true
		tr.SetBearing(*opts.Bearing)
	}
	if opts.Pitch != nil && tr.Pitch() != *opts.Pitch {
		pitchChanged = true
		tr.SetPitch(*opts.Pitch)
	}

	c.fire(domain.EventMoveStart, data)
	c.fire(domain.EventMove, data)
	if zoomChanged {
		c.fire(domain.EventZoomStart, data)
		c.fire(domain.EventZoom, data)
		c.fire(domain.EventZoomEnd, data)
	}
	if bearingChanged {
		c.fire(domain.EventRotate, data)
	}
	if pitchChanged {
		c.fire(domain.EventPitchStart, data)
		c.fire(domain.EventPitch, data)
		c.fire(domain.EventPitchEnd, data)
	}
	c.fire(domain.EventMoveEnd, data)
}

// Stop ends the running transition where it is, firing its end events
// synchronously, including any delayed by DelayEndEvents. Calling Stop with
// nothing running does nothing.
func (c *Camera) Stop() { c.stop(true) }

func (c *Camera) stop(flush bool) {
	if s := c.session; s != nil {
		c.session = nil
		if s.cancel != nil {
			s.cancel()
		}
		s.finish()
	}
	if flush {
		c.flushDeferred()
	}
}

// NormalizeBearing wraps bearing into (-180, 180] and then shifts it by a
// full turn when that brings it closer to current, so interpolating from
// current takes the short way round.
func NormalizeBearing(bearing, current float64) float64 {
	bearing = geospatial.Wrap(bearing, -180, 180)
	diff := math.Abs(bearing - current)
	if math.Abs(bearing-360-current) < diff {
		bearing -= 360
	}
	if math.Abs(bearing+360-current) < diff {
		bearing += 360
	}
	return bearing
}

// normalizeCenter shifts ll by a full turn when that is the shorter way
// across the antimeridian. It only applies when world copies are rendered
// and longitude is unrestricted.
func (c *Camera) normalizeCenter(ll domain.LngLat) domain.LngLat {
	if !c.tr.RenderWorldCopies() || c.tr.HasLngRange() {
		return ll
	}
	delta := ll.Lng - c.tr.Center().Lng
	switch {
	case delta > 180:
		ll.Lng -= 360
	case delta < -180:
		ll.Lng += 360
	}
	return ll
}

// placeCenter puts ll at screen pixel p, wrapping it when world copies are
// rendered.
func (c *Camera) placeCenter(ll domain.LngLat, p domain.Point) {
	if c.tr.RenderWorldCopies() {
		ll = ll.Wrap()
	}
	if p.Equal(c.tr.CenterPoint()) || !c.hasArea() {
		c.tr.SetCenter(ll)
		return
	}
	c.tr.SetLocationAtPoint(ll, p)
}

func (c *Camera) prepareEase(data domain.EventData, noMoveStart bool) {
	c.moving = true
	if !noMoveStart {
		c.fire(domain.EventMoveStart, data)
	}
	if c.zooming {
		c.fire(domain.EventZoomStart, data)
	}
	if c.pitching {
		c.fire(domain.EventPitchStart, data)
	}
}

func (c *Camera) fireMoveEvents(data domain.EventData) {
	c.fire(domain.EventMove, data)
	if c.zooming {
		c.fire(domain.EventZoom, data)
	}
	if c.rotating {
		c.fire(domain.EventRotate, data)
	}
	if c.pitching {
		c.fire(domain.EventPitch, data)
	}
}

func (c *Camera) afterEase(data domain.EventData) {
	wasZooming, wasPitching := c.zooming, c.pitching
	c.moving, c.zooming, c.rotating, c.pitching = false, false, false, false

	if wasZooming {
		c.fire(domain.EventZoomEnd, data)
	}
	if wasPitching {
		c.fire(domain.EventPitchEnd, data)
	}
	c.fire(domain.EventMoveEnd, data)
}

func (c *Camera) deferEnd(d time.Duration, fn func()) {
	c.dropDeferred()
	c.deferredEnd = fn
	c.cancelDeferred = c.sched.AfterFunc(d, func() {
		c.cancelDeferred = nil
		c.flushDeferred()
	})
}

func (c *Camera) flushDeferred() {
	fn := c.deferredEnd
	c.dropDeferred()
	if fn != nil {
		fn()
	}
}

func (c *Camera) dropDeferred() {
	if c.cancelDeferred != nil {
		c.cancelDeferred()
		c.cancelDeferred = nil
	}
	c.deferredEnd = nil
}

func (c *Camera) fire(typ string, data domain.EventData) {
	c.Fire(typ, data)
}

func (c *Camera) hasArea() bool { return c.tr.Width() > 0 && c.tr.Height() > 0 }

// locationAtOffset is the location under the center point shifted by
// offset. A viewport without area has no pixel matrices, so the current
// center stands in.
func (c *Camera) locationAtOffset(offset domain.Point) domain.LngLat {
	if !c.hasArea() {
		logging.WarnOnce("viewport has no area, animating from the current center", "width", c.tr.Width(), "height", c.tr.Height())
		return c.tr.Center()
	}
	return c.tr.PointLocation(c.tr.CenterPoint().Add(offset))
}

func validCameraOptions(opts domain.CameraOptions) bool {
	for _, ll := range []*domain.LngLat{opts.Center, opts.Around} {
		if ll != nil && ll.Validate() != nil {
			logging.WarnOnce("camera options ignored: invalid location", "location", ll.String())
			return false
		}
	}
	for _, v := range []*float64{opts.Zoom, opts.Bearing, opts.Pitch} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			logging.WarnOnce("camera options ignored: zoom, bearing and pitch must be finite")
			return false
		}
	}
	return true
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
