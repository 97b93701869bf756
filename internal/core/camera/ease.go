package camera

import (
	"math"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/easing"
	"github.com/samirrijal/mapcam/internal/pkg/geospatial"
)

// Transition kinds.
const (
	KindEase = "ease"
	KindFly  = "fly"
)

// Session is one running transition.
type Session struct {
	Kind     string
	Duration time.Duration
	Easing   easing.Func

	start  time.Time
	frame  func(k float64)
	finish func()
	cancel func()
}

// Step maps the time elapsed since the session started to eased progress k,
// and reports whether the session has reached its end. The last step is
// always exactly 1.
func (s *Session) Step(elapsed time.Duration) (k float64, done bool) {
	t := 1.0
	if s.Duration > 0 {
		t = math.Max(0, math.Min(float64(elapsed)/float64(s.Duration), 1))
	}
	if t >= 1 {
		return 1, true
	}
	return s.Easing(t), false
}

// EaseTo animates to the target camera over anim.Duration (500ms by
// default) along anim.Easing. With opts.Around set, that location stays put
// on screen; otherwise the center travels with a speed-up that keeps zooming
// and panning visually balanced.
func (c *Camera) EaseTo(opts domain.CameraOptions, anim domain.AnimationOptions, data domain.EventData) {
	if !validCameraOptions(opts) {
		return
	}
	// Delayed end events of a previous transition are dropped, not fired:
	// this transition continues the movement.
	c.stop(false)
	c.dropDeferred()

	duration := DefaultEaseDuration
	if anim.Duration != nil {
		duration = *anim.Duration
	}

	tr := c.tr
	startZoom, startBearing, startPitch := tr.Zoom(), tr.Bearing(), tr.Pitch()
	zoom := floatOr(opts.Zoom, startZoom)
	bearing := startBearing
	if opts.Bearing != nil {
		bearing = NormalizeBearing(*opts.Bearing, startBearing)
	}
	pitch := floatOr(opts.Pitch, startPitch)

	pointAtOffset := tr.CenterPoint().Add(anim.Offset)
	locationAtOffset := c.locationAtOffset(anim.Offset)
	center := locationAtOffset
	if opts.Center != nil {
		center = *opts.Center
	}
	center = c.normalizeCenter(center)

	from := tr.Project(locationAtOffset)
	delta := tr.Project(center).Sub(from)
	finalScale := tr.ZoomScale(zoom - startZoom)

	var around *domain.LngLat
	var aroundPoint domain.Point
	if opts.Around != nil && c.hasArea() {
		a := *opts.Around
		around = &a
		aroundPoint = tr.LocationPoint(a)
	}

	c.zooming = zoom != startZoom
	c.rotating = bearing != startBearing
	c.pitching = pitch != startPitch

	c.prepareEase(data, anim.NoMoveStart)

	frame := func(k float64) {
		if c.zooming {
			tr.SetZoom(geospatial.Interpolate(startZoom, zoom, k))
		}
		if c.rotating {
			tr.SetBearing(geospatial.Interpolate(startBearing, bearing, k))
		}
		if c.pitching {
			tr.SetPitch(geospatial.Interpolate(startPitch, pitch, k))
		}

		if around != nil {
			tr.SetLocationAtPoint(*around, aroundPoint)
		} else {
			scale := tr.ZoomScale(tr.Zoom() - startZoom)
			base := math.Max(0.5, finalScale)
			if zoom > startZoom {
				base = math.Min(2, finalScale)
			}
			speedup := math.Pow(base, 1-k)
			newCenter := center
			if k < 1 {
				newCenter = tr.Unproject(from.Add(delta.Mult(k * speedup)).Mult(scale))
			}
			c.placeCenter(newCenter, pointAtOffset)
		}

		c.fireMoveEvents(data)
	}

	finish := func() {
		if anim.DelayEndEvents > 0 {
			c.deferEnd(anim.DelayEndEvents, func() { c.afterEase(data) })
			return
		}
		c.afterEase(data)
	}

	c.ease(KindEase, frame, finish, anim, duration)
}

// ease runs frame once per scheduler frame until the duration has elapsed,
// then finish. Without animation both run immediately.
func (c *Camera) ease(kind string, frame func(k float64), finish func(), anim domain.AnimationOptions, duration time.Duration) {
	if (anim.Animate != nil && !*anim.Animate) || duration <= 0 {
		frame(1)
		finish()
		return
	}

	fn := anim.Easing
	if fn == nil {
		fn = easing.Ease
	}
	s := &Session{
		Kind:     kind,
		Duration: duration,
		Easing:   fn,
		start:    c.sched.Now(),
		frame:    frame,
		finish:   finish,
	}
	c.session = s
	s.cancel = c.sched.RequestFrame(func(now time.Time) { c.renderFrame(s, now) })
}

func (c *Camera) renderFrame(s *Session, now time.Time) {
	if c.session != s {
		return
	}
	k, done := s.Step(now.Sub(s.start))
	s.frame(k)

	// A listener may have stopped or replaced the session.
	if c.session != s {
		return
	}
	if !done {
		s.cancel = c.sched.RequestFrame(func(now time.Time) { c.renderFrame(s, now) })
		return
	}
	c.stop(false)
}
