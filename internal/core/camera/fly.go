package camera

import (
	"math"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/geospatial"
)

// FlightPath is the optimal zoom-and-pan path of van Wijk and Nuij,
// "Smooth and efficient zooming and panning" (2003). A flight starts with a
// visible span of w0 screen pixels, ends with w1, and pans u1 pixels at the
// starting zoom. Rho trades zooming against panning: larger values zoom out
// further.
type FlightPath struct {
	rho, w0, w1, u1 float64
	r0              float64
	length          float64
	// zoomOnly is +1 or -1 for a flight without panning, zooming out or
	// in, and 0 otherwise.
	zoomOnly float64
}

// NewFlightPath plans a flight. It returns false when the start and end
// views are the same up to rounding, in which case there is nothing to fly.
func NewFlightPath(w0, w1, u1, rho float64) (FlightPath, bool) {
	p := FlightPath{rho: rho, w0: w0, w1: w1, u1: u1}
	rho2 := rho * rho

	r := func(i int) float64 {
		sign, w := 1.0, w0
		if i == 1 {
			sign, w = -1, w1
		}
		b := (w1*w1 - w0*w0 + sign*rho2*rho2*u1*u1) / (2 * w * rho2 * u1)
		return math.Log(math.Sqrt(b*b+1) - b)
	}

	p.r0 = r(0)
	p.length = (r(1) - p.r0) / rho

	if math.Abs(u1) < 1e-6 || math.IsNaN(p.length) || math.IsInf(p.length, 0) {
		if math.Abs(w0-w1) < 1e-6 {
			return FlightPath{}, false
		}
		p.zoomOnly = 1
		if w1 < w0 {
			p.zoomOnly = -1
		}
		p.length = math.Abs(math.Log(w1/w0)) / rho
	}
	return p, true
}

// Length is the total path length S.
func (p FlightPath) Length() float64 { return p.length }

// Rho is the curvature used for the path.
func (p FlightPath) Rho() float64 { return p.rho }

// Span returns the visible span at distance s along the path, relative to
// the starting span.
func (p FlightPath) Span(s float64) float64 {
	if p.zoomOnly != 0 {
		return math.Exp(p.zoomOnly * p.rho * s)
	}
	return math.Cosh(p.r0) / math.Cosh(p.r0+p.rho*s)
}

// Progress returns the fraction of the pan covered at distance s along the
// path.
func (p FlightPath) Progress(s float64) float64 {
	if p.zoomOnly != 0 {
		return 0
	}
	rho2 := p.rho * p.rho
	return p.w0 * ((math.Cosh(p.r0)*math.Tanh(p.r0+p.rho*s) - math.Sinh(p.r0)) / rho2) / p.u1
}

// FlyTo animates to the target camera along a FlightPath, zooming out and
// back in so the motion stays legible over long distances. The duration
// follows from the path length and Speed (or ScreenSpeed) unless Duration is
// given; flights longer than MaxDuration jump instead. When start and target
// views coincide the call turns into EaseTo.
func (c *Camera) FlyTo(opts domain.FlyToOptions, data domain.EventData) {
	if !validCameraOptions(opts.CameraOptions) {
		return
	}
	c.Stop()

	tr := c.tr
	startZoom, startBearing, startPitch := tr.Zoom(), tr.Bearing(), tr.Pitch()
	zoom := startZoom
	if opts.Zoom != nil {
		zoom = geospatial.Clamp(*opts.Zoom, tr.MinZoom(), tr.MaxZoom())
	}
	bearing := startBearing
	if opts.Bearing != nil {
		bearing = NormalizeBearing(*opts.Bearing, startBearing)
	}
	pitch := floatOr(opts.Pitch, startPitch)

	scale := tr.ZoomScale(zoom - startZoom)
	pointAtOffset := tr.CenterPoint().Add(opts.Offset)
	locationAtOffset := c.locationAtOffset(opts.Offset)
	center := locationAtOffset
	if opts.Center != nil {
		center = *opts.Center
	}
	center = c.normalizeCenter(center)

	from := tr.Project(locationAtOffset)
	delta := tr.Project(center).Sub(from)

	rho := floatOr(opts.Curve, DefaultCurve)
	w0 := math.Max(tr.Width(), tr.Height())
	w1 := w0 / scale
	u1 := delta.Mag()

	if opts.MinZoom != nil {
		minZoom := geospatial.Clamp(math.Min(*opts.MinZoom, math.Min(startZoom, zoom)), tr.MinZoom(), tr.MaxZoom())
		wMax := w0 / tr.ZoomScale(minZoom-startZoom)
		rho = math.Sqrt(wMax / u1 * 2)
	}

	path, ok := NewFlightPath(w0, w1, u1, rho)
	if !ok {
		c.EaseTo(opts.CameraOptions, opts.AnimationOptions, data)
		return
	}

	var duration time.Duration
	if opts.Duration != nil {
		duration = *opts.Duration
	} else {
		v := floatOr(opts.Speed, DefaultSpeed)
		if opts.ScreenSpeed != nil {
			v = *opts.ScreenSpeed / rho
		}
		duration = time.Duration(path.Length() / v * float64(time.Second))
	}
	if opts.MaxDuration > 0 && duration > opts.MaxDuration {
		duration = 0
	}

	c.zooming = true
	c.rotating = startBearing != bearing
	c.pitching = pitch != startPitch

	c.prepareEase(data, false)

	frame := func(k float64) {
		s := k * path.Length()
		sc := 1 / path.Span(s)

		if k == 1 {
			tr.SetZoom(zoom)
		} else {
			tr.SetZoom(startZoom + tr.ScaleZoom(sc))
		}
		if c.rotating {
			tr.SetBearing(geospatial.Interpolate(startBearing, bearing, k))
		}
		if c.pitching {
			tr.SetPitch(geospatial.Interpolate(startPitch, pitch, k))
		}

		newCenter := center
		if k != 1 {
			newCenter = tr.Unproject(from.Add(delta.Mult(path.Progress(s))).Mult(sc))
		}
		c.placeCenter(newCenter, pointAtOffset)

		c.fireMoveEvents(data)
	}

	c.ease(KindFly, frame, func() { c.afterEase(data) }, opts.AnimationOptions, duration)
}
