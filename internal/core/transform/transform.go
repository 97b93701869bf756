// Package transform holds the state of a map camera and the projection math
// between geographic coordinates, world pixels and screen pixels.
package transform

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/geospatial"
)

const (
	DefaultMinZoom = 0.0
	DefaultMaxZoom = 22.0

	// MaxPitch is the steepest camera tilt, in degrees.
	MaxPitch = 60.0

	// fov is the vertical field of view, in radians.
	fov = 0.6435011087932844
)

// Transform is the camera state of one map view. It is not safe for
// concurrent use.
type Transform struct {
	tileSize          float64
	minZoom, maxZoom  float64
	latRange          [2]float64
	lngRange          *[2]float64
	maxBounds         *domain.LngLatBounds
	renderWorldCopies bool

	width, height float64
	center        domain.LngLat
	zoom          float64
	scale         float64
	angle         float64 // radians, the negated bearing
	pitch         float64 // radians

	cameraToCenterDistance float64
	projMatrix             mgl64.Mat4
	pixelMatrix            mgl64.Mat4
	pixelMatrixInverse     mgl64.Mat4

	constraining bool
}

// New builds a transform from session options. Zero width or height is
// allowed; projection is only meaningful once Resize gives it a size.
// Sessions reject such a viewport before they get here.
func New(opts domain.SessionOptions) (*Transform, error) {
	if err := opts.Center.Validate(); err != nil {
		return nil, err
	}
	minZoom, maxZoom := DefaultMinZoom, DefaultMaxZoom
	if opts.MinZoom != nil {
		minZoom = *opts.MinZoom
	}
	if opts.MaxZoom != nil {
		maxZoom = *opts.MaxZoom
	}
	if math.IsNaN(minZoom) || math.IsNaN(maxZoom) || minZoom > maxZoom {
		return nil, fmt.Errorf("invalid zoom range [%v, %v]", minZoom, maxZoom)
	}
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("invalid size %dx%d", opts.Width, opts.Height)
	}
	for name, v := range map[string]float64{"zoom": opts.Zoom, "bearing": opts.Bearing, "pitch": opts.Pitch} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid %s %v", name, v)
		}
	}
	if b := opts.MaxBounds; b != nil {
		if err := validateBounds(*b); err != nil {
			return nil, err
		}
	}

	t := &Transform{
		tileSize:          geospatial.TileSize,
		minZoom:           minZoom,
		maxZoom:           maxZoom,
		latRange:          [2]float64{-geospatial.MaxLatitude, geospatial.MaxLatitude},
		renderWorldCopies: opts.RenderWorldCopies == nil || *opts.RenderWorldCopies,
		width:             float64(opts.Width),
		height:            float64(opts.Height),
		zoom:              minZoom,
		scale:             ZoomScale(minZoom),
	}
	if opts.MaxBounds != nil {
		t.setRanges(opts.MaxBounds)
	}
	t.center = opts.Center
	t.SetZoom(opts.Zoom)
	t.SetBearing(opts.Bearing)
	t.SetPitch(opts.Pitch)
	t.constrain()
	t.calcMatrices()
	return t, nil
}

// Clone returns an independent copy.
func (t *Transform) Clone() *Transform {
	c := *t
	if t.lngRange != nil {
		r := *t.lngRange
		c.lngRange = &r
	}
	if t.maxBounds != nil {
		b := *t.maxBounds
		c.maxBounds = &b
	}
	return &c
}

func (t *Transform) MinZoom() float64          { return t.minZoom }
func (t *Transform) MaxZoom() float64          { return t.maxZoom }
func (t *Transform) RenderWorldCopies() bool   { return t.renderWorldCopies }
func (t *Transform) Center() domain.LngLat     { return t.center }
func (t *Transform) Zoom() float64             { return t.zoom }
func (t *Transform) Scale() float64            { return t.scale }
func (t *Transform) WorldSize() float64        { return t.tileSize * t.scale }
func (t *Transform) Width() float64            { return t.width }
func (t *Transform) Height() float64           { return t.height }
func (t *Transform) Size() domain.Point        { return domain.Point{X: t.width, Y: t.height} }
func (t *Transform) CenterPoint() domain.Point { return t.Size().Div(2) }

// Bearing returns the rotation in degrees, within (-180, 180].
func (t *Transform) Bearing() float64 {
	if t.angle == 0 {
		return 0
	}
	return -t.angle / math.Pi * 180
}

// Pitch returns the tilt in degrees.
func (t *Transform) Pitch() float64 { return t.pitch / math.Pi * 180 }

// HasLngRange reports whether longitude is restricted by SetMaxBounds.
func (t *Transform) HasLngRange() bool { return t.lngRange != nil }

// Point returns the world pixel of the center.
func (t *Transform) Point() domain.Point { return t.Project(t.center) }

// SetMinZoom changes the lower zoom bound, clamping the current zoom.
func (t *Transform) SetMinZoom(z float64) {
	if z == t.minZoom {
		return
	}
	t.minZoom = z
	t.SetZoom(math.Max(t.zoom, z))
}

// SetMaxZoom changes the upper zoom bound, clamping the current zoom.
func (t *Transform) SetMaxZoom(z float64) {
	if z == t.maxZoom {
		return
	}
	t.maxZoom = z
	t.SetZoom(math.Min(t.zoom, z))
}

// SetZoom clamps z to the zoom range.
func (t *Transform) SetZoom(z float64) {
	z = geospatial.Clamp(z, t.minZoom, t.maxZoom)
	if t.zoom == z {
		return
	}
	t.zoom = z
	t.scale = ZoomScale(z)
	t.constrain()
	t.calcMatrices()
}

// SetCenter moves the camera. The viewport is kept inside the allowed
// latitude and longitude ranges.
func (t *Transform) SetCenter(c domain.LngLat) {
	if c == t.center {
		return
	}
	t.center = c
	t.constrain()
	t.calcMatrices()
}

// SetBearing stores b wrapped into (-180, 180].
func (t *Transform) SetBearing(b float64) {
	a := -geospatial.Wrap(b, -180, 180) * math.Pi / 180
	if t.angle == a {
		return
	}
	t.angle = a
	t.calcMatrices()
}

// SetPitch stores p clamped to [0, MaxPitch].
func (t *Transform) SetPitch(p float64) {
	r := geospatial.Clamp(p, 0, MaxPitch) / 180 * math.Pi
	if t.pitch == r {
		return
	}
	t.pitch = r
	t.calcMatrices()
}

// Resize changes the viewport size in pixels.
func (t *Transform) Resize(width, height int) {
	t.width = float64(width)
	t.height = float64(height)
	t.constrain()
	t.calcMatrices()
}

// SetMaxBounds restricts the viewport to b. Nil restores the default
// latitude range and removes any longitude restriction.
func (t *Transform) SetMaxBounds(b *domain.LngLatBounds) {
	t.setRanges(b)
	t.constrain()
	t.calcMatrices()
}

// MaxBounds returns the bounds set by SetMaxBounds, or nil.
func (t *Transform) MaxBounds() *domain.LngLatBounds {
	if t.maxBounds == nil {
		return nil
	}
	b := *t.maxBounds
	return &b
}

func (t *Transform) setRanges(b *domain.LngLatBounds) {
	if b == nil {
		t.maxBounds = nil
		t.lngRange = nil
		t.latRange = [2]float64{-geospatial.MaxLatitude, geospatial.MaxLatitude}
		return
	}
	bb := *b
	t.maxBounds = &bb
	t.lngRange = &[2]float64{b.SW.Lng, b.NE.Lng}
	t.latRange = [2]float64{
		math.Max(b.SW.Lat, -geospatial.MaxLatitude),
		math.Min(b.NE.Lat, geospatial.MaxLatitude),
	}
}

func validateBounds(b domain.LngLatBounds) error {
	if err := b.SW.Validate(); err != nil {
		return fmt.Errorf("invalid max bounds: %w", err)
	}
	if err := b.NE.Validate(); err != nil {
		return fmt.Errorf("invalid max bounds: %w", err)
	}
	if b.SW.Lng >= b.NE.Lng || b.SW.Lat >= b.NE.Lat {
		return fmt.Errorf("invalid max bounds: south-west %v must be below and left of north-east %v", b.SW, b.NE)
	}
	return nil
}

// ZoomScale converts a zoom difference into a scale factor.
func ZoomScale(z float64) float64 { return math.Pow(2, z) }

// ScaleZoom is the inverse of ZoomScale.
func ScaleZoom(s float64) float64 { return math.Log2(s) }

func (t *Transform) ZoomScale(z float64) float64 { return ZoomScale(z) }
func (t *Transform) ScaleZoom(s float64) float64 { return ScaleZoom(s) }

// Project converts a location to a world pixel at the current zoom.
// Latitudes beyond the Mercator limit are clamped.
func (t *Transform) Project(ll domain.LngLat) domain.Point {
	ws := t.WorldSize()
	lat := geospatial.Clamp(ll.Lat, -geospatial.MaxLatitude, geospatial.MaxLatitude)
	return domain.Point{X: geospatial.LngX(ll.Lng, ws), Y: geospatial.LatY(lat, ws)}
}

// Unproject converts a world pixel at the current zoom to a location.
func (t *Transform) Unproject(p domain.Point) domain.LngLat {
	ws := t.WorldSize()
	return domain.LngLat{Lng: geospatial.XLng(p.X, ws), Lat: geospatial.YLat(p.Y, ws)}
}

// LocationPoint returns the screen pixel showing ll.
func (t *Transform) LocationPoint(ll domain.LngLat) domain.Point {
	return t.CoordinatePoint(t.Project(ll))
}

// PointLocation returns the location shown at screen pixel p.
func (t *Transform) PointLocation(p domain.Point) domain.LngLat {
	return t.Unproject(t.PointCoordinate(p))
}

// CoordinatePoint converts a world pixel to a screen pixel.
func (t *Transform) CoordinatePoint(c domain.Point) domain.Point {
	v := t.pixelMatrix.Mul4x1(mgl64.Vec4{c.X, c.Y, 0, 1})
	return domain.Point{X: v[0] / v[3], Y: v[1] / v[3]}
}

// PointCoordinate converts a screen pixel to the world pixel it shows, by
// intersecting the view ray through p with the ground plane.
func (t *Transform) PointCoordinate(p domain.Point) domain.Point {
	c0 := t.pixelMatrixInverse.Mul4x1(mgl64.Vec4{p.X, p.Y, 0, 1})
	c1 := t.pixelMatrixInverse.Mul4x1(mgl64.Vec4{p.X, p.Y, 1, 1})

	x0, y0, z0 := c0[0]/c0[3], c0[1]/c0[3], c0[2]/c0[3]
	x1, y1, z1 := c1[0]/c1[3], c1[1]/c1[3], c1[2]/c1[3]

	k := 0.0
	if z0 != z1 {
		k = (0 - z0) / (z1 - z0)
	}
	return domain.Point{
		X: geospatial.Interpolate(x0, x1, k),
		Y: geospatial.Interpolate(y0, y1, k),
	}
}

// SetLocationAtPoint moves the center so that ll is shown at screen pixel p.
func (t *Transform) SetLocationAtPoint(ll domain.LngLat, p domain.Point) {
	a := t.PointCoordinate(p)
	b := t.PointCoordinate(t.CenterPoint())
	loc := t.Project(ll)
	c := t.Unproject(loc.Sub(a.Sub(b)))
	if t.renderWorldCopies {
		c = c.Wrap()
	}
	t.SetCenter(c)
}

// Bounds returns the smallest geographic box containing the four viewport
// corners.
func (t *Transform) Bounds() domain.LngLatBounds {
	tl := t.PointLocation(domain.Point{})
	b := domain.NewLngLatBounds(tl, tl)
	for _, p := range []domain.Point{{X: t.width}, {X: t.width, Y: t.height}, {Y: t.height}} {
		b = b.Extend(t.PointLocation(p))
	}
	return b
}

// State fills the camera fields of a state snapshot.
func (t *Transform) State() domain.CameraState {
	return domain.CameraState{
		Center:  t.center,
		Zoom:    t.zoom,
		Bearing: t.Bearing(),
		Pitch:   t.Pitch(),
		Width:   int(t.width),
		Height:  int(t.height),
		MinZoom: t.minZoom,
		MaxZoom: t.maxZoom,

		RenderWorldCopies: t.renderWorldCopies,
		MaxBounds:         t.MaxBounds(),
	}
}

// constrain keeps the viewport inside latRange and lngRange, zooming in when
// a range is smaller than the viewport.
func (t *Transform) constrain() {
	if t.width == 0 || t.height == 0 || t.constraining {
		return
	}
	t.constraining = true
	defer func() { t.constraining = false }()

	minY, maxY := t.Project(domain.LngLat{Lat: t.latRange[1]}).Y, t.Project(domain.LngLat{Lat: t.latRange[0]}).Y
	sy := 0.0
	if maxY-minY < t.height {
		sy = t.height / (maxY - minY)
	}

	var minX, maxX, sx float64
	if t.lngRange != nil {
		minX = t.Project(domain.LngLat{Lng: t.lngRange[0]}).X
		maxX = t.Project(domain.LngLat{Lng: t.lngRange[1]}).X
		if maxX-minX < t.width {
			sx = t.width / (maxX - minX)
		}
	}

	point := t.Point()
	if s := math.Max(sx, sy); s > 0 {
		x, y := point.X, point.Y
		if sx > 0 {
			x = (maxX + minX) / 2
		}
		if sy > 0 {
			y = (maxY + minY) / 2
		}
		t.center = t.Unproject(domain.Point{X: x, Y: y})
		t.zoom = geospatial.Clamp(t.zoom+ScaleZoom(s), t.minZoom, t.maxZoom)
		t.scale = ZoomScale(t.zoom)
		return
	}

	x2, y2 := point.X, point.Y
	changed := false
	h2 := t.height / 2
	if point.Y-h2 < minY {
		y2, changed = minY+h2, true
	}
	if point.Y+h2 > maxY {
		y2, changed = maxY-h2, true
	}
	if t.lngRange != nil {
		w2 := t.width / 2
		if point.X-w2 < minX {
			x2, changed = minX+w2, true
		}
		if point.X+w2 > maxX {
			x2, changed = maxX-w2, true
		}
	}
	if changed {
		t.center = t.Unproject(domain.Point{X: x2, Y: y2})
	}
}

// calcMatrices rebuilds the projection and pixel matrices: a perspective
// camera looking down at the center from cameraToCenterDistance, tilted by
// pitch and rotated by bearing.
func (t *Transform) calcMatrices() {
	if t.width == 0 || t.height == 0 {
		return
	}
	t.cameraToCenterDistance = 0.5 / math.Tan(fov/2) * t.height

	halfFov := fov / 2
	groundAngle := math.Pi/2 + t.pitch
	topHalfSurfaceDistance := math.Sin(halfFov) * t.cameraToCenterDistance / math.Sin(math.Pi-groundAngle-halfFov)
	furthestDistance := math.Cos(math.Pi/2-t.pitch)*topHalfSurfaceDistance + t.cameraToCenterDistance
	farZ := furthestDistance * 1.01

	p := t.Point()
	m := mgl64.Perspective(fov, t.width/t.height, 1, farZ).
		Mul4(mgl64.Scale3D(1, -1, 1)).
		Mul4(mgl64.Translate3D(0, 0, -t.cameraToCenterDistance)).
		Mul4(mgl64.HomogRotate3DX(t.pitch)).
		Mul4(mgl64.HomogRotate3DZ(t.angle)).
		Mul4(mgl64.Translate3D(-p.X, -p.Y, 0))
	t.projMatrix = m

	t.pixelMatrix = mgl64.Scale3D(t.width/2, -t.height/2, 1).
		Mul4(mgl64.Translate3D(1, -1, 0)).
		Mul4(m)
	t.pixelMatrixInverse = t.pixelMatrix.Inv()
}
