package camera

import (
	"math"
	"sort"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/logging"
)

// BoundsCamera is the camera position that shows a bounding box.
type BoundsCamera struct {
	Center  domain.LngLat
	Zoom    float64
	Bearing float64
	// Offset shifts the box on screen to honour asymmetric padding.
	Offset domain.Point
}

// CameraForBounds computes the north-up camera showing b inside the viewport
// minus opts.Padding and opts.Offset, zoomed in no further than opts.MaxZoom.
// It warns and returns false when the padding is malformed or the box cannot
// fit.
func (c *Camera) CameraForBounds(b domain.LngLatBounds, opts domain.FitBoundsOptions) (BoundsCamera, bool) {
	padding, ok := parsePadding(opts.Padding)
	if !ok {
		logging.WarnOnce("padding must be a positive number, or an object with keys bottom, left, right and top")
		return BoundsCamera{}, false
	}
	maxZoom := floatOr(opts.MaxZoom, c.tr.MaxZoom())

	tr := c.tr
	offset := opts.Offset
	nw := tr.Project(b.NorthWest())
	se := tr.Project(b.SouthEast())
	size := se.Sub(nw)

	scaleX := (tr.Width() - padding.Left - padding.Right - math.Abs(offset.X)*2) / size.X
	scaleY := (tr.Height() - padding.Top - padding.Bottom - math.Abs(offset.Y)*2) / size.Y
	// A point box leaves one axis at +Inf, which maxZoom caps. Zero over zero
	// is NaN and propagates through math.Min.
	scale := math.Min(scaleX, scaleY)
	if !(scale > 0) {
		logging.WarnOnce("map cannot fit within the viewport with the given bounds, padding and offset")
		return BoundsCamera{}, false
	}

	paddingOffset := domain.Point{
		X: (padding.Left - padding.Right) / 2,
		Y: (padding.Top - padding.Bottom) / 2,
	}
	return BoundsCamera{
		Center:  tr.Unproject(nw.Add(se).Div(2)),
		Zoom:    math.Min(tr.ScaleZoom(tr.Scale()*scale), maxZoom),
		Bearing: 0,
		Offset:  offset.Add(paddingOffset),
	}, true
}

// FitBounds moves the camera to show b, with EaseTo when opts.Linear is set
// and FlyTo otherwise.
func (c *Camera) FitBounds(b domain.LngLatBounds, opts domain.FitBoundsOptions, data domain.EventData) {
	cam, ok := c.CameraForBounds(b, opts)
	if !ok {
		return
	}
	target := domain.CameraOptions{Center: &cam.Center, Zoom: &cam.Zoom, Bearing: &cam.Bearing}
	anim := opts.AnimationOptions
	anim.Offset = cam.Offset

	if opts.Linear {
		c.EaseTo(target, anim, data)
		return
	}
	c.FlyTo(domain.FlyToOptions{
		CameraOptions:    target,
		AnimationOptions: anim,
		Curve:            opts.Curve,
		Speed:            opts.Speed,
	}, data)
}

var paddingKeys = []string{"bottom", "left", "right", "top"}

// parsePadding accepts nil, a number, a domain.Padding, or a map holding
// exactly the keys bottom, left, right and top.
func parsePadding(v any) (domain.Padding, bool) {
	switch p := v.(type) {
	case nil:
		return domain.Padding{}, true
	case float64:
		return domain.UniformPadding(p), true
	case int:
		return domain.UniformPadding(float64(p)), true
	case domain.Padding:
		return p, true
	case *domain.Padding:
		if p == nil {
			return domain.Padding{}, true
		}
		return *p, true
	case map[string]float64:
		m := make(map[string]any, len(p))
		for k, v := range p {
			m[k] = v
		}
		return paddingFromMap(m)
	case map[string]any:
		return paddingFromMap(p)
	}
	return domain.Padding{}, false
}

func paddingFromMap(m map[string]any) (domain.Padding, bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) != len(paddingKeys) {
		return domain.Padding{}, false
	}
	vals := make(map[string]float64, len(m))
	for i, k := range keys {
		if k != paddingKeys[i] {
			return domain.Padding{}, false
		}
		switch n := m[k].(type) {
		case float64:
			vals[k] = n
		case int:
			vals[k] = float64(n)
		default:
			return domain.Padding{}, false
		}
	}
	return domain.Padding{Top: vals["top"], Bottom: vals["bottom"], Left: vals["left"], Right: vals["right"]}, true
}
