package camera

import (
	"math"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

func (c *Camera) GetCenter() domain.LngLat { return c.tr.Center() }
func (c *Camera) GetZoom() float64         { return c.tr.Zoom() }
func (c *Camera) GetBearing() float64      { return c.tr.Bearing() }
func (c *Camera) GetPitch() float64        { return c.tr.Pitch() }

// GetBounds returns the geographic box covering the viewport.
func (c *Camera) GetBounds() domain.LngLatBounds { return c.tr.Bounds() }

// SetCenter jumps to center.
func (c *Camera) SetCenter(center domain.LngLat, data domain.EventData) {
	c.JumpTo(domain.CameraOptions{Center: &center}, data)
}

// SetZoom jumps to zoom.
func (c *Camera) SetZoom(zoom float64, data domain.EventData) {
	c.JumpTo(domain.CameraOptions{Zoom: &zoom}, data)
}

// SetBearing jumps to bearing.
func (c *Camera) SetBearing(bearing float64, data domain.EventData) {
	c.JumpTo(domain.CameraOptions{Bearing: &bearing}, data)
}

// SetPitch jumps to pitch.
func (c *Camera) SetPitch(pitch float64, data domain.EventData) {
	c.JumpTo(domain.CameraOptions{Pitch: &pitch}, data)
}

// PanBy shifts the view by offset screen pixels.
func (c *Camera) PanBy(offset domain.Point, anim domain.AnimationOptions, data domain.EventData) {
	anim.Offset = offset.Mult(-1)
	c.PanTo(c.tr.Center(), anim, data)
}

// PanTo eases the center to ll.
func (c *Camera) PanTo(ll domain.LngLat, anim domain.AnimationOptions, data domain.EventData) {
	c.EaseTo(domain.CameraOptions{Center: &ll}, anim, data)
}

// ZoomTo eases to zoom, keeping around fixed on screen when it is set.
func (c *Camera) ZoomTo(zoom float64, around *domain.LngLat, anim domain.AnimationOptions, data domain.EventData) {
	c.EaseTo(domain.CameraOptions{Zoom: &zoom, Around: around}, anim, data)
}

// ZoomIn eases one zoom level in.
func (c *Camera) ZoomIn(anim domain.AnimationOptions, data domain.EventData) {
	c.ZoomTo(c.GetZoom()+1, nil, anim, data)
}

// ZoomOut eases one zoom level out.
func (c *Camera) ZoomOut(anim domain.AnimationOptions, data domain.EventData) {
	c.ZoomTo(c.GetZoom()-1, nil, anim, data)
}

// RotateTo eases to bearing.
func (c *Camera) RotateTo(bearing float64, anim domain.AnimationOptions, data domain.EventData) {
	c.EaseTo(domain.CameraOptions{Bearing: &bearing}, anim, data)
}

// ResetNorth rotates back to bearing 0, over one second by default.
func (c *Camera) ResetNorth(anim domain.AnimationOptions, data domain.EventData) {
	if anim.Duration == nil {
		anim.Duration = domain.Duration(time.Second)
	}
	c.RotateTo(0, anim, data)
}

// SnapToNorth resets north when the bearing is already close to it.
func (c *Camera) SnapToNorth(anim domain.AnimationOptions, data domain.EventData) {
	if math.Abs(c.GetBearing()) < c.bearingSnap {
		c.ResetNorth(anim, data)
	}
}
