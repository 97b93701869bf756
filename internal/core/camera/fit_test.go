package camera_test

import (
	"testing"

	"github.com/samirrijal/mapcam/internal/core/camera"
	"github.com/samirrijal/mapcam/internal/core/domain"
)

var box = domain.NewLngLatBounds(domain.LngLat{Lng: -10, Lat: -10}, domain.LngLat{Lng: 10, Lat: 10})

func TestFitBounds_Linear(t *testing.T) {
	cam, _ := newCamera(t, domain.SessionOptions{})
	cam.FitBounds(box, domain.FitBoundsOptions{
		AnimationOptions: domain.AnimationOptions{Animate: domain.Bool(false)},
		Padding:          20.0,
		Linear:           true,
	}, nil)

	tr := cam.Transform()
	nw := tr.LocationPoint(box.NorthWest())
	se := tr.LocationPoint(box.SouthEast())
	const eps = 1e-6
	if nw.X < 20-eps || nw.Y < 20-eps || se.X > 492+eps || se.Y > 492+eps {
		t.Errorf("box not inside padded viewport: nw=%v se=%v", nw, se)
	}
	if !near(nw.X, 20, eps) && !near(nw.Y, 20, eps) {
		t.Errorf("expected the box to touch the padding on one axis: nw=%v", nw)
	}
	if cam.GetBearing() != 0 {
		t.Errorf("bearing = %v, want 0", cam.GetBearing())
	}
}

func TestFitBounds_FliesByDefault(t *testing.T) {
	cam, sched := newCamera(t, domain.SessionOptions{})
	cam.FitBounds(box, domain.FitBoundsOptions{Padding: 20}, nil)
	s := cam.ActiveSession()
	if s == nil || s.Kind != camera.KindFly {
		t.Fatalf("expected a fly session, got %+v", s)
	}
	sched.RunUntilIdle(tick, 1000)
	if cam.GetZoom() <= 2 {
		t.Errorf("expected to zoom in on the box, zoom %v", cam.GetZoom())
	}
}

func TestCameraForBounds_Padding(t *testing.T) {
	cam, _ := newCamera(t, domain.SessionOptions{})

	got, ok := cam.CameraForBounds(box, domain.FitBoundsOptions{
		Padding: map[string]any{"top": 10, "bottom": 10, "left": 30, "right": 10},
	})
	if !ok {
		t.Fatal("expected a camera for a valid padding map")
	}
	if got.Offset != (domain.Point{X: 10, Y: 0}) {
		t.Errorf("offset = %v, want (10, 0)", got.Offset)
	}
	if !near(got.Center.Lng, 0, 1e-9) || !near(got.Center.Lat, 0, 1e-9) {
		t.Errorf("center = %v", got.Center)
	}

	capped, ok := cam.CameraForBounds(box, domain.FitBoundsOptions{MaxZoom: domain.Float(3)})
	if !ok || capped.Zoom != 3 {
		t.Errorf("expected zoom capped at 3, got %v (ok=%v)", capped.Zoom, ok)
	}
}

func TestCameraForBounds_Rejects(t *testing.T) {
	cam, _ := newCamera(t, domain.SessionOptions{})
	cases := map[string]any{
		"missing keys": map[string]any{"top": 1},
		"extra key":    map[string]any{"top": 1, "bottom": 1, "left": 1, "right": 1, "middle": 1},
		"bad value":    map[string]any{"top": "1", "bottom": 1, "left": 1, "right": 1},
		"string":       "10px",
		"too large":    300.0,
	}
	for name, padding := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := cam.CameraForBounds(box, domain.FitBoundsOptions{Padding: padding}); ok {
				t.Errorf("expected padding %v to be rejected", padding)
			}
		})
	}
}

func TestFitBounds_BadPaddingDoesNothing(t *testing.T) {
	cam, _ := newCamera(t, domain.SessionOptions{})
	rec := record(cam)
	cam.FitBounds(box, domain.FitBoundsOptions{Padding: map[string]float64{"top": 5}}, nil)
	if len(rec.events) != 0 || cam.IsEasing() {
		t.Errorf("expected no movement, got %v", rec.events)
	}
}

func TestCameraForBounds_PointBox(t *testing.T) {
	cam, _ := newCamera(t, domain.SessionOptions{})
	p := domain.LngLat{Lng: 5, Lat: 5}
	point := domain.NewLngLatBounds(p, p)

	got, ok := cam.CameraForBounds(point, domain.FitBoundsOptions{MaxZoom: domain.Float(12)})
	if !ok || got.Zoom != 12 {
		t.Errorf("expected a point box to zoom to maxZoom, got %v (ok=%v)", got.Zoom, ok)
	}

	// Padding that uses up the whole viewport leaves no room, even for a point.
	if got, ok := cam.CameraForBounds(point, domain.FitBoundsOptions{Padding: 256.0}); ok {
		t.Errorf("expected no camera when padding fills the viewport, got %+v", got)
	}
	if _, ok := cam.CameraForBounds(box, domain.FitBoundsOptions{Padding: 256.0}); ok {
		t.Error("expected no camera for a box with zero room left")
	}
}
