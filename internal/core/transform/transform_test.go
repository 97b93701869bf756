package transform_test

import (
	"math"
	"testing"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/transform"
)

const eps = 1e-6

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func newTransform(t *testing.T, opts domain.SessionOptions) *transform.Transform {
	t.Helper()
	if opts.Width == 0 {
		opts.Width, opts.Height = 512, 512
	}
	tr, err := transform.New(opts)
	if err != nil {
		t.Fatalf("new transform: %v", err)
	}
	return tr
}

func TestZoomScale_Inverse(t *testing.T) {
	for _, z := range []float64{-3, 0, 0.5, 7.25, 22} {
		if got := transform.ScaleZoom(transform.ZoomScale(z)); !near(got, z, 1e-12) {
			t.Errorf("ScaleZoom(ZoomScale(%v)) = %v", z, got)
		}
	}
	for _, s := range []float64{0.125, 1, 3, 1024} {
		if got := transform.ZoomScale(transform.ScaleZoom(s)); !near(got, s, 1e-9) {
			t.Errorf("ZoomScale(ScaleZoom(%v)) = %v", s, got)
		}
	}
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	inverted := domain.LngLatBounds{SW: domain.LngLat{Lng: 10}, NE: domain.LngLat{Lng: -10, Lat: 5}}
	nanCorner := domain.LngLatBounds{SW: domain.LngLat{Lng: math.NaN()}, NE: domain.LngLat{Lng: 10, Lat: 5}}
	cases := map[string]domain.SessionOptions{
		"nan lng":         {Center: domain.LngLat{Lng: math.NaN()}},
		"lat 91":          {Center: domain.LngLat{Lat: 91}},
		"zoom range":      {MinZoom: domain.Float(5), MaxZoom: domain.Float(2)},
		"inf zoom":        {Zoom: math.Inf(1)},
		"neg size":        {Width: -1, Height: 10},
		"inverted bounds": {MaxBounds: &inverted},
		"nan bounds":      {MaxBounds: &nanCorner},
	}
	for name, opts := range cases {
		if _, err := transform.New(opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestProjectUnproject_RoundTrip(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 5})
	for _, ll := range []domain.LngLat{{Lng: 0, Lat: 0}, {Lng: -2.935, Lat: 43.263}, {Lng: 179.9, Lat: -60}, {Lng: -179.9, Lat: 80}} {
		got := tr.Unproject(tr.Project(ll))
		if !near(got.Lng, ll.Lng, eps) || !near(got.Lat, ll.Lat, eps) {
			t.Errorf("round trip %v = %v", ll, got)
		}
	}
}

func TestLocationPoint_RoundTrip(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{
		Width: 800, Height: 600, Zoom: 10, Bearing: 37, Pitch: 45,
		Center: domain.LngLat{Lng: -2.935, Lat: 43.263},
	})
	for _, p := range []domain.Point{{X: 400, Y: 300}, {X: 10, Y: 590}, {X: 790, Y: 200}, {X: 123, Y: 456}} {
		got := tr.LocationPoint(tr.PointLocation(p))
		if !near(got.X, p.X, 1e-4) || !near(got.Y, p.Y, 1e-4) {
			t.Errorf("round trip %v = %v", p, got)
		}
	}
}

func TestLocationPoint_CenterIsCenterPoint(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{
		Width: 640, Height: 480, Zoom: 3, Bearing: -120, Pitch: 30,
		Center: domain.LngLat{Lng: 10, Lat: 20},
	})
	got := tr.LocationPoint(tr.Center())
	want := tr.CenterPoint()
	if !near(got.X, want.X, 1e-6) || !near(got.Y, want.Y, 1e-6) {
		t.Errorf("center projects to %v, want %v", got, want)
	}
}

func TestSetBearing_Wraps(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 2})
	cases := []struct{ in, want float64 }{
		{190, -170}, {180, 180}, {-180, 180}, {360, 0}, {-370, -10}, {45, 45},
	}
	for _, c := range cases {
		tr.SetBearing(c.in)
		if !near(tr.Bearing(), c.want, 1e-9) {
			t.Errorf("SetBearing(%v): got %v, want %v", c.in, tr.Bearing(), c.want)
		}
	}
}

func TestSetPitch_Clamps(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 2})
	tr.SetPitch(75)
	if !near(tr.Pitch(), 60, 1e-9) {
		t.Errorf("expected pitch 60, got %v", tr.Pitch())
	}
	tr.SetPitch(-5)
	if tr.Pitch() != 0 {
		t.Errorf("expected pitch 0, got %v", tr.Pitch())
	}
}

func TestSetZoom_Clamps(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 2, MinZoom: domain.Float(1), MaxZoom: domain.Float(10)})
	tr.SetZoom(12)
	if tr.Zoom() != 10 {
		t.Errorf("expected zoom 10, got %v", tr.Zoom())
	}
	tr.SetZoom(-1)
	if tr.Zoom() != 1 {
		t.Errorf("expected zoom 1, got %v", tr.Zoom())
	}
	tr.SetMaxZoom(5)
	tr.SetZoom(8)
	if tr.Zoom() != 5 {
		t.Errorf("expected zoom 5 after SetMaxZoom, got %v", tr.Zoom())
	}
}

func TestConstrain_ZoomsInWhenWorldSmallerThanViewport(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Width: 1024, Height: 768, Zoom: 0})
	if tr.Zoom() <= 0 {
		t.Errorf("expected zoom raised above 0 to fill the viewport, got %v", tr.Zoom())
	}
}

func TestConstrain_KeepsViewportInsideLatRange(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 3})
	tr.SetCenter(domain.LngLat{Lng: 0, Lat: 85})
	top := tr.PointLocation(domain.Point{X: 256, Y: 0})
	if top.Lat > 85.051129+1e-6 {
		t.Errorf("viewport top %v beyond max latitude", top.Lat)
	}
}

func TestMaxBounds_ClampsCenter(t *testing.T) {
	bounds := domain.NewLngLatBounds(domain.LngLat{Lng: -10, Lat: -10}, domain.LngLat{Lng: 10, Lat: 10})
	tr := newTransform(t, domain.SessionOptions{Zoom: 6, Center: domain.LngLat{Lng: 40, Lat: 40}, MaxBounds: &bounds})

	for _, corner := range []domain.Point{{}, tr.Size()} {
		ll := tr.PointLocation(corner)
		if ll.Lng < -10-eps || ll.Lng > 10+eps || ll.Lat < -10-eps || ll.Lat > 10+eps {
			t.Errorf("viewport corner %v at %v is outside %v", corner, ll, bounds)
		}
	}
	if got := tr.MaxBounds(); got == nil || *got != bounds {
		t.Errorf("MaxBounds() = %v, want %v", got, bounds)
	}
	if st := tr.State(); st.MaxBounds == nil || !st.RenderWorldCopies {
		t.Errorf("state lost bounds or world copies: %+v", st)
	}

	tr.SetMaxBounds(nil)
	if tr.HasLngRange() || tr.MaxBounds() != nil {
		t.Error("expected SetMaxBounds(nil) to lift the restriction")
	}
}

func TestSetLocationAtPoint(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Width: 800, Height: 600, Zoom: 8, Bearing: 20, Pitch: 40})
	ll := domain.LngLat{Lng: 0.3, Lat: 0.2}
	p := domain.Point{X: 200, Y: 450}
	tr.SetLocationAtPoint(ll, p)
	got := tr.LocationPoint(ll)
	if !near(got.X, p.X, 1e-3) || !near(got.Y, p.Y, 1e-3) {
		t.Errorf("location lands at %v, want %v", got, p)
	}
}

func TestSetLocationAtPoint_WrapsWithWorldCopies(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 4, Center: domain.LngLat{Lng: 179}})
	tr.SetLocationAtPoint(domain.LngLat{Lng: 185}, tr.CenterPoint())
	if c := tr.Center(); !near(c.Lng, -175, 1e-6) {
		t.Errorf("expected wrapped center -175, got %v", c.Lng)
	}
}

func TestBounds_ContainsCenter(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Width: 800, Height: 600, Zoom: 6, Center: domain.LngLat{Lng: 5, Lat: 45}})
	b := tr.Bounds()
	c := tr.Center()
	if c.Lng < b.SW.Lng || c.Lng > b.NE.Lng || c.Lat < b.SW.Lat || c.Lat > b.NE.Lat {
		t.Errorf("bounds %+v do not contain center %v", b, c)
	}
	mid := b.Center()
	if !near(mid.Lng, c.Lng, 1e-6) {
		t.Errorf("unrotated bounds should be centered on lng %v, got %v", c.Lng, mid.Lng)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	tr := newTransform(t, domain.SessionOptions{Zoom: 3})
	c := tr.Clone()
	c.SetZoom(9)
	if tr.Zoom() != 3 {
		t.Errorf("clone mutation leaked into original: zoom %v", tr.Zoom())
	}
}
