package http

import (
	"fmt"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/easing"
)

// animationRequest is the JSON shape of domain.AnimationOptions.
type animationRequest struct {
	DurationMS       *int         `json:"duration_ms,omitempty"`
	Easing           string       `json:"easing,omitempty"`
	Bezier           []float64    `json:"bezier,omitempty"`
	Offset           domain.Point `json:"offset"`
	Animate          *bool        `json:"animate,omitempty"`
	NoMoveStart      bool         `json:"no_move_start,omitempty"`
	DelayEndEventsMS int          `json:"delay_end_events_ms,omitempty"`
}

func (r animationRequest) options() (domain.AnimationOptions, error) {
	opts := domain.AnimationOptions{
		Offset:      r.Offset,
		Animate:     r.Animate,
		NoMoveStart: r.NoMoveStart,
	}
	if r.DurationMS != nil {
		if *r.DurationMS < 0 {
			return opts, fmt.Errorf("duration_ms must not be negative")
		}
		opts.Duration = domain.Duration(time.Duration(*r.DurationMS) * time.Millisecond)
	}
	if r.DelayEndEventsMS < 0 {
		return opts, fmt.Errorf("delay_end_events_ms must not be negative")
	}
	opts.DelayEndEvents = time.Duration(r.DelayEndEventsMS) * time.Millisecond

	switch {
	case len(r.Bezier) == 4:
		b := easing.NewUnitBezier(r.Bezier[0], r.Bezier[1], r.Bezier[2], r.Bezier[3])
		opts.Easing = b.Solve
	case len(r.Bezier) != 0:
		return opts, fmt.Errorf("bezier needs exactly 4 control values")
	case r.Easing != "":
		fn, err := easing.ByName(r.Easing)
		if err != nil {
			return opts, err
		}
		opts.Easing = fn
	}
	return opts, nil
}

// cameraRequest is the body of jump and ease.
type cameraRequest struct {
	domain.CameraOptions
	animationRequest
	Data domain.EventData `json:"data,omitempty"`
}

func (r cameraRequest) validate() error {
	for _, ll := range []*domain.LngLat{r.Center, r.Around} {
		if ll != nil {
			if err := ll.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flyRequest is the body of fly.
type flyRequest struct {
	cameraRequest
	Curve         *float64 `json:"curve,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
	ScreenSpeed   *float64 `json:"screen_speed,omitempty"`
	MinZoom       *float64 `json:"min_zoom,omitempty"`
	MaxDurationMS int      `json:"max_duration_ms,omitempty"`
}

func (r flyRequest) options() (domain.FlyToOptions, error) {
	if err := r.validate(); err != nil {
		return domain.FlyToOptions{}, err
	}
	anim, err := r.animationRequest.options()
	if err != nil {
		return domain.FlyToOptions{}, err
	}
	for name, v := range map[string]*float64{"curve": r.Curve, "speed": r.Speed, "screen_speed": r.ScreenSpeed} {
		if v != nil && *v <= 0 {
			return domain.FlyToOptions{}, fmt.Errorf("%s must be positive", name)
		}
	}
	return domain.FlyToOptions{
		CameraOptions:    r.CameraOptions,
		AnimationOptions: anim,
		Curve:            r.Curve,
		Speed:            r.Speed,
		ScreenSpeed:      r.ScreenSpeed,
		MinZoom:          r.MinZoom,
		MaxDuration:      time.Duration(r.MaxDurationMS) * time.Millisecond,
	}, nil
}

// fitRequest is the body of fit.
type fitRequest struct {
	animationRequest
	Bounds  domain.LngLatBounds `json:"bounds"`
	Padding any                 `json:"padding,omitempty"`
	MaxZoom *float64            `json:"max_zoom,omitempty"`
	Linear  bool                `json:"linear,omitempty"`
	Curve   *float64            `json:"curve,omitempty"`
	Speed   *float64            `json:"speed,omitempty"`
	Data    domain.EventData    `json:"data,omitempty"`
}

func (r fitRequest) options() (domain.LngLatBounds, domain.FitBoundsOptions, error) {
	if err := r.Bounds.SW.Validate(); err != nil {
		return domain.LngLatBounds{}, domain.FitBoundsOptions{}, err
	}
	if err := r.Bounds.NE.Validate(); err != nil {
		return domain.LngLatBounds{}, domain.FitBoundsOptions{}, err
	}
	anim, err := r.animationRequest.options()
	if err != nil {
		return domain.LngLatBounds{}, domain.FitBoundsOptions{}, err
	}
	b := domain.NewLngLatBounds(r.Bounds.SW, r.Bounds.NE)
	return b, domain.FitBoundsOptions{
		AnimationOptions: anim,
		Padding:          r.Padding,
		MaxZoom:          r.MaxZoom,
		Linear:           r.Linear,
		Curve:            r.Curve,
		Speed:            r.Speed,
	}, nil
}

type panRequest struct {
	animationRequest
	By   domain.Point     `json:"by"`
	Data domain.EventData `json:"data,omitempty"`
}

type zoomRequest struct {
	animationRequest
	Zoom   *float64         `json:"zoom"`
	Around *domain.LngLat   `json:"around,omitempty"`
	Data   domain.EventData `json:"data,omitempty"`
}

type rotateRequest struct {
	animationRequest
	Bearing *float64         `json:"bearing"`
	Data    domain.EventData `json:"data,omitempty"`
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type viewRequest struct {
	Name    string        `json:"name"`
	Center  domain.LngLat `json:"center"`
	Zoom    float64       `json:"zoom"`
	Bearing float64       `json:"bearing"`
	Pitch   float64       `json:"pitch"`
}

type tourRequest struct {
	Stops []struct {
		ViewID  string `json:"view_id"`
		PauseMS int    `json:"pause_ms"`
	} `json:"stops"`
}

func (r tourRequest) tour(sessionID string) (domain.Tour, error) {
	if len(r.Stops) == 0 {
		return domain.Tour{}, fmt.Errorf("stops must not be empty")
	}
	t := domain.Tour{SessionID: sessionID}
	for i, s := range r.Stops {
		if s.ViewID == "" {
			return domain.Tour{}, fmt.Errorf("stop %d has no view_id", i)
		}
		if s.PauseMS < 0 {
			return domain.Tour{}, fmt.Errorf("stop %d has a negative pause", i)
		}
		t.Stops = append(t.Stops, domain.TourStop{ViewID: s.ViewID, Pause: time.Duration(s.PauseMS) * time.Millisecond})
	}
	return t, nil
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
