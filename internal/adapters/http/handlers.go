package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// parseBody decodes the request body into v. An empty body leaves v as is.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return errBadRequest(c, "invalid request body: "+err.Error())
	}
	return nil
}

// stateResponse writes a camera state that must not be cached.
func stateResponse(c *fiber.Ctx, st domain.CameraState) error {
	c.Set("Cache-Control", "no-store")
	return c.JSON(st)
}

// --- Sessions ---

// CreateSessionHandler starts a new camera session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var opts domain.SessionOptions
		if err := parseBody(c, &opts); err != nil {
			return err
		}
		if opts.Width < 0 || opts.Height < 0 {
			return errBadRequest(c, "width and height must not be negative")
		}
		if (opts.Width == 0) != (opts.Height == 0) {
			return errBadRequest(c, "width and height must both be set, or both omitted for the default size")
		}
		if err := opts.Center.Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}

		st, err := deps.Cameras.Create(c.UserContext(), opts)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		c.Location("/v1/sessions/" + st.SessionID)
		c.Status(fiber.StatusCreated)
		return stateResponse(c, st)
	}
}

// GetSessionHandler returns the current camera state of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Cameras.State(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// DeleteSessionHandler stops and removes a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if deps.Tiles != nil {
			if err := deps.Tiles.Detach(id); err != nil {
				LoggerFromCtx(c.UserContext()).Warn("tile detach failed", "session", id, "error", err)
			}
		}
		if err := deps.Cameras.Delete(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResumeSessionHandler restores a session from its cached snapshot.
func ResumeSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Cameras.Resume(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// JumpHandler moves the camera without animation.
func JumpHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cameraRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := req.validate(); err != nil {
			return errBadRequest(c, err.Error())
		}
		st, err := deps.Cameras.JumpTo(c.UserContext(), c.Params("id"), req.CameraOptions, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// EaseHandler starts an eased transition.
func EaseHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cameraRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := req.validate(); err != nil {
			return errBadRequest(c, err.Error())
		}
		anim, err := req.animationRequest.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		st, err := deps.Cameras.EaseTo(c.UserContext(), c.Params("id"), req.CameraOptions, anim, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// FlyHandler starts a flight.
func FlyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req flyRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		opts, err := req.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		st, err := deps.Cameras.FlyTo(c.UserContext(), c.Params("id"), opts, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// FitHandler fits the camera to bounds. A bounds that cannot fit the
// viewport leaves the camera where it is and answers 422.
func FitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fitRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		bounds, opts, err := req.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		st, ok, err := deps.Cameras.FitBounds(c.UserContext(), c.Params("id"), bounds, opts, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		if !ok {
			return newError(c, fiber.StatusUnprocessableEntity, "unfittable", "bounds do not fit the viewport with this padding")
		}
		return stateResponse(c, st)
	}
}

// PanHandler pans the camera by a pixel offset.
func PanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req panRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		anim, err := req.animationRequest.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		st, err := deps.Cameras.PanBy(c.UserContext(), c.Params("id"), req.By, anim, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// ZoomHandler zooms the camera.
func ZoomHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req zoomRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Zoom == nil {
			return errBadRequest(c, "zoom is required")
		}
		if req.Around != nil {
			if err := req.Around.Validate(); err != nil {
				return errBadRequest(c, err.Error())
			}
		}
		anim, err := req.animationRequest.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		st, err := deps.Cameras.ZoomTo(c.UserContext(), c.Params("id"), *req.Zoom, req.Around, anim, req.Data)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// RotateHandler rotates the camera. Without a bearing it resets north.
func RotateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rotateRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		anim, err := req.animationRequest.options()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var st domain.CameraState
		if req.Bearing == nil {
			st, err = deps.Cameras.ResetNorth(c.UserContext(), c.Params("id"), anim, req.Data)
		} else {
			st, err = deps.Cameras.RotateTo(c.UserContext(), c.Params("id"), *req.Bearing, anim, req.Data)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// StopHandler interrupts the running transition.
func StopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Cameras.Stop(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// ResizeHandler changes the viewport size.
func ResizeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req resizeRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Width <= 0 || req.Height <= 0 {
			return errBadRequest(c, "width and height must be positive")
		}
		st, err := deps.Cameras.Resize(c.UserContext(), c.Params("id"), req.Width, req.Height)
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// BoundsHandler returns the geographic bounds of the viewport.
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Cameras.Bounds(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(b)
	}
}

// --- Views ---

// CreateViewHandler stores a named view.
func CreateViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req viewRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		view := &domain.SavedView{
			Name:    req.Name,
			Center:  req.Center,
			Zoom:    req.Zoom,
			Bearing: req.Bearing,
			Pitch:   req.Pitch,
		}
		if err := deps.Views.Save(c.UserContext(), view); err != nil {
			return errBadRequest(c, err.Error())
		}
		c.Location("/v1/views/" + view.ID)
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// ListViewsHandler returns a page of saved views.
func ListViewsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := parsePagination(c)
		views, total, err := deps.Views.List(c.UserContext(), pg.Limit, pg.Offset)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if views == nil {
			views = []domain.SavedView{}
		}

		pg.Total = total
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: views, Pagination: pg})
	}
}

// GetViewHandler returns a single view.
func GetViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Views.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteViewHandler removes a view.
func DeleteViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Views.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SaveSessionViewHandler stores a session's current camera as a view.
func SaveSessionViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}
		view, err := deps.Views.SaveFromSession(c.UserContext(), deps.Cameras, c.Params("id"), req.Name)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return errNotFound(c, err.Error())
		}
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		c.Location("/v1/views/" + view.ID)
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// FlyToViewHandler flies a session to a saved view.
func FlyToViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Cameras.FlyToView(c.UserContext(), c.Params("id"), c.Params("viewId"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return stateResponse(c, st)
	}
}

// --- Tours ---

// StartTourHandler starts a durable tour through saved views.
func StartTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tours == nil {
			return errServiceUnavailable(c, "tours are not enabled")
		}
		id := c.Params("id")
		if _, err := deps.Cameras.Get(id); err != nil {
			return errFromDomain(c, err)
		}

		var req tourRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		tour, err := req.tour(id)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		runID, err := deps.Tours.StartTour(c.UserContext(), tour)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"session_id": id,
			"run_id":     runID,
			"stops":      len(tour.Stops),
		})
	}
}

// --- Tiles ---

// AttachTilesHandler starts loading the tiles under a session's viewport.
func AttachTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tiles == nil {
			return errServiceUnavailable(c, "tile loading is not enabled")
		}
		id := c.Params("id")
		if deps.Tiles.Attached(id) {
			return errConflict(c, "tiles already attached")
		}
		if err := deps.Tiles.Attach(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DetachTilesHandler stops loading tiles for a session.
func DetachTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tiles == nil {
			return errServiceUnavailable(c, "tile loading is not enabled")
		}
		if err := deps.Tiles.Detach(c.Params("id")); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PoolStatsHandler reports the worker pool size and allocation.
func PoolStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Pool == nil {
			return errServiceUnavailable(c, "worker pool is not enabled")
		}
		return c.JSON(fiber.Map{
			"size":      deps.Pool.Size(),
			"allocated": deps.Pool.Allocated(),
			"sessions":  deps.Cameras.Len(),
		})
	}
}
