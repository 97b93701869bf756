package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// Error types activities report for failures a retry cannot fix.
const (
	ErrTypeSessionNotFound = "SessionNotFound"
	ErrTypeViewNotFound    = "ViewNotFound"
)

// Flyer moves a live session to a saved view and returns once it is there.
type Flyer interface {
	FlyToViewAndWait(ctx context.Context, sessionID, viewID string) (domain.CameraState, error)
}

// TourActivities holds the activity implementations for the tour workflow.
// They must run in the process that owns the sessions.
type TourActivities struct {
	Cameras Flyer
}

// FlyToView flies the session to a view and waits for the camera to settle.
func (a *TourActivities) FlyToView(ctx context.Context, sessionID, viewID string) (domain.CameraState, error) {
	st, err := a.Cameras.FlyToViewAndWait(ctx, sessionID, viewID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return st, temporal.NewNonRetryableApplicationError(fmt.Sprintf("session %s not found", sessionID), ErrTypeSessionNotFound, err)
	case errors.Is(err, domain.ErrViewNotFound):
		return st, temporal.NewNonRetryableApplicationError(fmt.Sprintf("view %s not found", viewID), ErrTypeViewNotFound, err)
	case err != nil:
		return st, fmt.Errorf("fly to view %s: %w", viewID, err)
	}
	slog.Debug("tour stop reached", "session", sessionID, "view", viewID)
	return st, nil
}
