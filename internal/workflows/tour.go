package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// Activity names.
const (
	ActivityFlyToView = "FlyToView"
)

// TourInput is the input for the camera tour workflow.
type TourInput struct {
	SessionID string
	Stops     []domain.TourStop
}

// TourResult reports how far a tour got.
type TourResult struct {
	Visited []string
	Final   domain.CameraState
	// DistanceMeters is the ground distance between consecutive stops.
	DistanceMeters float64
}

// CameraTourWorkflow flies a session through saved views in order, pausing
// at each one. A missing session ends the tour; a missing view is skipped.
func CameraTourWorkflow(ctx workflow.Context, input TourInput) (TourResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting camera tour", "session", input.SessionID, "stops", len(input.Stops))

	if len(input.Stops) == 0 {
		return TourResult{}, temporal.NewNonRetryableApplicationError("tour has no stops", "EmptyTour", nil)
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeSessionNotFound, ErrTypeViewNotFound},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result TourResult
	for i, stop := range input.Stops {
		var st domain.CameraState
		err := workflow.ExecuteActivity(ctx, ActivityFlyToView, input.SessionID, stop.ViewID).Get(ctx, &st)
		if err != nil {
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == ErrTypeViewNotFound {
				logger.Warn("tour stop skipped", "stop", i, "view", stop.ViewID)
				continue
			}
			return result, fmt.Errorf("stop %d (%s): %w", i, stop.ViewID, err)
		}
		if len(result.Visited) > 0 {
			result.DistanceMeters += result.Final.Center.DistanceTo(st.Center)
		}
		result.Visited = append(result.Visited, stop.ViewID)
		result.Final = st

		if stop.Pause > 0 && i < len(input.Stops)-1 {
			if err := workflow.Sleep(ctx, stop.Pause); err != nil {
				return result, err
			}
		}
	}

	logger.Info("Camera tour finished", "visited", len(result.Visited), "distance_m", result.DistanceMeters)
	return result, nil
}
