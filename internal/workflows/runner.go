package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// Register adds the tour workflow and its activities to w.
func Register(w worker.Registry, acts *TourActivities) {
	w.RegisterWorkflow(CameraTourWorkflow)
	w.RegisterActivityWithOptions(acts.FlyToView, activity.RegisterOptions{Name: ActivityFlyToView})
}

// TourRunner starts tour workflows on a Temporal cluster.
type TourRunner struct {
	client    client.Client
	taskQueue string
}

// NewTourRunner creates a new TourRunner.
func NewTourRunner(c client.Client, taskQueue string) *TourRunner {
	return &TourRunner{client: c, taskQueue: taskQueue}
}

// StartTour starts a tour and returns its run ID without waiting for it.
func (r *TourRunner) StartTour(ctx context.Context, tour domain.Tour) (string, error) {
	if len(tour.Stops) == 0 {
		return "", fmt.Errorf("tour has no stops")
	}
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("tour-%s-%s", tour.SessionID, uuid.NewString()),
		TaskQueue: r.taskQueue,
	}
	run, err := r.client.ExecuteWorkflow(ctx, opts, CameraTourWorkflow, TourInput{SessionID: tour.SessionID, Stops: tour.Stops})
	if err != nil {
		return "", fmt.Errorf("start tour: %w", err)
	}
	return run.GetRunID(), nil
}
