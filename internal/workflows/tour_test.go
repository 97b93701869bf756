package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/workflows"
)

// mockFlyer records the views a tour flew to.
type mockFlyer struct {
	flyFn func(ctx context.Context, sessionID, viewID string) (domain.CameraState, error)
	flown []string
}

func (m *mockFlyer) FlyToViewAndWait(ctx context.Context, sessionID, viewID string) (domain.CameraState, error) {
	m.flown = append(m.flown, viewID)
	if m.flyFn != nil {
		return m.flyFn(ctx, sessionID, viewID)
	}
	return domain.CameraState{SessionID: sessionID, Zoom: 10}, nil
}

func newEnv(t *testing.T, flyer *mockFlyer) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := &workflows.TourActivities{Cameras: flyer}
	env.RegisterWorkflow(workflows.CameraTourWorkflow)
	env.RegisterActivityWithOptions(acts.FlyToView, activity.RegisterOptions{Name: workflows.ActivityFlyToView})
	return env
}

func TestCameraTourWorkflow_VisitsStopsInOrder(t *testing.T) {
	flyer := &mockFlyer{}
	env := newEnv(t, flyer)

	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{
		SessionID: "s1",
		Stops: []domain.TourStop{
			{ViewID: "casco-viejo", Pause: 5 * time.Second},
			{ViewID: "guggenheim", Pause: 5 * time.Second},
			{ViewID: "artxanda"},
		},
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res workflows.TourResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	want := []string{"casco-viejo", "guggenheim", "artxanda"}
	if len(res.Visited) != len(want) {
		t.Fatalf("visited %v, want %v", res.Visited, want)
	}
	for i := range want {
		if res.Visited[i] != want[i] || flyer.flown[i] != want[i] {
			t.Errorf("stop %d = %s, want %s", i, res.Visited[i], want[i])
		}
	}
	if res.Final.SessionID != "s1" {
		t.Errorf("final state %+v", res.Final)
	}
}

func TestCameraTourWorkflow_SkipsMissingViews(t *testing.T) {
	flyer := &mockFlyer{flyFn: func(_ context.Context, sessionID, viewID string) (domain.CameraState, error) {
		if viewID == "gone" {
			return domain.CameraState{}, domain.ErrViewNotFound
		}
		return domain.CameraState{SessionID: sessionID}, nil
	}}
	env := newEnv(t, flyer)

	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{
		SessionID: "s1",
		Stops:     []domain.TourStop{{ViewID: "gone"}, {ViewID: "abando"}},
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res workflows.TourResult
	_ = env.GetWorkflowResult(&res)
	if len(res.Visited) != 1 || res.Visited[0] != "abando" {
		t.Errorf("visited %v", res.Visited)
	}
	if len(flyer.flown) != 2 {
		t.Errorf("a missing view must not be retried, flew %v", flyer.flown)
	}
}

func TestCameraTourWorkflow_StopsWhenSessionGone(t *testing.T) {
	flyer := &mockFlyer{flyFn: func(context.Context, string, string) (domain.CameraState, error) {
		return domain.CameraState{}, domain.ErrSessionNotFound
	}}
	env := newEnv(t, flyer)

	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{
		SessionID: "s1",
		Stops:     []domain.TourStop{{ViewID: "a"}, {ViewID: "b"}},
	})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected the tour to fail")
	}
	if len(flyer.flown) != 1 {
		t.Errorf("flew %v, want a single non-retried attempt", flyer.flown)
	}
}

func TestCameraTourWorkflow_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	flyer := &mockFlyer{flyFn: func(_ context.Context, sessionID, _ string) (domain.CameraState, error) {
		attempts++
		if attempts < 3 {
			return domain.CameraState{}, errors.New("loop busy")
		}
		return domain.CameraState{SessionID: sessionID}, nil
	}}
	env := newEnv(t, flyer)

	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{
		SessionID: "s1",
		Stops:     []domain.TourStop{{ViewID: "a"}},
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestCameraTourWorkflow_EmptyTour(t *testing.T) {
	env := newEnv(t, &mockFlyer{})
	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{SessionID: "s1"})
	if env.GetWorkflowError() == nil {
		t.Error("expected an error for a tour without stops")
	}
}

func TestCameraTourWorkflow_AccumulatesDistance(t *testing.T) {
	centers := map[string]domain.LngLat{
		"bilbao": {Lng: -2.9350, Lat: 43.2630},
		"madrid": {Lng: -3.7038, Lat: 40.4168},
	}
	flyer := &mockFlyer{flyFn: func(_ context.Context, sessionID, viewID string) (domain.CameraState, error) {
		return domain.CameraState{SessionID: sessionID, Center: centers[viewID]}, nil
	}}
	env := newEnv(t, flyer)

	env.ExecuteWorkflow(workflows.CameraTourWorkflow, workflows.TourInput{
		SessionID: "s1",
		Stops:     []domain.TourStop{{ViewID: "bilbao"}, {ViewID: "madrid"}},
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res workflows.TourResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	// Bilbao to Madrid is roughly 320 km.
	if res.DistanceMeters < 300_000 || res.DistanceMeters > 340_000 {
		t.Errorf("distance = %.0f m, want about 320 km", res.DistanceMeters)
	}
}
