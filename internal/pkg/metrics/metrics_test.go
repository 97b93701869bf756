package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

type fakeStat struct{ acquired, idle, total int32 }

func (s fakeStat) AcquiredConns() int32 { return s.acquired }
func (s fakeStat) IdleConns() int32     { return s.idle }
func (s fakeStat) TotalConns() int32    { return s.total }

func TestUpdateDBPoolMetrics(t *testing.T) {
	metrics.UpdateDBPoolMetrics(fakeStat{acquired: 2, idle: 3, total: 5})
	if got := gaugeValue(t, metrics.DBPoolConnsOpen); got != 5 {
		t.Errorf("open = %v, want 5", got)
	}
	if got := gaugeValue(t, metrics.DBPoolConnsAcquired); got != 2 {
		t.Errorf("acquired = %v, want 2", got)
	}

	metrics.UpdateDBPoolMetrics("not a stat")
	if got := gaugeValue(t, metrics.DBPoolConnsIdle); got != 3 {
		t.Errorf("idle changed to %v on a foreign value", got)
	}
}

func TestHandler_ServesRouteLabels(t *testing.T) {
	app := fiber.New()
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/sessions/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	if _, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/abc", nil)); err != nil {
		t.Fatal(err)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(b)
	if !strings.Contains(body, `path="/v1/sessions/:id"`) {
		t.Error("expected requests labelled by route pattern, not raw path")
	}
	if strings.Contains(body, `path="/v1/sessions/abc"`) {
		t.Error("raw session path leaked into labels")
	}
}
