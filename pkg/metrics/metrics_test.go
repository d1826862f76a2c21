package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"gearshop/pkg/metrics"
)

func TestRegistryInc(t *testing.T) {
	reg := metrics.NewRegistry()
	ctx := context.Background()

	reg.Inc(ctx, metrics.AssistantQueries, metrics.Labels{"outcome": "ok", "mode": "strict"}, 1)
	reg.Inc(ctx, metrics.AssistantQueries, metrics.Labels{"mode": "strict", "outcome": "ok"}, 2)
	reg.Inc(ctx, metrics.Checkouts, nil, 1)

	require.EqualValues(t, 3, reg.Value(metrics.AssistantQueries, metrics.Labels{"mode": "strict", "outcome": "ok"}))
	require.EqualValues(t, 1, reg.Value(metrics.Checkouts, nil))
	require.EqualValues(t, 0, reg.Value("missing", nil))

	require.Equal(t, []string{
		"assistant_queries_total{mode=strict,outcome=ok} 3",
		"checkouts_total 1",
	}, reg.SnapshotLines())
}

func TestRegistryConcurrentInc(t *testing.T) {
	reg := metrics.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Inc(context.Background(), metrics.HTTPRequests, metrics.Labels{"status": "2xx"}, 1)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 50, reg.Value(metrics.HTTPRequests, metrics.Labels{"status": "2xx"}))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var reg *metrics.Registry
	reg.Inc(context.Background(), metrics.Checkouts, nil, 1)
	require.Zero(t, reg.Value(metrics.Checkouts, nil))
}

func TestHandlers(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(context.Background(), metrics.Checkouts, nil, 4)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, reg.TextHandler(e.NewContext(req, rec)))
	require.Equal(t, "checkouts_total 4\n", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics.json", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, reg.JSONHandler(e.NewContext(req, rec)))
	require.JSONEq(t, `{"checkouts_total":4}`, rec.Body.String())
}
