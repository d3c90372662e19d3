package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/logging"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(instrumentationName), nil)

	server, err := NewServer(newPipeline(t), logging.NewNop(), nil, WithMetrics(m))
	require.NoError(t, err)

	for _, path := range []string{"/health", "/status", "/status", "/missing"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		server.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	statuses := map[string]int64{}
	var sawDuration bool
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			switch metric.Name {
			case "smartfaq.http.requests_total":
				sum, ok := metric.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value(attribute.Key("route"))
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					counts[route.AsString()] += dp.Value
					statuses[route.AsString()] = status.AsInt64()
				}
			case "smartfaq.http.request_duration_seconds":
				sawDuration = true
			}
		}
	}

	assert.True(t, sawDuration)
	assert.Equal(t, int64(1), counts["/health"])
	assert.Equal(t, int64(2), counts["/status"])
	assert.Equal(t, int64(http.StatusOK), statuses["/status"])
	assert.Equal(t, int64(http.StatusNotFound), statuses[unmatchedRoute(t)])
}

// unmatchedRoute returns the route label echo reports for unknown paths.
func unmatchedRoute(t *testing.T) string {
	t.Helper()
	e := echo.New()
	var path string
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			path = c.Path()
			return err
		}
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if path == "" {
		return "unmatched"
	}
	return path
}
