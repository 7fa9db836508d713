package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/guests/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/guests/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/guests/:id", "204"))
	assert.Equal(t, float64(2), got)
}

func TestMiddleware_RecordsHTTPErrorCode(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/boom", "418")))
}

func TestObserveUpload(t *testing.T) {
	m := New()
	m.ObserveUpload(UploadRejected, 2)
	m.ObserveUpload(UploadAccepted, 0)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.uploads.WithLabelValues(UploadRejected)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.uploads.WithLabelValues(UploadAccepted)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveUpload(UploadAccepted, 1) })
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveUpload(UploadAccepted, 1)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wedding_uploaded_files_total")
}
