package traceserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/internal/traceserver"
	"github.com/psharp-go/psharp/trace"
)

func TestServerReturns404BeforeAnyTraceIsSet(t *testing.T) {
	s := traceserver.New()

	for _, path := range []string{"/trace/bug", "/trace/schedule"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServerHealthzAlwaysOK(t *testing.T) {
	s := traceserver.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerServesLatestBugTraceAsJSON(t *testing.T) {
	s := traceserver.New()
	bug := trace.NewBugTrace("iteration-0")
	s.SetLatest(bug, trace.NewScheduleTrace("random", 1, 1))

	req := httptest.NewRequest(http.MethodGet, "/trace/bug", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "iteration-0")
}

func TestServerServesLatestScheduleTraceAsJSON(t *testing.T) {
	s := traceserver.New()
	s.SetLatest(trace.NewBugTrace("iteration-0"), trace.NewScheduleTrace("random", 42, 1))

	req := httptest.NewRequest(http.MethodGet, "/trace/schedule", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "random")
}
