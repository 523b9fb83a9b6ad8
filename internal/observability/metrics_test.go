package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/errors"
)

func TestRecordAnalysis(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.RecordAnalysis(true, 0.8, 3)
	m.RecordAnalysis(true, 1.2, 1)
	m.RecordAnalysis(false, 0, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("error")), 1e-9)
}

func TestRecordInferenceFailure(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	netErr := errors.Newf("backend down").
		Component("inference").
		Category(errors.CategoryNetwork).
		Build()
	m.RecordInferenceFailure(netErr)
	m.RecordInferenceFailure(assert.AnError)

	assert.InDelta(t, 1, testutil.ToFloat64(m.InferenceFailures.WithLabelValues(string(errors.CategoryNetwork))), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.InferenceFailures.WithLabelValues("unknown")), 1e-9)
}

func TestHandlerServesRegistry(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.RecordsSaved.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "redharvest_records_saved_total 1")
}
